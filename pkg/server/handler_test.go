package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tehcyx/armada/internal/config"
)

// chanReader decouples the test from the synchronous net.Pipe: a pump
// goroutine drains the server's writes into a channel so a handler that
// broadcasts to several clients never blocks on a test that reads
// sequentially.
type chanReader struct {
	ch  chan []byte
	buf []byte
}

func newChanReader(conn net.Conn) *chanReader {
	r := &chanReader{ch: make(chan []byte, 256)}
	go func() {
		defer close(r.ch)
		for {
			chunk := make([]byte, 4096)
			n, err := conn.Read(chunk)
			if n > 0 {
				r.ch <- chunk[:n]
			}
			if err != nil {
				return
			}
		}
	}()
	return r
}

func (r *chanReader) Read(p []byte) (int, error) {
	if len(r.buf) == 0 {
		select {
		case b, ok := <-r.ch:
			if !ok {
				return 0, io.EOF
			}
			r.buf = b
		case <-time.After(2 * time.Second):
			return 0, errors.New("timed out waiting for server output")
		}
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

// wire is the test's side of one client connection.
type wire struct {
	conn net.Conn
	r    *bufio.Reader
}

func newTestServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return New(cfg)
}

func connect(t *testing.T, s *Server) *wire {
	t.Helper()
	serverSide, clientSide := net.Pipe()
	go s.handleConn(serverSide)
	t.Cleanup(func() { clientSide.Close() })

	w := &wire{conn: clientSide, r: bufio.NewReader(newChanReader(clientSide))}
	return w
}

func (w *wire) send(t *testing.T, line string) {
	t.Helper()
	if _, err := w.conn.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
}

func (w *wire) line(t *testing.T) string {
	t.Helper()
	line, err := w.r.ReadString('\n')
	if err != nil {
		t.Fatalf("read line: %v", err)
	}
	return strings.TrimRight(line, "\n")
}

func (w *wire) expect(t *testing.T, prefix string) string {
	t.Helper()
	line := w.line(t)
	if !strings.HasPrefix(line, prefix) {
		t.Fatalf("expected line starting with %q, got %q", prefix, line)
	}
	return line
}

func (w *wire) raw(t *testing.T, n int) []byte {
	t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(w.r, buf); err != nil {
		t.Fatalf("read %d raw bytes: %v", n, err)
	}
	return buf
}

// sync round-trips a PING so the test knows every earlier line has been
// delivered (or, more to the point, that no unexpected line was).
func (w *wire) sync(t *testing.T, token string) {
	t.Helper()
	w.send(t, "PING "+token)
	assert.Equal(t, EvtPong+" "+token, w.line(t))
}

// register drains the greeting and claims a nickname on an auto-auth server.
func register(t *testing.T, s *Server, nick string) *wire {
	t.Helper()
	w := connect(t, s)
	w.expect(t, EvtWelcome)
	w.expect(t, EvtInfo)
	w.send(t, "NICK "+nick)
	w.expect(t, "OK NICK Welcome, "+nick+"!")
	return w
}

func TestGreetingAutoAuth(t *testing.T) {
	s := newTestServer(nil)
	w := connect(t, s)

	assert.Equal(t, EvtWelcome+" Welcome to the Secure Chat Server!", w.line(t))
	assert.Equal(t, EvtInfo+" Please set your nickname with /nick <name>", w.line(t))
}

func TestAuthGate(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Password = "secret"
	s := newTestServer(cfg)
	w := connect(t, s)

	w.expect(t, EvtWelcome)
	assert.Equal(t, EvtInfo+" Please authenticate with /auth <password>", w.line(t))

	w.send(t, "NICK alice")
	w.expect(t, "ERROR "+ErrAuthRequired+" You must authenticate first")

	w.send(t, "JOIN #general")
	w.expect(t, "ERROR "+ErrAuthRequired+" You must authenticate first")

	w.send(t, "AUTH wrong")
	assert.Equal(t, "ERROR "+ErrAuthRequired+" Incorrect password", w.line(t))

	w.send(t, "AUTH secret")
	w.expect(t, "OK AUTH Password accepted")

	w.send(t, "AUTH secret")
	assert.Equal(t, "ERROR "+ErrMalformed+" Already authenticated", w.line(t))

	w.send(t, "JOIN #general")
	assert.Equal(t, "ERROR "+ErrAuthRequired+" Set a nickname first with /nick <name>", w.line(t))

	w.send(t, "NICK alice")
	assert.Equal(t, "OK NICK Welcome, alice!", w.line(t))
}

func TestAuthRequireWithoutPassword(t *testing.T) {
	cfg := config.Default()
	cfg.Auth.Require = true
	s := newTestServer(cfg)
	w := connect(t, s)

	w.expect(t, EvtWelcome)
	w.expect(t, EvtInfo+" Please authenticate")

	// Any password passes when none is configured, but the exchange itself
	// is still mandatory.
	w.send(t, "AUTH anything")
	w.expect(t, "OK AUTH")
}

func TestNickConflictAndRename(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	_ = register(t, s, "bob")

	late := connect(t, s)
	late.expect(t, EvtWelcome)
	late.expect(t, EvtInfo)
	late.send(t, "NICK Alice")
	assert.Equal(t, "ERROR "+ErrConflict+" Nickname already in use", late.line(t))

	alice.send(t, "NICK bob")
	assert.Equal(t, "ERROR "+ErrConflict+" Nickname already in use", alice.line(t))

	alice.send(t, "NICK ALICE")
	assert.Equal(t, "OK NICK You are already known as alice", alice.line(t))

	alice.send(t, "NICK alicia")
	assert.Equal(t, "OK NICK Welcome, alicia!", alice.line(t))

	late.send(t, "NICK alice")
	assert.Equal(t, "OK NICK Welcome, alice!", late.line(t))
}

func TestNickValidation(t *testing.T) {
	s := newTestServer(nil)
	w := connect(t, s)
	w.expect(t, EvtWelcome)
	w.expect(t, EvtInfo)

	for _, bad := range []string{"has space", "wäy", "overlong_nickname_far_beyond", "no!"} {
		w.send(t, "NICK "+bad)
		w.expect(t, "ERROR "+ErrMalformed+" Invalid nickname")
	}
}

func TestChannelFlow(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	alice.send(t, "JOIN #general")
	assert.Equal(t, "OK JOIN Joined #general", alice.line(t))

	bob.send(t, "JOIN #general")
	assert.Equal(t, "OK JOIN Joined #general", bob.line(t))
	assert.Equal(t, EvtJoin+" #general bob", alice.line(t))

	alice.send(t, "CHAN #general hello all")
	assert.Equal(t, "OK CHAN Message sent to #general", alice.line(t))
	assert.Equal(t, EvtChan+" #general alice hello all", bob.line(t))
	alice.sync(t, "nochan") // own broadcast never echoes back

	bob.send(t, "CHAN #offtopic psst")
	assert.Equal(t, "ERROR "+ErrNotFound+" You are not in #offtopic", bob.line(t))

	alice.send(t, "LIST")
	assert.Equal(t, EvtChanList+" #general", alice.line(t))

	alice.send(t, "USERS #general")
	assert.Equal(t, EvtUserList+" #general alice bob", alice.line(t))

	alice.send(t, "USERS")
	assert.Equal(t, EvtUserList+" all alice bob", alice.line(t))

	bob.send(t, "PART #general")
	assert.Equal(t, "OK PART Left #general", bob.line(t))
	assert.Equal(t, EvtPart+" #general bob", alice.line(t))

	bob.send(t, "PART #general")
	assert.Equal(t, "ERROR "+ErrNotFound+" You are not in #general", bob.line(t))

	alice.send(t, "JOIN general")
	assert.Equal(t, "ERROR "+ErrMalformed+" Channel name must start with #", alice.line(t))
}

func TestDirectMessages(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	alice.send(t, "MSG bob :hey there, bob")
	assert.Equal(t, "OK MSG Message sent to bob", alice.line(t))
	assert.Equal(t, EvtMsg+" alice hey there, bob", bob.line(t))

	alice.send(t, "MSG ghost boo")
	assert.Equal(t, "ERROR "+ErrNotFound+" User ghost not found", alice.line(t))

	// PRIVMSG aliases MSG for plain targets.
	bob.send(t, "PRIVMSG alice sup")
	assert.Equal(t, "OK MSG Message sent to alice", bob.line(t))
	assert.Equal(t, EvtMsg+" bob sup", alice.line(t))
}

func TestQuitNotifiesEveryone(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	bob.send(t, "QUIT gotta go")
	assert.Equal(t, "OK QUIT gotta go", bob.line(t))
	assert.Equal(t, EvtQuit+" bob Disconnected", alice.line(t))
	assert.False(t, s.Directory().IsNicknameTaken("bob"))
}

func TestFileTransferEndToEnd(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	payload := []byte("attack at dawn\x00\x01\x02 -- binary tail")
	digest := ContentDigest(payload)

	alice.send(t, fmt.Sprintf("FILE bob plan.txt %d %s", len(payload), digest))
	assert.Equal(t, "OK FILE Send file data now", alice.line(t))

	offer := bob.line(t)
	assert.Equal(t, fmt.Sprintf("%s alice plan.txt %d %s", EvtFileOffer, len(payload), digest), offer)

	if _, err := alice.conn.Write(payload); err != nil {
		t.Fatalf("write payload: %v", err)
	}

	assert.Equal(t, fmt.Sprintf("%s %d", EvtFileData, len(payload)), bob.line(t))
	got := bob.raw(t, len(payload))
	assert.Equal(t, payload, got)
	assert.True(t, VerifyDigest(got, digest))

	assert.Equal(t, "OK FILE File sent to bob", alice.line(t))

	// The sender's stream is back in line mode.
	alice.sync(t, "afterfile")
}

func TestFileTransferUnknownTarget(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")

	alice.send(t, "FILE ghost plan.txt 10")
	assert.Equal(t, "ERROR "+ErrNotFound+" User ghost not found", alice.line(t))
	alice.sync(t, "stillalive")
}

func TestFileTransferSizeCap(t *testing.T) {
	cfg := config.Default()
	cfg.Transfer.MaxBytes = 16
	s := newTestServer(cfg)
	alice := register(t, s, "alice")
	_ = register(t, s, "bob")

	alice.send(t, "FILE bob big.bin 17")
	assert.Equal(t, "ERROR "+ErrMalformed+" File exceeds the 16 byte limit", alice.line(t))
	alice.sync(t, "capped")
}

func TestFileTransferShortReadTerminates(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	alice.send(t, "FILE bob half.bin 100")
	assert.Equal(t, "OK FILE Send file data now", alice.line(t))
	bob.expect(t, EvtFileOffer)

	if _, err := alice.conn.Write([]byte("only fifty bytes of the promised hundred arrive..")); err != nil {
		t.Fatalf("write partial payload: %v", err)
	}
	alice.conn.Close()

	assert.Equal(t, EvtQuit+" alice Disconnected", bob.line(t))
}

func placeStandardFleet(t *testing.T, w *wire) {
	t.Helper()
	for _, coord := range []string{"A1", "C1", "E1", "G1"} {
		w.send(t, "GAME PLACE "+coord+" H")
		w.expect(t, EvtGameSetup+" Placed!")
	}
	w.send(t, "GAME PLACE I1 H")
}

func TestGameChallengeAcceptAndPlay(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	alice.send(t, "GAME CHALLENGE ghost")
	assert.Equal(t, "ERROR "+ErrNotFound+" User ghost not found", alice.line(t))

	alice.send(t, "GAME CHALLENGE alice")
	assert.Equal(t, "ERROR "+ErrMalformed+" You cannot challenge yourself", alice.line(t))

	alice.send(t, "GAME CHALLENGE bob")
	assert.Equal(t, "OK GAME Challenge sent to bob", alice.line(t))
	assert.Equal(t, EvtGameReq+" alice has challenged you to Battleship! Type '/game accept alice' to play.", bob.line(t))

	bob.send(t, "GAME ACCEPT alice")
	alice.expect(t, EvtGameSetup+" bob accepted!")
	bob.expect(t, EvtGameSetup+" Game on vs alice!")

	placeStandardFleet(t, alice)
	assert.Equal(t, EvtGameUpdate+" All ships placed. Waiting for opponent...", alice.line(t))

	placeStandardFleet(t, bob)
	// Last placement starts the game; the challenger fires first.
	assert.Equal(t, EvtGameStart+" Game started! Your turn.", alice.line(t))
	assert.Equal(t, EvtGameStart+" Game started! Opponent's turn.", bob.line(t))

	bob.send(t, "GAME FIRE A1")
	bob.expect(t, "ERROR "+ErrConflict)

	alice.send(t, "GAME FIRE B1")
	assert.Equal(t, EvtGameUpdate+" You fired at B1: MISS!", alice.line(t))
	assert.Equal(t, EvtGameUpdate+" Opponent fired at B1: MISS!", bob.line(t))

	bob.send(t, "GAME FIRE A1")
	assert.Equal(t, EvtGameUpdate+" You fired at A1: HIT!", bob.line(t))
	assert.Equal(t, EvtGameUpdate+" Opponent fired at A1: HIT!", alice.line(t))

	alice.send(t, "GAME FIRE Z9")
	alice.expect(t, "ERROR "+ErrMalformed)

	bob.send(t, "GAME SURRENDER")
	assert.Equal(t, EvtGameOver+" You surrendered.", bob.line(t))
	assert.Equal(t, EvtGameOver+" Opponent surrendered! You win!", alice.line(t))

	// Both seats are released.
	bob.send(t, "GAME FIRE A2")
	assert.Equal(t, "ERROR "+ErrNotFound+" You are not in a game", bob.line(t))
}

func TestGameOpponentDisconnectForfeits(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")

	alice.send(t, "GAME CHALLENGE bob")
	alice.expect(t, "OK GAME")
	bob.expect(t, EvtGameReq)

	bob.send(t, "GAME ACCEPT alice")
	alice.expect(t, EvtGameSetup)
	bob.expect(t, EvtGameSetup)

	bob.conn.Close()

	assert.Equal(t, EvtGameOver+" Opponent disconnected! You win!", alice.line(t))
	assert.Equal(t, EvtQuit+" bob Disconnected", alice.line(t))
}

func TestGameAcceptReplacesRunningGame(t *testing.T) {
	s := newTestServer(nil)
	alice := register(t, s, "alice")
	bob := register(t, s, "bob")
	carol := register(t, s, "carol")

	alice.send(t, "GAME CHALLENGE bob")
	alice.expect(t, "OK GAME")
	bob.expect(t, EvtGameReq)
	bob.send(t, "GAME ACCEPT alice")
	alice.expect(t, EvtGameSetup)
	bob.expect(t, EvtGameSetup)

	// Bob jumps into a new game with carol; alice wins the abandoned one.
	carol.send(t, "GAME CHALLENGE bob")
	carol.expect(t, "OK GAME")
	bob.expect(t, EvtGameReq)
	bob.send(t, "GAME ACCEPT carol")

	assert.Equal(t, EvtGameOver+" Opponent abandoned the game! You win!", alice.line(t))
	carol.expect(t, EvtGameSetup)
	bob.expect(t, EvtGameSetup)
}

func TestMalformedLinesKeepConnection(t *testing.T) {
	s := newTestServer(nil)
	w := register(t, s, "alice")

	w.send(t, "FROBNICATE")
	assert.Equal(t, "ERROR "+ErrMalformed+" Unknown command", w.line(t))

	w.send(t, "FILE bob x.bin -1")
	assert.Equal(t, "ERROR "+ErrMalformed+" Invalid file size", w.line(t))

	w.sync(t, "resilient")
}
