// Command armada is the interactive terminal client for the chat server:
// channels, direct messages, peer file transfer and battleship.
package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/tehcyx/armada/pkg/server"
	"github.com/tehcyx/armada/pkg/version"
)

// fileSendTimeout bounds the wait for the server's go-ahead after a FILE
// command.
const fileSendTimeout = 10 * time.Second

type pendingOffer struct {
	sender   string
	filename string
	size     int64
	hash     string
}

type client struct {
	conn   net.Conn
	reader *bufio.Reader

	display *display

	mu       sync.Mutex
	nick     string
	offer    *pendingOffer
	fileGo   chan struct{}
	match    *matchState
}

func main() {
	addr := "localhost:6667"
	if len(os.Args) > 1 {
		addr = os.Args[1]
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to connect to %s: %v\n", addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	c := &client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		display: newDisplay(),
	}
	c.display.info("Connected to %s (client %s)", addr, version.GetVersion())
	c.display.info("Type /help for the command list")

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.readLoop()
	}()

	stdin := bufio.NewScanner(os.Stdin)
	for stdin.Scan() {
		line := strings.TrimSpace(stdin.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			c.display.warn("Commands must start with /. Type /help for help")
			continue
		}
		if quit := c.processInput(line[1:]); quit {
			break
		}
		select {
		case <-done:
			c.display.warn("Connection closed by server")
			return
		default:
		}
	}
	conn.Close()
	<-done
}

// readLoop consumes server lines, switching to raw reads for FILEDATA
// payloads.
func (c *client) readLoop() {
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				c.display.warn("Connection lost: %v", err)
			}
			return
		}
		c.handleServerLine(strings.TrimRight(line, "\r\n"))
	}
}

func (c *client) handleServerLine(line string) {
	parts := strings.SplitN(line, " ", 2)
	event := parts[0]
	args := ""
	if len(parts) > 1 {
		args = parts[1]
	}

	switch event {
	case server.EvtWelcome, server.EvtInfo:
		c.display.server("%s", args)

	case "OK":
		c.handleOK(args)

	case "ERROR":
		c.display.warn("%s", args)
		c.clearPendingPlacement()

	case server.EvtMsg:
		from, text, _ := strings.Cut(args, " ")
		c.display.direct(from, text)

	case server.EvtChan:
		rest := strings.SplitN(args, " ", 3)
		if len(rest) == 3 {
			c.display.channel(rest[0], rest[1], rest[2])
		}

	case server.EvtJoin:
		rest := strings.SplitN(args, " ", 2)
		if len(rest) == 2 {
			c.display.notice("[%s] *** %s joined", rest[0], rest[1])
		}

	case server.EvtPart:
		rest := strings.SplitN(args, " ", 2)
		if len(rest) == 2 {
			c.display.notice("[%s] *** %s left", rest[0], rest[1])
		}

	case server.EvtQuit:
		rest := strings.SplitN(args, " ", 2)
		c.display.notice("*** %s disconnected", rest[0])

	case server.EvtUserList:
		scope, names, _ := strings.Cut(args, " ")
		c.display.notice("[Users in %s] %s", scope, names)

	case server.EvtChanList:
		c.display.notice("[Channels] %s", args)

	case server.EvtPong:
		c.display.server("PONG " + args)

	case server.EvtFileOffer:
		c.handleFileOffer(args)

	case server.EvtFileData:
		c.handleFileData(args)

	case server.EvtGameReq:
		c.display.game("%s", args)

	case server.EvtGameSetup, server.EvtGameStart, server.EvtGameUpdate, server.EvtGameOver:
		c.handleGameEvent(event, args)

	default:
		c.display.notice("%s", line)
	}
}

func (c *client) handleOK(args string) {
	c.display.ok("%s", args)

	if strings.HasPrefix(args, "FILE Send file data now") {
		c.mu.Lock()
		ch := c.fileGo
		c.fileGo = nil
		c.mu.Unlock()
		if ch != nil {
			close(ch)
		}
	}
	if strings.HasPrefix(args, "NICK Welcome, ") {
		nick := strings.TrimSuffix(strings.TrimPrefix(args, "NICK Welcome, "), "!")
		c.mu.Lock()
		c.nick = nick
		c.mu.Unlock()
	}
}

func (c *client) handleFileOffer(args string) {
	parts := strings.Fields(args)
	if len(parts) < 3 {
		return
	}
	size, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return
	}
	offer := &pendingOffer{sender: parts[0], filename: parts[1], size: size}
	if len(parts) > 3 {
		offer.hash = parts[3]
	}

	c.mu.Lock()
	c.offer = offer
	c.mu.Unlock()

	c.display.notice("[FILE] %s wants to send you '%s' (%d bytes)", offer.sender, offer.filename, size)
}

// handleFileData reads the raw payload directly off the stream, verifies
// the digest from the preceding offer if one was given, and only then saves
// the file.
func (c *client) handleFileData(args string) {
	size, err := strconv.ParseInt(strings.TrimSpace(args), 10, 64)
	if err != nil || size < 0 {
		c.display.warn("[FILE] Invalid transfer header")
		return
	}

	data := make([]byte, size)
	if _, err := io.ReadFull(c.reader, data); err != nil {
		c.display.warn("[FILE] Receive failed: %v", err)
		return
	}

	c.mu.Lock()
	offer := c.offer
	c.offer = nil
	c.mu.Unlock()

	name := "file.bin"
	if offer != nil {
		name = offer.filename
		if offer.hash != "" && !server.VerifyDigest(data, offer.hash) {
			c.display.warn("[FILE] Checksum mismatch for '%s', discarding payload", name)
			return
		}
	}

	savePath := "received_" + filepath.Base(name)
	if err := os.WriteFile(savePath, data, 0o644); err != nil {
		c.display.warn("[FILE] Save failed: %v", err)
		return
	}
	c.display.notice("[FILE] Received '%s' -> %s", name, savePath)
}

// processInput maps one /command onto the wire protocol. Returns true on
// quit.
func (c *client) processInput(input string) bool {
	cmd, args, _ := strings.Cut(input, " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "help":
		c.display.help()

	case "auth", "nick", "join", "part", "msg", "chan", "list", "users", "ping":
		c.send("%s %s", strings.ToUpper(cmd), args)

	case "game":
		c.handleGameInput(args)

	case "challenge", "accept", "place", "fire", "surrender":
		c.handleGameInput(cmd + " " + args)

	case "send":
		c.sendFile(args)

	case "version":
		c.mu.Lock()
		nick := c.nick
		c.mu.Unlock()
		if nick == "" {
			nick = "(no nickname yet)"
		}
		c.display.info("armada %s, logged in as %s", version.GetVersion(), nick)

	case "quit":
		c.send("QUIT %s", args)
		return true

	default:
		c.display.warn("Unknown command /%s. Type /help for help", cmd)
	}
	return false
}

func (c *client) send(format string, a ...interface{}) {
	line := strings.TrimSpace(fmt.Sprintf(format, a...))
	fmt.Fprint(c.conn, line+"\n")
}

// sendFile implements the sender side of the transfer: announce, wait for
// the server's go-ahead (bounded), then stream the payload.
func (c *client) sendFile(args string) {
	target, path, ok := strings.Cut(args, " ")
	if !ok {
		c.display.warn("Usage: /send <user> <path>")
		return
	}

	data, err := os.ReadFile(strings.TrimSpace(path))
	if err != nil {
		c.display.warn("Cannot read %s: %v", path, err)
		return
	}

	ch := make(chan struct{})
	c.mu.Lock()
	c.fileGo = ch
	c.mu.Unlock()

	digest := server.ContentDigest(data)
	c.send("FILE %s %s %d %s", target, filepath.Base(path), len(data), digest)

	select {
	case <-ch:
	case <-time.After(fileSendTimeout):
		c.mu.Lock()
		c.fileGo = nil
		c.mu.Unlock()
		c.display.warn("[FILE] Server did not accept the transfer in time")
		return
	}

	if _, err := c.conn.Write(data); err != nil {
		c.display.warn("[FILE] Upload failed: %v", err)
		return
	}
	c.display.notice("[FILE] Uploaded %d bytes, waiting for confirmation...", len(data))
}

func init() {
	// Respect dumb terminals.
	if os.Getenv("TERM") == "dumb" {
		color.NoColor = true
	}
}
