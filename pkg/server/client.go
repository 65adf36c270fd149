// Package server provides the chat server: the shared nickname/channel
// directory, the per-connection protocol state machine, peer-to-peer file
// forwarding and the battleship game plumbing.
package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// connState tracks how far a connection has come through registration.
type connState int

const (
	stateUnauthenticated connState = iota
	stateAuthenticatedNoNick
	stateReady
)

// Client represents one connected socket. The owning worker goroutine is the
// only reader; writes can come from any worker (broadcasts, direct messages)
// and are serialized through writeMux.
type Client struct {
	identifier uuid.UUID
	conn       net.Conn
	reader     *bufio.Reader

	writeMux sync.Mutex

	stateMux sync.Mutex
	nick     string
	state    connState
	alive    bool
}

func newClient(conn net.Conn, authenticated bool) *Client {
	state := stateUnauthenticated
	if authenticated {
		state = stateAuthenticatedNoNick
	}
	return &Client{
		identifier: uuid.Must(uuid.NewRandom()),
		conn:       conn,
		reader:     bufio.NewReader(conn),
		state:      state,
		alive:      true,
	}
}

// Send writes one formatted protocol line to the client. Write errors are
// logged, not returned: a dead peer is torn down by its own read loop.
func (c *Client) Send(format string, a ...interface{}) {
	c.writeMux.Lock()
	defer c.writeMux.Unlock()
	if _, err := fmt.Fprintf(c.conn, format, a...); err != nil {
		log.Debugf("write to %s failed: %v", c.identifier, err)
	}
}

// SendFileData writes the FILEDATA header and the payload as one unit so a
// concurrent broadcast cannot interleave with the raw bytes.
func (c *Client) SendFileData(data []byte) error {
	c.writeMux.Lock()
	defer c.writeMux.Unlock()
	if _, err := fmt.Fprintf(c.conn, "%s %d\n", EvtFileData, len(data)); err != nil {
		return err
	}
	if _, err := c.conn.Write(data); err != nil {
		return err
	}
	return nil
}

// ReadLine blocks until the next newline-terminated command line.
func (c *Client) ReadLine() (string, error) {
	return c.reader.ReadString('\n')
}

// ReadFull reads exactly n raw bytes off the same buffered stream the line
// reader uses, so bytes already buffered are not lost when the protocol
// switches to binary mode.
func (c *Client) ReadFull(n int64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.reader, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// Nick returns the current nickname, empty before NICK succeeds.
func (c *Client) Nick() string {
	c.stateMux.Lock()
	defer c.stateMux.Unlock()
	return c.nick
}

func (c *Client) setNick(nick string) {
	c.stateMux.Lock()
	defer c.stateMux.Unlock()
	c.nick = nick
	if nick != "" {
		c.state = stateReady
	}
}

func (c *Client) connState() connState {
	c.stateMux.Lock()
	defer c.stateMux.Unlock()
	return c.state
}

func (c *Client) setAuthenticated() {
	c.stateMux.Lock()
	defer c.stateMux.Unlock()
	if c.state == stateUnauthenticated {
		c.state = stateAuthenticatedNoNick
	}
}

func (c *Client) markDead() {
	c.stateMux.Lock()
	defer c.stateMux.Unlock()
	c.alive = false
}

// remoteID is used in logs before a nickname exists.
func (c *Client) remoteID() string {
	if nick := c.Nick(); nick != "" {
		return nick
	}
	return c.conn.RemoteAddr().String()
}
