package server

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tehcyx/armada/internal/config"
	"github.com/tehcyx/armada/pkg/version"
)

// Server accepts connections and runs one blocking worker per client. All
// shared state lives in the Directory and in the per-session game locks;
// there is no central dispatcher goroutine.
type Server struct {
	cfg *config.Config
	dir *Directory

	// conns tracks every open connection, registered or not, so shutdown
	// can close all sockets and force the workers to unwind.
	connsMux sync.Mutex
	conns    map[uuid.UUID]*Client

	// seats maps a connection to its active game session.
	seatsMux sync.Mutex
	seats    map[uuid.UUID]*gameSeat
}

// New creates a server with its own directory.
func New(cfg *config.Config) *Server {
	return &Server{
		cfg:   cfg,
		dir:   NewDirectory(),
		conns: make(map[uuid.UUID]*Client),
		seats: make(map[uuid.UUID]*gameSeat),
	}
}

// Directory exposes the server's registry, mainly for tests.
func (s *Server) Directory() *Directory {
	return s.dir
}

// Run listens on the configured port and serves until SIGINT/SIGTERM.
// Shutdown closes the listener and every client socket.
func (s *Server) Run() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%s", s.cfg.Server.Host, s.cfg.Server.Port))
	if err != nil {
		return fmt.Errorf("listen failed, port possibly in use already: %w", err)
	}
	defer ln.Close()

	log.Infof("%s %s listening on %s", s.cfg.Server.Name, version.GetVersion(), ln.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				select {
				case <-sigChan:
					return
				default:
					log.Errorf("Failed to accept connection: %v", err)
					continue
				}
			}
			go s.handleConn(conn)
		}
	}()

	<-sigChan
	log.Println("Received shutdown signal, starting graceful shutdown...")

	s.connsMux.Lock()
	clients := make([]*Client, 0, len(s.conns))
	for _, c := range s.conns {
		clients = append(clients, c)
	}
	s.connsMux.Unlock()

	log.Infof("Disconnecting %d clients...", len(clients))
	for _, c := range clients {
		c.Send("%s %s Server shutting down\n", EvtQuit, s.cfg.Server.Name)
		c.conn.Close()
	}

	log.Println("Graceful shutdown complete")
	return nil
}

func (s *Server) trackConn(c *Client) {
	s.connsMux.Lock()
	s.conns[c.identifier] = c
	s.connsMux.Unlock()
}

func (s *Server) untrackConn(c *Client) {
	s.connsMux.Lock()
	delete(s.conns, c.identifier)
	s.connsMux.Unlock()
}
