package server

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
)

var nickPattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,20}$`)

// handleConn runs the full lifecycle of one connection: greeting, the
// line-oriented read loop, and teardown. It is the only goroutine reading
// from the socket.
func (s *Server) handleConn(conn net.Conn) {
	authenticated := s.cfg.Auth.Password == "" && !s.cfg.Auth.Require
	c := newClient(conn, authenticated)
	s.trackConn(c)
	log.Infof("Client connecting from %s (%s)", conn.RemoteAddr(), c.identifier)

	defer s.teardown(c)

	c.Send("%s %s\n", EvtWelcome, s.cfg.Server.Motd)
	if c.connState() == stateUnauthenticated {
		c.Send("%s Please authenticate with /auth <password>\n", EvtInfo)
	} else {
		c.Send("%s Please set your nickname with /nick <name>\n", EvtInfo)
	}

	for {
		line, err := c.ReadLine()
		if err != nil {
			log.Debugf("[CLIENT %s] read loop ended: %v", c.remoteID(), err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if s.cfg.Server.Debug {
			if strings.HasPrefix(strings.ToUpper(line), AuthCmd+" ") {
				log.Debugf("[CLIENT %s] Command: %s [REDACTED]", c.remoteID(), AuthCmd)
			} else {
				log.Debugf("[CLIENT %s] Command: %s", c.remoteID(), line)
			}
		}

		cmd, perr := ParseLine(line)
		if perr != nil {
			c.Send("ERROR %s %s\n", perr.Code, perr.Detail)
			continue
		}

		if quit := s.dispatch(c, cmd); quit {
			return
		}
	}
}

// dispatch routes one parsed command through the connection state machine.
// The returned bool requests termination of the read loop.
func (s *Server) dispatch(c *Client, cmd Command) bool {
	switch cmd := cmd.(type) {
	case Auth:
		s.handleAuth(c, cmd)
		return false

	case Quit:
		msg := cmd.Message
		if msg == "" {
			msg = "Goodbye!"
		}
		c.Send("OK QUIT %s\n", msg)
		return true

	case Nick:
		if c.connState() == stateUnauthenticated {
			c.Send("ERROR %s You must authenticate first with /auth <password>\n", ErrAuthRequired)
			return false
		}
		s.handleNick(c, cmd)
		return false
	}

	// Everything below requires a fully registered connection.
	switch c.connState() {
	case stateUnauthenticated:
		c.Send("ERROR %s You must authenticate first with /auth <password>\n", ErrAuthRequired)
		return false
	case stateAuthenticatedNoNick:
		c.Send("ERROR %s Set a nickname first with /nick <name>\n", ErrAuthRequired)
		return false
	}

	switch cmd := cmd.(type) {
	case Join:
		s.handleJoin(c, cmd)
	case Part:
		s.handlePart(c, cmd)
	case DirectMsg:
		s.handleMsg(c, cmd)
	case ChannelMsg:
		s.handleChan(c, cmd)
	case ListChannels:
		s.handleList(c)
	case ListUsers:
		s.handleUsers(c, cmd)
	case FileOffer:
		return s.handleFile(c, cmd)
	case GameChallenge:
		s.handleGameChallenge(c, cmd)
	case GameAccept:
		s.handleGameAccept(c, cmd)
	case GamePlace:
		s.handleGamePlace(c, cmd)
	case GameFire:
		s.handleGameFire(c, cmd)
	case GameSurrender:
		s.handleGameSurrender(c)
	case Ping:
		c.Send("%s %s\n", EvtPong, cmd.Token)
	case UserInfo:
		// IRC client compat, nothing to do.
	}
	return false
}

func (s *Server) handleAuth(c *Client, cmd Auth) {
	if c.connState() != stateUnauthenticated {
		c.Send("ERROR %s Already authenticated\n", ErrMalformed)
		return
	}
	if checkSharedPassword(s.cfg.Auth.Password, cmd.Password) {
		c.setAuthenticated()
		c.Send("OK AUTH Password accepted. Now set your nickname with /nick <name>\n")
		return
	}
	log.Infof("[CLIENT %s] Failed authentication attempt", c.remoteID())
	c.Send("ERROR %s Incorrect password\n", ErrAuthRequired)
}

func (s *Server) handleNick(c *Client, cmd Nick) {
	name := cmd.Name
	if !nickPattern.MatchString(name) {
		c.Send("ERROR %s Invalid nickname (1-20 alphanumeric characters)\n", ErrMalformed)
		return
	}

	current := c.Nick()
	if current != "" && strings.EqualFold(current, name) {
		c.Send("OK NICK You are already known as %s\n", current)
		return
	}

	if current == "" {
		if !s.dir.RegisterNickname(name, c) {
			c.Send("ERROR %s Nickname already in use\n", ErrConflict)
			return
		}
	} else {
		ok, notify := s.dir.RenameNickname(current, name, c, s.cfg.Chat.PreserveChannelsOnRename)
		if !ok {
			c.Send("ERROR %s Nickname already in use\n", ErrConflict)
			return
		}
		notify()
	}

	c.setNick(name)
	log.Infof("[CLIENT %s] Nickname set", name)
	c.Send("OK NICK Welcome, %s!\n", name)
}

func (s *Server) handleJoin(c *Client, cmd Join) {
	if !strings.HasPrefix(cmd.Channel, "#") {
		c.Send("ERROR %s Channel name must start with #\n", ErrMalformed)
		return
	}

	nick := c.Nick()
	s.dir.JoinChannel(cmd.Channel, nick)
	c.Send("OK JOIN Joined %s\n", cmd.Channel)
	s.dir.Broadcast(cmd.Channel, fmt.Sprintf("%s %s %s\n", EvtJoin, cmd.Channel, nick), nick)
}

func (s *Server) handlePart(c *Client, cmd Part) {
	nick := c.Nick()
	if !s.dir.IsMember(cmd.Channel, nick) {
		c.Send("ERROR %s You are not in %s\n", ErrNotFound, cmd.Channel)
		return
	}

	s.dir.PartChannel(cmd.Channel, nick)
	c.Send("OK PART Left %s\n", cmd.Channel)
	s.dir.Broadcast(cmd.Channel, fmt.Sprintf("%s %s %s\n", EvtPart, cmd.Channel, nick), nick)
}

func (s *Server) handleMsg(c *Client, cmd DirectMsg) {
	target, ok := s.dir.LookupConnection(cmd.Target)
	if !ok {
		c.Send("ERROR %s User %s not found\n", ErrNotFound, cmd.Target)
		return
	}

	target.Send("%s %s %s\n", EvtMsg, c.Nick(), cmd.Text)
	c.Send("OK MSG Message sent to %s\n", target.Nick())
}

func (s *Server) handleChan(c *Client, cmd ChannelMsg) {
	nick := c.Nick()
	if !s.dir.IsMember(cmd.Channel, nick) {
		c.Send("ERROR %s You are not in %s\n", ErrNotFound, cmd.Channel)
		return
	}

	s.dir.Broadcast(cmd.Channel, fmt.Sprintf("%s %s %s %s\n", EvtChan, cmd.Channel, nick, cmd.Text), nick)
	c.Send("OK CHAN Message sent to %s\n", cmd.Channel)
}

func (s *Server) handleList(c *Client) {
	channels := s.dir.ListChannels()
	if len(channels) == 0 {
		c.Send("%s No channels available\n", EvtChanList)
		return
	}
	c.Send("%s %s\n", EvtChanList, strings.Join(channels, " "))
}

func (s *Server) handleUsers(c *Client, cmd ListUsers) {
	if cmd.Channel == "" {
		c.Send("%s all %s\n", EvtUserList, strings.Join(s.dir.ListAllNicknames(), " "))
		return
	}

	members, ok := s.dir.ListMembers(cmd.Channel)
	if !ok {
		c.Send("ERROR %s Channel %s not found\n", ErrNotFound, cmd.Channel)
		return
	}
	c.Send("%s %s %s\n", EvtUserList, cmd.Channel, strings.Join(members, " "))
}

// teardown releases every resource the connection holds: active game first,
// then channel memberships (with departure notices), then the nickname
// binding, then a server-wide quit notice. The order keeps the directory
// invariant that channel member sets never reference a dead nickname.
func (s *Server) teardown(c *Client) {
	c.markDead()

	if nick := c.Nick(); nick != "" {
		s.forfeitActiveGame(c)
		s.dir.RemoveFromAllChannels(nick)
		s.dir.UnregisterNickname(nick)
		s.dir.BroadcastServerWide(fmt.Sprintf("%s %s Disconnected\n", EvtQuit, nick), nick)
		log.Infof("[CLIENT %s] Disconnected", nick)
	} else {
		log.Infof("Client %s disconnected before registering", c.identifier)
	}

	s.untrackConn(c)
	c.conn.Close()
}
