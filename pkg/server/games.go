package server

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"github.com/tehcyx/armada/pkg/game"
)

// gameSeat binds a connection to its side of a session. The challenger is
// always game.PlayerA and holds the first turn.
type gameSeat struct {
	session  *game.Session
	player   game.PlayerID
	opponent *Client
}

func (s *Server) seatOf(c *Client) (*gameSeat, bool) {
	s.seatsMux.Lock()
	defer s.seatsMux.Unlock()
	seat, ok := s.seats[c.identifier]
	return seat, ok
}

// releaseGame drops both seats of c's session.
func (s *Server) releaseGame(c *Client, seat *gameSeat) {
	s.seatsMux.Lock()
	defer s.seatsMux.Unlock()
	delete(s.seats, c.identifier)
	delete(s.seats, seat.opponent.identifier)
}

// abandonGame forfeits c's running session, if any, notifying the opponent.
// Used when a connection dies or starts a new game.
func (s *Server) abandonGame(c *Client, opponentNotice string) {
	seat, ok := s.seatOf(c)
	if !ok {
		return
	}
	if seat.session.Forfeit(seat.player) {
		seat.opponent.Send("%s %s\n", EvtGameOver, opponentNotice)
	}
	s.releaseGame(c, seat)
}

func (s *Server) forfeitActiveGame(c *Client) {
	s.abandonGame(c, "Opponent disconnected! You win!")
}

func (s *Server) handleGameChallenge(c *Client, cmd GameChallenge) {
	target, ok := s.dir.LookupConnection(cmd.Target)
	if !ok {
		c.Send("ERROR %s User %s not found\n", ErrNotFound, cmd.Target)
		return
	}
	if target == c {
		c.Send("ERROR %s You cannot challenge yourself\n", ErrMalformed)
		return
	}

	nick := c.Nick()
	target.Send("%s %s has challenged you to Battleship! Type '/game accept %s' to play.\n",
		EvtGameReq, nick, nick)
	c.Send("OK GAME Challenge sent to %s\n", target.Nick())
}

func (s *Server) handleGameAccept(c *Client, cmd GameAccept) {
	challenger, ok := s.dir.LookupConnection(cmd.Target)
	if !ok {
		c.Send("ERROR %s User %s not found\n", ErrNotFound, cmd.Target)
		return
	}
	if challenger == c {
		c.Send("ERROR %s You cannot play against yourself\n", ErrMalformed)
		return
	}

	// A new game replaces whatever either player had running.
	s.abandonGame(challenger, "Opponent abandoned the game! You win!")
	s.abandonGame(c, "Opponent abandoned the game! You win!")

	session := game.NewSession()
	s.seatsMux.Lock()
	s.seats[challenger.identifier] = &gameSeat{session: session, player: game.PlayerA, opponent: c}
	s.seats[c.identifier] = &gameSeat{session: session, player: game.PlayerB, opponent: challenger}
	s.seatsMux.Unlock()

	log.Infof("[GAME] %s vs %s started setup", challenger.Nick(), c.Nick())

	first := game.Fleet[0]
	challenger.Send("%s %s accepted! Place your %s (%d) with '/game place <coord> <H|V>'\n",
		EvtGameSetup, c.Nick(), first.Name, first.Length)
	c.Send("%s Game on vs %s! Place your %s (%d) with '/game place <coord> <H|V>'\n",
		EvtGameSetup, challenger.Nick(), first.Name, first.Length)
}

func (s *Server) handleGamePlace(c *Client, cmd GamePlace) {
	seat, ok := s.seatOf(c)
	if !ok {
		c.Send("ERROR %s You are not in a game\n", ErrNotFound)
		return
	}

	res, err := seat.session.PlaceShip(seat.player, cmd.Coord, cmd.Orientation)
	if err != nil {
		c.Send("ERROR %s %s\n", gameErrCode(err), err)
		return
	}

	switch {
	case res.Ready:
		// Both fleets are complete; announce the start to both sides in
		// the same step.
		playerA, playerB := c, seat.opponent
		if seat.player != game.PlayerA {
			playerA, playerB = seat.opponent, c
		}
		log.Infof("[GAME] %s vs %s is now playing", playerA.Nick(), playerB.Nick())
		playerA.Send("%s Game started! Your turn.\n", EvtGameStart)
		playerB.Send("%s Game started! Opponent's turn.\n", EvtGameStart)
	case res.Next != nil:
		c.Send("%s Placed! Next: %s (%d)\n", EvtGameSetup, res.Next.Name, res.Next.Length)
	default:
		c.Send("%s All ships placed. Waiting for opponent...\n", EvtGameUpdate)
	}
}

func (s *Server) handleGameFire(c *Client, cmd GameFire) {
	seat, ok := s.seatOf(c)
	if !ok {
		c.Send("ERROR %s You are not in a game\n", ErrNotFound)
		return
	}

	res, err := seat.session.Fire(seat.player, cmd.Coord)
	if err != nil {
		c.Send("ERROR %s %s\n", gameErrCode(err), err)
		return
	}

	coord := game.FormatCoord(res.Row, res.Col)
	outcome := "MISS"
	if res.Hit {
		outcome = "HIT"
	}

	if res.Win {
		log.Infof("[GAME] %s beat %s", c.Nick(), seat.opponent.Nick())
		c.Send("%s YOU WON!\n", EvtGameOver)
		seat.opponent.Send("%s YOU LOST!\n", EvtGameOver)
		s.releaseGame(c, seat)
		return
	}

	c.Send("%s You fired at %s: %s!\n", EvtGameUpdate, coord, outcome)
	seat.opponent.Send("%s Opponent fired at %s: %s!\n", EvtGameUpdate, coord, outcome)
}

func (s *Server) handleGameSurrender(c *Client) {
	seat, ok := s.seatOf(c)
	if !ok {
		c.Send("ERROR %s No active game to surrender\n", ErrNotFound)
		return
	}

	seat.session.Forfeit(seat.player)
	log.Infof("[GAME] %s surrendered to %s", c.Nick(), seat.opponent.Nick())
	seat.opponent.Send("%s Opponent surrendered! You win!\n", EvtGameOver)
	c.Send("%s You surrendered.\n", EvtGameOver)
	s.releaseGame(c, seat)
}

// gameErrCode maps engine errors onto the protocol taxonomy: malformed
// input is 400, state conflicts (wrong phase, wrong turn, repeats, illegal
// placement) are 409.
func gameErrCode(err error) string {
	switch {
	case errors.Is(err, game.ErrBadCoord), errors.Is(err, game.ErrBadOrientation):
		return ErrMalformed
	default:
		return ErrConflict
	}
}
