package game

import (
	"errors"
	"strings"
	"sync"
)

// PlayerID identifies a seat in a session. PlayerA is always the challenger
// and holds the first turn.
type PlayerID int

const (
	PlayerA PlayerID = iota
	PlayerB
)

func (p PlayerID) Opponent() PlayerID {
	if p == PlayerA {
		return PlayerB
	}
	return PlayerA
}

func (p PlayerID) String() string {
	if p == PlayerA {
		return "player1"
	}
	return "player2"
}

// State is the lifecycle phase of a session. Transitions are one-way:
// Setup -> Playing -> Finished.
type State int

const (
	Setup State = iota
	Playing
	Finished
)

var (
	ErrNotSetup       = errors.New("game is not in setup phase")
	ErrNotPlaying     = errors.New("game is not active")
	ErrAllPlaced      = errors.New("all ships placed, waiting for opponent")
	ErrBadCoord       = errors.New("invalid coordinate")
	ErrBadOrientation = errors.New("orientation must be H or V")
	ErrBadPlacement   = errors.New("invalid placement (overlap or out of bounds)")
	ErrNotYourTurn    = errors.New("it is not your turn")
	ErrAlreadyFired   = errors.New("you already fired there")
)

// Session is the full state of one battleship match. Both players' workers
// call into the same session concurrently, so every mutation runs under the
// session mutex; the turn check inside Fire is what prevents a double move.
type Session struct {
	mu sync.Mutex

	state State
	turn  PlayerID

	// boards holds each player's own ships, views what each player has
	// learned about the opponent (hits and misses only).
	boards [2]Grid
	views  [2]Grid

	ships  [2][]ship
	placed [2]int

	winner    PlayerID
	hasWinner bool
}

// NewSession creates a session in the setup phase with PlayerA to move first.
func NewSession() *Session {
	return &Session{state: Setup, turn: PlayerA}
}

// PlaceResult reports the outcome of a successful PlaceShip call.
type PlaceResult struct {
	// Placed is how many ships this player has now placed.
	Placed int
	// Next is the ship to place next, nil once the player's fleet is
	// complete.
	Next *ShipClass
	// Ready is true when this placement completed both fleets and the
	// session moved to Playing.
	Ready bool
}

// PlaceShip places the player's next ship of the fixed fleet order at coord
// with orientation "H" (grows columns) or "V" (grows rows).
func (s *Session) PlaceShip(p PlayerID, coord, orientation string) (PlaceResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Setup {
		return PlaceResult{}, ErrNotSetup
	}
	if s.placed[p] >= len(Fleet) {
		return PlaceResult{}, ErrAllPlaced
	}

	row, col, ok := ParseCoord(coord)
	if !ok {
		return PlaceResult{}, ErrBadCoord
	}
	var horizontal bool
	switch strings.ToUpper(strings.TrimSpace(orientation)) {
	case "H":
		horizontal = true
	case "V":
		horizontal = false
	default:
		return PlaceResult{}, ErrBadOrientation
	}

	length := Fleet[s.placed[p]].Length
	board := &s.boards[p]
	if !canPlace(board, row, col, length, horizontal) {
		return PlaceResult{}, ErrBadPlacement
	}

	var sh ship
	for i := 0; i < length; i++ {
		r, c := row, col
		if horizontal {
			c += i
		} else {
			r += i
		}
		board[r][c] = CellShip
		sh.cells = append(sh.cells, [2]int{r, c})
	}
	s.ships[p] = append(s.ships[p], sh)
	s.placed[p]++

	res := PlaceResult{Placed: s.placed[p]}
	if s.placed[p] < len(Fleet) {
		next := Fleet[s.placed[p]]
		res.Next = &next
	}
	if s.placed[PlayerA] == len(Fleet) && s.placed[PlayerB] == len(Fleet) {
		s.state = Playing
		res.Ready = true
	}
	return res, nil
}

func canPlace(board *Grid, row, col, length int, horizontal bool) bool {
	for i := 0; i < length; i++ {
		r, c := row, col
		if horizontal {
			c += i
		} else {
			r += i
		}
		if r >= BoardSize || c >= BoardSize {
			return false
		}
		if board[r][c] != CellEmpty {
			return false
		}
	}
	return true
}

// FireResult reports the outcome of a successful Fire call.
type FireResult struct {
	Row, Col int
	Hit      bool
	// Win is true when this shot sank the last remaining ship cell and
	// the session moved to Finished.
	Win bool
}

// Fire resolves a shot by p at coord. The turn flips on every legal shot,
// hit or miss.
func (s *Session) Fire(p PlayerID, coord string) (FireResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Playing {
		return FireResult{}, ErrNotPlaying
	}
	if s.turn != p {
		return FireResult{}, ErrNotYourTurn
	}

	row, col, ok := ParseCoord(coord)
	if !ok {
		return FireResult{}, ErrBadCoord
	}

	view := &s.views[p]
	if view[row][col] != CellEmpty {
		return FireResult{}, ErrAlreadyFired
	}

	target := &s.boards[p.Opponent()]
	hit := target[row][col] == CellShip
	if hit {
		view[row][col] = CellHit
		target[row][col] = CellHit
	} else {
		view[row][col] = CellMiss
		target[row][col] = CellMiss
	}

	s.turn = p.Opponent()

	res := FireResult{Row: row, Col: col, Hit: hit}
	if allSunk(target) {
		s.state = Finished
		s.winner = p
		s.hasWinner = true
		res.Win = true
	}
	return res, nil
}

func allSunk(board *Grid) bool {
	for r := 0; r < BoardSize; r++ {
		for c := 0; c < BoardSize; c++ {
			if board[r][c] == CellShip {
				return false
			}
		}
	}
	return true
}

// Forfeit ends the session in favor of p's opponent, used for surrender and
// disconnects. It reports whether the call ended a game that was still
// running.
func (s *Session) Forfeit(p PlayerID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Finished {
		return false
	}
	s.state = Finished
	s.winner = p.Opponent()
	s.hasWinner = true
	return true
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Turn returns the seat whose move it is.
func (s *Session) Turn() PlayerID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turn
}

// Winner returns the winning seat once the session is finished.
func (s *Session) Winner() (PlayerID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.winner, s.hasWinner
}

// NextShip reports which ship p has to place next. ok is false once the
// player's fleet is complete.
func (s *Session) NextShip(p PlayerID) (ShipClass, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.placed[p] >= len(Fleet) {
		return ShipClass{}, false
	}
	return Fleet[s.placed[p]], true
}

// Snapshot copies p's own board and p's view of the opponent, so renderers
// never hold a reference into live session state.
func (s *Session) Snapshot(p PlayerID) (board, view Grid) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.boards[p], s.views[p]
}

// ShipsAfloat counts p's ships that still have at least one unhit cell.
func (s *Session) ShipsAfloat(p PlayerID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, sh := range s.ships[p] {
		if !sh.sunk(&s.boards[p]) {
			count++
		}
	}
	return count
}
