package main

import (
	"strings"

	"github.com/tehcyx/armada/pkg/game"
	"github.com/tehcyx/armada/pkg/server"
)

// matchState mirrors the player's side of a running battleship match from
// the GAME_* event stream, so the client can render the two-board layout
// locally without the server shipping rendered text.
type matchState struct {
	board  game.Grid // own ships and the opponent's shots at them
	view   game.Grid // own shots at the opponent
	placed int
	over   bool

	// pending holds the last requested placement until the server
	// acknowledges it.
	pending *placement
}

type placement struct {
	row, col   int
	horizontal bool
}

func (c *client) handleGameInput(args string) {
	sub, param, _ := strings.Cut(strings.TrimSpace(args), " ")

	// Remember placements so the ack can commit them to the local board.
	if strings.EqualFold(sub, "place") {
		fields := strings.Fields(param)
		if len(fields) >= 2 {
			if row, col, ok := game.ParseCoord(fields[0]); ok {
				c.mu.Lock()
				if c.match != nil {
					c.match.pending = &placement{
						row:        row,
						col:        col,
						horizontal: strings.EqualFold(fields[1], "H"),
					}
				}
				c.mu.Unlock()
			}
		}
	}

	c.send("GAME %s %s", strings.ToUpper(sub), param)
}

func (c *client) clearPendingPlacement() {
	c.mu.Lock()
	if c.match != nil {
		c.match.pending = nil
	}
	c.mu.Unlock()
}

func (c *client) handleGameEvent(event, args string) {
	c.mu.Lock()
	switch event {
	case server.EvtGameSetup:
		if c.match == nil || strings.Contains(args, "Place your "+game.Fleet[0].Name) {
			// Challenge accepted, fresh boards.
			c.match = &matchState{}
		}
		if strings.HasPrefix(args, "Placed!") {
			c.commitPlacementLocked()
		}

	case server.EvtGameStart:
		if c.match != nil {
			c.commitPlacementLocked()
		}

	case server.EvtGameUpdate:
		switch {
		case strings.HasPrefix(args, "All ships placed"):
			c.commitPlacementLocked()
		case strings.HasPrefix(args, "You fired at "):
			c.recordShotLocked(args, true)
		case strings.HasPrefix(args, "Opponent fired at "):
			c.recordShotLocked(args, false)
		}

	case server.EvtGameOver:
		if c.match != nil {
			c.match.over = true
		}
	}
	match := c.match
	c.mu.Unlock()

	c.display.game("%s", args)
	if match != nil && !match.over {
		c.display.boards(&match.board, &match.view)
	}
	if match != nil && match.over {
		c.mu.Lock()
		c.match = nil
		c.mu.Unlock()
	}
}

// commitPlacementLocked applies the acknowledged placement to the local
// board. Callers hold c.mu.
func (c *client) commitPlacementLocked() {
	m := c.match
	if m == nil || m.pending == nil || m.placed >= len(game.Fleet) {
		return
	}
	length := game.Fleet[m.placed].Length
	for i := 0; i < length; i++ {
		r, col := m.pending.row, m.pending.col
		if m.pending.horizontal {
			col += i
		} else {
			r += i
		}
		if r < game.BoardSize && col < game.BoardSize {
			m.board[r][col] = game.CellShip
		}
	}
	m.placed++
	m.pending = nil
}

// recordShotLocked parses "... fired at C5: HIT!" updates. Own shots land
// on the view grid, the opponent's on the board grid. Callers hold c.mu.
func (c *client) recordShotLocked(args string, mine bool) {
	m := c.match
	if m == nil {
		return
	}

	idx := strings.Index(args, "fired at ")
	if idx < 0 {
		return
	}
	rest := args[idx+len("fired at "):]
	coord, outcome, ok := strings.Cut(rest, ": ")
	if !ok {
		return
	}
	row, col, ok := game.ParseCoord(coord)
	if !ok {
		return
	}

	cell := game.CellMiss
	if strings.HasPrefix(outcome, "HIT") {
		cell = game.CellHit
	}
	if mine {
		m.view[row][col] = cell
	} else {
		m.board[row][col] = cell
	}
}
