// Package game implements the server-side battleship engine: ship
// placement, turn-based firing and win detection for one two-player match.
package game

import (
	"regexp"
	"strconv"
	"strings"
)

// BoardSize is the edge length of both players' grids.
const BoardSize = 10

// Cell is the state of one grid square.
type Cell uint8

const (
	CellEmpty Cell = iota
	CellShip
	CellHit
	CellMiss
)

// Rune returns the classic single-character rendering of a cell.
func (c Cell) Rune() rune {
	switch c {
	case CellShip:
		return 'S'
	case CellHit:
		return 'X'
	case CellMiss:
		return 'O'
	default:
		return '~'
	}
}

// Grid is one player's 10x10 board. Authoritative boards hold all four cell
// states; view grids only ever hold empty, hit or miss.
type Grid [BoardSize][BoardSize]Cell

// ShipClass describes one ship of the fleet.
type ShipClass struct {
	Name   string
	Length int
}

// Fleet lists the five ships every player places, in placement order.
var Fleet = [5]ShipClass{
	{"Carrier", 5},
	{"Battleship", 4},
	{"Cruiser", 3},
	{"Submarine", 3},
	{"Destroyer", 2},
}

// FleetCells is the total number of ship cells per player.
const FleetCells = 5 + 4 + 3 + 3 + 2

var coordPattern = regexp.MustCompile(`^[A-J](10|[1-9])$`)

// ParseCoord converts a coordinate like "A1" or "j10" into zero-based row
// and column indices.
func ParseCoord(s string) (row, col int, ok bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if !coordPattern.MatchString(s) {
		return 0, 0, false
	}
	row = int(s[0] - 'A')
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 || n > BoardSize {
		return 0, 0, false
	}
	return row, n - 1, true
}

// FormatCoord is the inverse of ParseCoord.
func FormatCoord(row, col int) string {
	return string(rune('A'+row)) + strconv.Itoa(col+1)
}

// ship is one placed ship, recorded as the cells it occupies.
type ship struct {
	cells [][2]int
}

func (sh ship) sunk(board *Grid) bool {
	for _, p := range sh.cells {
		if board[p[0]][p[1]] == CellShip {
			return false
		}
	}
	return true
}
