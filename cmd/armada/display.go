package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/tehcyx/armada/pkg/game"
)

// display centralizes all terminal output and its coloring.
type display struct {
	serverColor *color.Color
	okColor     *color.Color
	warnColor   *color.Color
	chatColor   *color.Color
	noticeColor *color.Color
	gameColor   *color.Color
	shipColor   *color.Color
	hitColor    *color.Color
	missColor   *color.Color
	waterColor  *color.Color
}

func newDisplay() *display {
	return &display{
		serverColor: color.New(color.FgCyan),
		okColor:     color.New(color.FgGreen),
		warnColor:   color.New(color.FgRed),
		chatColor:   color.New(color.FgWhite),
		noticeColor: color.New(color.FgYellow),
		gameColor:   color.New(color.FgMagenta, color.Bold),
		shipColor:   color.New(color.FgGreen, color.Bold),
		hitColor:    color.New(color.FgRed, color.Bold),
		missColor:   color.New(color.FgBlue),
		waterColor:  color.New(color.FgCyan, color.Faint),
	}
}

func (d *display) server(format string, a ...interface{}) {
	d.serverColor.Printf("[SERVER] "+format+"\n", a...)
}

func (d *display) info(format string, a ...interface{}) {
	d.serverColor.Printf(format+"\n", a...)
}

func (d *display) ok(format string, a ...interface{}) {
	d.okColor.Printf("OK "+format+"\n", a...)
}

func (d *display) warn(format string, a ...interface{}) {
	d.warnColor.Printf(format+"\n", a...)
}

func (d *display) notice(format string, a ...interface{}) {
	d.noticeColor.Printf(format+"\n", a...)
}

func (d *display) direct(from, text string) {
	d.chatColor.Printf("<%s> %s\n", from, text)
}

func (d *display) channel(channel, from, text string) {
	d.chatColor.Printf("[%s] <%s> %s\n", channel, from, text)
}

func (d *display) game(format string, a ...interface{}) {
	d.gameColor.Printf("[GAME] "+format+"\n", a...)
}

// boards renders the two-board battleship layout: own ships on the left,
// known enemy waters on the right.
func (d *display) boards(board, view *game.Grid) {
	header := "  "
	for i := 1; i <= game.BoardSize; i++ {
		header += fmt.Sprintf("%3d", i)
	}

	fmt.Printf("\n   %-32s enemy waters\n", "your ships")
	fmt.Printf("%s     %s\n", header, header)
	for r := 0; r < game.BoardSize; r++ {
		label := string(rune('A' + r))
		left := d.renderRow(board, r)
		right := d.renderRow(view, r)
		fmt.Printf("%s %s    %s %s\n", label, left, label, right)
	}
	fmt.Println()
}

func (d *display) renderRow(g *game.Grid, row int) string {
	var b strings.Builder
	for c := 0; c < game.BoardSize; c++ {
		cell := g[row][c]
		painter := d.waterColor
		switch cell {
		case game.CellShip:
			painter = d.shipColor
		case game.CellHit:
			painter = d.hitColor
		case game.CellMiss:
			painter = d.missColor
		}
		b.WriteString(painter.Sprintf("  %c", cell.Rune()))
	}
	return b.String()
}

func (d *display) help() {
	d.noticeColor.Println(`Commands:
  /auth <password>          authenticate with the server password
  /nick <name>              set or change your nickname
  /join <#channel>          join a channel
  /part <#channel>          leave a channel
  /msg <user> <text>        direct message
  /chan <#channel> <text>   channel message
  /list                     list channels
  /users [#channel]         list users
  /send <user> <path>       send a file
  /game challenge <user>    challenge to battleship
  /game accept <user>       accept a challenge
  /game place <coord> <H|V> place the next ship (e.g. A1 H)
  /game fire <coord>        fire at the enemy (e.g. C5)
  /game surrender           give up
  /ping <token>             ping the server
  /version                  client version
  /quit [message]           disconnect`)
}
