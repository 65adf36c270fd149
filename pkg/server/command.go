package server

import (
	"fmt"
	"strconv"
	"strings"
)

// ProtoError is a recoverable protocol failure, rendered on the wire as
// `ERROR <code> <detail>`.
type ProtoError struct {
	Code   string
	Detail string
}

func (e *ProtoError) Error() string {
	return fmt.Sprintf("%s %s", e.Code, e.Detail)
}

func protoErrorf(code, format string, a ...interface{}) *ProtoError {
	return &ProtoError{Code: code, Detail: fmt.Sprintf(format, a...)}
}

// Command is the closed union of parsed client commands. Parsing happens
// once in ParseLine; handlers dispatch with a type switch and never re-split
// the raw line.
type Command interface {
	isCommand()
}

type Auth struct{ Password string }
type Nick struct{ Name string }
type Join struct{ Channel string }
type Part struct{ Channel string }
type DirectMsg struct{ Target, Text string }
type ChannelMsg struct{ Channel, Text string }
type ListChannels struct{}
type ListUsers struct{ Channel string } // Channel empty means all users
type FileOffer struct {
	Target   string
	Filename string
	Size     int64
	Hash     string
}
type GameChallenge struct{ Target string }
type GameAccept struct{ Target string }
type GamePlace struct{ Coord, Orientation string }
type GameFire struct{ Coord string }
type GameSurrender struct{}
type Quit struct{ Message string }
type Ping struct{ Token string }
type UserInfo struct{ Raw string }

func (Auth) isCommand()          {}
func (Nick) isCommand()          {}
func (Join) isCommand()          {}
func (Part) isCommand()          {}
func (DirectMsg) isCommand()     {}
func (ChannelMsg) isCommand()    {}
func (ListChannels) isCommand()  {}
func (ListUsers) isCommand()     {}
func (FileOffer) isCommand()     {}
func (GameChallenge) isCommand() {}
func (GameAccept) isCommand()    {}
func (GameFire) isCommand()      {}
func (GamePlace) isCommand()     {}
func (GameSurrender) isCommand() {}
func (Quit) isCommand()          {}
func (Ping) isCommand()          {}
func (UserInfo) isCommand()      {}

// normalizeTrailing applies the IRC trailing-argument convention: a leading
// `:` marks the whole tail as free text, a later ` :` joins the trailing part
// back onto the positional part so it is not re-split on whitespace.
func normalizeTrailing(args string) string {
	if strings.HasPrefix(args, ":") {
		return args[1:]
	}
	if idx := strings.Index(args, " :"); idx >= 0 {
		return args[:idx] + " " + args[idx+2:]
	}
	return args
}

// ParseLine turns one trimmed input line into a Command or a 400-class
// ProtoError. It never inspects connection state; state checks live in the
// dispatcher.
func ParseLine(line string) (Command, *ProtoError) {
	parts := strings.SplitN(line, " ", 2)
	verb := strings.ToUpper(parts[0])
	args := ""
	if len(parts) > 1 {
		args = normalizeTrailing(parts[1])
	}

	switch verb {
	case AuthCmd:
		return Auth{Password: strings.TrimSpace(args)}, nil

	case NickCmd:
		name := strings.TrimSpace(args)
		if name == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: NICK <name>")
		}
		return Nick{Name: name}, nil

	case JoinCmd:
		channel := strings.TrimSpace(args)
		if channel == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: JOIN <#channel>")
		}
		return Join{Channel: channel}, nil

	case PartCmd:
		channel := strings.TrimSpace(args)
		if channel == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: PART <#channel>")
		}
		return Part{Channel: channel}, nil

	case MsgCmd:
		target, text, ok := splitTargetText(args)
		if !ok {
			return nil, protoErrorf(ErrMalformed, "Usage: MSG <user> <message>")
		}
		return DirectMsg{Target: target, Text: text}, nil

	case ChanCmd:
		channel, text, ok := splitTargetText(args)
		if !ok {
			return nil, protoErrorf(ErrMalformed, "Usage: CHAN <channel> <message>")
		}
		return ChannelMsg{Channel: channel, Text: text}, nil

	case PrivmsgCmd:
		target, text, ok := splitTargetText(args)
		if !ok {
			return nil, protoErrorf(ErrMalformed, "Usage: PRIVMSG <target> <message>")
		}
		if strings.HasPrefix(target, "#") {
			return ChannelMsg{Channel: target, Text: text}, nil
		}
		return DirectMsg{Target: target, Text: text}, nil

	case ListCmd:
		return ListChannels{}, nil

	case UsersCmd:
		return ListUsers{Channel: strings.TrimSpace(args)}, nil

	case FileCmd:
		return parseFile(args)

	case GameCmd:
		return parseGame(args)

	case PingCmd:
		return Ping{Token: strings.TrimSpace(args)}, nil

	case UserCmd:
		return UserInfo{Raw: args}, nil

	case QuitCmd:
		return Quit{Message: strings.TrimSpace(args)}, nil

	default:
		return nil, protoErrorf(ErrMalformed, "Unknown command")
	}
}

// splitTargetText splits "target free text..." at the first space.
func splitTargetText(args string) (target, text string, ok bool) {
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 || strings.TrimSpace(parts[0]) == "" || parts[1] == "" {
		return "", "", false
	}
	return strings.TrimSpace(parts[0]), parts[1], true
}

func parseFile(args string) (Command, *ProtoError) {
	parts := strings.SplitN(args, " ", 4)
	if len(parts) < 3 {
		return nil, protoErrorf(ErrMalformed, "Usage: FILE <user> <filename> <size> [checksum]")
	}

	size, err := strconv.ParseInt(strings.TrimSpace(parts[2]), 10, 64)
	if err != nil || size <= 0 {
		return nil, protoErrorf(ErrMalformed, "Invalid file size")
	}

	cmd := FileOffer{
		Target:   strings.TrimSpace(parts[0]),
		Filename: strings.TrimSpace(parts[1]),
		Size:     size,
	}
	if len(parts) > 3 {
		cmd.Hash = strings.TrimSpace(parts[3])
	}
	return cmd, nil
}

func parseGame(args string) (Command, *ProtoError) {
	parts := strings.SplitN(args, " ", 2)
	sub := strings.ToUpper(strings.TrimSpace(parts[0]))
	param := ""
	if len(parts) > 1 {
		param = strings.TrimSpace(parts[1])
	}

	switch sub {
	case GameChallengeSub:
		if param == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: GAME CHALLENGE <user>")
		}
		return GameChallenge{Target: param}, nil

	case GameAcceptSub:
		if param == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: GAME ACCEPT <user>")
		}
		return GameAccept{Target: param}, nil

	case GamePlaceSub:
		fields := strings.Fields(param)
		if len(fields) < 2 {
			return nil, protoErrorf(ErrMalformed, "Usage: GAME PLACE <coord> <H|V>")
		}
		return GamePlace{Coord: fields[0], Orientation: fields[1]}, nil

	case GameFireSub:
		if param == "" {
			return nil, protoErrorf(ErrMalformed, "Usage: GAME FIRE <coord>")
		}
		return GameFire{Coord: param}, nil

	case GameSurrenderSub, QuitCmd:
		return GameSurrender{}, nil

	default:
		return nil, protoErrorf(ErrMalformed, "Unknown game command. Usage: GAME [CHALLENGE|ACCEPT|PLACE|FIRE|SURRENDER]")
	}
}
