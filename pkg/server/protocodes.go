package server

const (
	// Registration commands
	// AuthCmd `AUTH <password>` authenticates against the shared server password
	AuthCmd = "AUTH"
	// NickCmd `NICK <name>` claims or changes the nickname, 1-20 chars alphanumeric/underscore
	NickCmd = "NICK"
	// QuitCmd `QUIT [<message>]` ends the session
	QuitCmd = "QUIT"
	// !Registration commands

	// Client commands
	JoinCmd  = "JOIN"
	PartCmd  = "PART"
	MsgCmd   = "MSG"
	ChanCmd  = "CHAN"
	ListCmd  = "LIST"
	UsersCmd = "USERS"
	FileCmd  = "FILE"
	GameCmd  = "GAME"
	PingCmd  = "PING"
	// PrivmsgCmd is an IRC compatibility alias: channel targets behave as
	// CHAN, user targets as MSG.
	PrivmsgCmd = "PRIVMSG"
	// UserCmd is accepted and ignored so IRC clients can connect.
	UserCmd = "USER"
	// !Client commands

	// Game subcommands
	GameChallengeSub = "CHALLENGE"
	GameAcceptSub    = "ACCEPT"
	GamePlaceSub     = "PLACE"
	GameFireSub      = "FIRE"
	GameSurrenderSub = "SURRENDER"
	// !Game subcommands

	// Server events
	EvtWelcome    = "WELCOME"
	EvtInfo       = "INFO"
	EvtMsg        = "MSG"
	EvtChan       = "CHAN"
	EvtJoin       = "JOIN"
	EvtPart       = "PART"
	EvtQuit       = "QUIT"
	EvtUserList   = "USERLIST"
	EvtChanList   = "CHANLIST"
	EvtFileOffer  = "FILEOFFER"
	EvtFileData   = "FILEDATA"
	EvtPong       = "PONG"
	EvtGameReq    = "GAME_REQ"
	EvtGameSetup  = "GAME_SETUP"
	EvtGameStart  = "GAME_START"
	EvtGameUpdate = "GAME_UPDATE"
	EvtGameOver   = "GAME_OVER"
	// !Server events

	// Error codes
	ErrMalformed      = "400" // malformed command or bad usage
	ErrAuthRequired   = "401" // authentication required or failed
	ErrNotFound       = "404" // target user/channel not found
	ErrConflict       = "409" // nickname in use, turn conflicts
	ErrTransferFailed = "500" // file transfer failure
	// !Error codes
)
