package protocol

import "fmt"

// Numeric replies sent by the server. The subset here covers the commands the
// relay supports; names follow the RFC 1459 conventions.
const (
	RplWelcome  = "001"
	RplYourHost = "002"
	RplCreated  = "003"
	RplMyInfo   = "004"

	RplNoTopic    = "331"
	RplTopic      = "332"
	RplNamReply   = "353"
	RplEndOfNames = "366"

	ErrNoSuchNick       = "401"
	ErrNoSuchChannel    = "403"
	ErrNoRecipient      = "411"
	ErrNoTextToSend     = "412"
	ErrInputTooLong     = "417"
	ErrUnknownCommand   = "421"
	ErrNoNicknameGiven  = "431"
	ErrErroneusNickname = "432"
	ErrNicknameInUse    = "433"
	ErrNotOnChannel     = "442"
	ErrNotRegistered    = "451"
	ErrNeedMoreParams   = "461"
	ErrAlreadyRegistred = "462"
)

// Hostmask renders the nick!user@host source prefix attached to messages that
// originate from a user rather than the server.
func Hostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}

// Numeric builds a server-sourced numeric reply. The first parameter of every
// numeric is the target's nickname, or "*" before a nickname is known.
func Numeric(server, code, nick string, params ...string) Message {
	if nick == "" {
		nick = "*"
	}
	return Message{
		Prefix:  server,
		Command: code,
		Params:  append([]string{nick}, params...),
	}
}
