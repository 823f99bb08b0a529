package relay

import (
	"github.com/manuelpont94/irc/internal/core/client"
	"github.com/manuelpont94/irc/internal/protocol"
)

// State tracks a session's progress through the registration handshake.
type State int

const (
	// StatePending is the initial state: connected, no identity supplied.
	StatePending State = iota
	// StateRegistering means the session has supplied NICK or USER, not both.
	StateRegistering
	// StateRegistered sessions have the full command set available.
	StateRegistered
	// StateClosed is terminal; the connection is gone and the session's
	// state has been unwound from the registry.
	StateClosed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRegistering:
		return "registering"
	case StateRegistered:
		return "registered"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session is the per-connection protocol state. Identity fields and channel
// membership are guarded by the owning Registry's lock; each field is only
// written inside a Registry critical section running on the session's own
// goroutine, and only read by other goroutines inside those same critical
// sections.
type Session struct {
	client *client.Client

	state    State
	nick     string
	username string
	realname string
	host     string

	// Channels this session is currently a member of, keyed by folded name.
	// Kept mutually consistent with each channel's member set.
	channels map[string]*channel
}

func newSession(c *client.Client) *Session {
	return &Session{
		client:   c,
		state:    StatePending,
		host:     c.IPAddr(),
		channels: make(map[string]*channel),
	}
}

// State returns the session's registration state. Only meaningful on the
// session's own goroutine.
func (s *Session) State() State {
	return s.state
}

// Nick returns the session's current nickname, or "" before one is claimed.
// Only meaningful on the session's own goroutine.
func (s *Session) Nick() string {
	return s.nick
}

// hostmask renders the session's source prefix. Valid once registered.
func (s *Session) hostmask() string {
	return protocol.Hostmask(s.nick, s.username, s.host)
}
