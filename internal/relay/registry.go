package relay

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrNickInUse is returned when a nickname claim collides with a live claim
	// held by another session.
	ErrNickInUse = errors.New("nickname is already in use")
	// ErrNoSuchChannel is returned for operations naming a channel that does
	// not exist.
	ErrNoSuchChannel = errors.New("no such channel")
	// ErrNotOnChannel is returned when a session operates on a channel it has
	// not joined.
	ErrNotOnChannel = errors.New("not on that channel")
	// ErrUserAlreadySet is returned for repeated USER commands.
	ErrUserAlreadySet = errors.New("identity already set")
)

// channel is a named member group. Created implicitly on first join and
// destroyed when its last member leaves; never kept around empty.
type channel struct {
	// name keeps the case given by the creating join; lookups fold case.
	name    string
	topic   string
	members map[*Session]struct{}
}

// Registry is the process-wide mapping of nicknames to sessions and channel
// names to member sets. One coarse lock serializes every claim, membership
// change, and the recipient snapshot it produces, so concurrent sessions never
// observe a half-applied operation.
type Registry struct {
	mu       sync.Mutex
	nicks    map[string]*Session
	channels map[string]*channel
}

func NewRegistry() *Registry {
	return &Registry{
		nicks:    make(map[string]*Session),
		channels: make(map[string]*channel),
	}
}

// fold normalizes a nickname or channel name for uniqueness checks.
// Uniqueness is case-insensitive; display strings keep the case given.
func fold(name string) string {
	return strings.ToLower(name)
}

// NickChange describes the outcome of a successful nickname claim.
type NickChange struct {
	// Prefix is the sender's hostmask under the old nickname, set when the
	// claim renamed an already registered session.
	Prefix string
	// Renamed is true when a registered session changed its nickname.
	Renamed bool
	// Registered is true when this claim completed the registration handshake.
	Registered bool
	// Notify holds the sessions owed a rename notice: the sender plus every
	// channel co-member, each exactly once.
	Notify []*Session
}

// ClaimNick atomically claims or renames a nickname for s. Exactly one of any
// number of concurrent claimants for the same name succeeds; the rest fail
// with ErrNickInUse and no state change.
func (r *Registry) ClaimNick(s *Session, nick string) (NickChange, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(nick)
	if owner, claimed := r.nicks[key]; claimed && owner != s {
		return NickChange{}, ErrNickInUse
	}

	var change NickChange
	if s.state == StateRegistered {
		change.Renamed = true
		change.Prefix = s.hostmask()
		change.Notify = append(r.coMembers(s), s)
	}

	if s.nick != "" {
		delete(r.nicks, fold(s.nick))
	}
	r.nicks[key] = s
	s.nick = nick

	switch s.state {
	case StatePending:
		s.state = StateRegistering
	case StateRegistering:
		if s.username != "" {
			s.state = StateRegistered
			change.Registered = true
		}
	}

	return change, nil
}

// SetUser records the session's username and realname. The identity is
// accepted exactly once; registered reports whether this completed the
// handshake.
func (r *Registry) SetUser(s *Session, username, realname string) (registered bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.username != "" {
		return false, ErrUserAlreadySet
	}
	s.username = username
	s.realname = realname

	if s.nick != "" {
		s.state = StateRegistered
		return true, nil
	}
	s.state = StateRegistering
	return false, nil
}

// JoinResult is the snapshot taken while a join was applied.
type JoinResult struct {
	// Channel is the channel's display name.
	Channel string
	Topic   string
	// Members holds every member after the join, the joiner included.
	Members []*Session
	// Nicks lists member nicknames for the names burst.
	Nicks []string
	// Already is true when the session was a member before the call, in which
	// case nothing changed.
	Already bool
}

// Join adds s to the named channel, creating the channel if it does not
// exist. Creation, membership insertion, and the member snapshot happen in one
// critical section, so two concurrent first-joins of the same name end up in
// the same channel.
func (r *Registry) Join(s *Session, name string) (JoinResult, error) {
	if !validChannelName(name) {
		return JoinResult{}, ErrNoSuchChannel
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(name)
	ch, ok := r.channels[key]
	if !ok {
		ch = &channel{name: name, members: make(map[*Session]struct{})}
		r.channels[key] = ch
	}

	res := JoinResult{Channel: ch.name, Topic: ch.topic}
	if _, member := ch.members[s]; member {
		res.Already = true
		return res, nil
	}

	ch.members[s] = struct{}{}
	s.channels[key] = ch

	for m := range ch.members {
		res.Members = append(res.Members, m)
		res.Nicks = append(res.Nicks, m.nick)
	}
	return res, nil
}

// PartResult is the snapshot taken while a part was applied.
type PartResult struct {
	Channel string
	// Members holds the membership from before the part, the leaver included.
	Members []*Session
}

// Part removes s from the named channel, destroying the channel when s was
// the last member.
func (r *Registry) Part(s *Session, name string) (PartResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fold(name)
	ch, ok := r.channels[key]
	if !ok {
		return PartResult{}, ErrNoSuchChannel
	}
	if _, member := ch.members[s]; !member {
		return PartResult{}, ErrNotOnChannel
	}

	res := PartResult{Channel: ch.name}
	for m := range ch.members {
		res.Members = append(res.Members, m)
	}

	delete(ch.members, s)
	delete(s.channels, key)
	if len(ch.members) == 0 {
		delete(r.channels, key)
	}
	return res, nil
}

// QuitResult is the snapshot taken while a session was unwound.
type QuitResult struct {
	// Prefix is the hostmask the session held when it quit.
	Prefix string
	// Registered is true when the session had completed registration.
	Registered bool
	// Notify holds the former co-members owed a quit notice, each exactly
	// once, the quitter excluded.
	Notify []*Session
}

// Quit unwinds s from the registry: membership in every channel, empty-channel
// destruction, and the nickname claim. Idempotent; only the first call
// produces a result.
func (r *Registry) Quit(s *Session) (QuitResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s.state == StateClosed {
		return QuitResult{}, false
	}

	res := QuitResult{Registered: s.state == StateRegistered}
	if res.Registered {
		res.Prefix = s.hostmask()
	}
	res.Notify = r.coMembers(s)

	for key, ch := range s.channels {
		delete(ch.members, s)
		delete(s.channels, key)
		if len(ch.members) == 0 {
			delete(r.channels, key)
		}
	}
	if s.nick != "" {
		delete(r.nicks, fold(s.nick))
		s.nick = ""
	}
	s.state = StateClosed
	return res, true
}

// LookupNick resolves a nickname to a registered session.
func (r *Registry) LookupNick(nick string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.nicks[fold(nick)]
	if !ok || s.state != StateRegistered {
		return nil, false
	}
	return s, true
}

// ChannelMembers returns the channel's display name and a membership
// snapshot.
func (r *Registry) ChannelMembers(name string) (string, []*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[fold(name)]
	if !ok {
		return "", nil, false
	}
	members := make([]*Session, 0, len(ch.members))
	for m := range ch.members {
		members = append(members, m)
	}
	return ch.name, members, true
}

// MemberNicks returns the nicknames of the channel's current members.
func (r *Registry) MemberNicks(name string) (string, []string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[fold(name)]
	if !ok {
		return "", nil, false
	}
	nicks := make([]string, 0, len(ch.members))
	for m := range ch.members {
		nicks = append(nicks, m.nick)
	}
	return ch.name, nicks, true
}

// Topic reads the channel's topic.
func (r *Registry) Topic(name string) (channelName, topic string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, found := r.channels[fold(name)]
	if !found {
		return "", "", false
	}
	return ch.name, ch.topic, true
}

// SetTopic replaces the channel's topic and returns the membership snapshot
// owed the topic notice.
func (r *Registry) SetTopic(name, topic string) (string, []*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.channels[fold(name)]
	if !ok {
		return "", nil, ErrNoSuchChannel
	}
	ch.topic = topic

	members := make([]*Session, 0, len(ch.members))
	for m := range ch.members {
		members = append(members, m)
	}
	return ch.name, members, nil
}

// coMembers collects every session sharing at least one channel with s, each
// exactly once, s excluded. Callers must hold the registry lock.
func (r *Registry) coMembers(s *Session) []*Session {
	seen := make(map[*Session]struct{})
	var out []*Session
	for _, ch := range s.channels {
		for m := range ch.members {
			if m == s {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	return out
}

// validChannelName reports whether name carries a channel sigil.
func validChannelName(name string) bool {
	return len(name) > 1 && (name[0] == '#' || name[0] == '&')
}

// validNick reports whether nick is claimable: no leading channel sigil and
// none of the characters reserved for message routing and hostmasks.
func validNick(nick string) bool {
	if nick == "" {
		return false
	}
	switch nick[0] {
	case '#', '&', ':', '$':
		return false
	}
	return !strings.ContainsAny(nick, " ,*?!@")
}
