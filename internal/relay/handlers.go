package relay

import (
	"errors"
	"strings"

	"github.com/manuelpont94/irc/internal/protocol"
)

// dispatch routes one parsed command to its handler. Commands outside the
// registration handshake are gated until the session is registered.
func (s *Server) dispatch(sess *Session, m protocol.Message) {
	// A line can still arrive between a QUIT and the connection teardown.
	if sess.State() == StateClosed {
		return
	}

	switch m.Command {
	case "NICK":
		s.handleNick(sess, m)
	case "USER":
		s.handleUser(sess, m)
	case "PING":
		s.handlePing(sess, m)
	case "PONG":
		// Liveness acknowledgment; activity tracking happens at the frontend.
	case "CAP":
		s.handleCap(sess, m)
	case "QUIT":
		s.handleQuit(sess, m)
	default:
		if sess.State() != StateRegistered {
			s.reply(sess, protocol.ErrNotRegistered, "You have not registered")
			return
		}
		switch m.Command {
		case "JOIN":
			s.handleJoin(sess, m)
		case "PART":
			s.handlePart(sess, m)
		case "PRIVMSG":
			s.handlePrivmsg(sess, m)
		case "TOPIC":
			s.handleTopic(sess, m)
		case "NAMES":
			s.handleNames(sess, m)
		default:
			s.reply(sess, protocol.ErrUnknownCommand, m.Command, "Unknown command")
		}
	}
}

func (s *Server) handleNick(sess *Session, m protocol.Message) {
	nick := m.Param(0)
	if nick == "" {
		s.reply(sess, protocol.ErrNoNicknameGiven, "No nickname given")
		return
	}
	if !validNick(nick) {
		s.reply(sess, protocol.ErrErroneusNickname, nick, "Erroneous nickname")
		return
	}

	change, err := s.registry.ClaimNick(sess, nick)
	if errors.Is(err, ErrNickInUse) {
		s.reply(sess, protocol.ErrNicknameInUse, nick, "Nickname is already in use")
		return
	}

	if change.Renamed {
		s.sendTo(change.Notify, protocol.Message{
			Prefix:  change.Prefix,
			Command: "NICK",
			Params:  []string{nick},
		})
	}
	if change.Registered {
		s.sendWelcome(sess)
	}
}

func (s *Server) handleUser(sess *Session, m protocol.Message) {
	if len(m.Params) < 4 {
		s.reply(sess, protocol.ErrNeedMoreParams, "USER", "Not enough parameters")
		return
	}

	registered, err := s.registry.SetUser(sess, m.Param(0), m.Trailing())
	if errors.Is(err, ErrUserAlreadySet) {
		s.reply(sess, protocol.ErrAlreadyRegistred, "You may not reregister")
		return
	}
	if registered {
		s.sendWelcome(sess)
	}
}

// sendWelcome sends the registration burst to a newly registered session.
func (s *Server) sendWelcome(sess *Session) {
	server := s.serverName()
	s.reply(sess, protocol.RplWelcome, "Welcome to the IRC Network "+sess.hostmask())
	s.reply(sess, protocol.RplYourHost, "Your host is "+server+", running "+serverVersion)
	s.reply(sess, protocol.RplCreated, "This server was created today")
	_ = sess.client.Send(protocol.Numeric(server, protocol.RplMyInfo, sess.Nick(), server, serverVersion, "o", "o"))

	s.logger.Infof("[%s] %s registered as %s", s.name, sess.client.IPAddr(), sess.Nick())
}

func (s *Server) handleJoin(sess *Session, m protocol.Message) {
	name := m.Param(0)
	if name == "" {
		s.reply(sess, protocol.ErrNeedMoreParams, "JOIN", "Not enough parameters")
		return
	}

	res, err := s.registry.Join(sess, name)
	if errors.Is(err, ErrNoSuchChannel) {
		s.reply(sess, protocol.ErrNoSuchChannel, name, "No such channel")
		return
	}
	if res.Already {
		return
	}

	s.sendTo(res.Members, protocol.Message{
		Prefix:  sess.hostmask(),
		Command: "JOIN",
		Params:  []string{res.Channel},
	})

	if res.Topic == "" {
		s.reply(sess, protocol.RplNoTopic, res.Channel, "No topic is set")
	} else {
		s.reply(sess, protocol.RplTopic, res.Channel, res.Topic)
	}
	s.sendNames(sess, res.Channel, res.Nicks)
}

func (s *Server) handlePart(sess *Session, m protocol.Message) {
	name := m.Param(0)
	if name == "" {
		s.reply(sess, protocol.ErrNeedMoreParams, "PART", "Not enough parameters")
		return
	}

	res, err := s.registry.Part(sess, name)
	switch {
	case errors.Is(err, ErrNoSuchChannel):
		s.reply(sess, protocol.ErrNoSuchChannel, name, "No such channel")
		return
	case errors.Is(err, ErrNotOnChannel):
		s.reply(sess, protocol.ErrNotOnChannel, name, "You're not on that channel")
		return
	}

	params := []string{res.Channel}
	if reason := m.Param(1); reason != "" {
		params = append(params, reason)
	}
	s.sendTo(res.Members, protocol.Message{
		Prefix:  sess.hostmask(),
		Command: "PART",
		Params:  params,
	})
}

func (s *Server) handlePrivmsg(sess *Session, m protocol.Message) {
	target := m.Param(0)
	if target == "" {
		s.reply(sess, protocol.ErrNoRecipient, "No recipient given (PRIVMSG)")
		return
	}
	if len(m.Params) < 2 {
		s.reply(sess, protocol.ErrNoTextToSend, "No text to send")
		return
	}

	msg := protocol.Message{
		Prefix:  sess.hostmask(),
		Command: "PRIVMSG",
		Params:  []string{target, m.Trailing()},
	}

	if validChannelName(target) {
		_, members, ok := s.registry.ChannelMembers(target)
		if !ok {
			s.reply(sess, protocol.ErrNoSuchNick, target, "No such nick/channel")
			return
		}
		// Channel fan-out excludes the sender.
		recipients := members[:0]
		for _, member := range members {
			if member != sess {
				recipients = append(recipients, member)
			}
		}
		s.sendTo(recipients, msg)
		return
	}

	to, ok := s.registry.LookupNick(target)
	if !ok {
		s.reply(sess, protocol.ErrNoSuchNick, target, "No such nick/channel")
		return
	}
	s.sendTo([]*Session{to}, msg)
}

func (s *Server) handleTopic(sess *Session, m protocol.Message) {
	name := m.Param(0)
	if name == "" {
		s.reply(sess, protocol.ErrNeedMoreParams, "TOPIC", "Not enough parameters")
		return
	}

	if len(m.Params) < 2 {
		// Read.
		channelName, topic, ok := s.registry.Topic(name)
		if !ok {
			s.reply(sess, protocol.ErrNoSuchChannel, name, "No such channel")
			return
		}
		if topic == "" {
			s.reply(sess, protocol.RplNoTopic, channelName, "No topic is set")
		} else {
			s.reply(sess, protocol.RplTopic, channelName, topic)
		}
		return
	}

	topic := m.Trailing()
	channelName, members, err := s.registry.SetTopic(name, topic)
	if errors.Is(err, ErrNoSuchChannel) {
		s.reply(sess, protocol.ErrNoSuchChannel, name, "No such channel")
		return
	}
	s.sendTo(members, protocol.Message{
		Prefix:  sess.hostmask(),
		Command: "TOPIC",
		Params:  []string{channelName, topic},
	})
}

func (s *Server) handleNames(sess *Session, m protocol.Message) {
	name := m.Param(0)
	if name == "" {
		s.reply(sess, protocol.ErrNeedMoreParams, "NAMES", "Not enough parameters")
		return
	}

	channelName, nicks, ok := s.registry.MemberNicks(name)
	if !ok {
		channelName = name
	}
	s.sendNames(sess, channelName, nicks)
}

// sendNames sends the 353/366 names burst for one channel to the session.
func (s *Server) sendNames(sess *Session, channelName string, nicks []string) {
	if len(nicks) > 0 {
		s.reply(sess, protocol.RplNamReply, "=", channelName, strings.Join(nicks, " "))
	}
	s.reply(sess, protocol.RplEndOfNames, channelName, "End of /NAMES list")
}

func (s *Server) handlePing(sess *Session, m protocol.Message) {
	token := m.Param(0)
	if token == "" {
		token = s.serverName()
	}
	_ = sess.client.Send(protocol.Message{
		Prefix:  s.serverName(),
		Command: "PONG",
		Params:  []string{s.serverName(), token},
	})
}

// handleCap acknowledges capability negotiation with an empty capability set,
// enough for clients that open with CAP LS to proceed to NICK/USER.
func (s *Server) handleCap(sess *Session, m protocol.Message) {
	if strings.ToUpper(m.Param(0)) != "LS" {
		return
	}
	_ = sess.client.Send(protocol.Message{
		Prefix:  s.serverName(),
		Command: "CAP",
		Params:  []string{orStar(sess.Nick()), "LS", ""},
	})
}

func (s *Server) handleQuit(sess *Session, m protocol.Message) {
	reason := m.Trailing()
	if reason == "" {
		reason = "Client Quit"
	}

	res, ok := s.registry.Quit(sess)
	if ok && res.Registered {
		s.sendTo(res.Notify, protocol.Message{
			Prefix:  res.Prefix,
			Command: "QUIT",
			Params:  []string{reason},
		})
	}

	_ = sess.client.Send(protocol.Message{
		Command: "ERROR",
		Params:  []string{"Closing Link: " + sess.client.IPAddr()},
	})
	sess.client.CloseAfterFlush()
}
