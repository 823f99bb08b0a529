// Package relay implements the chat hub: the per-connection session state
// machine, the shared registry of users and channels, and the routing of
// commands into fan-out deliveries.
package relay

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/manuelpont94/irc/internal/core"
	"github.com/manuelpont94/irc/internal/core/client"
	"github.com/manuelpont94/irc/internal/core/debug"
	"github.com/manuelpont94/irc/internal/protocol"
)

const serverVersion = "irc-relay-0.1"

// Server is the relay backend. It interprets parsed commands in the context
// of the issuing session, mutates the registry, and delivers the resulting
// messages to every recipient's outbound queue.
type Server struct {
	name   string
	config *core.Config
	logger *logrus.Logger

	registry *Registry

	mu       sync.Mutex
	sessions map[*client.Client]*Session
}

func NewServer(name string, config *core.Config, logger *logrus.Logger) *Server {
	return &Server{
		name:     name,
		config:   config,
		logger:   logger,
		registry: NewRegistry(),
		sessions: make(map[*client.Client]*Session),
	}
}

func (s *Server) Name() string                   { return s.name }
func (s *Server) Identifier() string             { return s.name }
func (s *Server) Init(ctx context.Context) error { return nil }

// Registry exposes the server's registry, mainly for tests.
func (s *Server) Registry() *Registry { return s.registry }

func (s *Server) SetUpClient(c *client.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[c] = newSession(c)
}

// session resolves the Session attached to a connection.
func (s *Server) session(c *client.Client) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[c]
}

// Handle processes one complete line from a client. Protocol failures are
// reported back to the offending connection and are never fatal to the
// process; only a missing session is an error.
func (s *Server) Handle(ctx context.Context, c *client.Client, line string) error {
	sess := s.session(c)
	if sess == nil {
		return errors.New("no session for connection " + c.IPAddr())
	}

	m, err := protocol.ParseLine(line)
	if err != nil {
		s.HandleViolation(c, err)
		return nil
	}
	if m.Command == "" {
		// Empty lines are a no-op.
		return nil
	}

	if s.config.Debugging.LineLoggingEnabled {
		debug.DumpLine(s.logger, c.IPAddr(), m)
	}

	s.dispatch(sess, m)
	return nil
}

// HandleViolation reports a malformed or overlong line to the offending
// connection. The connection continues.
func (s *Server) HandleViolation(c *client.Client, err error) {
	sess := s.session(c)
	var nick string
	if sess != nil {
		nick = sess.Nick()
	}

	s.logger.Debugf("[%s] protocol violation from %s: %v", s.name, c.IPAddr(), err)

	if errors.Is(err, protocol.ErrLineTooLong) {
		_ = c.Send(protocol.Numeric(s.serverName(), protocol.ErrInputTooLong, nick, "Input line was too long"))
		return
	}
	_ = c.Send(protocol.Message{
		Prefix:  s.serverName(),
		Command: "NOTICE",
		Params:  []string{orStar(nick), "Malformed line ignored"},
	})
}

// HandleDisconnect unwinds the session attached to a closed connection,
// treating an abrupt close as an implicit QUIT.
func (s *Server) HandleDisconnect(c *client.Client) {
	s.mu.Lock()
	sess := s.sessions[c]
	delete(s.sessions, c)
	s.mu.Unlock()

	if sess == nil {
		return
	}

	res, ok := s.registry.Quit(sess)
	if ok && res.Registered {
		s.sendTo(res.Notify, protocol.Message{
			Prefix:  res.Prefix,
			Command: "QUIT",
			Params:  []string{"Connection closed"},
		})
	}
}

func (s *Server) serverName() string {
	return s.config.ServerName
}

// reply sends a server-sourced numeric to the session.
func (s *Server) reply(sess *Session, code string, params ...string) {
	_ = sess.client.Send(protocol.Numeric(s.serverName(), code, sess.Nick(), params...))
}

// sendTo fans a message out to each recipient's outbound queue. A stalled
// recipient is dropped by its own queue; delivery to the others continues.
func (s *Server) sendTo(recipients []*Session, m protocol.Message) {
	for _, r := range recipients {
		if err := r.client.Send(m); err != nil {
			s.logger.Debugf("[%s] dropping delivery to %s: %v", s.name, r.client.IPAddr(), err)
		}
	}
}

func orStar(nick string) string {
	if nick == "" {
		return "*"
	}
	return nick
}
