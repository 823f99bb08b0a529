package internal

import (
	"context"

	"github.com/manuelpont94/irc/internal/core/client"
)

// Backend is an interface for a server that handles the protocol logic for
// clients connected through a frontend.
type Backend interface {
	// Identifier returns a uniquely identifying string.
	Identifier() string

	// Init is called before a Backend is started as a hook for the Backend to
	// perform any necessary initialization before it can accept clients.
	Init(ctx context.Context) error

	// SetUpClient performs any initialization on the Client needed to be able
	// to begin the session, such as attaching per-connection protocol state.
	SetUpClient(c *client.Client)

	// Handle is the main entry point for processing client lines. It's
	// responsible for handling one complete line from a client as well as
	// sending any responses. Errors returned from Handle are fatal to the
	// connection.
	Handle(ctx context.Context, c *client.Client, line string) error

	// HandleViolation reacts to a line that could not be framed or decoded.
	// The connection stays open; the Backend decides what to tell the client.
	HandleViolation(c *client.Client, err error)

	// HandleDisconnect is called exactly once when the client's connection is
	// gone, for any reason, so the Backend can unwind the session's state.
	HandleDisconnect(c *client.Client)
}
