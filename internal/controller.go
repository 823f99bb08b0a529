package internal

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/manuelpont94/irc/internal/core"
	"github.com/manuelpont94/irc/internal/core/debug"
	"github.com/manuelpont94/irc/internal/relay"
)

// Controller is the main entrypoint for the server. It's responsible for
// initializing any shared resources (such as logging), defining the servers,
// and launching everything.
type Controller struct {
	Config *core.Config

	logger  *logrus.Logger
	wg      sync.WaitGroup
	servers []*frontend
}

func (c *Controller) Start(ctx context.Context) error {
	var err error
	// Set up the logger, which will be used by all sub-servers.
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return err
	}

	// Start any debug utilities if we're configured to do so.
	if c.Config.Debugging.PprofEnabled {
		debug.StartPprofServer(c.logger, c.Config.Debugging.PprofPort)
	}

	c.declareServers()
	return c.run(ctx)
}

// Set up all of the servers we want to run.
func (c *Controller) declareServers() {
	c.servers = []*frontend{
		{
			Address: c.Config.RelayAddress(),
			Backend: relay.NewServer("RELAY", c.Config, c.logger),
			Config:  c.Config,
			Logger:  c.logger,
		},
	}
}

// run starts all of the frontends and blocks until the context is cancelled
// and every connection has wound down.
func (c *Controller) run(ctx context.Context) error {
	for _, server := range c.servers {
		if err := server.Start(ctx, &c.wg); err != nil {
			return err
		}
	}

	c.wg.Wait()
	return ctx.Err()
}
