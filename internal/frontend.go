package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/manuelpont94/irc/internal/core"
	"github.com/manuelpont94/irc/internal/core/client"
	"github.com/manuelpont94/irc/internal/protocol"
)

// frontend implements the concurrent client connection logic.
//
// Lines are read from any connected clients and passed to a Backend instance,
// abstracting the lower level connection details away from the Backends.
type frontend struct {
	Address string
	Backend Backend
	Config  *core.Config
	Logger  *logrus.Logger

	mu      sync.Mutex
	clients map[*client.Client]struct{}

	// Tracks per-connection activity when an idle period is configured;
	// entries that expire have their connection closed.
	idle *cache.Cache
}

// Start initializes the server backend and opens a TCP socket for the server.
// A blocking loop for accepting client connections is spun off in its own
// goroutine and added to the WaitGroup. Context cancellations will stop the
// server.
func (f *frontend) Start(ctx context.Context, wg *sync.WaitGroup) error {
	if err := f.Backend.Init(ctx); err != nil {
		return fmt.Errorf("error initializing %s server: %v", f.Backend.Identifier(), err)
	}

	f.clients = make(map[*client.Client]struct{})

	if idlePeriod := f.Config.IdlePeriod(); idlePeriod > 0 {
		f.idle = cache.New(idlePeriod, idlePeriod/2)
		f.idle.OnEvicted(func(_ string, v interface{}) {
			c := v.(*client.Client)
			// Delete on disconnect also lands here; only expiries matter.
			if c.Closed() {
				return
			}
			f.Logger.Infof("[%s] disconnecting idle client %s", f.Backend.Identifier(), c.IPAddr())
			_ = c.Close()
		})
	}

	socket, err := f.createSocket()
	if err != nil {
		return fmt.Errorf("error creating socket on %s: %v", f.Address, err)
	}

	wg.Add(1)
	go f.startBlockingLoop(ctx, socket, wg)

	return nil
}

// createSocket opens a TCP socket to listen for client connections on the
// Address provided to the frontend.
func (f *frontend) createSocket() (*net.TCPListener, error) {
	hostAddr, err := net.ResolveTCPAddr("tcp", f.Address)
	if err != nil {
		return nil, fmt.Errorf("error resolving address %s", err.Error())
	}

	socket, err := net.ListenTCP("tcp", hostAddr)
	if err != nil {
		return nil, fmt.Errorf("error listening on socket: %s", err.Error())
	}

	return socket, nil
}

// startBlockingLoop implements a connection handling loop that's purely
// responsible for accepting new connections and spinning off goroutines for
// the Backend to handle them.
func (f *frontend) startBlockingLoop(ctx context.Context, socket *net.TCPListener, wg *sync.WaitGroup) {
	defer wg.Done()

	f.Logger.Printf("[%s] waiting for connections on %v", f.Backend.Identifier(), f.Address)

	connections := make(chan *net.TCPConn)
	go func() {
		for {
			// Poll until we can accept more clients.
			for f.numClients() >= f.Config.MaxConnections {
				time.Sleep(time.Second)
			}

			connection, err := socket.AcceptTCP()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				f.Logger.Warnf("failed to accept connection: %s", err.Error())
				continue
			}

			connections <- connection
		}
	}()

	clientWg := &sync.WaitGroup{}
handleLoop:
	for {
		select {
		case <-ctx.Done():
			break handleLoop
		case connection := <-connections:
			clientWg.Add(1)
			go f.acceptClient(ctx, connection, clientWg)
		}
	}

	_ = socket.Close()
	f.Logger.Infof("[%v] shutting down (waiting for connections to close)", f.Backend.Identifier())
	f.closeAllClients()
	clientWg.Wait()
	f.Logger.Infof("[%v] exited", f.Backend.Identifier())
}

// acceptClient takes a connection and initiates a session by setting up the
// Client. The goroutine then moves into the line processing loop.
func (f *frontend) acceptClient(ctx context.Context, connection *net.TCPConn, wg *sync.WaitGroup) {
	defer wg.Done()

	c := client.NewClient(connection)
	f.Backend.SetUpClient(c)

	f.Logger.Infof("[%s] accepted connection from %s", f.Backend.Identifier(), c.IPAddr())

	f.mu.Lock()
	f.clients[c] = struct{}{}
	f.mu.Unlock()
	f.touch(c)

	f.processLines(ctx, c)
}

// processLines starts a blocking loop dedicated to reading lines sent from a
// client and only returns once the connection has closed.
func (f *frontend) processLines(ctx context.Context, c *client.Client) {
	defer f.closeConnectionAndRecover(f.Backend.Identifier(), c)

	for {
		select {
		case <-ctx.Done():
			// For now just allow the deferred function to close the connection.
			return
		default:
		}

		line, err := c.ReadLine()

		if errors.Is(err, protocol.ErrLineTooLong) {
			f.Backend.HandleViolation(c, err)
			continue
		}
		if err == io.EOF {
			break
		} else if err != nil {
			if !c.Closed() {
				f.Logger.Warn(err.Error())
			}
			break
		}

		f.touch(c)

		if err = f.Backend.Handle(ctx, c, line); err != nil {
			f.Logger.Warn("error in client communication: " + err.Error())
			return
		}
	}
}

// closeConnectionAndRecover is the failsafe that catches any panics,
// disconnects the client, and removes it from the list regardless of the
// state of the connection.
func (f *frontend) closeConnectionAndRecover(serverName string, c *client.Client) {
	if err := recover(); err != nil {
		f.Logger.Errorf("error in client communication with %s: error=%s, trace: %s",
			c.IPAddr(), err, debug.Stack())
	}

	_ = c.Close()

	f.Backend.HandleDisconnect(c)

	f.mu.Lock()
	delete(f.clients, c)
	f.mu.Unlock()
	if f.idle != nil {
		f.idle.Delete(idleKey(c))
	}

	f.Logger.Infof("[%s] disconnected client %s", serverName, c.IPAddr())
}

// touch refreshes the client's idle tracking entry.
func (f *frontend) touch(c *client.Client) {
	if f.idle == nil {
		return
	}
	f.idle.Set(idleKey(c), c, cache.DefaultExpiration)
}

func idleKey(c *client.Client) string {
	return c.IPAddr() + ":" + c.Port()
}

func (f *frontend) numClients() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.clients)
}

func (f *frontend) closeAllClients() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for c := range f.clients {
		_ = c.Close()
	}
}
