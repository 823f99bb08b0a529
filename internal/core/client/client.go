package client

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"sync"

	"github.com/manuelpont94/irc/internal/protocol"
)

// Number of outbound lines that may be queued for a client before the
// connection is considered stalled and dropped.
const sendQueueLen = 32

// ErrClientClosed is returned when sending to a client whose connection has
// been closed, including clients dropped for a full send queue.
var ErrClientClosed = errors.New("client closed")

// Client represents one remote connection. Reads happen on the owning
// session's goroutine; writes are decoupled through a bounded queue consumed
// by a dedicated writer goroutine so that fan-out to many recipients never
// blocks on a single slow peer.
type Client struct {
	connection net.Conn
	ipAddr     string
	port       string

	reader *bufio.Reader

	send      chan string
	done      chan struct{}
	flush     chan struct{}
	closeOnce sync.Once
	flushOnce sync.Once
}

func NewClient(connection net.Conn) *Client {
	addr, port, err := net.SplitHostPort(connection.RemoteAddr().String())
	if err != nil {
		addr = connection.RemoteAddr().String()
	}

	c := &Client{
		connection: connection,
		ipAddr:     addr,
		port:       port,
		reader:     bufio.NewReaderSize(connection, protocol.MaxLineLen),
		send:       make(chan string, sendQueueLen),
		done:       make(chan struct{}),
		flush:      make(chan struct{}),
	}
	go c.writeLoop()
	return c
}

func (c *Client) IPAddr() string { return c.ipAddr }
func (c *Client) Port() string   { return c.port }

// ReadLine is a blocking call that returns the next complete line sent by the
// client, stripped of its terminator. Lines longer than the protocol maximum
// are discarded through the next terminator and reported as
// protocol.ErrLineTooLong; the connection remains readable.
func (c *Client) ReadLine() (string, error) {
	line, err := c.reader.ReadSlice('\n')
	if err == bufio.ErrBufferFull {
		// Drain the rest of the oversized line so that the next read starts
		// on a line boundary.
		for err == bufio.ErrBufferFull {
			_, err = c.reader.ReadSlice('\n')
		}
		if err != nil {
			return "", err
		}
		return "", protocol.ErrLineTooLong
	}
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// Send queues a message for delivery to the client. It never blocks: if the
// client's queue is full the connection is stalled, and the only safe recovery
// is to drop that client.
func (c *Client) Send(m protocol.Message) error {
	select {
	case <-c.done:
		return ErrClientClosed
	case c.send <- m.String():
		return nil
	default:
		c.Close()
		return ErrClientClosed
	}
}

// writeLoop consumes the send queue onto the connection until the client is
// closed.
func (c *Client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case line := <-c.send:
			if !c.writeLine(line) {
				return
			}
		case <-c.flush:
			// Drain whatever is already queued, then close.
			for {
				select {
				case line := <-c.send:
					if !c.writeLine(line) {
						return
					}
				default:
					c.Close()
					return
				}
			}
		}
	}
}

func (c *Client) writeLine(line string) bool {
	if _, err := c.connection.Write([]byte(line + "\r\n")); err != nil {
		c.Close()
		return false
	}
	return true
}

// CloseAfterFlush closes the connection once every queued line has been
// written, so a protocol goodbye sent just before is not lost.
func (c *Client) CloseAfterFlush() {
	c.flushOnce.Do(func() {
		close(c.flush)
	})
}

// Close shuts down the connection. Safe to call multiple times and from any
// goroutine; the first call wins.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.connection.Close()
	})
	return err
}

// Closed reports whether Close has been called.
func (c *Client) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
