package client

import (
	"bufio"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/manuelpont94/irc/internal/protocol"
)

func TestReadLineStripsTerminators(t *testing.T) {
	local, remote := net.Pipe()
	c := NewClient(local)
	defer c.Close()

	go func() {
		remote.Write([]byte("NICK alice\r\n"))
		remote.Write([]byte("USER alice 0 * :Alice\n"))
	}()

	for _, want := range []string{"NICK alice", "USER alice 0 * :Alice"} {
		got, err := c.ReadLine()
		if err != nil {
			t.Fatalf("ReadLine returned error: %v", err)
		}
		if got != want {
			t.Errorf("ReadLine = %q, want %q", got, want)
		}
	}
}

func TestReadLineRejectsOversizedLines(t *testing.T) {
	local, remote := net.Pipe()
	c := NewClient(local)
	defer c.Close()

	go func() {
		remote.Write([]byte(strings.Repeat("a", 2*protocol.MaxLineLen) + "\n"))
		remote.Write([]byte("PING after\r\n"))
	}()

	if _, err := c.ReadLine(); !errors.Is(err, protocol.ErrLineTooLong) {
		t.Fatalf("ReadLine error = %v, want ErrLineTooLong", err)
	}

	// The connection recovers on the next line boundary.
	got, err := c.ReadLine()
	if err != nil {
		t.Fatalf("ReadLine after oversized line returned error: %v", err)
	}
	if got != "PING after" {
		t.Errorf("ReadLine = %q, want %q", got, "PING after")
	}
}

func TestSendDeliversLines(t *testing.T) {
	local, remote := net.Pipe()
	c := NewClient(local)
	defer c.Close()

	if err := c.Send(protocol.Message{Command: "PING", Params: []string{"token"}}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	scanner := bufio.NewScanner(remote)
	if !scanner.Scan() {
		t.Fatal("no line arrived on the remote end")
	}
	if got := scanner.Text(); got != "PING token\r" {
		t.Errorf("remote read %q, want %q", got, "PING token\r")
	}
}

func TestSendDropsStalledClient(t *testing.T) {
	local, _ := net.Pipe()
	c := NewClient(local)
	defer c.Close()

	// Nobody reads the remote end: the writer stalls and the queue fills.
	var dropped bool
	for i := 0; i < 2*sendQueueLen; i++ {
		if err := c.Send(protocol.Message{Command: "PING"}); err != nil {
			dropped = true
			break
		}
	}

	if !dropped {
		t.Fatal("Send never failed against a stalled connection")
	}
	if !c.Closed() {
		t.Error("stalled client was not closed")
	}
	if err := c.Send(protocol.Message{Command: "PING"}); !errors.Is(err, ErrClientClosed) {
		t.Errorf("Send after close error = %v, want ErrClientClosed", err)
	}
}

func TestCloseAfterFlushDeliversQueuedLines(t *testing.T) {
	local, remote := net.Pipe()
	c := NewClient(local)

	go func() {
		_ = c.Send(protocol.Message{Command: "ERROR", Params: []string{"Closing Link"}})
		c.CloseAfterFlush()
	}()

	scanner := bufio.NewScanner(remote)
	if !scanner.Scan() {
		t.Fatal("goodbye line was lost")
	}
	if got := scanner.Text(); !strings.Contains(got, "ERROR") {
		t.Errorf("remote read %q, want the goodbye line", got)
	}

	deadline := time.After(2 * time.Second)
	for !c.Closed() {
		select {
		case <-deadline:
			t.Fatal("client never closed after flush")
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
