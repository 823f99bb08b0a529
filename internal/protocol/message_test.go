package protocol

import (
	"strings"
	"testing"

	"github.com/go-test/deep"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want Message
	}{
		{
			name: "simple command",
			line: "QUIT",
			want: Message{Command: "QUIT"},
		},
		{
			name: "command is case normalized",
			line: "privmsg #chat :hi",
			want: Message{Command: "PRIVMSG", Params: []string{"#chat", "hi"}},
		},
		{
			name: "middle params and trailing",
			line: "USER alice 0 * :Alice Example",
			want: Message{Command: "USER", Params: []string{"alice", "0", "*", "Alice Example"}},
		},
		{
			name: "trailing may contain colons",
			line: "PRIVMSG bob ::-) hello",
			want: Message{Command: "PRIVMSG", Params: []string{"bob", ":-) hello"}},
		},
		{
			name: "prefix is parsed",
			line: ":alice!alice@localhost NICK eve",
			want: Message{Prefix: "alice!alice@localhost", Command: "NICK", Params: []string{"eve"}},
		},
		{
			name: "empty trailing",
			line: "TOPIC #chat :",
			want: Message{Command: "TOPIC", Params: []string{"#chat", ""}},
		},
		{
			name: "runs of spaces between params",
			line: "JOIN    #chat",
			want: Message{Command: "JOIN", Params: []string{"#chat"}},
		},
		{
			name: "fifteenth param absorbs the remainder",
			line: "CMD p1 p2 p3 p4 p5 p6 p7 p8 p9 p10 p11 p12 p13 p14 p15 p16 p17",
			want: Message{Command: "CMD", Params: []string{
				"p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9", "p10",
				"p11", "p12", "p13", "p14", "p15 p16 p17",
			}},
		},
		{
			name: "empty line is a no-op",
			line: "",
			want: Message{},
		},
		{
			name: "whitespace only line is a no-op",
			line: "   ",
			want: Message{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLine(tt.line)
			if err != nil {
				t.Fatalf("ParseLine(%q) returned error: %v", tt.line, err)
			}
			if diff := deep.Equal(tt.want, got); diff != nil {
				t.Errorf("ParseLine(%q) mismatch: %v", tt.line, diff)
			}
		})
	}
}

func TestParseLineErrors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want error
	}{
		{
			name: "oversized line is rejected",
			line: "PRIVMSG #chat :" + strings.Repeat("a", MaxLineLen),
			want: ErrLineTooLong,
		},
		{
			name: "invalid utf8 is rejected",
			line: "PRIVMSG #chat :\xff\xfe",
			want: ErrMalformedLine,
		},
		{
			name: "bare prefix is rejected",
			line: ":prefix.only",
			want: ErrMalformedLine,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseLine(tt.line); err != tt.want {
				t.Errorf("ParseLine(%q) error = %v, want %v", tt.line, err, tt.want)
			}
		})
	}
}

func TestMessageString(t *testing.T) {
	tests := []struct {
		name string
		m    Message
		want string
	}{
		{
			name: "bare command",
			m:    Message{Command: "QUIT"},
			want: "QUIT",
		},
		{
			name: "trailing with spaces gets the marker",
			m:    Message{Command: "PRIVMSG", Params: []string{"#chat", "hello there"}},
			want: "PRIVMSG #chat :hello there",
		},
		{
			name: "single word trailing omits the marker",
			m:    Message{Command: "JOIN", Params: []string{"#chat"}},
			want: "JOIN #chat",
		},
		{
			name: "empty trailing gets the marker",
			m:    Message{Command: "TOPIC", Params: []string{"#chat", ""}},
			want: "TOPIC #chat :",
		},
		{
			name: "prefix is rendered",
			m:    Message{Prefix: "localhost", Command: "001", Params: []string{"alice", "Welcome"}},
			want: ":localhost 001 alice :Welcome",
		},
		{
			name: "multi-parameter messages always mark the last param",
			m:    Message{Command: "353", Params: []string{"alice", "=", "#chat", "alice"}},
			want: "353 alice = #chat :alice",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLineRoundTrip(t *testing.T) {
	lines := []string{
		":alice!alice@localhost PRIVMSG #chat :hi everyone",
		"NICK alice",
		":localhost 353 alice = #chat :alice bob",
	}
	for _, line := range lines {
		m, err := ParseLine(line)
		if err != nil {
			t.Fatalf("ParseLine(%q) returned error: %v", line, err)
		}
		if got := m.String(); got != line {
			t.Errorf("round trip of %q produced %q", line, got)
		}
	}
}

func TestNumeric(t *testing.T) {
	got := Numeric("localhost", ErrNicknameInUse, "", "alice", "Nickname is already in use").String()
	want := ":localhost 433 * alice :Nickname is already in use"
	if got != want {
		t.Errorf("Numeric() = %q, want %q", got, want)
	}
}

func TestHostmask(t *testing.T) {
	if got := Hostmask("alice", "alice", "localhost"); got != "alice!alice@localhost" {
		t.Errorf("Hostmask() = %q", got)
	}
}
