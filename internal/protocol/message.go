// Package protocol implements the wire format shared by the relay server and
// any conformant IRC client: CRLF-terminated text lines of the shape
//
//	[:prefix ]COMMAND param1 param2 :trailing multi-word param
//
// Parsing and serialization are stateless; connection state lives with the
// session that owns the line.
package protocol

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxLineLen is the maximum length of a single protocol line, including the
// trailing CRLF. Lines exceeding it are rejected, never truncated.
const MaxLineLen = 512

// paramLimit is the maximum number of parameters a message may carry.
const paramLimit = 15

var (
	// ErrLineTooLong is returned for input lines exceeding MaxLineLen.
	ErrLineTooLong = errors.New("line exceeds maximum length")
	// ErrMalformedLine is returned for lines that are not valid UTF-8 text.
	ErrMalformedLine = errors.New("line is not valid text")
)

// Message is a single parsed protocol line.
type Message struct {
	// Prefix is the source portion of the line, without the leading ':'.
	// Client-originated prefixes are parsed but ignored by the router.
	Prefix  string
	Command string
	Params  []string
}

// ParseLine parses one line, stripped of its terminator, into a Message.
//
// The command name is normalized to uppercase. A parameter introduced by ':'
// consumes the remainder of the line, spaces included, as does the 15th
// parameter of an overfull line. Empty and
// whitespace-only lines parse to a zero Message with an empty Command, which
// callers treat as a no-op.
func ParseLine(line string) (Message, error) {
	if len(line)+2 > MaxLineLen {
		return Message{}, ErrLineTooLong
	}
	if !utf8.ValidString(line) {
		return Message{}, ErrMalformedLine
	}

	var m Message
	rest := strings.TrimLeft(line, " ")
	if rest == "" {
		return m, nil
	}

	if rest[0] == ':' {
		prefix, remainder, found := strings.Cut(rest, " ")
		if !found {
			return Message{}, ErrMalformedLine
		}
		m.Prefix = prefix[1:]
		rest = strings.TrimLeft(remainder, " ")
		if rest == "" {
			return Message{}, ErrMalformedLine
		}
	}

	for rest != "" {
		if m.Command != "" {
			if rest[0] == ':' {
				m.Params = append(m.Params, rest[1:])
				break
			}
			// The last allowed parameter absorbs the rest of the line.
			if len(m.Params) == paramLimit-1 {
				m.Params = append(m.Params, rest)
				break
			}
		}
		word, remainder, _ := strings.Cut(rest, " ")
		if m.Command == "" {
			m.Command = strings.ToUpper(word)
		} else {
			m.Params = append(m.Params, word)
		}
		rest = strings.TrimLeft(remainder, " ")
	}

	return m, nil
}

// String serializes the message back into one line, without the terminator.
// The final parameter of a multi-parameter message always gets the ':'
// marker; a lone parameter gets it only when omitting it would be ambiguous
// on the receiving side.
func (m Message) String() string {
	var b strings.Builder
	if m.Prefix != "" {
		b.WriteByte(':')
		b.WriteString(m.Prefix)
		b.WriteByte(' ')
	}
	b.WriteString(m.Command)
	for i, p := range m.Params {
		b.WriteByte(' ')
		if i == len(m.Params)-1 &&
			(len(m.Params) > 1 || p == "" || strings.HasPrefix(p, ":") || strings.ContainsRune(p, ' ')) {
			b.WriteByte(':')
		}
		b.WriteString(p)
	}
	return b.String()
}

// Param returns the i'th parameter, or the empty string when absent.
func (m Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// Trailing returns the final parameter, or the empty string when absent.
func (m Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}
