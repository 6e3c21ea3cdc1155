package irc

import (
	"bytes"
	"fmt"
	"strings"
)

// Message represents a parsed IRC protocol line.
type Message struct {
	Prefix  string
	Command string
	Params  []string
}

// ExtractLines removes every complete CRLF-terminated line from buf and
// returns the lines (without their terminators) together with the
// unterminated remainder. Empty lines are discarded.
func ExtractLines(buf []byte) (lines []string, rest []byte) {
	rest = buf
	for {
		idx := bytes.Index(rest, []byte("\r\n"))
		if idx < 0 {
			return lines, rest
		}
		line := rest[:idx]
		rest = rest[idx+2:]
		if len(line) == 0 {
			continue
		}
		lines = append(lines, string(line))
	}
}

// ParseMessage parses one IRC line into its prefix, command and
// parameters. The command is uppercased for case-insensitive dispatch.
// A prefix marker with no command after it yields nil.
func ParseMessage(line string) *Message {
	if line == "" {
		return nil
	}

	msg := &Message{
		Params: make([]string, 0),
	}

	// Optional leading :prefix
	if line[0] == ':' {
		parts := strings.SplitN(line[1:], " ", 2)
		if len(parts) < 2 {
			return nil
		}
		msg.Prefix = parts[0]
		line = parts[1]
	}

	parts := strings.SplitN(line, " ", 2)
	if parts[0] == "" {
		return nil
	}
	msg.Command = strings.ToUpper(parts[0])

	if len(parts) > 1 {
		paramPart := parts[1]
		for paramPart != "" {
			// A parameter introduced by a colon runs to end of line.
			if paramPart[0] == ':' {
				msg.Params = append(msg.Params, paramPart[1:])
				break
			}

			next := strings.SplitN(paramPart, " ", 2)
			if next[0] != "" {
				msg.Params = append(msg.Params, next[0])
			}
			if len(next) > 1 {
				paramPart = next[1]
			} else {
				break
			}
		}
	}

	return msg
}

// String serializes the message back to wire form, without the CRLF
// terminator.
func (m *Message) String() string {
	var builder strings.Builder

	if m.Prefix != "" {
		builder.WriteString(":")
		builder.WriteString(m.Prefix)
		builder.WriteString(" ")
	}

	builder.WriteString(m.Command)

	for i, param := range m.Params {
		builder.WriteString(" ")

		// The last parameter gets a colon if it is empty, contains
		// spaces, or starts with one.
		if i == len(m.Params)-1 && (param == "" || strings.Contains(param, " ") || strings.HasPrefix(param, ":")) {
			builder.WriteString(":")
		}
		builder.WriteString(param)
	}

	return builder.String()
}

// ParseHostmask splits a nick!user@host source into its parts.
func ParseHostmask(hostmask string) (nick, user, host string) {
	nickParts := strings.SplitN(hostmask, "!", 2)
	if len(nickParts) < 2 {
		nick = hostmask
		return
	}
	nick = nickParts[0]

	userHostParts := strings.SplitN(nickParts[1], "@", 2)
	if len(userHostParts) < 2 {
		user = nickParts[1]
		return
	}
	user = userHostParts[0]
	host = userHostParts[1]

	return
}

// FormatHostmask formats a nick!user@host source.
func FormatHostmask(nick, user, host string) string {
	return fmt.Sprintf("%s!%s@%s", nick, user, host)
}
