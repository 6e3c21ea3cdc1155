package irc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLines(t *testing.T) {
	lines, rest := ExtractLines([]byte("NICK alice\r\nUSER a 0 * :A\r\nJOI"))
	assert.Equal(t, []string{"NICK alice", "USER a 0 * :A"}, lines)
	assert.Equal(t, []byte("JOI"), rest)

	lines, rest = ExtractLines([]byte("no terminator yet"))
	assert.Empty(t, lines)
	assert.Equal(t, []byte("no terminator yet"), rest)

	// Empty lines are discarded, not dispatched.
	lines, rest = ExtractLines([]byte("\r\n\r\nPING :x\r\n"))
	assert.Equal(t, []string{"PING :x"}, lines)
	assert.Empty(t, rest)
}

func TestExtractLinesSplitAcrossReads(t *testing.T) {
	buf := []byte("PRIVMSG #chan :hel")
	lines, rest := ExtractLines(buf)
	assert.Empty(t, lines)

	rest = append(rest, []byte("lo\r\n")...)
	lines, rest = ExtractLines(rest)
	assert.Equal(t, []string{"PRIVMSG #chan :hello"}, lines)
	assert.Empty(t, rest)
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		line string
		want *Message
	}{
		{
			name: "simple command",
			line: "NICK alice",
			want: &Message{Command: "NICK", Params: []string{"alice"}},
		},
		{
			name: "trailing parameter",
			line: "PRIVMSG #chan :hello world",
			want: &Message{Command: "PRIVMSG", Params: []string{"#chan", "hello world"}},
		},
		{
			name: "with prefix",
			line: ":alice!a@host PRIVMSG #chan :hi",
			want: &Message{Prefix: "alice!a@host", Command: "PRIVMSG", Params: []string{"#chan", "hi"}},
		},
		{
			name: "command is uppercased",
			line: "privmsg #chan :hi",
			want: &Message{Command: "PRIVMSG", Params: []string{"#chan", "hi"}},
		},
		{
			name: "no parameters",
			line: "LIST",
			want: &Message{Command: "LIST", Params: []string{}},
		},
		{
			name: "empty trailing parameter",
			line: "TOPIC #chan :",
			want: &Message{Command: "TOPIC", Params: []string{"#chan", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseMessage(tt.line)
			if assert.NotNil(t, got) {
				assert.Equal(t, tt.want.Prefix, got.Prefix)
				assert.Equal(t, tt.want.Command, got.Command)
				assert.Equal(t, tt.want.Params, got.Params)
			}
		})
	}
}

func TestParseMessageMalformed(t *testing.T) {
	assert.Nil(t, ParseMessage(""))
	assert.Nil(t, ParseMessage(":prefix.only"))
	assert.Nil(t, ParseMessage(": "))
}

func TestMessageString(t *testing.T) {
	msg := &Message{Prefix: "server.local", Command: "PONG", Params: []string{"token"}}
	assert.Equal(t, ":server.local PONG token", msg.String())

	msg = &Message{Command: "PRIVMSG", Params: []string{"#chan", "hello world"}}
	assert.Equal(t, "PRIVMSG #chan :hello world", msg.String())

	msg = &Message{Command: "TOPIC", Params: []string{"#chan", ""}}
	assert.Equal(t, "TOPIC #chan :", msg.String())
}

func TestMessageStringRoundTrip(t *testing.T) {
	lines := []string{
		":alice!a@host PRIVMSG #chan :hello world",
		"NICK alice",
		"USER alice 0 * :Alice Example",
	}
	for _, line := range lines {
		msg := ParseMessage(line)
		if assert.NotNil(t, msg, line) {
			assert.Equal(t, line, msg.String())
		}
	}
}

func TestHostmask(t *testing.T) {
	nick, user, host := ParseHostmask("alice!ali@example.org")
	assert.Equal(t, "alice", nick)
	assert.Equal(t, "ali", user)
	assert.Equal(t, "example.org", host)

	nick, user, host = ParseHostmask("alice")
	assert.Equal(t, "alice", nick)
	assert.Empty(t, user)
	assert.Empty(t, host)

	assert.Equal(t, "alice!ali@example.org", FormatHostmask("alice", "ali", "example.org"))
}
