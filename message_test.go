package main

import (
	"strings"
	"testing"

	"github.com/horgh/irc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		input  string
		output ParsedMessage
	}{
		{
			"NICK alice",
			ParsedMessage{Command: "NICK", Params: []string{"alice"}},
		},
		{
			"NICK alice\r\n",
			ParsedMessage{Command: "NICK", Params: []string{"alice"}},
		},
		{
			"PRIVMSG #chan :hello there world",
			ParsedMessage{
				Command:  "PRIVMSG",
				Params:   []string{"#chan"},
				Trailing: "hello there world",
			},
		},
		{
			// Interior whitespace and colons survive in the trailing.
			"TOPIC #chan :a : b  c",
			ParsedMessage{
				Command:  "TOPIC",
				Params:   []string{"#chan"},
				Trailing: "a : b  c",
			},
		},
		{
			// Edge whitespace of the trailing is trimmed.
			"QUIT :  bye now  ",
			ParsedMessage{Command: "QUIT", Trailing: "bye now"},
		},
		{
			// Sloppy separators between tokens.
			"MODE   #chan \t +i",
			ParsedMessage{Command: "MODE", Params: []string{"#chan", "+i"}},
		},
		{
			// IRCv3 tag block gets skipped. The :token carries the
			// command.
			"@time=2023;id=5 :PRIVMSG #chan :hi",
			ParsedMessage{
				Command:  "PRIVMSG",
				Params:   []string{"#chan"},
				Trailing: "hi",
			},
		},
		{
			// Unsolicited prefix is tolerated and dropped.
			":alice!~a@host NICK bob",
			ParsedMessage{Command: "NICK", Params: []string{"bob"}},
		},
		{
			"",
			ParsedMessage{},
		},
		{
			"   \t  ",
			ParsedMessage{},
		},
		{
			// A tag block with no command token.
			"@only=tags here",
			ParsedMessage{},
		},
	}

	for _, test := range tests {
		m := parseMessage(test.input)
		assert.Equal(t, test.output, m, "parseMessage(%q)", test.input)
	}
}

func TestParseMessageInvalidParam(t *testing.T) {
	m := parseMessage("JOIN #chan:extra")
	require.True(t, m.InvalidParam)
	assert.Equal(t, "Invalid character in parameter: #chan:extra", m.ErrorMsg)
	assert.Equal(t, "JOIN", m.Command)
	assert.Empty(t, m.Params)
}

// Lines produced by the outbound encoder must come back in the same
// shape.
func TestParseMessageRoundTrip(t *testing.T) {
	tests := []irc.Message{
		{Command: "PING", Params: []string{"token1"}},
		{Command: "PRIVMSG", Params: []string{"#chan", "hello world"}},
		{Command: "KICK", Params: []string{"#chan", "bob", "no spam"}},
	}

	for _, test := range tests {
		encoded, err := test.Encode()
		require.NoError(t, err)

		m := parseMessage(strings.TrimRight(encoded, "\r\n"))
		assert.Equal(t, test.Command, m.Command)

		all := m.Params
		if len(m.Trailing) > 0 {
			all = append(append([]string{}, m.Params...), m.Trailing)
		}
		assert.Equal(t, test.Params, all, "params of %s", test)
	}
}
