package main

import "strings"

// asciiWhitespace is what we trim from line edges and from the
// trailing parameter.
const asciiWhitespace = " \t\r\n"

// Characters that may not appear in a middle parameter.
const disallowedParamChars = "\n\r\t:"

// ParsedMessage is one inbound protocol line in structured form.
//
// Client lines get a tolerant grammar rather than strict RFC parsing:
// we skip IRCv3 tag blocks, accept an unsolicited prefix, and keep the
// trailing parameter with its interior whitespace intact.
type ParsedMessage struct {
	Command  string
	Params   []string
	Trailing string

	// Set when a middle parameter contains a forbidden character. The
	// dispatcher answers such a line with a single error rather than
	// cutting the client off.
	InvalidParam bool
	ErrorMsg     string
}

// parseMessage parses one logical line with any line terminator
// already tolerated. A blank or whitespace-only line parses to the
// zero ParsedMessage, which the dispatcher ignores.
func parseMessage(line string) ParsedMessage {
	var m ParsedMessage

	rest := strings.Trim(line, asciiWhitespace)
	if len(rest) == 0 {
		return m
	}

	// In a tag block every token before the one beginning with ":" is
	// a tag; that token's remainder is the command.
	inTags := rest[0] == '@'

	// An unsolicited prefix from a client is tolerated and dropped.
	if !inTags && rest[0] == ':' {
		idx := strings.IndexAny(rest, " \t")
		if idx == -1 {
			return m
		}
		rest = rest[idx:]
	}

	gotCommand := false
	for len(rest) > 0 {
		rest = strings.TrimLeft(rest, " \t")
		if len(rest) == 0 {
			break
		}

		if gotCommand && rest[0] == ':' {
			// Everything after the colon is the trailing parameter,
			// kept as is apart from edge whitespace.
			m.Trailing = strings.Trim(rest[1:], asciiWhitespace)
			break
		}

		token := rest
		if idx := strings.IndexAny(rest, " \t"); idx != -1 {
			token, rest = rest[:idx], rest[idx:]
		} else {
			rest = ""
		}

		if inTags {
			if token[0] == ':' {
				m.Command = token[1:]
				inTags = false
				gotCommand = true
			}
			continue
		}

		if !gotCommand {
			m.Command = token
			gotCommand = true
			continue
		}

		if strings.ContainsAny(token, disallowedParamChars) {
			m.InvalidParam = true
			m.ErrorMsg = "Invalid character in parameter: " + token
			return m
		}
		m.Params = append(m.Params, token)
	}

	return m
}
