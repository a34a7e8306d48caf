package main

import "strings"

// Nicknames may not contain channel sigils, the prefix sigil, or the
// parameter separator.
const disallowedNickChars = "#@:&"

func isValidNick(s string) bool {
	if len(s) == 0 {
		return false
	}
	return !strings.ContainsAny(s, disallowedNickChars)
}

// isChannelName says whether the name carries a channel prefix we
// serve. Anything else names a user.
func isChannelName(name string) bool {
	if len(name) == 0 {
		return false
	}
	return name[0] == '#' || name[0] == '&'
}

// Channel keys must be alphanumeric.
func isAlphanumeric(s string) bool {
	if len(s) == 0 {
		return false
	}
	for _, c := range s {
		if c >= 'a' && c <= 'z' {
			continue
		}
		if c >= 'A' && c <= 'Z' {
			continue
		}
		if c >= '0' && c <= '9' {
			continue
		}
		return false
	}
	return true
}

func isNumericCommand(command string) bool {
	if len(command) == 0 {
		return false
	}
	for _, c := range command {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// commaList splits a comma separated parameter, dropping empty pieces.
func commaList(s string) []string {
	var out []string
	for _, piece := range strings.Split(s, ",") {
		if len(piece) > 0 {
			out = append(out, piece)
		}
	}
	return out
}
