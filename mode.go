package main

import (
	"strconv"
	"strings"

	"github.com/horgh/irc"
)

// modeCommand handles MODE for channel targets. User modes are not
// supported: MODE naming a known user is silently ignored, while an
// unknown target draws 403.
//
// A trailing parameter, if present, gets split on whitespace and
// appended to the regular parameters, so "MODE #x :+k secret" works
// the same as "MODE #x +k secret".
func (u *UserClient) modeCommand(m ParsedMessage) {
	params := m.Params
	if len(m.Trailing) > 0 {
		params = append(params, strings.Fields(m.Trailing)...)
	}

	if len(params) == 0 {
		u.messageFromServer("461", []string{"MODE", "Not enough parameters"})
		return
	}

	target := params[0]

	if !isChannelName(target) {
		if _, exists := u.Server.Nicks[target]; !exists {
			u.messageFromServer("403", []string{target, "No such channel"})
		}
		return
	}

	channel, exists := u.Server.Channels[target]
	if !exists {
		u.messageFromServer("403", []string{target, "No such channel"})
		return
	}

	// Bare MODE <channel> is a query. Anyone may ask.
	if len(params) == 1 {
		// 324 RPL_CHANNELMODEIS
		u.messageFromServer("324", []string{channel.Name,
			channel.modesString()})
		return
	}

	if !channel.hasOps(u) {
		u.messageFromServer("482", []string{channel.Name,
			"You're not channel operator"})
		return
	}

	u.applyChannelModes(channel, params)
}

// applyChannelModes walks the mode string, applying each flag. Changes
// that took effect get broadcast to the channel in one aggregated
// MODE, signed flags only.
func (u *UserClient) applyChannelModes(channel *Channel, params []string) {
	modeString := params[1]

	adding := true
	paramIndex := 2
	applied := ""

	for i := 0; i < len(modeString); i++ {
		mode := modeString[i]

		if mode == '+' || mode == '-' {
			adding = mode == '+'
			continue
		}

		changed := false

		switch mode {
		case 'i', 't':
			changed = channel.setMode(mode, adding)
		case 'k':
			changed = u.applyKeyMode(channel, adding, params, &paramIndex)
		case 'l':
			changed = u.applyLimitMode(channel, adding, params, &paramIndex)
		case 'o':
			changed = u.applyOperMode(channel, adding, params, &paramIndex)
		case 'b':
			// Ban lists are not implemented. Accept and ignore so
			// clients probing bans on join get no error spam.
		default:
			// 472 ERR_UNKNOWNMODE
			u.messageFromServer("472", []string{string(mode),
				"is unknown mode char to me"})
		}

		if changed {
			if adding {
				applied += "+" + string(mode)
			} else {
				applied += "-" + string(mode)
			}
		}
	}

	if len(applied) > 0 {
		channel.broadcast(irc.Message{
			Prefix:  u.nickUhost(),
			Command: "MODE",
			Params:  []string{channel.Name, applied},
		})
	}
}

func (u *UserClient) applyKeyMode(channel *Channel, adding bool,
	params []string, paramIndex *int) bool {
	// A toggle to the current state is a no-op and consumes nothing.
	if adding == channel.checkMode('k') {
		return false
	}

	if !adding {
		channel.removeKey()
		return true
	}

	if *paramIndex >= len(params) {
		u.messageFromServer("461", []string{"MODE",
			"Not enough parameters"})
		return false
	}

	key := params[*paramIndex]
	*paramIndex++

	if !isAlphanumeric(key) {
		// 696 ERR_INVALIDMODEPARAM
		u.messageFromServer("696", []string{channel.Name, "k", key,
			"Invalid mode parameter"})
		return false
	}

	channel.setKey(key)

	// The setter also gets the new mode line, key masked.
	u.messageFromServer("324", []string{channel.Name, channel.modesString(),
		strings.Repeat("*", len(key))})

	return true
}

func (u *UserClient) applyLimitMode(channel *Channel, adding bool,
	params []string, paramIndex *int) bool {
	if adding == channel.checkMode('l') && !adding {
		return false
	}

	if !adding {
		channel.removeUserLimit()
		return true
	}

	if *paramIndex >= len(params) {
		u.messageFromServer("461", []string{"MODE",
			"Not enough parameters"})
		return false
	}

	arg := params[*paramIndex]
	*paramIndex++

	limit, err := strconv.Atoi(arg)
	if err != nil || limit <= 0 {
		u.messageFromServer("696", []string{channel.Name, "l", arg,
			"Invalid mode parameter"})
		return false
	}

	if channel.checkMode('l') && channel.UserLimit == limit {
		return false
	}

	channel.setUserLimit(limit)

	u.messageFromServer("324", []string{channel.Name, channel.modesString(),
		arg})

	return true
}

// applyOperMode grants or removes ops on one member. No-op detection
// is against the target's own status, not the channel as a whole.
func (u *UserClient) applyOperMode(channel *Channel, adding bool,
	params []string, paramIndex *int) bool {
	if *paramIndex >= len(params) {
		u.messageFromServer("461", []string{"MODE",
			"Not enough parameters"})
		return false
	}

	targetNick := params[*paramIndex]
	*paramIndex++

	target := u.Server.userByNick(targetNick)
	if target == nil || !channel.hasMember(target) {
		u.messageFromServer("441", []string{targetNick, channel.Name,
			"They aren't on that channel"})
		return false
	}

	if adding == channel.hasOps(target) {
		return false
	}

	if adding {
		channel.grantOps(target)
	} else {
		channel.removeOps(target)
	}

	return true
}
