package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/horgh/irc"
)

// userCommands routes messages from registered clients. Keyed by
// uppercase command.
var userCommands = map[string]func(*UserClient, ParsedMessage){
	"NICK":    (*UserClient).nickCommand,
	"USER":    (*UserClient).userCommand,
	"PASS":    (*UserClient).passCommand,
	"JOIN":    (*UserClient).joinCommand,
	"PART":    (*UserClient).partCommand,
	"PRIVMSG": (*UserClient).privmsgCommand,
	"NOTICE":  (*UserClient).privmsgCommand,
	"TOPIC":   (*UserClient).topicCommand,
	"MODE":    (*UserClient).modeCommand,
	"KICK":    (*UserClient).kickCommand,
	"INVITE":  (*UserClient).inviteCommand,
	"PING":    (*UserClient).pingCommand,
	"QUIT":    (*UserClient).quitCommand,
}

// handleMessage takes action based on a client's IRC message.
func (u *UserClient) handleMessage(m ParsedMessage) {
	// Record that the client said something to us just now.
	u.LastActivityTime = time.Now()

	if m.InvalidParam {
		u.messageFromServer("ERROR", []string{m.ErrorMsg})
		return
	}

	if len(m.Command) == 0 {
		return
	}

	command := strings.ToUpper(m.Command)

	// Non-RFC command that appears to be widely supported. Just ignore
	// it. PONG likewise needs no action beyond the activity update.
	if command == "CAP" || command == "PONG" {
		return
	}

	handler, exists := userCommands[command]
	if !exists {
		// 421 ERR_UNKNOWNCOMMAND
		u.messageFromServer("421", []string{m.Command, "Unknown command"})
		return
	}

	handler(u, m)
}

func (u *UserClient) passCommand(m ParsedMessage) {
	// 462 ERR_ALREADYREGISTRED
	u.messageFromServer("462", []string{"You may not reregister"})
}

func (u *UserClient) userCommand(m ParsedMessage) {
	u.messageFromServer("462", []string{"You may not reregister"})
}

// nickCommand changes the client's nick. Channel membership is keyed
// by client ID, so only the server's nick index needs an update.
func (u *UserClient) nickCommand(m ParsedMessage) {
	nick := m.Trailing
	if len(m.Params) > 0 {
		nick = m.Params[0]
	}

	if len(nick) == 0 {
		u.messageFromServer("431", []string{"No nickname given"})
		return
	}

	if !isValidNick(nick) {
		u.messageFromServer("432", []string{nick, "Erroneous nickname"})
		return
	}

	if _, exists := u.Server.Nicks[nick]; exists {
		u.messageFromServer("433", []string{nick, "Nickname is already in use"})
		return
	}

	// Echo the change from the old identity before adopting the new
	// one.
	u.maybeQueueMessage(irc.Message{
		Prefix:  u.nickUhost(),
		Command: "NICK",
		Params:  []string{nick},
	})

	delete(u.Server.Nicks, u.DisplayNick)
	u.Server.Nicks[nick] = u.ID
	u.DisplayNick = nick
}

func (u *UserClient) joinCommand(m ParsedMessage) {
	if len(m.Params) == 0 {
		u.messageFromServer("461", []string{"JOIN", "Not enough parameters"})
		return
	}

	channels := commaList(m.Params[0])

	// Keys pair with channels positionally, so empty slots stay.
	var keys []string
	if len(m.Params) > 1 {
		keys = strings.Split(m.Params[1], ",")
	}

	for i, channelName := range channels {
		key := ""
		if i < len(keys) {
			key = keys[i]
		}
		u.join(channelName, key)
	}
}

// join tries to put the client in one channel, creating it if needed.
func (u *UserClient) join(channelName, key string) {
	// Names without a channel prefix are silently skipped.
	if !isChannelName(channelName) {
		return
	}

	channel, exists := u.Server.Channels[channelName]
	if !exists {
		channel = newChannel(channelName, u)
		u.Server.Channels[channelName] = channel
		u.greetJoin(channel)
		return
	}

	if channel.hasMember(u) {
		// 443 ERR_USERONCHANNEL
		u.messageFromServer("443", []string{u.DisplayNick, channelName,
			"is already on channel"})
		return
	}

	// An invitation bypasses the limit and invite-only checks, but not
	// the key.
	invited := channel.isInvited(u)

	if !invited && channel.checkMode('l') &&
		len(channel.Members) >= channel.UserLimit {
		// 471 ERR_CHANNELISFULL
		u.messageFromServer("471", []string{channelName,
			"Cannot join channel (+l)"})
		return
	}

	if !invited && channel.checkMode('i') {
		// 473 ERR_INVITEONLYCHAN
		u.messageFromServer("473", []string{channelName,
			"Cannot join channel (+i)"})
		return
	}

	if channel.checkMode('k') && key != channel.Key {
		// 475 ERR_BADCHANNELKEY
		u.messageFromServer("475", []string{channelName,
			"Cannot join channel (+k)"})
		return
	}

	// Existing members hear the join before the joiner's greeting.
	channel.broadcast(irc.Message{
		Prefix:  u.nickUhost(),
		Command: "JOIN",
		Params:  []string{channelName},
	})

	channel.addMember(u)
	u.greetJoin(channel)
}

// greetJoin sends the joiner their view of the channel: the JOIN echo,
// the channel modes when they created it, the topic if there is one,
// and the names list.
func (u *UserClient) greetJoin(channel *Channel) {
	u.maybeQueueMessage(irc.Message{
		Prefix:  u.nickUhost(),
		Command: "JOIN",
		Params:  []string{channel.Name},
	})

	if len(channel.Members) == 1 {
		if modes := channel.modesString(); len(modes) > 0 {
			u.messageFromServer("MODE", []string{channel.Name, modes})
		}
	}

	if len(channel.Topic) > 0 {
		// 332 RPL_TOPIC
		u.messageFromServer("332", []string{channel.Name, channel.Topic})
	}

	// 353 RPL_NAMREPLY / 366 RPL_ENDOFNAMES
	u.messageFromServer("353", []string{"@", channel.Name, channel.namesList()})
	u.messageFromServer("366", []string{channel.Name, "End of NAMES list"})
}

func (u *UserClient) partCommand(m ParsedMessage) {
	if len(m.Params) == 0 {
		u.messageFromServer("461", []string{"PART", "Not enough parameters"})
		return
	}

	for _, channelName := range commaList(m.Params[0]) {
		u.part(channelName, m.Trailing)
	}
}

// privmsgCommand delivers PRIVMSG and NOTICE. The message text is the
// trailing parameter only.
func (u *UserClient) privmsgCommand(m ParsedMessage) {
	command := strings.ToUpper(m.Command)

	if len(m.Params) == 0 {
		// 411 ERR_NORECIPIENT
		u.messageFromServer("411", []string{
			fmt.Sprintf("No recipient given (%s)", command)})
		return
	}

	if len(m.Trailing) == 0 {
		// 412 ERR_NOTEXTTOSEND
		u.messageFromServer("412", []string{"No text to send"})
		return
	}

	target := m.Params[0]

	if isChannelName(target) {
		channel, exists := u.Server.Channels[target]
		if !exists || !channel.hasMember(u) {
			// 404 ERR_CANNOTSENDTOCHAN
			u.messageFromServer("404", []string{target,
				"Cannot send to channel"})
			return
		}

		channel.broadcastExcept(u, irc.Message{
			Prefix:  u.nickUhost(),
			Command: command,
			Params:  []string{target, m.Trailing},
		})
		return
	}

	targetID, exists := u.Server.Nicks[target]
	if !exists {
		// 401 ERR_NOSUCHNICK
		u.messageFromServer("401", []string{target, "No such nick/channel"})
		return
	}

	u.messageClient(u.Server.UserClients[targetID], command,
		[]string{target, m.Trailing})
}

func (u *UserClient) topicCommand(m ParsedMessage) {
	if len(m.Params) == 0 {
		u.messageFromServer("461", []string{"TOPIC", "Not enough parameters"})
		return
	}

	channelName := m.Params[0]
	channel, exists := u.Server.Channels[channelName]
	if !exists {
		u.messageFromServer("403", []string{channelName, "No such channel"})
		return
	}

	if !u.onChannel(channel) {
		u.messageFromServer("442", []string{channelName,
			"You're not on that channel"})
		return
	}

	// No text means a query.
	if len(m.Trailing) == 0 {
		if len(channel.Topic) == 0 {
			// 331 RPL_NOTOPIC
			u.messageFromServer("331", []string{channelName,
				"No topic is set"})
			return
		}
		u.messageFromServer("332", []string{channelName, channel.Topic})
		return
	}

	if channel.checkMode('t') && !channel.hasOps(u) {
		// 482 ERR_CHANOPRIVSNEEDED
		u.messageFromServer("482", []string{channelName,
			"You're not channel operator"})
		return
	}

	channel.setTopic(m.Trailing)

	channel.broadcast(irc.Message{
		Prefix:  u.nickUhost(),
		Command: "TOPIC",
		Params:  []string{channelName, channel.Topic},
	})
}

func (u *UserClient) kickCommand(m ParsedMessage) {
	if len(m.Params) < 2 {
		u.messageFromServer("461", []string{"KICK", "Not enough parameters"})
		return
	}

	channelName := m.Params[0]
	channel, exists := u.Server.Channels[channelName]
	if !exists {
		u.messageFromServer("403", []string{channelName, "No such channel"})
		return
	}

	if !u.onChannel(channel) {
		u.messageFromServer("442", []string{channelName,
			"You're not on that channel"})
		return
	}

	if !channel.hasOps(u) {
		u.messageFromServer("482", []string{channelName,
			"You're not channel operator"})
		return
	}

	comment := m.Trailing
	if len(comment) == 0 {
		comment = u.DisplayNick
	}

	for _, targetNick := range commaList(m.Params[1]) {
		if targetNick == u.DisplayNick {
			u.messageFromServer("482", []string{channelName,
				"You can't kick yourself"})
			continue
		}

		target := u.Server.userByNick(targetNick)
		if target == nil || !channel.hasMember(target) {
			// 441 ERR_USERNOTINCHANNEL
			u.messageFromServer("441", []string{targetNick, channelName,
				"They aren't on that channel"})
			continue
		}

		// The target hears the kick too, so broadcast before removal.
		channel.broadcast(irc.Message{
			Prefix:  u.nickUhost(),
			Command: "KICK",
			Params:  []string{channelName, target.DisplayNick, comment},
		})

		channel.removeMember(target)
	}

	if len(channel.Members) == 0 {
		delete(u.Server.Channels, channel.Name)
	}
}

func (u *UserClient) inviteCommand(m ParsedMessage) {
	if len(m.Params) < 2 {
		u.messageFromServer("461", []string{"INVITE", "Not enough parameters"})
		return
	}

	nick := m.Params[0]
	channelName := m.Params[1]

	target := u.Server.userByNick(nick)
	if target == nil {
		u.messageFromServer("401", []string{nick, "No such nick/channel"})
		return
	}

	channel, exists := u.Server.Channels[channelName]
	if !exists {
		u.messageFromServer("403", []string{channelName, "No such channel"})
		return
	}

	if !u.onChannel(channel) {
		u.messageFromServer("442", []string{channelName,
			"You're not on that channel"})
		return
	}

	if channel.hasMember(target) {
		u.messageFromServer("443", []string{nick, channelName,
			"is already on channel"})
		return
	}

	// Only operators may invite to an invite-only channel.
	if channel.checkMode('i') && !channel.hasOps(u) {
		u.messageFromServer("482", []string{channelName,
			"You're not channel operator"})
		return
	}

	channel.invite(target)

	// 341 RPL_INVITING
	u.messageFromServer("341", []string{nick, channelName})

	u.messageClient(target, "INVITE", []string{nick, channelName})
}

func (u *UserClient) pingCommand(m ParsedMessage) {
	token := m.Trailing
	if len(m.Params) > 0 {
		token = m.Params[0]
	}

	if len(token) == 0 {
		// 409 ERR_NOORIGIN
		u.messageFromServer("409", []string{"No origin specified"})
		return
	}

	u.maybeQueueMessage(irc.Message{
		Prefix:  u.Server.Config.ServerName,
		Command: "PONG",
		Params:  []string{token},
	})
}

func (u *UserClient) quitCommand(m ParsedMessage) {
	msg := "Quit:"
	if len(m.Trailing) > 0 {
		msg += " " + m.Trailing
	}
	u.quit(msg)
}
