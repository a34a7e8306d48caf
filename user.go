package main

import (
	"fmt"

	"github.com/horgh/irc"
)

// UserClient holds information relevant only to a registered client.
type UserClient struct {
	Client

	// Nick. Not canonicalized. Compares byte for byte.
	DisplayNick string

	// Sent by USER command
	User string

	// Sent by USER command
	RealName string

	// Channel name to Channel, for every channel we're on.
	Channels map[string]*Channel
}

// NewUserClient makes a UserClient from a Client.
func NewUserClient(c *Client) *UserClient {
	return &UserClient{
		Client:      *c,
		DisplayNick: c.PreRegNick,
		User:        c.PreRegUser,
		RealName:    c.PreRegRealName,
		Channels:    make(map[string]*Channel),
	}
}

func (u *UserClient) String() string {
	return fmt.Sprintf("%d: %s", u.ID, u.nickUhost())
}

func (u *UserClient) nickUhost() string {
	return fmt.Sprintf("%s!~%s@%s", u.DisplayNick, u.User, u.Conn.IP)
}

func (u *UserClient) onChannel(channel *Channel) bool {
	_, exists := u.Channels[channel.Name]
	return exists
}

// Send an IRC message to a client. Appears to be from the server.
// This works by writing to a client's channel.
//
// Note: Only the server goroutine should call this (due to channel use).
func (u *UserClient) messageFromServer(command string, params []string) {
	// For numeric messages we need to prepend the nick.
	if isNumericCommand(command) {
		newParams := []string{u.DisplayNick}
		newParams = append(newParams, params...)
		params = newParams
	}

	u.maybeQueueMessage(irc.Message{
		Prefix:  u.Server.Config.ServerName,
		Command: command,
		Params:  params,
	})
}

// Send an IRC message to a client from another client. The server is
// the one sending it, but it appears from the client through use of
// the prefix.
//
// Note: Only the server goroutine should call this (due to channel use).
func (u *UserClient) messageClient(to *UserClient, command string,
	params []string) {
	to.maybeQueueMessage(irc.Message{
		Prefix:  u.nickUhost(),
		Command: command,
		Params:  params,
	})
}

// part tries to remove the client from the channel.
func (u *UserClient) part(channelName, message string) {
	channel, exists := u.Server.Channels[channelName]
	if !exists {
		// 403 ERR_NOSUCHCHANNEL
		u.messageFromServer("403", []string{channelName, "No such channel"})
		return
	}

	if !u.onChannel(channel) {
		// 442 ERR_NOTONCHANNEL
		u.messageFromServer("442", []string{channelName,
			"You're not on that channel"})
		return
	}

	// Tell everyone (including the client) about the part.
	params := []string{channelName}
	if len(message) > 0 {
		params = append(params, message)
	}
	channel.broadcast(irc.Message{
		Prefix:  u.nickUhost(),
		Command: "PART",
		Params:  params,
	})

	channel.removeMember(u)
	if len(channel.Members) == 0 {
		delete(u.Server.Channels, channel.Name)
	}
}

// quit means the client is quitting. Tell it why and clean up.
//
// Everyone who shares a channel with the client hears a QUIT. Emptied
// channels get destroyed and the nick is freed.
func (u *UserClient) quit(msg string) {
	// May already be cleaning up.
	if _, exists := u.Server.UserClients[u.ID]; !exists {
		return
	}

	quitMessage := irc.Message{
		Prefix:  u.nickUhost(),
		Command: "QUIT",
		Params:  []string{msg},
	}

	// Tell each channel peer once, even when we share several channels.
	told := map[uint64]struct{}{u.ID: {}}
	for _, channel := range u.Channels {
		for _, member := range channel.Members {
			if _, ok := told[member.ID]; ok {
				continue
			}
			told[member.ID] = struct{}{}
			member.maybeQueueMessage(quitMessage)
		}
	}

	for _, channel := range u.Channels {
		channel.removeMember(u)
		if len(channel.Members) == 0 {
			delete(u.Server.Channels, channel.Name)
		}
	}

	u.messageFromServer("ERROR", []string{msg})

	close(u.WriteChan)

	delete(u.Server.Nicks, u.DisplayNick)
	delete(u.Server.UserClients, u.ID)
}
