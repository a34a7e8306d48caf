package main

import (
	"sort"
	"strings"

	"github.com/horgh/irc"
)

// Channel holds everything to do with a channel.
//
// Members, operators, and invitees are keyed by client ID. Nicknames
// are an index the Server owns; a nick change never touches these
// maps.
type Channel struct {
	// Not canonicalized. Names compare byte for byte.
	Name string

	// Members in the channel, client ID to user.
	// If we have zero members, we should not exist.
	Members map[uint64]*UserClient

	// Ops tracks members who have operator status.
	Ops map[uint64]*UserClient

	// Invites tracks users invited to the channel. An invitation is
	// one shot. Joining consumes it.
	Invites map[uint64]*UserClient

	// Current topic. May be blank.
	Topic string

	// Meaningful only while mode k is set.
	Key string

	// Meaningful only while mode l is set. -1 when unset.
	UserLimit int

	// Modes set on the channel, over i/t/k/l. Mode o is derived from
	// Ops being non-empty.
	Modes map[byte]bool
}

// newChannel creates a channel with its creator as the sole member and
// operator. Topic protection is on from the start.
func newChannel(name string, creator *UserClient) *Channel {
	c := &Channel{
		Name:      name,
		Members:   map[uint64]*UserClient{creator.ID: creator},
		Ops:       map[uint64]*UserClient{creator.ID: creator},
		Invites:   make(map[uint64]*UserClient),
		UserLimit: -1,
		Modes:     map[byte]bool{'t': true},
	}
	creator.Channels[name] = c
	return c
}

func (c *Channel) hasMember(u *UserClient) bool {
	_, exists := c.Members[u.ID]
	return exists
}

// Check if a user has operator status in the channel.
func (c *Channel) hasOps(u *UserClient) bool {
	_, exists := c.Ops[u.ID]
	return exists
}

func (c *Channel) isInvited(u *UserClient) bool {
	_, exists := c.Invites[u.ID]
	return exists
}

// checkMode reports whether a mode is set. Mode o has no stored flag.
// It is true exactly when the channel has operators.
func (c *Channel) checkMode(mode byte) bool {
	if mode == 'o' {
		return len(c.Ops) > 0
	}
	return c.Modes[mode]
}

// setMode turns mode i or t on or off. It reports whether the channel
// changed, so no-op toggles stay out of mode broadcasts.
func (c *Channel) setMode(mode byte, on bool) bool {
	if c.Modes[mode] == on {
		return false
	}
	if on {
		c.Modes[mode] = true
	} else {
		delete(c.Modes, mode)
	}
	return true
}

// modesString renders the channel's modes in a fixed order, with the
// derived o last.
func (c *Channel) modesString() string {
	s := ""
	for _, mode := range []byte{'i', 't', 'k', 'l'} {
		if c.Modes[mode] {
			s += string(mode)
		}
	}
	if len(c.Ops) > 0 {
		s += "o"
	}
	if len(s) == 0 {
		return ""
	}
	return "+" + s
}

func (c *Channel) setKey(key string) {
	c.Key = key
	c.Modes['k'] = true
}

func (c *Channel) removeKey() {
	c.Key = ""
	delete(c.Modes, 'k')
}

func (c *Channel) setUserLimit(limit int) {
	c.UserLimit = limit
	c.Modes['l'] = true
}

func (c *Channel) removeUserLimit() {
	c.UserLimit = -1
	delete(c.Modes, 'l')
}

// addMember adds a user to the channel, consuming any invitation. The
// first member of an operatorless channel gets ops.
func (c *Channel) addMember(u *UserClient) {
	c.Members[u.ID] = u
	delete(c.Invites, u.ID)
	u.Channels[c.Name] = c
	if len(c.Ops) == 0 {
		c.Ops[u.ID] = u
	}
}

// removeMember takes the user out of the channel entirely. If the
// operator set empties, another member gets promoted.
func (c *Channel) removeMember(u *UserClient) {
	delete(c.Ops, u.ID)
	delete(c.Members, u.ID)
	delete(u.Channels, c.Name)
	c.ensureOperator()
}

// Grant a member ops. Non-members are ignored.
func (c *Channel) grantOps(u *UserClient) {
	if _, exists := c.Members[u.ID]; !exists {
		return
	}
	c.Ops[u.ID] = u
}

// Remove ops from a user. An occupied channel must keep at least one
// operator.
func (c *Channel) removeOps(u *UserClient) {
	delete(c.Ops, u.ID)
	c.ensureOperator()
}

func (c *Channel) invite(u *UserClient) {
	c.Invites[u.ID] = u
}

func (c *Channel) setTopic(topic string) {
	c.Topic = topic
	c.Modes['t'] = true
}

// ensureOperator refills the operator set after a removal. The member
// with the lexicographically smallest nick wins so the choice is
// deterministic.
func (c *Channel) ensureOperator() {
	if len(c.Ops) > 0 || len(c.Members) == 0 {
		return
	}

	var pick *UserClient
	for _, member := range c.Members {
		if pick == nil || member.DisplayNick < pick.DisplayNick {
			pick = member
		}
	}
	c.Ops[pick.ID] = pick
}

// broadcast queues a message for every member.
func (c *Channel) broadcast(m irc.Message) {
	for _, member := range c.Members {
		member.maybeQueueMessage(m)
	}
}

// broadcastExcept queues a message for every member but one.
func (c *Channel) broadcastExcept(except *UserClient, m irc.Message) {
	for _, member := range c.Members {
		if member.ID == except.ID {
			continue
		}
		member.maybeQueueMessage(m)
	}
}

// namesList renders the membership for RPL_NAMREPLY. Operators carry
// an @ prefix. Sorted so the reply is deterministic.
func (c *Channel) namesList() string {
	nicks := make([]string, 0, len(c.Members))
	for _, member := range c.Members {
		nick := member.DisplayNick
		if c.hasOps(member) {
			nick = "@" + nick
		}
		nicks = append(nicks, nick)
	}
	sort.Strings(nicks)
	return strings.Join(nicks, " ")
}
