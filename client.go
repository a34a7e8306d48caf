package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/horgh/irc"
)

// Client holds state about a single client connection. All connections
// are in this state until they complete registration and get promoted
// to UserClient.
type Client struct {
	// Conn holds the TCP connection to the client.
	Conn Conn

	// WriteChan is the channel to send to to write to the client.
	WriteChan chan irc.Message

	// A unique id. Internal to this server only. Channels key their
	// membership by it.
	ID uint64

	// Server references the main server the client is connected to.
	// It's helpful to have to avoid passing server all over the place.
	Server *Server

	ConnectionStartTime time.Time

	// The last time we heard anything from the client.
	LastActivityTime time.Time

	// The last time we sent the client a PING.
	LastPingTime time.Time

	// Track if we overflow our send queue. If we do, we'll kill the
	// client at the next liveness sweep.
	SendQueueExceeded bool

	// Info the client sends us before registration completes.
	PasswordOK     bool
	PreRegNick     string
	PreRegUser     string
	PreRegRealName string
}

// NewClient creates a Client.
func NewClient(s *Server, id uint64, conn net.Conn) *Client {
	now := time.Now()

	return &Client{
		Conn: NewConn(conn, s.Config.DeadTime),

		// Buffered channel. We don't want to block sending to the client
		// from the server. The client may be stuck. Make the buffer large
		// enough that it should only max out in case of connection
		// issues.
		WriteChan: make(chan irc.Message, 512),

		ID:                  id,
		Server:              s,
		ConnectionStartTime: now,
		LastActivityTime:    now,
		LastPingTime:        now,
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("%d %s", c.ID, c.Conn.RemoteAddr())
}

// Send a message to the client. We send it to its write channel, which
// in turn leads to writing it to its TCP socket.
//
// This function won't block. If the client's queue is full, we flag it
// as having a full send queue.
//
// Not blocking is important because the server sends the client
// messages this way, and if we block on a problem client, everything
// would grind to a halt.
func (c *Client) maybeQueueMessage(m irc.Message) {
	if c.SendQueueExceeded {
		return
	}

	select {
	case c.WriteChan <- m:
	default:
		c.SendQueueExceeded = true
	}
}

// Send a message to the client from the server. For a numeric reply
// the client's nick (or * before they have one) gets prepended to the
// parameters.
func (c *Client) messageFromServer(command string, params []string) {
	if isNumericCommand(command) {
		nick := "*"
		if len(c.PreRegNick) > 0 {
			nick = c.PreRegNick
		}
		params = append([]string{nick}, params...)
	}

	c.maybeQueueMessage(irc.Message{
		Prefix:  c.Server.Config.ServerName,
		Command: command,
		Params:  params,
	})
}

// readLoop endlessly reads lines from the client's TCP connection,
// parses each, and passes it to the server through the server's
// channel.
func (c *Client) readLoop() {
	for {
		if c.Server.isShuttingDown() {
			break
		}

		line, err := c.Conn.ReadLine()
		if err != nil {
			log.Printf("Client %s: %s", c, err)
			c.Server.newEvent(Event{Type: DeadClientEvent, ClientID: c.ID})
			break
		}

		c.Server.newEvent(Event{
			Type:     MessageFromClientEvent,
			ClientID: c.ID,
			Message:  parseMessage(line),
		})
	}

	log.Printf("Client %s: Reader shutting down.", c)
}

// writeLoop endlessly reads from the client's channel, encodes each
// message, and writes it to the client's TCP connection.
//
// When the channel is closed, or if we have a write error, close the
// TCP connection. This way we try to deliver messages to the client
// before closing its socket and giving up.
func (c *Client) writeLoop() {
	// Ensure we also stop if the server is shutting down (indicated by
	// the ShutdownChan being closed). Otherwise we can leak this
	// goroutine: the server may never have seen the new client event,
	// so it will never close the write channel.
Loop:
	for {
		select {
		case message, ok := <-c.WriteChan:
			if !ok {
				break Loop
			}

			if err := c.Conn.WriteMessage(message); err != nil {
				log.Printf("Client %s: %s", c, err)
				c.Server.newEvent(Event{Type: DeadClientEvent, ClientID: c.ID})
				break Loop
			}
		case <-c.Server.ShutdownChan:
			break Loop
		}
	}

	if err := c.Conn.Close(); err != nil {
		log.Printf("Client %s: Problem closing connection: %s", c, err)
	}

	log.Printf("Client %s: Writer shutting down.", c)
}

// handleMessage deals with a message from an unregistered client. Only
// the registration commands work before registration.
func (c *Client) handleMessage(m ParsedMessage) {
	c.LastActivityTime = time.Now()

	if m.InvalidParam {
		c.messageFromServer("ERROR", []string{m.ErrorMsg})
		return
	}

	if len(m.Command) == 0 {
		return
	}

	switch strings.ToUpper(m.Command) {
	case "CAP":
		// Capability negotiation is not supported. Ignore it so modern
		// clients can carry on registering.
	case "PASS":
		c.passCommand(m)
	case "NICK":
		c.nickCommand(m)
	case "USER":
		c.userCommand(m)
	case "QUIT":
		c.quit("Client quit")
	default:
		// 451 ERR_NOTREGISTERED
		c.messageFromServer("451", []string{"You have not registered"})
	}
}

func (c *Client) passCommand(m ParsedMessage) {
	if len(m.Params) == 0 && len(m.Trailing) == 0 {
		// 461 ERR_NEEDMOREPARAMS
		c.messageFromServer("461", []string{"PASS", "Not enough parameters"})
		return
	}

	password := m.Trailing
	if len(m.Params) > 0 {
		password = m.Params[0]
	}

	if password != c.Server.Password {
		// 464 ERR_PASSWDMISMATCH. The client may try again.
		c.messageFromServer("464", []string{"Password incorrect"})
		return
	}

	c.PasswordOK = true
}

func (c *Client) nickCommand(m ParsedMessage) {
	nick := m.Trailing
	if len(m.Params) > 0 {
		nick = m.Params[0]
	}

	if len(nick) == 0 {
		// 431 ERR_NONICKNAMEGIVEN
		c.messageFromServer("431", []string{"No nickname given"})
		return
	}

	if !isValidNick(nick) {
		// 432 ERR_ERRONEUSNICKNAME
		c.messageFromServer("432", []string{nick, "Erroneous nickname"})
		return
	}

	if _, exists := c.Server.Nicks[nick]; exists {
		// 433 ERR_NICKNAMEINUSE
		c.messageFromServer("433", []string{nick, "Nickname is already in use"})
		return
	}

	// Pre-registration nicks are not reserved in the index. We check
	// again when registration completes.
	c.PreRegNick = nick

	c.maybeCompleteRegistration()
}

func (c *Client) userCommand(m ParsedMessage) {
	if len(m.Params) == 0 {
		c.messageFromServer("461", []string{"USER", "Not enough parameters"})
		return
	}

	realName := m.Trailing
	if len(realName) == 0 && len(m.Params) >= 4 {
		realName = m.Params[3]
	}
	if len(realName) == 0 {
		c.messageFromServer("461", []string{"USER", "Not enough parameters"})
		return
	}

	c.PreRegUser = m.Params[0]
	c.PreRegRealName = realName

	c.maybeCompleteRegistration()
}

// maybeCompleteRegistration promotes the client once we have both a
// nick and user info. The password gets its final check here: a client
// that never authenticated is refused and dropped.
func (c *Client) maybeCompleteRegistration() {
	if len(c.PreRegNick) == 0 || len(c.PreRegUser) == 0 {
		return
	}

	if !c.PasswordOK {
		c.messageFromServer("464", []string{"Password incorrect"})
		c.quit("Bad password")
		return
	}

	// Check the nick is still available. It is not reserved in the
	// Nicks map before registration, so another client may have taken
	// it since we saw NICK.
	if _, exists := c.Server.Nicks[c.PreRegNick]; exists {
		c.messageFromServer("433", []string{c.PreRegNick,
			"Nickname is already in use"})
		c.PreRegNick = ""
		return
	}

	c.completeRegistration()
}

func (c *Client) completeRegistration() {
	u := NewUserClient(c)

	delete(c.Server.UnregisteredClients, c.ID)
	c.Server.UserClients[u.ID] = u
	c.Server.Nicks[u.DisplayNick] = u.ID

	// 001 RPL_WELCOME
	u.messageFromServer("001", []string{
		fmt.Sprintf("Welcome to the Internet Relay Network %s", u.nickUhost()),
	})

	// 002 RPL_YOURHOST
	u.messageFromServer("002", []string{
		fmt.Sprintf("Your host is %s, running version %s",
			u.Server.Config.ServerName,
			u.Server.Config.Version),
	})

	// 003 RPL_CREATED
	u.messageFromServer("003", []string{
		fmt.Sprintf("This server was created %s", u.Server.Config.CreatedDate),
	})

	// 004 RPL_MYINFO
	// <servername> <version> <available user modes> <available channel modes>
	u.messageFromServer("004", []string{
		u.Server.Config.ServerName,
		u.Server.Config.Version,
		"o",
		"itkl",
	})

	log.Printf("Client %s registered as %s.", u.Client.String(), u.DisplayNick)
}

// quit means the client is quitting. Tell it why and clean up.
func (c *Client) quit(msg string) {
	// May already be cleaning up.
	if _, exists := c.Server.UnregisteredClients[c.ID]; !exists {
		return
	}

	c.messageFromServer("ERROR", []string{msg})

	close(c.WriteChan)

	delete(c.Server.UnregisteredClients, c.ID)
}
