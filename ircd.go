package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"
)

// Server holds the state for a server.
// Everything global to a server lives in an instance of this struct
// rather than in global variables.
type Server struct {
	Config Config

	// Connection password clients must send with PASS.
	Password string

	// Port to listen on.
	Port string

	// Client id to Client.
	UnregisteredClients map[uint64]*Client

	// Client id to UserClient.
	UserClients map[uint64]*UserClient

	// Nickname to client id. Registered clients only. The only nick
	// keyed index; channels key by client id.
	Nicks map[string]uint64

	// Channel name to Channel.
	Channels map[string]*Channel

	// When we close this channel, this indicates that we're shutting
	// down. Other goroutines can check if this channel is closed.
	ShutdownChan chan struct{}

	// Tell the server something on this channel.
	ToServerChan chan Event

	// TCP listener.
	Listener net.Listener

	// WaitGroup to ensure all goroutines clean up before we end.
	WG conc.WaitGroup
}

// Event holds a message containing something to tell the server.
type Event struct {
	Type EventType

	Client *Client

	ClientID uint64

	Message ParsedMessage
}

// EventType is a type of event we can tell the server about.
type EventType int

const (
	// NullEvent is a default event. This means the event was not
	// populated.
	NullEvent EventType = iota

	// NewClientEvent means a new client connected.
	NewClientEvent

	// DeadClientEvent means a client died for some reason. Clean it up.
	DeadClientEvent

	// MessageFromClientEvent means a client sent a message.
	MessageFromClientEvent

	// WakeUpEvent means the server should wake up and do bookkeeping.
	WakeUpEvent

	// ShutdownEvent means the server should shut down, e.g. because we
	// received a signal.
	ShutdownEvent
)

func main() {
	args, err := getArgs()
	if err != nil {
		log.Fatal(err)
	}

	server, err := newServer(args)
	if err != nil {
		log.Fatal(err)
	}

	if err := server.start(); err != nil {
		log.Fatal(err)
	}

	log.Printf("Server shutdown cleanly.")
}

func newServer(args Args) (*Server, error) {
	s := Server{
		Password: args.Password,
		Port:     args.Port,

		UnregisteredClients: make(map[uint64]*Client),
		UserClients:         make(map[uint64]*UserClient),
		Nicks:               make(map[string]uint64),
		Channels:            make(map[string]*Channel),

		// shutdown() closes this channel.
		ShutdownChan: make(chan struct{}),

		// We never manually close this channel.
		ToServerChan: make(chan Event),
	}

	if err := s.checkAndParseConfig(args.ConfigFile); err != nil {
		return nil, fmt.Errorf("configuration problem: %s", err)
	}

	return &s, nil
}

// start starts up the server.
//
// We open the TCP port, start goroutines, and then receive messages on
// our channels.
func (s *Server) start() error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.Config.ListenHost, s.Port))
	if err != nil {
		return fmt.Errorf("unable to listen: %s", err)
	}
	s.Listener = ln

	log.Printf("Listening on %s.", ln.Addr())

	// acceptConnections accepts connections on the TCP listener.
	s.WG.Go(s.acceptConnections)

	// Alarm is a goroutine to wake up this one periodically so we can
	// do things like ping clients.
	s.WG.Go(s.alarm)

	// Turn signals into shutdown events so teardown happens on the
	// event loop where it may touch state.
	s.WG.Go(s.watchSignals)

	s.eventLoop()

	// We don't need to drain any channels. None close that will have
	// any goroutines blocked on them.

	s.WG.Wait()

	return nil
}

// eventLoop processes events on the server's channel.
//
// It continues until the shutdown channel closes, indicating shutdown.
//
// This is the only goroutine that touches client, channel, and nick
// state.
func (s *Server) eventLoop() {
	for {
		select {
		case evt := <-s.ToServerChan:
			s.handleEvent(evt)

		case <-s.ShutdownChan:
			return
		}
	}
}

func (s *Server) handleEvent(evt Event) {
	switch evt.Type {
	case NewClientEvent:
		log.Printf("New client connection: %s", evt.Client)
		s.UnregisteredClients[evt.Client.ID] = evt.Client

	case DeadClientEvent:
		if client, exists := s.UnregisteredClients[evt.ClientID]; exists {
			log.Printf("Client %s died.", client)
			client.quit("I/O error")
		}
		if client, exists := s.UserClients[evt.ClientID]; exists {
			log.Printf("Client %s died.", client)
			client.quit("I/O error")
		}

	case MessageFromClientEvent:
		if client, exists := s.UnregisteredClients[evt.ClientID]; exists {
			client.handleMessage(evt.Message)
		} else if client, exists := s.UserClients[evt.ClientID]; exists {
			client.handleMessage(evt.Message)
		}

	case WakeUpEvent:
		s.checkAndPingClients()

	case ShutdownEvent:
		s.shutdown()

	default:
		log.Fatalf("Unexpected event: %d", evt.Type)
	}
}

// userByNick resolves a nick to its registered client, or nil.
func (s *Server) userByNick(nick string) *UserClient {
	id, exists := s.Nicks[nick]
	if !exists {
		return nil
	}
	return s.UserClients[id]
}

// shutdown starts server shutdown. Only the event loop goroutine may
// call this.
func (s *Server) shutdown() {
	if s.isShuttingDown() {
		return
	}

	log.Printf("Server shutdown initiated.")

	// Closing ShutdownChan indicates to other goroutines that we're
	// shutting down.
	close(s.ShutdownChan)

	if err := s.Listener.Close(); err != nil {
		log.Printf("Problem closing TCP listener: %s", err)
	}

	// All clients need to be told. This also closes their write
	// channels.
	for _, client := range s.UnregisteredClients {
		client.quit("Server shutting down")
	}
	for _, client := range s.UserClients {
		client.quit("Server shutting down")
	}
}

// acceptConnections accepts TCP connections and tells the main server
// loop through a channel. It sets up separate goroutines for reading
// from and writing to the client.
func (s *Server) acceptConnections() {
	id := uint64(0)

	for {
		if s.isShuttingDown() {
			break
		}

		conn, err := s.Listener.Accept()
		if err != nil {
			if s.isShuttingDown() {
				break
			}
			log.Printf("Failed to accept connection: %s", err)
			continue
		}

		client := NewClient(s, id, conn)

		// Handle rollover of uint64. Unlikely to happen (outside abuse)
		// but.
		if id+1 == 0 {
			log.Fatalf("Unique ids rolled over!")
		}
		id++

		// ToServerChan is synchronous. We want to make sure the server
		// knows about the client before it starts hearing anything from
		// its other channels about the client.
		s.newEvent(Event{Type: NewClientEvent, Client: client})

		s.WG.Go(client.readLoop)
		s.WG.Go(client.writeLoop)
	}

	log.Printf("Connection accepter shutting down.")
}

// Return true if the server is shutting down.
func (s *Server) isShuttingDown() bool {
	// No messages get sent to this channel, so if we receive a message
	// on it, then we know the channel was closed.
	select {
	case <-s.ShutdownChan:
		return true
	default:
		return false
	}
}

// Alarm sends a message to the server goroutine to wake it up.
// It sleeps and then repeats.
func (s *Server) alarm() {
	for {
		if s.isShuttingDown() {
			break
		}

		time.Sleep(s.Config.WakeupTime)

		s.newEvent(Event{Type: WakeUpEvent})
	}

	log.Printf("Alarm shutting down.")
}

// watchSignals requests shutdown when we receive a terminating signal.
func (s *Server) watchSignals() {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP,
		syscall.SIGQUIT)
	defer signal.Stop(signals)

	select {
	case sig := <-signals:
		log.Printf("Received signal: %s. Shutting down.", sig)
		s.newEvent(Event{Type: ShutdownEvent})
	case <-s.ShutdownChan:
	}
}

// checkAndPingClients looks at each connected client.
//
// If they've been idle a short time, we send them a PING (if they're
// registered).
//
// If they've been idle a long time, or overflowed their send queue, we
// kill their connection.
func (s *Server) checkAndPingClients() {
	now := time.Now()

	for _, client := range s.UnregisteredClients {
		if client.SendQueueExceeded {
			client.quit("SendQ exceeded")
			continue
		}

		timeIdle := now.Sub(client.LastActivityTime)

		if timeIdle > s.Config.DeadTime {
			client.quit("Idle too long.")
		}
	}

	for _, client := range s.UserClients {
		if client.SendQueueExceeded {
			client.quit("SendQ exceeded")
			continue
		}

		timeIdle := now.Sub(client.LastActivityTime)
		timeSincePing := now.Sub(client.LastPingTime)

		// Was it active recently enough that we don't need to do
		// anything?
		if timeIdle < s.Config.PingTime {
			continue
		}

		// It's been idle a while.

		// Has it been idle long enough that we consider it dead?
		if timeIdle > s.Config.DeadTime {
			client.quit(fmt.Sprintf("Ping timeout: %d seconds",
				int(timeIdle.Seconds())))
			continue
		}

		// Should we ping it? We might have pinged it recently.
		if timeSincePing < s.Config.PingTime {
			continue
		}

		client.messageFromServer("PING", []string{s.Config.ServerName})
		client.LastPingTime = now
	}
}

// newEvent tells the server something happened.
//
// Any goroutine can call this function.
//
// It sends the server a message on its ToServerChan.
//
// It will not block on shutdown as we select on the shutdown channel
// which we close when shutting down the server. This means receive on
// the shutdown channel will proceed at that point.
func (s *Server) newEvent(evt Event) {
	select {
	case s.ToServerChan <- evt:
	case <-s.ShutdownChan:
	}
}
