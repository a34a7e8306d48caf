package main

import (
	"bufio"
	"net"
	"strings"
	"time"

	"github.com/horgh/irc"
	"github.com/pkg/errors"
)

// Conn is a buffered connection to a client.
type Conn struct {
	conn   net.Conn
	rw     *bufio.ReadWriter
	ioWait time.Duration
	IP     net.IP
}

// NewConn initializes a Conn struct.
func NewConn(conn net.Conn, ioWait time.Duration) Conn {
	ip := net.IP{}
	if tcpAddr, ok := conn.RemoteAddr().(*net.TCPAddr); ok {
		ip = tcpAddr.IP
	}

	return Conn{
		conn:   conn,
		rw:     bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		ioWait: ioWait,
		IP:     ip,
	}
}

// Close closes the underlying connection.
func (c Conn) Close() error {
	return c.conn.Close()
}

// RemoteAddr returns the remote network address.
func (c Conn) RemoteAddr() net.Addr {
	if c.conn == nil {
		return nil
	}
	return c.conn.RemoteAddr()
}

// ReadLine reads one logical line from the connection, stripping the
// line terminator. Partial lines sit in the buffered reader until the
// rest arrives.
func (c Conn) ReadLine() (string, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.ioWait)); err != nil {
		// Do not treat this as fatal. There can be something available
		// to read in the buffer which we want to see.
		log.Printf("Error setting read deadline: %s", err)
	}

	line, err := c.rw.ReadString('\n')
	if err != nil {
		return line, errors.Wrap(err, "error reading")
	}

	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")

	return line, nil
}

// WriteMessage encodes and writes the message. A message truncated to
// the line length limit still goes out.
func (c Conn) WriteMessage(m irc.Message) error {
	buf, err := m.Encode()
	if err != nil && err != irc.ErrTruncated {
		return errors.Wrapf(err, "unable to encode message: %s", m)
	}

	return c.Write(buf)
}

// Write writes a string to the connection.
func (c Conn) Write(s string) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.ioWait)); err != nil {
		return errors.Wrap(err, "error setting write deadline")
	}

	sz, err := c.rw.WriteString(s)
	if err != nil {
		return errors.Wrap(err, "error writing")
	}

	if sz != len(s) {
		return errors.New("short write")
	}

	if err := c.rw.Flush(); err != nil {
		return errors.Wrap(err, "flush error")
	}

	return nil
}
