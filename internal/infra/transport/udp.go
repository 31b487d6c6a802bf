// Package transport binds the connectionless datagram socket the roadside
// unit listens on, and dials the same transport for the peer role.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/roadside-lab/rsu/internal/domain"
)

// DefaultPort is the well-known beacon port.
const DefaultPort = 5000

// DefaultBufferSize bounds one datagram read. Larger datagrams are truncated
// by the kernel and will fail to decode.
const DefaultBufferSize = 2048

// Binder opens the listening socket for a session.
type Binder func(addr string) (net.PacketConn, error)

// ListenUDP is the production Binder.
func ListenUDP(addr string) (net.PacketConn, error) {
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrBindFailed, addr, err)
	}
	return conn, nil
}

// Addr joins host and port into a listen/dial address.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// IsClosed reports whether err comes from reading a socket that was closed
// underneath the reader, which is how a Stop interrupts a blocking receive.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed) || errors.Is(err, domain.ErrTransportClosed)
}

// Sender writes datagrams to a fixed destination.
type Sender struct {
	conn net.Conn
}

// Dial connects a UDP sender to target ("host:port").
func Dial(target string) (*Sender, error) {
	conn, err := net.Dial("udp", target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}
	return &Sender{conn: conn}, nil
}

// Send writes one datagram.
func (s *Sender) Send(payload []byte) error {
	_, err := s.conn.Write(payload)
	return err
}

// LocalAddr returns the sender's local address.
func (s *Sender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Close releases the socket.
func (s *Sender) Close() error {
	return s.conn.Close()
}
