package osc

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Client sends packets to an OSC server and queries its handshake endpoint.
type Client struct {
	// LocalAddr is the local address to send from. Nil picks one.
	LocalAddr *net.UDPAddr

	// Timeout bounds Discover when ctx has no deadline.
	Timeout time.Duration
}

// NewClient returns a Client with a two second discovery timeout.
func NewClient() *Client {
	return &Client{Timeout: 2 * time.Second}
}

func (c *Client) dial(ctx context.Context, addr string) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", addr, err)
	}
	conn, err := net.DialUDP("udp", c.LocalAddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	} else if c.Timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.Timeout))
	}
	return conn, nil
}

// Send encodes pkt and sends it to addr as one datagram.
func (c *Client) Send(ctx context.Context, addr string, pkt Packet) error {
	data, err := pkt.MarshalBinary()
	if err != nil {
		return err
	}
	return c.SendRaw(ctx, addr, data)
}

// SendRaw sends data to addr unchanged.
func (c *Client) SendRaw(ctx context.Context, addr string, data []byte) error {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("failed to send to %s: %w", addr, err)
	}
	return nil
}

// Discover sends an OpQuery to the handshake endpoint at addr and returns
// the advertised status. Datagrams that are not a status operation are
// ignored until the deadline; running out of time yields an error whose
// Timeout method reports true.
func (c *Client) Discover(ctx context.Context, addr string) (*Status, error) {
	conn, err := c.dial(ctx, addr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	// Unblock the read if ctx is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Now())
	})
	defer stop()

	query, _ := (&Operation{Opcode: OpQuery}).MarshalBinary()
	if _, err := conn.Write(query); err != nil {
		return nil, fmt.Errorf("failed to send query to %s: %w", addr, err)
	}

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("no status from %s: %w", addr, err)
		}

		op, err := ParseOperation(buf[:n])
		if err != nil || op.Opcode != OpStatus {
			continue
		}
		return ParseStatus(op.Payload)
	}
}
