package control

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Client is the telinit side of the control protocol.
type Client struct {
	conn net.Conn
}

// Dial connects to the control socket.
func Dial(sockPath string) (*Client, error) {
	conn, err := net.DialTimeout("unix", sockPath, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{conn: conn}, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// QueryVersion returns the server's protocol version.
func (c *Client) QueryVersion() (uint16, error) {
	if err := WritePacket(c.conn, CmdQueryVersion, nil); err != nil {
		return 0, err
	}
	rply, payload, err := ReadPacket(c.conn)
	if err != nil {
		return 0, err
	}
	if rply != RplyCPVersion || len(payload) != 2 {
		return 0, fmt.Errorf("unexpected reply %d", rply)
	}
	return binary.LittleEndian.Uint16(payload), nil
}

// ChangeRunlevel requests a transition to the named runlevel.
func (c *Client) ChangeRunlevel(level string) error {
	if len(level) != 1 {
		return fmt.Errorf("invalid runlevel: %q", level)
	}
	return c.roundTrip(CmdRunlevel, []byte(level))
}

// Reload asks the supervisor to re-read its inittab.
func (c *Client) Reload() error {
	return c.roundTrip(CmdReload, nil)
}

// Shutdown requests a system shutdown of the given subtype
// (ShutdownHalt, ShutdownPoweroff, or ShutdownReboot).
func (c *Client) Shutdown(subtype uint8) error {
	return c.roundTrip(CmdShutdown, []byte{subtype})
}

// ReExec asks the supervisor to replace its own process image.
func (c *Client) ReExec() error {
	return c.roundTrip(CmdReExec, nil)
}

// QueryRunlevel returns the previous and current runlevel.
func (c *Client) QueryRunlevel() (prev, current string, err error) {
	if err := WritePacket(c.conn, CmdQueryRunlevel, nil); err != nil {
		return "", "", err
	}
	rply, payload, err := ReadPacket(c.conn)
	if err != nil {
		return "", "", err
	}
	if rply != RplyRunlevel || len(payload) != 2 {
		return "", "", fmt.Errorf("unexpected reply %d", rply)
	}
	return string(payload[0:1]), string(payload[1:2]), nil
}

func (c *Client) roundTrip(cmd uint8, payload []byte) error {
	if err := WritePacket(c.conn, cmd, payload); err != nil {
		return err
	}
	rply, _, err := ReadPacket(c.conn)
	if err != nil {
		return err
	}
	switch rply {
	case RplyACK:
		return nil
	case RplyNAK:
		return fmt.Errorf("request refused")
	case RplyBadReq:
		return fmt.Errorf("malformed request")
	default:
		return fmt.Errorf("unexpected reply %d", rply)
	}
}
