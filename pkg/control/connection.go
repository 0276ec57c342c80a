package control

import (
	"encoding/binary"
	"io"
	"net"

	"github.com/sparrowlinux/svinit/internal/util"
	"github.com/sparrowlinux/svinit/pkg/supervisor"
)

// connection represents a single control client connection.
type connection struct {
	server *Server
	conn   net.Conn
}

func newConnection(server *Server, conn net.Conn) *connection {
	return &connection{server: server, conn: conn}
}

func (c *connection) close() {
	c.conn.Close()
}

func (c *connection) serve() {
	defer c.close()

	for {
		select {
		case <-c.server.ctx.Done():
			return
		default:
		}

		cmd, payload, err := ReadPacket(c.conn)
		if err != nil {
			if err != io.EOF {
				c.server.logger.Debug("Control connection read error: %v", err)
			}
			return
		}

		if err := c.dispatch(cmd, payload); err != nil {
			c.server.logger.Debug("Control command dispatch error: %v", err)
			return
		}
	}
}

func (c *connection) dispatch(cmd uint8, payload []byte) error {
	switch cmd {
	case CmdQueryVersion:
		return c.handleQueryVersion()
	case CmdRunlevel:
		return c.handleRunlevel(payload)
	case CmdReload:
		return c.handleReload()
	case CmdShutdown:
		return c.handleShutdown(payload)
	case CmdReExec:
		return c.handleReExec()
	case CmdQueryRunlevel:
		return c.handleQueryRunlevel()
	default:
		return WritePacket(c.conn, RplyBadReq, nil)
	}
}

func (c *connection) handleQueryVersion() error {
	payload := make([]byte, 2)
	binary.LittleEndian.PutUint16(payload, ProtocolVersion)
	return WritePacket(c.conn, RplyCPVersion, payload)
}

func (c *connection) handleRunlevel(payload []byte) error {
	if len(payload) != 1 {
		return WritePacket(c.conn, RplyBadReq, nil)
	}

	level := string(payload)
	if !util.ValidRunlevel(level) {
		c.server.logger.Warn("Control: invalid runlevel request %q", level)
		return WritePacket(c.conn, RplyNAK, nil)
	}

	c.server.logger.Info("Control: runlevel change to %s requested", level)
	c.server.target.Submit(supervisor.Event{Kind: supervisor.EventRunlevel, Runlevel: level})
	return WritePacket(c.conn, RplyACK, nil)
}

func (c *connection) handleReload() error {
	c.server.logger.Info("Control: inittab reload requested")
	c.server.target.Submit(supervisor.Event{Kind: supervisor.EventReload})
	return WritePacket(c.conn, RplyACK, nil)
}

func (c *connection) handleShutdown(payload []byte) error {
	if len(payload) != 1 {
		return WritePacket(c.conn, RplyBadReq, nil)
	}

	st, ok := ShutdownType(payload[0])
	if !ok {
		return WritePacket(c.conn, RplyNAK, nil)
	}

	c.server.logger.Notice("Control: shutdown requested (%s)", st)
	if payload[0] == ShutdownReboot {
		c.server.target.Submit(supervisor.Event{Kind: supervisor.EventCtrlAltDel})
	} else {
		c.server.target.Submit(supervisor.Event{Kind: supervisor.EventShutdown, Shutdown: st})
	}
	return WritePacket(c.conn, RplyACK, nil)
}

func (c *connection) handleReExec() error {
	c.server.logger.Notice("Control: supervisor re-exec requested")
	c.server.target.Submit(supervisor.Event{Kind: supervisor.EventRestart})
	return WritePacket(c.conn, RplyACK, nil)
}

func (c *connection) handleQueryRunlevel() error {
	prev, current := c.server.target.Runlevels()
	payload := []byte{prev[0], current[0]}
	return WritePacket(c.conn, RplyRunlevel, payload)
}
