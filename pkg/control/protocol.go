// Package control implements the control socket protocol for svinit,
// the channel telinit uses to request runlevel changes, reloads, and
// shutdowns from the running supervisor.
package control

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/sparrowlinux/svinit/pkg/shutdown"
)

// ProtocolVersion for the svinit control protocol.
const ProtocolVersion uint16 = 1

// Command codes (client → server).
const (
	CmdQueryVersion  uint8 = 0
	CmdRunlevel      uint8 = 1 // payload: runlevel name (1 byte)
	CmdReload        uint8 = 2
	CmdShutdown      uint8 = 3 // payload: shutdown subtype (1 byte)
	CmdReExec        uint8 = 4
	CmdQueryRunlevel uint8 = 5
)

// Shutdown subtypes for CmdShutdown payloads.
const (
	ShutdownHalt     uint8 = 1
	ShutdownPoweroff uint8 = 2
	ShutdownReboot   uint8 = 3
)

// Reply codes (server → client).
const (
	RplyACK       uint8 = 50
	RplyNAK       uint8 = 51
	RplyBadReq    uint8 = 52
	RplyCPVersion uint8 = 58
	RplyRunlevel  uint8 = 59 // payload: previous, current runlevel (2 bytes)
)

// MaxPayloadSize bounds a packet payload.
const MaxPayloadSize = 4096

// ShutdownType converts a CmdShutdown subtype byte to a shutdown.Type.
func ShutdownType(b uint8) (shutdown.Type, bool) {
	switch b {
	case ShutdownHalt:
		return shutdown.Halt, true
	case ShutdownPoweroff:
		return shutdown.Poweroff, true
	case ShutdownReboot:
		return shutdown.Reboot, true
	default:
		return shutdown.None, false
	}
}

// WritePacket writes a packet: [type(1)][payloadLen(2 LE)][payload(N)].
func WritePacket(w io.Writer, pktType uint8, payload []byte) error {
	if len(payload) > MaxPayloadSize {
		return fmt.Errorf("payload too large: %d > %d", len(payload), MaxPayloadSize)
	}
	hdr := [3]byte{pktType}
	binary.LittleEndian.PutUint16(hdr[1:], uint16(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return err
		}
	}
	return nil
}

// ReadPacket reads a packet: [type(1)][payloadLen(2 LE)][payload(N)].
func ReadPacket(r io.Reader) (pktType uint8, payload []byte, err error) {
	var hdr [3]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		return 0, nil, err
	}
	pktType = hdr[0]
	pLen := binary.LittleEndian.Uint16(hdr[1:])
	if pLen > MaxPayloadSize {
		return 0, nil, fmt.Errorf("payload too large: %d", pLen)
	}
	if pLen > 0 {
		payload = make([]byte, pLen)
		if _, err = io.ReadFull(r, payload); err != nil {
			return 0, nil, err
		}
	}
	return pktType, payload, nil
}
