package control

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sparrowlinux/svinit/pkg/logging"
	"github.com/sparrowlinux/svinit/pkg/shutdown"
	"github.com/sparrowlinux/svinit/pkg/supervisor"
)

func testLogger() *logging.Logger {
	logger := logging.New(logging.LevelError)
	logger.SetOutput(io.Discard)
	return logger
}

// fakeTarget records submitted events in place of a running supervisor.
type fakeTarget struct {
	mu     sync.Mutex
	events []supervisor.Event
}

func (f *fakeTarget) Submit(ev supervisor.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeTarget) Runlevels() (string, string) {
	return "N", "3"
}

func (f *fakeTarget) recorded() []supervisor.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]supervisor.Event, len(f.events))
	copy(out, f.events)
	return out
}

// startServer brings up a control server on a per-test socket and
// returns a connected client.
func startServer(t *testing.T) (*fakeTarget, *Client) {
	t.Helper()

	target := &fakeTarget{}
	sockPath := filepath.Join(t.TempDir(), "control.socket")
	server := NewServer(target, sockPath, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, server.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
		cancel()
	})

	client, err := Dial(sockPath)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return target, client
}

func TestQueryVersion(t *testing.T) {
	_, client := startServer(t)

	version, err := client.QueryVersion()
	require.NoError(t, err)
	assert.Equal(t, ProtocolVersion, version)
}

func TestChangeRunlevel(t *testing.T) {
	target, client := startServer(t)

	require.NoError(t, client.ChangeRunlevel("5"))

	events := target.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, supervisor.EventRunlevel, events[0].Kind)
	assert.Equal(t, "5", events[0].Runlevel)
}

func TestChangeRunlevelRejected(t *testing.T) {
	target, client := startServer(t)

	err := client.ChangeRunlevel("9")
	require.Error(t, err)
	assert.Empty(t, target.recorded(), "rejected request must not queue an event")
}

func TestReload(t *testing.T) {
	target, client := startServer(t)

	require.NoError(t, client.Reload())

	events := target.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, supervisor.EventReload, events[0].Kind)
}

func TestShutdownSubtypes(t *testing.T) {
	target, client := startServer(t)

	require.NoError(t, client.Shutdown(ShutdownHalt))
	require.NoError(t, client.Shutdown(ShutdownPoweroff))
	require.NoError(t, client.Shutdown(ShutdownReboot))

	events := target.recorded()
	require.Len(t, events, 3)

	assert.Equal(t, supervisor.EventShutdown, events[0].Kind)
	assert.Equal(t, shutdown.Halt, events[0].Shutdown)

	assert.Equal(t, supervisor.EventShutdown, events[1].Kind)
	assert.Equal(t, shutdown.Poweroff, events[1].Shutdown)

	// A reboot request is the ctrlaltdel action.
	assert.Equal(t, supervisor.EventCtrlAltDel, events[2].Kind)
}

func TestShutdownUnknownSubtype(t *testing.T) {
	target, client := startServer(t)

	err := client.Shutdown(99)
	require.Error(t, err)
	assert.Empty(t, target.recorded())
}

func TestReExec(t *testing.T) {
	target, client := startServer(t)

	require.NoError(t, client.ReExec())

	events := target.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, supervisor.EventRestart, events[0].Kind)
}

func TestQueryRunlevel(t *testing.T) {
	_, client := startServer(t)

	prev, current, err := client.QueryRunlevel()
	require.NoError(t, err)
	assert.Equal(t, "N", prev)
	assert.Equal(t, "3", current)
}

func TestMultipleRequestsOneConnection(t *testing.T) {
	target, client := startServer(t)

	require.NoError(t, client.Reload())
	require.NoError(t, client.ChangeRunlevel("2"))
	require.NoError(t, client.ReExec())

	assert.Len(t, target.recorded(), 3)
}

func TestPacketRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePacket(&buf, CmdRunlevel, []byte("3")))

	pktType, payload, err := ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdRunlevel, pktType)
	assert.Equal(t, []byte("3"), payload)
}

func TestPacketEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePacket(&buf, CmdReload, nil))

	pktType, payload, err := ReadPacket(&buf)
	require.NoError(t, err)
	assert.Equal(t, CmdReload, pktType)
	assert.Empty(t, payload)
}

func TestPacketOversizePayload(t *testing.T) {
	var buf bytes.Buffer
	err := WritePacket(&buf, CmdRunlevel, make([]byte, MaxPayloadSize+1))
	assert.Error(t, err)
}

func TestPacketTruncated(t *testing.T) {
	_, _, err := ReadPacket(bytes.NewReader([]byte{CmdRunlevel, 5, 0, 'x'}))
	assert.Error(t, err)
}

func TestShutdownTypeMapping(t *testing.T) {
	st, ok := ShutdownType(ShutdownHalt)
	require.True(t, ok)
	assert.Equal(t, shutdown.Halt, st)

	st, ok = ShutdownType(ShutdownPoweroff)
	require.True(t, ok)
	assert.Equal(t, shutdown.Poweroff, st)

	st, ok = ShutdownType(ShutdownReboot)
	require.True(t, ok)
	assert.Equal(t, shutdown.Reboot, st)

	_, ok = ShutdownType(0)
	assert.False(t, ok)
}
