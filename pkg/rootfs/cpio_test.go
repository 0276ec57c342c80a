package rootfs

import (
	"bytes"
	"io"
	"testing"

	"github.com/cavaliergopher/cpio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type archiveEntry struct {
	header *cpio.Header
	body   []byte
}

// readArchive collects every entry of a newc archive, keyed by name.
func readArchive(t *testing.T, data []byte) map[string]archiveEntry {
	t.Helper()
	entries := make(map[string]archiveEntry)

	r := cpio.NewReader(bytes.NewReader(data))
	for {
		header, err := r.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		body, err := io.ReadAll(r)
		require.NoError(t, err)
		entries[header.Name] = archiveEntry{header, body}
	}
	return entries
}

func TestWriteCPIO(t *testing.T) {
	var buf bytes.Buffer
	tree := sampleTree()
	require.NoError(t, tree.WriteCPIO(&buf))

	entries := readArchive(t, buf.Bytes())

	inittab, ok := entries["etc/inittab"]
	require.True(t, ok, "archive missing etc/inittab")
	assert.Equal(t, tree.Inittab, inittab.body)
	assert.EqualValues(t, 0o644|cpio.TypeReg, inittab.header.Mode, "mode")

	script, ok := entries["etc/init.d/network"]
	require.True(t, ok, "archive missing etc/init.d/network")
	assert.Equal(t, tree.Scripts["network"], script.body)
	assert.EqualValues(t, 0o755|cpio.TypeReg, script.header.Mode, "mode")

	link, ok := entries["etc/rc.d/rc3.d/S10network"]
	require.True(t, ok, "archive missing runlevel link")
	assert.EqualValues(t, 0o777|cpio.TypeSymlink, link.header.Mode, "mode")
	assert.Equal(t, "../../init.d/network", link.header.Linkname)

	for _, dir := range []string{"etc", "etc/init.d", "proc", "sys"} {
		entry, ok := entries[dir]
		require.True(t, ok, "archive missing directory %s", dir)
		assert.EqualValues(t, 0o755|cpio.TypeDir, entry.header.Mode, "mode")
	}
}

func TestWriteCPIOReproducible(t *testing.T) {
	var a, b bytes.Buffer
	require.NoError(t, sampleTree().WriteCPIO(&a))
	require.NoError(t, sampleTree().WriteCPIO(&b))
	assert.Equal(t, a.Bytes(), b.Bytes())
}

func TestWriteCPIORejectsInvalidTree(t *testing.T) {
	tree := sampleTree()
	tree.Links[0].Runlevel = "x"

	var buf bytes.Buffer
	assert.Error(t, tree.WriteCPIO(&buf))
}
