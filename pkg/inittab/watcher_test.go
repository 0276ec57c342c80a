package inittab

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/renameio/v2"
	"github.com/stretchr/testify/require"
)

func TestWatchDetectsRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inittab")
	require.NoError(t, os.WriteFile(path, []byte("a:wait:/bin/true\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, cleanup, err := Watch(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup()) }()

	// Rename-over rewrite, the pattern that defeats a file-level watch.
	require.NoError(t, renameio.WriteFile(path, []byte("b:wait:/bin/true\n"), 0o644))

	select {
	case ev := <-ch:
		require.NoError(t, ev.Err)
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event after rewrite")
	}
}

func TestWatchDebouncesBurst(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inittab")
	require.NoError(t, os.WriteFile(path, []byte("a:wait:/bin/true\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, cleanup, err := Watch(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup()) }()

	// A burst of writes in quick succession should coalesce.
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a:wait:/bin/true\n"), 0o644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no watch event after burst")
	}

	// The burst was within one debounce window; no second event should
	// be pending shortly after the first.
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("burst produced more than one event")
		}
	case <-time.After(2 * watchDebounce):
	}
}

func TestWatchIgnoresSiblingFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inittab")
	require.NoError(t, os.WriteFile(path, []byte("a:wait:/bin/true\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, cleanup, err := Watch(ctx, path)
	require.NoError(t, err)
	defer func() { require.NoError(t, cleanup()) }()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0o644))

	select {
	case <-ch:
		t.Fatal("event emitted for unrelated file")
	case <-time.After(2 * watchDebounce):
	}
}

func TestWatchMissingDir(t *testing.T) {
	_, _, err := Watch(context.Background(), filepath.Join(t.TempDir(), "nodir", "inittab"))
	require.Error(t, err)
}

func TestWatchCleanupClosesChannel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inittab")
	require.NoError(t, os.WriteFile(path, []byte("a:wait:/bin/true\n"), 0o644))

	ch, cleanup, err := Watch(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, cleanup())

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should be closed after cleanup")
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cleanup")
	}
}
