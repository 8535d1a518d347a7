package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, path string) <-chan Op {
	t.Helper()
	events := make(chan Op, 16)
	w, err := New(path, func(op Op) { events <- op })
	require.NoError(t, err)
	w.SetDebounce(20 * time.Millisecond)
	require.NoError(t, w.Start())
	t.Cleanup(func() { _ = w.Stop() })
	return events
}

func waitFor(t *testing.T, events <-chan Op, want Op) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case op := <-events:
			if op == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func TestWatcher_Changed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0600))
	events := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("b"), 0600))
	waitFor(t, events, Changed)
}

func TestWatcher_CreatedLater(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	events := startWatcher(t, path)

	require.NoError(t, os.WriteFile(path, []byte("{}"), 0600))
	waitFor(t, events, Changed)
}

func TestWatcher_Deleted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0600))
	events := startWatcher(t, path)

	require.NoError(t, os.Remove(path))
	waitFor(t, events, Deleted)
}

func TestWatcher_IgnoresSiblings(t *testing.T) {
	dir := t.TempDir()
	events := startWatcher(t, filepath.Join(dir, "rules.yaml"))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0600))
	select {
	case op := <-events:
		t.Fatalf("unexpected event %s", op)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(filepath.Join(t.TempDir(), "x"), nil)
	require.NoError(t, err)
	require.NoError(t, w.Start())
	require.NoError(t, w.Start())
	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop())
}

func TestOpString(t *testing.T) {
	assert.Equal(t, "changed", Changed.String())
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "unknown", Op(0).String())
}
