package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherEmitsChangedSourceFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "A.cs")
	require.NoError(t, os.WriteFile(path, []byte("class A {}"), 0o644))

	w, err := New(dir, []string{".cs"}, 30*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("class A { int F() => 2; }"), 0o644))

	select {
	case got := <-w.Events():
		assert.Equal(t, path, got)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for watcher event")
	}
}

func TestWatcherIgnoresUnwatchedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0o644))

	w, err := New(dir, []string{".cs"}, 30*time.Millisecond, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("changed"), 0o644))

	select {
	case got := <-w.Events():
		t.Fatalf("unexpected event for non-source file: %s", got)
	case <-time.After(200 * time.Millisecond):
	}
}
