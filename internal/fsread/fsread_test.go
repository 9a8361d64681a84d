package fsread

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hotreload/internal/errs"
)

func stubSleep(t *testing.T) {
	t.Helper()
	orig := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = orig })
}

func TestReadTextSucceedsImmediately(t *testing.T) {
	stubSleep(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "A.cs")
	require.NoError(t, os.WriteFile(path, []byte("class A {}"), 0o644))

	text, err := ReadText(context.Background(), nil, path, nil)
	require.NoError(t, err)
	assert.Equal(t, "class A {}", text)
}

func TestReadTextFailsAfterMaxAttempts(t *testing.T) {
	stubSleep(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.cs")

	retries := 0
	_, err := ReadText(context.Background(), nil, path, func() { retries++ })
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
	assert.Equal(t, MaxAttempts, retries)
}

func TestReadTextRespectsContextCancellation(t *testing.T) {
	stubSleep(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "missing.cs")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadText(ctx, nil, path, nil)
	require.Error(t, err)
	assert.True(t, errs.IsTransient(err))
}
