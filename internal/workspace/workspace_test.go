package workspace

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hotreload/internal/compiler/fakecompiler"
	"github.com/c360studio/hotreload/internal/solution"
)

type fakeOpener struct {
	sol solution.Solution
	err error
}

func (f *fakeOpener) Open(context.Context, string) (solution.Solution, error) {
	return f.sol, f.err
}

func TestHolderAwaitResolvesAfterInit(t *testing.T) {
	sol := solution.Solution{Projects: []solution.Project{{ID: "p1"}}}
	h := NewHolder(&fakeOpener{sol: sol}, &fakecompiler.Service{}, nil)

	h.Init(context.Background(), "/app")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	result, err := h.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, sol, result.Solution)
	assert.NotNil(t, result.Service)
}

func TestHolderAwaitPropagatesOpenError(t *testing.T) {
	h := NewHolder(&fakeOpener{err: fmt.Errorf("boom")}, &fakecompiler.Service{}, nil)
	h.Init(context.Background(), "/app")

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := h.Await(ctx)
	assert.Error(t, err)
}

func TestHolderInitIsIdempotent(t *testing.T) {
	opener := &fakeOpener{sol: solution.Solution{}}
	h := NewHolder(opener, &fakecompiler.Service{}, nil)

	h.Init(context.Background(), "/app")
	h.Init(context.Background(), "/other") // second call must be a no-op

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := h.Await(ctx)
	require.NoError(t, err)
}

func TestHolderDisposeIsSafeBeforeAndAfterInit(t *testing.T) {
	h := NewHolder(&fakeOpener{}, &fakecompiler.Service{}, nil)
	h.Dispose(context.Background())

	h.Init(context.Background(), "/app")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _ = h.Await(ctx)
	h.Dispose(context.Background())
	h.Dispose(context.Background())
}
