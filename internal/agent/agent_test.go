package agent

import (
	"context"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/hotreload/internal/pipeendpoint"
	"github.com/c360studio/hotreload/internal/wire"
)

type fakeLocator struct {
	modules map[uuid.UUID]string
}

func (f *fakeLocator) Locate(id uuid.UUID) (string, bool) {
	m, ok := f.modules[id]
	return m, ok
}

type fakeUpdater struct {
	failOn map[string]bool
}

func (f *fakeUpdater) Update(module string, _, _, _ []byte) error {
	if f.failOn[module] {
		return fmt.Errorf("update failed for %s", module)
	}
	return nil
}

func testPipeName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("hotreload-agent-test-%d", rand.Int63())
}

func TestAgentAppliesSuccessfulBatch(t *testing.T) {
	name := testPipeName(t)
	srv := pipeendpoint.NewServer(name, nil)
	require.NoError(t, srv.Listen(context.Background()))
	defer srv.Close()

	moduleID := uuid.New()
	locator := &fakeLocator{modules: map[uuid.UUID]string{moduleID: "Program.dll"}}
	updater := &fakeUpdater{failOn: map[string]bool{}}
	a := New(name, 0, locator, updater, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	conn, err := srv.Accept(ctx)
	require.NoError(t, err)
	defer conn.Close()

	encoded, err := wire.Encode(wire.UpdatePayload{
		Deltas: []wire.UpdateDelta{{ModuleID: moduleID, ILDelta: []byte{1, 2, 3}}},
	})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	ack := make([]byte, 1)
	_, err = conn.Read(ack)
	require.NoError(t, err)
	assert.Equal(t, byte(wire.AckSuccess), ack[0])

	cancel()
	<-runErr
}

func TestAgentAcksFailedWhenModuleMissing(t *testing.T) {
	name := testPipeName(t)
	srv := pipeendpoint.NewServer(name, nil)
	require.NoError(t, srv.Listen(context.Background()))
	defer srv.Close()

	locator := &fakeLocator{modules: map[uuid.UUID]string{}}
	updater := &fakeUpdater{}
	a := New(name, 0, locator, updater, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	go func() { _ = a.Run(ctx) }()

	conn, err := srv.Accept(ctx)
	require.NoError(t, err)
	defer conn.Close()

	encoded, err := wire.Encode(wire.UpdatePayload{
		Deltas: []wire.UpdateDelta{{ModuleID: uuid.New(), ILDelta: []byte{1}}},
	})
	require.NoError(t, err)
	_, err = conn.Write(encoded)
	require.NoError(t, err)

	ack := make([]byte, 1)
	_, err = conn.Read(ack)
	require.NoError(t, err)
	assert.Equal(t, byte(wire.AckFailed), ack[0])
}
