package pipeendpoint

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeName(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("hotreload-test-%d", rand.Int63())
}

func TestServerAcceptSingleClient(t *testing.T) {
	name := testPipeName(t)
	srv := NewServer(name, nil)
	require.NoError(t, srv.Listen(context.Background()))
	defer srv.Close()

	assert.Equal(t, AwaitingClient, srv.State())

	accepted := make(chan error, 1)
	go func() {
		_, err := srv.Accept(context.Background())
		accepted <- err
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	clientConn, err := Dial(ctx, name)
	require.NoError(t, err)
	defer clientConn.Close()

	require.NoError(t, <-accepted)
	assert.Equal(t, Connected, srv.State())
}

func TestServerRefusesSecondClient(t *testing.T) {
	name := testPipeName(t)
	srv := NewServer(name, nil)
	require.NoError(t, srv.Listen(context.Background()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	firstAccepted := make(chan struct{})
	go func() {
		_, _ = srv.Accept(context.Background())
		close(firstAccepted)
	}()

	first, err := Dial(ctx, name)
	require.NoError(t, err)
	defer first.Close()
	<-firstAccepted

	second, err := Dial(ctx, name)
	require.NoError(t, err)
	defer second.Close()

	_, err = srv.Accept(ctx)
	assert.Error(t, err)
}

func TestClientObservesEOFAfterServerClose(t *testing.T) {
	name := testPipeName(t)
	srv := NewServer(name, nil)
	require.NoError(t, srv.Listen(context.Background()))

	accepted := make(chan struct{})
	go func() {
		_, _ = srv.Accept(context.Background())
		close(accepted)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	client, err := Dial(ctx, name)
	require.NoError(t, err)
	defer client.Close()
	<-accepted

	require.NoError(t, srv.Close())

	buf := make([]byte, 1)
	_, err = client.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}
