package pipeendpoint

import (
	"context"
	"fmt"
	"net"
)

// dial is the platform-specific client-side connect, set in listener_unix.go /
// listener_windows.go.
var dial func(ctx context.Context, name string) (net.Conn, error)

// Dial connects to the named channel as a client. It is used by the
// in-process agent to attach to the tool's pipe server at startup.
func Dial(ctx context.Context, name string) (net.Conn, error) {
	if dial == nil {
		return nil, fmt.Errorf("pipeendpoint: no platform dialer registered")
	}
	return dial(ctx, name)
}
