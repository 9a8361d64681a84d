//go:build windows

package pipeendpoint

import (
	"context"
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
)

func init() {
	listen = listenWindows
	dial = dialWindows
}

// dialWindows connects to the named pipe, deriving a deadline from ctx
// since go-winio's DialPipeContext accepts one directly.
func dialWindows(ctx context.Context, name string) (net.Conn, error) {
	conn, err := winio.DialPipeContext(ctx, pipePath(name))
	if err != nil {
		return nil, fmt.Errorf("dial named pipe %q: %w", name, err)
	}
	return conn, nil
}

// listenWindows opens a Windows named pipe. go-winio's default pipe
// security descriptor restricts access to the creating user, matching the
// same-user-scope requirement.
func listenWindows(name string) (platformListener, error) {
	l, err := winio.ListenPipe(pipePath(name), nil)
	if err != nil {
		return nil, fmt.Errorf("listen named pipe %q: %w", name, err)
	}
	return l, nil
}

func pipePath(name string) string {
	return `\\.\pipe\` + name
}
