package transport

import (
	"fmt"
	"net"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
)

// ListenTCP opens a listener on port and blocks until exactly one client
// connects, returning a framed Channel over that connection. The editor
// protocol's TCP mode (§6) is single-client: the server exits once that
// connection closes, same as stdio mode exits on EOF.
func ListenTCP(port int) (Channel, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return nil, fmt.Errorf("transport: listen on port %d: %w", port, err)
	}
	logging.Transport("listening on %s", ln.Addr())

	conn, err := ln.Accept()
	if err != nil {
		_ = ln.Close()
		return nil, fmt.Errorf("transport: accept: %w", err)
	}
	_ = ln.Close()
	logging.Transport("accepted connection from %s", conn.RemoteAddr())
	return newFrameChannel(conn, conn, conn), nil
}
