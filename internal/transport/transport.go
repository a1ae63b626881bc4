// Package transport implements the Transport & Dispatch layer: Content-
// Length-framed JSON-RPC over stdio or TCP, request dispatch to the
// Editor-Query Providers, and response/notification serialization back to
// the client.
//
// Framing grounded verbatim on the teacher's LSPServer.ServeStdio
// (internal/mangle/lsp.go): read a "Content-Length: N\r\n" header line,
// skip the blank separator line, read exactly N bytes, unmarshal. The
// teacher serves one request at a time off a single stdin reader; this
// package keeps that single-reader discipline, runs notifications inline on
// it, and dispatches requests onto a bounded Request pool so a slow provider
// call on one URI does not hold up the reader (§5, ordering guarantee 2:
// per-URI ordering only, not global ordering).
package transport

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/tomaszrup/groovy-language-server-sub006/internal/logging"
	"github.com/tomaszrup/groovy-language-server-sub006/internal/protocol"
)

// Channel is the framed read/write surface a Server drives. NewStdioChannel
// and ListenTCP both return a frameChannel (§6: "stdio or TCP socket").
type Channel interface {
	ReadRequest() (*protocol.Request, error)
	WriteMessage(v any) error
	Close() error
}

// frameChannel implements Content-Length framing over any ReadWriteCloser,
// shared by both the stdio and TCP channels (§6).
type frameChannel struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer
	wmu    sync.Mutex
}

func newFrameChannel(r io.Reader, w io.Writer, c io.Closer) *frameChannel {
	return &frameChannel{reader: bufio.NewReader(r), writer: w, closer: c}
}

// ReadRequest blocks for the next framed message and decodes it as a
// Request. io.EOF is returned verbatim so callers can treat a closed input
// stream as a clean shutdown, matching the teacher's ServeStdio.
func (f *frameChannel) ReadRequest() (*protocol.Request, error) {
	var contentLength = -1
	for {
		header, err := f.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		header = strings.TrimRight(header, "\r\n")
		if header == "" {
			break
		}
		if strings.HasPrefix(header, "Content-Length:") {
			lengthStr := strings.TrimSpace(strings.TrimPrefix(header, "Content-Length:"))
			n, err := strconv.Atoi(lengthStr)
			if err != nil {
				return nil, fmt.Errorf("transport: invalid Content-Length %q: %w", lengthStr, err)
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, fmt.Errorf("transport: message with no Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(f.reader, body); err != nil {
		return nil, err
	}

	var req protocol.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("transport: decode request: %w", err)
	}
	return &req, nil
}

// WriteMessage serializes v and frames it with a Content-Length header.
// Safe for concurrent callers: every dispatched request's handler goroutine
// writes its own response directly, so writes are serialized here rather
// than funneled through one extra channel.
func (f *frameChannel) WriteMessage(v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.wmu.Lock()
	defer f.wmu.Unlock()
	if _, err := fmt.Fprintf(f.writer, "Content-Length: %d\r\n\r\n", len(body)); err != nil {
		return err
	}
	_, err = f.writer.Write(body)
	return err
}

func (f *frameChannel) Close() error {
	if f.closer != nil {
		return f.closer.Close()
	}
	return nil
}

// logClose closes c, logging (not returning) any error — used from defer
// sites where the read loop has already decided how to exit.
func logClose(c Channel) {
	if err := c.Close(); err != nil {
		logging.Transport("error closing channel: %v", err)
	}
}
