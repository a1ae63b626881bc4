package transport

import (
	"io"
)

// NewStdioChannel frames messages over the given stdin/stdout pair
// (os.Stdin/os.Stdout in production, in-memory pipes in tests).
func NewStdioChannel(in io.Reader, out io.Writer) Channel {
	return newFrameChannel(in, out, nil)
}
