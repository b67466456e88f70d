package mockserver

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/atendeindustries/tstorage-clients/highlight"
)

// loggingConn wraps a net.Conn and writes a timestamped, indented hex
// dump of every send/recv to w, mirroring the reference
// implementation's optional traffic logger.
type loggingConn struct {
	net.Conn
	id string
	w  io.Writer
}

func (c *loggingConn) Read(b []byte) (int, error) {
	n, err := c.Conn.Read(b)
	if n > 0 {
		c.logFrame("recv", b[:n])
	}
	return n, err
}

func (c *loggingConn) Write(b []byte) (int, error) {
	c.logFrame("send", b)
	return c.Conn.Write(b)
}

func (c *loggingConn) logFrame(dir string, b []byte) {
	if c.w == nil {
		return
	}
	ts := time.Now().Format(time.RFC3339Nano)
	dump := highlight.Hex(b)
	var indented strings.Builder
	for _, line := range strings.Split(dump, "\n") {
		indented.WriteString("    ")
		indented.WriteString(line)
		indented.WriteByte('\n')
	}
	fmt.Fprintf(c.w, "%s %s %s (%d bytes)\n%s", ts, c.id, dir, len(b), indented.String())
}
