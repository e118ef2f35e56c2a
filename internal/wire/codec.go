package wire

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// ErrMalformed is wrapped with the offending line whenever a parse helper
// rejects a message for having the wrong number of tokens or an
// unparseable field.
var ErrMalformed = errors.New("malformed protocol message")

// ErrShortRead is returned by CopyN when the source closed before n bytes
// were copied.
var ErrShortRead = errors.New("short read: connection closed before declared size was reached")

// Conn wraps a net.Conn with line-oriented read/write helpers. WriteLine
// is safe for concurrent use, since a Store's control connection is
// written from several goroutines on both ends. ReadLine and the raw
// Reader/Writer/Flush are not; each connection has a single reading
// goroutine, and raw transfers happen on connections no one else writes.
type Conn struct {
	net.Conn
	r   *bufio.Reader
	w   *bufio.Writer
	wmu sync.Mutex
}

// NewConn wraps an established connection.
func NewConn(c net.Conn) *Conn {
	return &Conn{
		Conn: c,
		r:    bufio.NewReader(c),
		w:    bufio.NewWriter(c),
	}
}

// ReadLine reads one LF-terminated line and returns it with the trailing
// newline (and any trailing carriage return) stripped.
func (c *Conn) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// WriteLine joins tokens with single spaces, appends a newline, and
// flushes immediately — matching the auto-flushing PrintWriter the
// original protocol was specified against.
func (c *Conn) WriteLine(tokens ...string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := c.w.WriteString(strings.Join(tokens, " ")); err != nil {
		return errors.Wrap(err, "write line")
	}
	if err := c.w.WriteByte('\n'); err != nil {
		return errors.Wrap(err, "write newline")
	}
	return errors.Wrap(c.w.Flush(), "flush line")
}

// Reader exposes the buffered reader for raw byte transfers that must
// follow a line (e.g. the STORE payload).
func (c *Conn) Reader() io.Reader {
	return c.r
}

// Writer exposes the buffered writer for raw byte transfers; callers must
// Flush() when finished writing a burst of unframed bytes.
func (c *Conn) Writer() io.Writer {
	return c.w
}

// Flush flushes any buffered writes.
func (c *Conn) Flush() error {
	return c.w.Flush()
}

// CopyN copies exactly n bytes from src to dst, the way bulk file
// payloads move on the client-facing port: no framing beyond the
// declared size. It distinguishes a clean EOF before n bytes arrived
// from an underlying I/O error.
func CopyN(dst io.Writer, src io.Reader, n int64) (int64, error) {
	written, err := io.CopyN(dst, src, n)
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return written, ErrShortRead
	}
	return written, err
}

// ParseJoin parses "JOIN <port>".
func ParseJoin(fields []string) (port int, err error) {
	if len(fields) != 2 {
		return 0, errors.Wrapf(ErrMalformed, "JOIN: %v", fields)
	}
	port, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, errors.Wrapf(ErrMalformed, "JOIN: bad port %q", fields[1])
	}
	return port, nil
}

// ParseStore parses "STORE <name> <size>".
func ParseStore(fields []string) (name string, size int64, err error) {
	if len(fields) != 3 {
		return "", 0, errors.Wrapf(ErrMalformed, "STORE: %v", fields)
	}
	size, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil || size < 0 {
		return "", 0, errors.Wrapf(ErrMalformed, "STORE: bad size %q", fields[2])
	}
	return fields[1], size, nil
}

// ParseNamedCommand parses "<token> <name>" shapes shared by LOAD, RELOAD,
// REMOVE, STORE_ACK, REMOVE_ACK, LOAD_DATA.
func ParseNamedCommand(fields []string) (name string, err error) {
	if len(fields) != 2 {
		return "", errors.Wrapf(ErrMalformed, "%v", fields)
	}
	return fields[1], nil
}

// ParseStoreTo parses "STORE_TO <p1> <p2> ...".
func ParseStoreTo(fields []string) (ports []int, err error) {
	if len(fields) < 2 {
		return nil, errors.Wrapf(ErrMalformed, "STORE_TO: %v", fields)
	}
	ports = make([]int, 0, len(fields)-1)
	for _, f := range fields[1:] {
		p, err := strconv.Atoi(f)
		if err != nil {
			return nil, errors.Wrapf(ErrMalformed, "STORE_TO: bad port %q", f)
		}
		ports = append(ports, p)
	}
	return ports, nil
}

// ParseLoadFrom parses "LOAD_FROM <port> <size>".
func ParseLoadFrom(fields []string) (port int, size int64, err error) {
	if len(fields) != 3 {
		return 0, 0, errors.Wrapf(ErrMalformed, "LOAD_FROM: %v", fields)
	}
	port, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, errors.Wrapf(ErrMalformed, "LOAD_FROM: bad port %q", fields[1])
	}
	size, err = strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return 0, 0, errors.Wrapf(ErrMalformed, "LOAD_FROM: bad size %q", fields[2])
	}
	return port, size, nil
}

// Fields splits a line into whitespace-separated tokens.
func Fields(line string) []string {
	return strings.Fields(line)
}
