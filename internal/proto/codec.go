package proto

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"
)

// ErrInterrupted is returned by ReadLine once Interrupt has been called.
var ErrInterrupted = errors.New("read interrupted")

// Encode frames text as newline-terminated output. Text that already spans
// several lines is sent as-is, one frame per line.
func Encode(text string) []byte {
	text = strings.TrimRight(text, "\r\n")
	buf := make([]byte, 0, len(text)+1)
	buf = append(buf, text...)
	return append(buf, '\n')
}

// Decode cleans one raw frame: trailing CR, LF and NUL bytes are dropped.
func Decode(raw []byte) string {
	return string(bytes.TrimRight(raw, "\r\n\x00"))
}

// LineReader splits a byte stream on '\n'. Lines longer than max bytes are
// truncated and the remainder up to the next newline is discarded.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. max <= 0 selects a 4 KiB bound.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = 4096
	}
	size := max + 1
	if size < 16 {
		size = 16
	}
	return &LineReader{r: bufio.NewReaderSize(r, size), max: max}
}

// ReadLine returns the next line without its terminator. A final unterminated
// line is returned before io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	raw, err := lr.r.ReadSlice('\n')
	switch {
	case err == nil:
	case errors.Is(err, bufio.ErrBufferFull):
		line := Clip(Decode(raw), lr.max)
		if derr := lr.discardLine(); derr != nil && !errors.Is(derr, io.EOF) {
			return "", derr
		}
		return line, nil
	case errors.Is(err, io.EOF) && len(raw) > 0:
		return Clip(Decode(raw), lr.max), nil
	default:
		return "", err
	}
	return Clip(Decode(raw), lr.max), nil
}

func (lr *LineReader) discardLine() error {
	for {
		_, err := lr.r.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		return err
	}
}

// Clip shortens line to at most max bytes without splitting a UTF-8 sequence.
func Clip(line string, max int) string {
	if max <= 0 || len(line) <= max {
		return line
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(line[cut]) {
		cut--
	}
	return line[:cut]
}

// LineConn adapts a net.Conn to line-at-a-time reads and serialized writes.
// Writes may come from any goroutine; reads belong to the owning session.
type LineConn struct {
	conn         net.Conn
	reader       *LineReader
	writeTimeout time.Duration

	writeMu     sync.Mutex
	interrupted atomic.Bool
	closeOnce   sync.Once
	closeErr    error
}

// NewLineConn wraps conn. writeTimeout <= 0 disables write deadlines.
func NewLineConn(conn net.Conn, maxLine int, writeTimeout time.Duration) *LineConn {
	return &LineConn{
		conn:         conn,
		reader:       NewLineReader(conn, maxLine),
		writeTimeout: writeTimeout,
	}
}

// ReadLine blocks until a full line arrives, the peer goes away or Interrupt is called.
func (c *LineConn) ReadLine() (string, error) {
	if c.interrupted.Load() {
		return "", ErrInterrupted
	}
	line, err := c.reader.ReadLine()
	if err != nil {
		if c.interrupted.Load() {
			return "", ErrInterrupted
		}
		return "", err
	}
	return line, nil
}

// WriteLine sends text as one or more framed lines in a single write.
func (c *LineConn) WriteLine(text string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := c.conn.Write(Encode(text))
	return err
}

// Interrupt unblocks a pending ReadLine without closing the connection, so
// queued writes can still reach the peer.
func (c *LineConn) Interrupt() {
	c.interrupted.Store(true)
	_ = c.conn.SetReadDeadline(time.Now())
}

// Close closes the underlying connection once; later calls return the first result.
func (c *LineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

// RemoteAddr returns the peer address as text.
func (c *LineConn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}
