// Package transport owns the byte stream to the collector: dialing with a
// timeout, socket tuning, and a buffered outbound path with watermark flow
// control so a stalled peer turns into a detectable fault instead of a
// silently hung sender.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
)

// KeepAlivePeriod is the probe interval used to detect dead connections.
const KeepAlivePeriod = 30 * time.Second

// Dialer establishes the byte stream the upload protocol runs over. The
// protocol does not care whether that stream is raw TCP or TLS.
type Dialer interface {
	Dial(ctx context.Context, addr string) (net.Conn, error)
}

// TCPDialer dials a plain TCP stream and applies the transfer tuning:
// no-delay, keepalive, and enlarged socket buffers.
type TCPDialer struct {
	Timeout      time.Duration
	SocketBuffer int // requested rcv/snd buffer size; 0 keeps OS defaults
}

func (d *TCPDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	nd := net.Dialer{Timeout: d.Timeout}
	nc, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, faults.Classify("dial", addr, err)
	}
	tuneTCP(nc, d.SocketBuffer)
	return nc, nil
}

// TLSDialer dials the same tuned TCP stream wrapped in TLS. The handshake
// and certificate policy live entirely in Config; the protocol above sees
// only a byte stream.
type TLSDialer struct {
	Timeout      time.Duration
	SocketBuffer int
	Config       *tls.Config
}

func (d *TLSDialer) Dial(ctx context.Context, addr string) (net.Conn, error) {
	td := tls.Dialer{
		NetDialer: &net.Dialer{Timeout: d.Timeout},
		Config:    d.Config,
	}
	nc, err := td.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, faults.Classify("dial_tls", addr, err)
	}
	if tc, ok := nc.(*tls.Conn); ok {
		tuneTCP(tc.NetConn(), d.SocketBuffer)
	}
	return nc, nil
}

// tuneTCP applies transfer-friendly socket options. Failures are logged and
// tolerated: a connection without tuning still transfers correctly.
func tuneTCP(nc net.Conn, socketBuffer int) {
	tcp, ok := nc.(*net.TCPConn)
	if !ok {
		return
	}

	// Disable Nagle's algorithm: header and status exchanges are small and
	// latency-sensitive.
	if err := tcp.SetNoDelay(true); err != nil {
		slog.Warn("Failed to disable Nagle's algorithm", "error", err)
	}

	if err := tcp.SetKeepAlive(true); err != nil {
		slog.Warn("Failed to enable TCP keepalive", "error", err)
	} else if err := tcp.SetKeepAlivePeriod(KeepAlivePeriod); err != nil {
		slog.Warn("Failed to set TCP keepalive period", "error", err)
	}

	if socketBuffer > 0 {
		if err := tcp.SetReadBuffer(socketBuffer); err != nil {
			slog.Warn("Failed to set TCP read buffer", "error", err)
		}
		if err := tcp.SetWriteBuffer(socketBuffer); err != nil {
			slog.Warn("Failed to set TCP write buffer", "error", err)
		}
	}
}

// Options configure the buffered outbound path of a Conn.
type Options struct {
	// HighWatermark is the queued-byte level above which the sender must
	// drain before queueing more.
	HighWatermark int
	// LowWatermark is the level a drain settles to. A flush empties the
	// queue completely, which satisfies "at or below low" for any pair.
	LowWatermark int
	// WriteBuffer is the outbound queue capacity. Callers size it to at
	// least HighWatermark plus one chunk so that chunk writes never force
	// an implicit flush mid-stream.
	WriteBuffer int
	// DrainTimeout bounds every write that reaches the socket.
	DrainTimeout time.Duration
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 30 * time.Second
	}
	if opts.HighWatermark <= 0 {
		opts.HighWatermark = 32 * 1024 * 1024
	}
	if opts.LowWatermark <= 0 || opts.LowWatermark > opts.HighWatermark {
		opts.LowWatermark = opts.HighWatermark / 4
	}
	if opts.WriteBuffer < opts.HighWatermark {
		opts.WriteBuffer = 2 * opts.HighWatermark
	}
	return opts
}

// Conn is one live transport session. A session holds at most one current
// Conn; a fresh dial fully supersedes the previous one, which must already
// be closed.
type Conn struct {
	nc   net.Conn
	w    *bufio.Writer
	opts Options
	addr string
}

// NewConn wraps an established stream with the buffered outbound path.
func NewConn(nc net.Conn, opts Options) *Conn {
	o := opts.withDefaults()
	return &Conn{
		nc:   nc,
		w:    bufio.NewWriterSize(nc, o.WriteBuffer),
		opts: o,
		addr: nc.RemoteAddr().String(),
	}
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	return c.addr
}

// Write queues p on the outbound buffer. If the buffer spills to the socket
// the write is bounded by the drain deadline, so even an implicit flush on a
// dead peer surfaces as a timeout fault.
func (c *Conn) Write(p []byte) error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.opts.DrainTimeout)); err != nil {
		return faults.Classify("write", c.addr, err)
	}
	if _, err := c.w.Write(p); err != nil {
		return c.writeFault("write", err)
	}
	return nil
}

// Buffered returns the bytes queued but not yet handed to the kernel.
func (c *Conn) Buffered() int {
	return c.w.Buffered()
}

// NeedsDrain reports whether queued bytes exceed the high watermark.
func (c *Conn) NeedsDrain() bool {
	return c.w.Buffered() > c.opts.HighWatermark
}

// Drain flushes the outbound queue under the drain deadline. On return the
// queue is empty; exceeding the deadline is a timeout fault, which is what
// turns a silently stalled peer into an actionable failure.
func (c *Conn) Drain() error {
	if err := c.nc.SetWriteDeadline(time.Now().Add(c.opts.DrainTimeout)); err != nil {
		return faults.Classify("drain", c.addr, err)
	}
	if err := c.w.Flush(); err != nil {
		return c.writeFault("drain", err)
	}
	return nil
}

// ReadFull fills p from the stream or fails, bounded by timeout. op names
// the protocol step for fault context ("read_offset", "read_status").
func (c *Conn) ReadFull(op string, p []byte, timeout time.Duration) error {
	if err := c.nc.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return faults.Classify(op, c.addr, err)
	}
	if _, err := io.ReadFull(c.nc, p); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return faults.NewTimeoutError(op, timeout)
		}
		return faults.Classify(op, c.addr, err)
	}
	return nil
}

// Close tears the connection down, dropping anything still queued. By the
// time Close runs the transfer has either succeeded (queue already drained)
// or is being abandoned for a retry, so close failures are swallowed.
func (c *Conn) Close() {
	_ = c.nc.Close()
}

func (c *Conn) writeFault(op string, err error) error {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return faults.NewTimeoutError(op, c.opts.DrainTimeout)
	}
	return faults.Classify(op, c.addr, err)
}
