// Package engine streams a region of a local file to the collector. It owns
// chunking and backpressure; connection lifecycle and retries stay with the
// upload session.
package engine

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/progress"
)

// DefaultChunkSize amortizes syscall overhead on large captures.
const DefaultChunkSize = 4 * 1024 * 1024

// Stream is the outbound half of a connection as the engine sees it: queue
// bytes, ask whether the queue has grown past the high watermark, and flush.
// *transport.Conn implements it.
type Stream interface {
	Write(p []byte) error
	NeedsDrain() bool
	Drain() error
}

// Engine holds the chunking parameters for file transfers.
type Engine struct {
	chunkSize  int64
	fileBuffer int
}

// New creates an engine reading chunkSize bytes per iteration through a file
// buffer of fileBuffer bytes. Non-positive values fall back to defaults.
func New(chunkSize int64, fileBuffer int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{chunkSize: chunkSize, fileBuffer: fileBuffer}
}

// Send streams size bytes of f starting at offset into dst and reports how
// many bytes were actually queued. The source running dry early is not an
// error here: the caller compares the returned count against size and treats
// a mismatch as a short-send fault.
//
// Backpressure: the stream is drained only when its queue exceeds the high
// watermark, so most chunks cost no suspension. One final unconditional
// drain guarantees every byte has been handed to the transport before the
// caller starts waiting for the peer's verdict.
func (e *Engine) Send(ctx context.Context, dst Stream, f *os.File, size, offset int64, sink progress.Sink) (int64, error) {
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return 0, faults.NewFileSystemError("seek", f.Name(), err)
	}

	var src io.Reader = f
	if e.fileBuffer > 0 {
		src = bufio.NewReaderSize(f, e.fileBuffer)
	}

	buf := make([]byte, e.chunkSize)
	var sent int64

	for sent < size {
		if err := ctx.Err(); err != nil {
			return sent, err
		}

		n := e.chunkSize
		if remaining := size - sent; remaining < n {
			n = remaining
		}

		read, err := io.ReadFull(src, buf[:n])
		if read > 0 {
			if werr := dst.Write(buf[:read]); werr != nil {
				return sent, werr
			}
			sent += int64(read)
			sink.Add(int64(read))

			if dst.NeedsDrain() {
				if derr := dst.Drain(); derr != nil {
					return sent, derr
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Source exhausted before size bytes: stop and let the
				// caller judge the count.
				break
			}
			return sent, faults.NewFileSystemError("read", f.Name(), err)
		}
	}

	if err := dst.Drain(); err != nil {
		return sent, err
	}
	return sent, nil
}
