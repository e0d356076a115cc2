package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// Fault classes. Callers match with errors.Is; concrete fault types below
// carry the operation context.
var (
	ErrTimeout      = errors.New("timeout fault")
	ErrTransport    = errors.New("transport fault")
	ErrProtocol     = errors.New("protocol fault")
	ErrSizeMismatch = errors.New("size mismatch fault")
	ErrRejected     = errors.New("rejected by server")
	ErrFileSystem   = errors.New("file system fault")
)

// TimeoutError reports an operation that exceeded its deadline.
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	if e.Timeout > 0 {
		return fmt.Sprintf("timeout during %s after %s", e.Op, e.Timeout)
	}
	return fmt.Sprintf("timeout during %s", e.Op)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// TransportError reports a connection-level failure: refused, reset,
// broken pipe, or any other I/O error on the stream.
type TransportError struct {
	Op   string
	Addr string
	Err  error
}

func (e *TransportError) Error() string {
	if e.Addr != "" {
		return fmt.Sprintf("transport error during %s to %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}

// ProtocolError reports a peer that violated the wire protocol: a truncated
// frame, or a resume offset beyond the declared file size.
type ProtocolError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error during %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("protocol error during %s: %s", e.Op, e.Message)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

// SizeMismatchError reports a transfer that moved fewer bytes than requested.
type SizeMismatchError struct {
	Op   string
	Want int64
	Got  int64
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("size mismatch during %s: sent %d of %d bytes", e.Op, e.Got, e.Want)
}

func (e *SizeMismatchError) Is(target error) bool {
	return target == ErrSizeMismatch
}

// FileSystemError reports a local file failure. Always a precondition
// problem, never retried.
type FileSystemError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileSystemError) Error() string {
	return fmt.Sprintf("file system error during %s on %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileSystemError) Unwrap() error {
	return e.Err
}

func (e *FileSystemError) Is(target error) bool {
	return target == ErrFileSystem
}

// Helper constructors.

func NewTimeoutError(op string, timeout time.Duration) error {
	return &TimeoutError{Op: op, Timeout: timeout}
}

func NewTransportError(op, addr string, err error) error {
	return &TransportError{Op: op, Addr: addr, Err: err}
}

func NewProtocolError(op, message string, err error) error {
	return &ProtocolError{Op: op, Message: message, Err: err}
}

func NewSizeMismatchError(op string, want, got int64) error {
	return &SizeMismatchError{Op: op, Want: want, Got: got}
}

func NewFileSystemError(op, path string, err error) error {
	return &FileSystemError{Op: op, Path: path, Err: err}
}

// Classify folds a raw I/O error into the fault taxonomy. It is called once
// at the transport boundary so that upstream code never has to pattern-match
// on platform error types.
//
// Context cancellation passes through untouched: it is the caller's signal,
// not a peer fault.
func Classify(op, addr string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	// Already classified errors pass through.
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrTransport) ||
		errors.Is(err, ErrProtocol) || errors.Is(err, ErrSizeMismatch) ||
		errors.Is(err, ErrRejected) || errors.Is(err, ErrFileSystem) {
		return err
	}

	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{Op: op}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &TimeoutError{Op: op}
	}

	// A frame that ended before its declared length is a protocol violation,
	// not a transport hiccup; io.ReadFull reports it as ErrUnexpectedEOF.
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return &ProtocolError{Op: op, Message: "truncated frame", Err: err}
	}

	// Plain EOF, resets, broken pipes, refusals and everything else on the
	// wire collapse into the single transport class.
	return &TransportError{Op: op, Addr: addr, Err: err}
}

// IsRetryable reports whether the retry loop may recover from err by
// reconnecting. Transport, timeout, protocol and size-mismatch faults are
// recoverable; a server verdict or a local file problem is not.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrRejected), errors.Is(err, ErrFileSystem):
		return false
	case errors.Is(err, ErrTimeout), errors.Is(err, ErrTransport),
		errors.Is(err, ErrProtocol), errors.Is(err, ErrSizeMismatch):
		return true
	default:
		// Unclassified errors reaching the retry loop come from the wire;
		// treat them like transport faults.
		return true
	}
}
