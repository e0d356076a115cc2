package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeoutError(t *testing.T) {
	err := NewTimeoutError("read_offset", 30*time.Second)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read_offset")
	assert.Contains(t, err.Error(), "30s")
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrTransport))
}

func TestTransportError(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewTransportError("dial", "localhost:8888", cause)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "dial")
	assert.Contains(t, err.Error(), "localhost:8888")
	assert.Contains(t, err.Error(), cause.Error())
	assert.True(t, errors.Is(err, ErrTransport))
	assert.True(t, errors.Is(err, cause))
}

func TestProtocolError(t *testing.T) {
	err := NewProtocolError("read_offset", "offset 11 exceeds file size 10", nil)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "read_offset")
	assert.Contains(t, err.Error(), "offset 11 exceeds file size 10")
	assert.True(t, errors.Is(err, ErrProtocol))
}

func TestSizeMismatchError(t *testing.T) {
	err := NewSizeMismatchError("send", 100, 60)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "sent 60 of 100 bytes")
	assert.True(t, errors.Is(err, ErrSizeMismatch))
}

func TestFileSystemError(t *testing.T) {
	cause := errors.New("no such file")
	err := NewFileSystemError("open", "/data/image.jpg", cause)

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "open")
	assert.Contains(t, err.Error(), "/data/image.jpg")
	assert.True(t, errors.Is(err, ErrFileSystem))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "deadline exceeded becomes timeout",
			err:  os.ErrDeadlineExceeded,
			want: ErrTimeout,
		},
		{
			name: "context deadline becomes timeout",
			err:  context.DeadlineExceeded,
			want: ErrTimeout,
		},
		{
			name: "unexpected EOF becomes protocol fault",
			err:  io.ErrUnexpectedEOF,
			want: ErrProtocol,
		},
		{
			name: "plain EOF becomes transport fault",
			err:  io.EOF,
			want: ErrTransport,
		},
		{
			name: "connection reset becomes transport fault",
			err:  fmt.Errorf("write: %w", syscall.ECONNRESET),
			want: ErrTransport,
		},
		{
			name: "broken pipe becomes transport fault",
			err:  syscall.EPIPE,
			want: ErrTransport,
		},
		{
			name: "unknown error becomes transport fault",
			err:  errors.New("weird failure"),
			want: ErrTransport,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op", "addr", tt.err)
			require.Error(t, got)
			assert.True(t, errors.Is(got, tt.want), "classified as %v", got)
		})
	}
}

func TestClassifyPassThrough(t *testing.T) {
	// Cancellation is the caller's signal, not a fault.
	assert.Equal(t, context.Canceled, Classify("op", "", context.Canceled))

	// Already classified errors keep their class and context.
	orig := NewProtocolError("read_status", "truncated frame", io.ErrUnexpectedEOF)
	assert.Equal(t, orig, Classify("other_op", "", orig))

	assert.NoError(t, Classify("op", "", nil))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", NewTimeoutError("drain", time.Second), true},
		{"transport", NewTransportError("write", "", io.EOF), true},
		{"protocol", NewProtocolError("read_offset", "truncated frame", nil), true},
		{"size mismatch", NewSizeMismatchError("send", 10, 5), true},
		{"rejection", fmt.Errorf("upload refused: %w", ErrRejected), false},
		{"file system", NewFileSystemError("open", "x", os.ErrNotExist), false},
		{"cancellation", context.Canceled, false},
		{"unclassified", errors.New("surprise"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
