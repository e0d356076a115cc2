package engine

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/progress"
)

// fakeStream records writes and drains so tests can assert the chunk walk
// and the watermark gating without a socket.
type fakeStream struct {
	data      bytes.Buffer
	buffered  int
	high      int
	writes    []int
	drains    int
	failWrite error
	failDrain error
}

func (s *fakeStream) Write(p []byte) error {
	if s.failWrite != nil {
		return s.failWrite
	}
	s.writes = append(s.writes, len(p))
	s.buffered += len(p)
	s.data.Write(p)
	return nil
}

func (s *fakeStream) NeedsDrain() bool {
	return s.buffered > s.high
}

func (s *fakeStream) Drain() error {
	if s.failDrain != nil {
		return s.failDrain
	}
	s.drains++
	s.buffered = 0
	return nil
}

// countingSink tallies Add calls for progress assertions.
type countingSink struct {
	total int64
}

func (c *countingSink) Add(n int64) {
	c.total += n
}

func writeSourceFile(t *testing.T, size int64) (string, []byte) {
	t.Helper()
	content := make([]byte, size)
	_, err := rand.Read(content)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "capture.bin")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path, content
}

func openSource(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestSendChunkWalk(t *testing.T) {
	const mib = 1024 * 1024
	path, content := writeSourceFile(t, 10*mib)
	f := openSource(t, path)

	// Watermark high enough that only the final drain runs.
	stream := &fakeStream{high: 64 * mib}
	eng := New(mib, mib)

	sent, err := eng.Send(context.Background(), stream, f, 10*mib, 0, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, int64(10*mib), sent)
	assert.Len(t, stream.writes, 10)
	for _, w := range stream.writes {
		assert.Equal(t, mib, w)
	}
	assert.Equal(t, content, stream.data.Bytes())
	assert.Equal(t, 1, stream.drains)
}

func TestSendResumeRegion(t *testing.T) {
	path, content := writeSourceFile(t, 64*1024)
	f := openSource(t, path)

	const offset = 20 * 1024
	remaining := int64(len(content) - offset)

	stream := &fakeStream{high: 1 << 30}
	eng := New(8*1024, 8*1024)

	sent, err := eng.Send(context.Background(), stream, f, remaining, offset, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, remaining, sent)
	// Exactly the tail of the source, nothing before the offset.
	assert.Equal(t, content[offset:], stream.data.Bytes())
}

func TestSendShortSource(t *testing.T) {
	path, content := writeSourceFile(t, 10*1024)
	f := openSource(t, path)

	stream := &fakeStream{high: 1 << 30}
	eng := New(4*1024, 4*1024)

	// Ask for more than the file holds: the engine stops at EOF and
	// reports the true count instead of failing.
	sent, err := eng.Send(context.Background(), stream, f, 64*1024, 0, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, int64(len(content)), sent)
	assert.Less(t, sent, int64(64*1024))
	// The final drain still ran: queued bytes must reach the wire even on
	// a short source.
	assert.Equal(t, 1, stream.drains)
}

func TestSendDrainsAboveHighWatermark(t *testing.T) {
	path, _ := writeSourceFile(t, 64*1024)
	f := openSource(t, path)

	// Every 8 KiB chunk pushes the queue past the 4 KiB watermark, so
	// each chunk drains, plus the unconditional final drain.
	stream := &fakeStream{high: 4 * 1024}
	eng := New(8*1024, 8*1024)

	sent, err := eng.Send(context.Background(), stream, f, 64*1024, 0, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, int64(64*1024), sent)
	assert.Equal(t, 8+1, stream.drains)
}

func TestSendFinalDrainOnEmptyRegion(t *testing.T) {
	path, _ := writeSourceFile(t, 1024)
	f := openSource(t, path)

	stream := &fakeStream{high: 1 << 30}
	eng := New(DefaultChunkSize, 0)

	sent, err := eng.Send(context.Background(), stream, f, 0, 0, progress.Nop{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), sent)
	assert.Empty(t, stream.writes)
	assert.Equal(t, 1, stream.drains)
}

func TestSendWriteError(t *testing.T) {
	path, _ := writeSourceFile(t, 8*1024)
	f := openSource(t, path)

	cause := errors.New("broken pipe")
	stream := &fakeStream{high: 1 << 30, failWrite: cause}
	eng := New(4*1024, 0)

	sent, err := eng.Send(context.Background(), stream, f, 8*1024, 0, progress.Nop{})
	require.Error(t, err)

	// The stream's error passes through untouched: it was already
	// classified at the transport boundary.
	assert.Equal(t, cause, err)
	assert.Equal(t, int64(0), sent)
}

func TestSendDrainError(t *testing.T) {
	path, _ := writeSourceFile(t, 8*1024)
	f := openSource(t, path)

	cause := errors.New("drain timeout")
	stream := &fakeStream{high: 1 << 30, failDrain: cause}
	eng := New(4*1024, 0)

	_, err := eng.Send(context.Background(), stream, f, 8*1024, 0, progress.Nop{})
	require.Error(t, err)
	assert.Equal(t, cause, err)
}

func TestSendContextCancelled(t *testing.T) {
	path, _ := writeSourceFile(t, 8*1024)
	f := openSource(t, path)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := &fakeStream{high: 1 << 30}
	eng := New(4*1024, 0)

	sent, err := eng.Send(ctx, stream, f, 8*1024, 0, progress.Nop{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(0), sent)
	assert.Empty(t, stream.writes)
}

func TestSendReportsToSink(t *testing.T) {
	path, _ := writeSourceFile(t, 40*1024)
	f := openSource(t, path)

	sink := &countingSink{}
	stream := &fakeStream{high: 1 << 30}
	eng := New(16*1024, 0)

	sent, err := eng.Send(context.Background(), stream, f, 40*1024, 0, sink)
	require.NoError(t, err)
	assert.Equal(t, sent, sink.total)
}
