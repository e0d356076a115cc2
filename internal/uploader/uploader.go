// Package uploader drives one resumable upload to the collector: it
// negotiates the resume offset under a fixed upload identity, streams the
// remainder, interprets the verdict, and reconnects through transport-level
// faults until the verdict arrives or the retry budget runs out.
package uploader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/config"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/engine"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/filesystem"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/fingerprint"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/progress"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/transport"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/wire"
)

// Outcome is the terminal result of one logical upload.
type Outcome int

const (
	outcomeUnset Outcome = iota
	// OutcomeSuccess: the server confirmed it holds the whole file.
	OutcomeSuccess
	// OutcomeServerRejected: the server answered "ER". Rejections are
	// assumed deterministic (size limit, quota), so they are never retried.
	OutcomeServerRejected
	// OutcomeProtocolViolation: the server answered something that is
	// neither "OK" nor "ER". Not retried either: the exchange completed,
	// only the verdict is garbage.
	OutcomeProtocolViolation
	// OutcomeAttemptsExhausted: transport faults persisted past the retry
	// budget.
	OutcomeAttemptsExhausted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeServerRejected:
		return "rejected"
	case OutcomeProtocolViolation:
		return "protocol_violation"
	case OutcomeAttemptsExhausted:
		return "attempts_exhausted"
	default:
		return "unknown"
	}
}

// Result describes how an upload ended. BytesSent counts bytes handed to
// the transport across all attempts; with resume working, that stays close
// to the file size no matter how often the connection dropped.
type Result struct {
	Outcome   Outcome
	Attempts  int
	BytesSent int64
	Elapsed   time.Duration
	Err       error
}

// Sender streams a file region into a connection. *engine.Engine is the
// production implementation.
type Sender interface {
	Send(ctx context.Context, dst engine.Stream, f *os.File, size, offset int64, sink progress.Sink) (int64, error)
}

// Session owns the connection lifecycle for uploads against one server.
// At most one connection is live at any time; every retryable fault closes
// it before a fresh dial.
type Session struct {
	cfg    *config.Config
	dialer transport.Dialer
	sender Sender
	sink   progress.Sink

	conn *transport.Conn
}

// New creates an upload session. A nil sink disables progress reporting.
func New(cfg *config.Config, dialer transport.Dialer, sender Sender, sink progress.Sink) *Session {
	if sink == nil {
		sink = progress.Nop{}
	}
	return &Session{
		cfg:    cfg,
		dialer: dialer,
		sender: sender,
		sink:   sink,
	}
}

// Upload transfers the file at path and blocks until a terminal outcome.
//
// The returned error is non-nil only when no protocol verdict could be
// produced for local reasons: an unreadable source file or a cancelled
// context. Server rejections, garbage verdicts and an exhausted retry
// budget are reported through Result with a nil error; Result.Err then
// carries the structured reason. Intermediate reconnects surface only in
// the log and the progress sink.
func (s *Session) Upload(ctx context.Context, path string) (*Result, error) {
	res := &Result{}
	start := time.Now()
	finish := func(err error) (*Result, error) {
		res.Elapsed = time.Since(start)
		return res, err
	}

	// Preconditions run before any network activity and are never retried.
	info, err := filesystem.GetFileInfo(path)
	if err != nil {
		res.Err = err
		return finish(err)
	}
	if info.IsDir {
		err := faults.NewFileSystemError("validate", path, errors.New("not a regular file"))
		res.Err = err
		return finish(err)
	}

	fileSize := info.Size

	// Size and identity are fixed once; every reconnect announces the same
	// logical upload so the server can line its partial bytes up with ours.
	uploadID, err := fingerprint.Compute(s.cfg.ClientName, info.Name, uint64(fileSize), path)
	if err != nil {
		res.Err = err
		return finish(err)
	}
	frame := wire.EncodeHeader(wire.Header{
		ClientName: s.cfg.ClientName,
		FileSize:   uint64(fileSize),
		Filename:   info.Name,
		UploadID:   uploadID,
	})

	log := slog.With("session_id", uuid.NewString(), "file", info.Name, "upload_id", uploadID)
	log.Info("Upload starting", "size", fileSize, "server", s.cfg.ServerAddress)

	for attempt := 1; ; attempt++ {
		res.Attempts = attempt

		if cerr := ctx.Err(); cerr != nil {
			s.disconnect(log)
			res.Err = cerr
			return finish(cerr)
		}

		err := s.runAttempt(ctx, log, frame, path, fileSize, res)
		if err == nil {
			// Terminal verdict; runAttempt filled in the outcome.
			s.disconnect(log)
			return finish(nil)
		}

		// The connection is torn down on every fault so the next attempt
		// starts from a clean dial.
		s.disconnect(log)

		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			cerr := ctx.Err()
			if cerr == nil {
				cerr = err
			}
			res.Err = cerr
			return finish(cerr)
		}

		if !faults.IsRetryable(err) {
			res.Err = err
			return finish(err)
		}

		log.Warn("Transfer interrupted, reconnecting",
			"attempt", attempt, "error", err)

		if s.cfg.MaxRetries > 0 && attempt >= s.cfg.MaxRetries {
			log.Error("Retry budget exhausted", "attempts", attempt)
			res.Outcome = OutcomeAttemptsExhausted
			res.Err = err
			return finish(nil)
		}

		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return finish(ctx.Err())
		case <-time.After(s.cfg.RetryDelay):
		}
	}
}

// runAttempt performs one full pass of the protocol: header, offset,
// transfer, verdict. A nil return means a terminal verdict was reached and
// written to res; any error is a fault for the retry loop to judge.
func (s *Session) runAttempt(ctx context.Context, log *slog.Logger, frame []byte, path string, fileSize int64, res *Result) error {
	if s.conn == nil {
		if err := s.connect(ctx, log); err != nil {
			return err
		}
	}
	conn := s.conn

	// The header goes out as one contiguous write, flushed before we block
	// on the offset read.
	if err := conn.Write(frame); err != nil {
		return err
	}
	if err := conn.Drain(); err != nil {
		return err
	}

	var offsetBuf [wire.Uint64Size]byte
	if err := conn.ReadFull("read_offset", offsetBuf[:], s.cfg.OffsetTimeout); err != nil {
		return err
	}
	offset := wire.Uint64(offsetBuf[:])

	if offset > uint64(fileSize) {
		// A confused peer may straighten out on a fresh connection, so
		// this feeds the reconnect path instead of failing the upload.
		return faults.NewProtocolError("read_offset",
			fmt.Sprintf("offset %d exceeds file size %d", offset, fileSize), nil)
	}

	// Let the progress bar show completion of the whole file, counting
	// what the server already holds.
	if seeder, ok := s.sink.(interface{ Seed(int64) }); ok {
		seeder.Seed(int64(offset))
	}

	remaining := fileSize - int64(offset)
	if remaining > 0 {
		log.Info("Transferring", "offset", offset, "remaining", remaining)

		// Opened fresh per attempt: the engine seeks explicitly, nothing is
		// assumed about file positions surviving an aborted attempt.
		f, err := os.Open(path)
		if err != nil {
			return faults.NewFileSystemError("open", path, err)
		}
		sent, sendErr := s.sender.Send(ctx, conn, f, remaining, int64(offset), s.sink)
		_ = f.Close()

		res.BytesSent += sent
		if sendErr != nil {
			return sendErr
		}
		if sent != remaining {
			return faults.NewSizeMismatchError("send", remaining, sent)
		}
	} else {
		log.Info("Server already holds the full file, awaiting confirmation")
	}

	var statusBuf [wire.StatusSize]byte
	if err := conn.ReadFull("read_status", statusBuf[:], s.cfg.ResponseTimeout); err != nil {
		return err
	}

	switch status := wire.Status(statusBuf); status {
	case wire.StatusOK:
		log.Info("Server confirmed upload")
		res.Outcome = OutcomeSuccess
	case wire.StatusError:
		log.Error("Server rejected upload")
		res.Outcome = OutcomeServerRejected
		res.Err = fmt.Errorf("upload refused by server: %w", faults.ErrRejected)
	default:
		log.Warn("Unexpected status from server", "status", status.String())
		res.Outcome = OutcomeProtocolViolation
		res.Err = faults.NewProtocolError("read_status",
			"unexpected status "+status.String(), nil)
	}
	return nil
}

func (s *Session) connect(ctx context.Context, log *slog.Logger) error {
	log.Info("Connecting to server", "address", s.cfg.ServerAddress)

	nc, err := s.dialer.Dial(ctx, s.cfg.ServerAddress)
	if err != nil {
		return err
	}
	s.conn = transport.NewConn(nc, transport.Options{
		HighWatermark: s.cfg.HighWatermark,
		LowWatermark:  s.cfg.LowWatermark,
		WriteBuffer:   s.cfg.HighWatermark + int(s.cfg.ChunkSize),
		DrainTimeout:  s.cfg.DrainTimeout,
	})

	log.Info("Connection established", "remote", s.conn.RemoteAddr())
	return nil
}

func (s *Session) disconnect(log *slog.Logger) {
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
		log.Debug("Connection closed")
	}
}
