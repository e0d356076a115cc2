/*
GroundLinkMonitorClient streams recorded telemetry and flight logs from a
ground station to the collector over a resumable length-prefixed protocol.
The collector reports how many bytes it already holds, the client sends only
the remainder, so an interrupted uplink costs each byte at most once.

The program runs in one of three modes:

1. Upload (default): send the file given with -file, reconnecting and
resuming through transport faults until the collector delivers a verdict

2. Sweep (-sweep): prune empty directories left behind by rotated recordings

3. History (-history): print recent uploads from the local journal
*/
package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/config"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/engine"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/filesystem"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/fingerprint"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/journal"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/logging"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/progress"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/transport"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/uploader"
)

func main() {
	// Parse command line arguments
	cfg, err := config.ParseFlags()
	if err != nil {
		slog.Error("Configuration error", "error", err)
		os.Exit(1)
	}

	// Setup structured logging
	if err := logging.Setup(cfg.LogLevel, cfg.ClientName); err != nil {
		slog.Error("Failed to setup logging", "error", err)
		os.Exit(1)
	}

	// Log configuration
	logging.LogConfig(cfg)

	// Run in appropriate mode
	switch {
	case cfg.SweepDir != "":
		os.Exit(runSweep(cfg))
	case cfg.HistoryCount > 0:
		os.Exit(runHistory(cfg))
	default:
		os.Exit(runUpload(cfg))
	}
}

// runUpload sends one file to the collector and reports the verdict through
// the exit code: 0 only when the server confirmed the upload.
func runUpload(cfg *config.Config) int {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	setupSignalHandling(cancel)

	info, err := filesystem.GetFileInfo(cfg.FilePath)
	if err != nil {
		logging.LogError(err, "upload")
		return 1
	}

	// The journal is best effort: a broken history database must never block
	// a transfer. An empty -journal path disables it entirely.
	var jnl *journal.Journal
	if cfg.JournalPath != "" {
		if j, err := journal.Open(cfg.JournalPath); err != nil {
			slog.Warn("Upload journal unavailable, continuing without history",
				"path", cfg.JournalPath, "error", err)
		} else {
			jnl = j
			defer jnl.Close()
		}
	}

	runID := uuid.NewString()
	if jnl != nil {
		// The fingerprint is deterministic, so the row carries the same
		// upload identity the session will announce on the wire.
		uploadID, err := fingerprint.Compute(cfg.ClientName, info.Name, uint64(info.Size), cfg.FilePath)
		if err != nil {
			logging.LogError(err, "upload")
			return 1
		}
		if err := jnl.Begin(ctx, runID, uploadID, info.Name, info.Size); err != nil {
			slog.Warn("Failed to journal upload start", "error", err)
		}
	}

	var dialer transport.Dialer
	if cfg.UseTLS {
		dialer = &transport.TLSDialer{
			Timeout:      cfg.ConnectTimeout,
			SocketBuffer: cfg.SocketBuffer,
			Config:       &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify},
		}
	} else {
		dialer = &transport.TCPDialer{
			Timeout:      cfg.ConnectTimeout,
			SocketBuffer: cfg.SocketBuffer,
		}
	}

	var (
		sink     progress.Sink = progress.Nop{}
		reporter *progress.Reporter
	)
	if cfg.ShowProgress {
		tracker := progress.NewTracker(info.Name, info.Size)
		reporter = progress.NewReporter(tracker)
		reporter.Start()
		sink = tracker
	}

	session := uploader.New(cfg, dialer, engine.New(cfg.ChunkSize, cfg.FileBuffer), sink)
	res, err := session.Upload(ctx, cfg.FilePath)

	if reporter != nil {
		reporter.Stop()
	}

	// Record the terminal state even when the context is gone: an operator
	// pressing Ctrl-C still wants the aborted row in the history.
	if jnl != nil {
		outcome := "aborted"
		if err == nil {
			outcome = res.Outcome.String()
		}
		errText := ""
		if res.Err != nil {
			errText = res.Err.Error()
		}
		if ferr := jnl.Finish(context.Background(), runID, outcome, res.Attempts, res.BytesSent, errText); ferr != nil {
			slog.Warn("Failed to journal upload result", "error", ferr)
		}
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("Upload aborted", "error", err)
		} else {
			logging.LogError(err, "upload")
		}
		return 1
	}

	if res.Outcome == uploader.OutcomeSuccess {
		logging.LogUploadComplete(info.Name, info.Size, res.Attempts, res.Elapsed)
		return 0
	}

	if res.Err != nil {
		logging.LogError(res.Err, "upload")
	}
	slog.Error("Upload failed",
		"outcome", res.Outcome.String(),
		"attempts", res.Attempts,
		"bytes_sent", res.BytesSent)
	return 1
}

// runSweep removes empty directories under the sweep root, keeping the root
// itself. Exit code 2 flags partial failures so cron jobs notice them.
func runSweep(cfg *config.Config) int {
	removed, failed, err := filesystem.RemoveEmptyDirs(cfg.SweepDir, cfg.SweepDryRun)
	if err != nil {
		logging.LogError(err, "sweep")
		return 2
	}

	slog.Info("Sweep finished",
		"root", cfg.SweepDir,
		"removed", removed,
		"failed", failed,
		"dry_run", cfg.SweepDryRun)

	if failed > 0 {
		return 2
	}
	return 0
}

// runHistory prints the most recent uploads from the local journal.
func runHistory(cfg *config.Config) int {
	if cfg.JournalPath == "" {
		slog.Error("History needs a journal, but -journal is empty")
		return 1
	}

	jnl, err := journal.Open(cfg.JournalPath)
	if err != nil {
		slog.Error("Cannot open upload journal", "path", cfg.JournalPath, "error", err)
		return 1
	}
	defer jnl.Close()

	records, err := jnl.Recent(context.Background(), cfg.HistoryCount)
	if err != nil {
		slog.Error("Cannot read upload journal", "error", err)
		return 1
	}
	if len(records) == 0 {
		fmt.Println("No uploads recorded yet.")
		return 0
	}

	for _, r := range records {
		fmt.Printf("%s  %-24s  %12d  %-18s  attempts=%d  sent=%d\n",
			r.StartedAt.Format("2006-01-02 15:04:05"),
			r.Filename, r.Size, r.Outcome, r.Attempts, r.BytesSent)
		if r.Error != "" {
			fmt.Printf("    error: %s\n", r.Error)
		}
	}
	return 0
}

// setupSignalHandling cancels the upload context on SIGINT/SIGTERM so the
// session shuts down cleanly and the journal records the abort.
func setupSignalHandling(cancel context.CancelFunc) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-signals
		slog.Info("Received shutdown signal", "signal", sig)
		cancel()
	}()
}
