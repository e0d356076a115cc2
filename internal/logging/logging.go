package logging

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/Yarik9008/GroundLinkMonitorClient/internal/config"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/faults"
	"github.com/Yarik9008/GroundLinkMonitorClient/internal/filesystem"
)

// Setup initializes structured logging with file and console output. The log
// file carries the client name so stations uploading from the same host keep
// separate histories.
func Setup(level, clientName string) error {
	// Create logs directory if it doesn't exist
	if err := filesystem.EnsureDirectoryExists("logs"); err != nil {
		return err
	}

	// Create log file with client name and timestamp
	logFileName := filepath.Join("logs",
		"groundlink_"+clientName+"_"+time.Now().Format("20060102_150405")+".log")

	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: false, // Remove file names and line numbers
	}

	logFile, err := os.Create(logFileName)
	if err != nil {
		// Continue with console logging only
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))
		slog.Warn("Failed to create log file, using console only", "error", err)
		return nil
	}

	// Log to both console and file
	multiWriter := io.MultiWriter(os.Stdout, logFile)

	// Use text handler for better console readability
	handler := slog.NewTextHandler(multiWriter, opts)
	slog.SetDefault(slog.New(handler))

	slog.Info("Logging initialized", "log_file", logFileName, "level", level)
	return nil
}

// parseLevel maps a config level name to a slog level, defaulting to info.
func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogConfig logs the current configuration
func LogConfig(cfg *config.Config) {
	slog.Info("Configuration loaded",
		"server_address", cfg.ServerAddress,
		"client_name", cfg.ClientName,
		"chunk_size_mb", float64(cfg.ChunkSize)/(1024*1024),
		"watermark_high_mb", float64(cfg.HighWatermark)/(1024*1024),
		"watermark_low_mb", float64(cfg.LowWatermark)/(1024*1024),
		"max_retries", cfg.MaxRetries,
		"retry_delay", cfg.RetryDelay,
		"tls", cfg.UseTLS)

	if cfg.UploadMode() {
		// Get file size if the file exists, but don't log the path
		var fileSizeMB float64
		if fileInfo, err := os.Stat(cfg.FilePath); err == nil {
			fileSizeMB = float64(fileInfo.Size()) / (1024 * 1024)
		}

		slog.Info("Upload configuration",
			"file_size_mb", fileSizeMB,
			"estimated_chunks", int64(fileSizeMB*1024*1024)/cfg.ChunkSize,
			"connect_timeout", cfg.ConnectTimeout,
			"offset_timeout", cfg.OffsetTimeout,
			"response_timeout", cfg.ResponseTimeout,
			"drain_timeout", cfg.DrainTimeout)
	}
}

// LogError logs an error with appropriate context
func LogError(err error, context string) {
	if errors.Is(err, faults.ErrRejected) {
		slog.Error("Upload rejected by server",
			"context", context,
			"error", err,
			"error_type", "rejected")
		return
	}

	switch e := err.(type) {
	case *faults.TimeoutError:
		slog.Error("Timeout fault",
			"context", context,
			"operation", e.Op,
			"timeout", e.Timeout,
			"error_type", "timeout")
	case *faults.TransportError:
		slog.Error("Transport fault",
			"context", context,
			"operation", e.Op,
			"address", e.Addr,
			"error_type", "transport")
	case *faults.ProtocolError:
		slog.Error("Protocol fault",
			"context", context,
			"operation", e.Op,
			"message", e.Message,
			"error_type", "protocol")
	case *faults.SizeMismatchError:
		slog.Error("Size mismatch fault",
			"context", context,
			"operation", e.Op,
			"expected_bytes", e.Want,
			"sent_bytes", e.Got,
			"error_type", "size_mismatch")
	case *faults.FileSystemError:
		slog.Error("File system fault",
			"context", context,
			"operation", e.Op,
			"path", e.Path,
			"error_type", "filesystem")
	default:
		slog.Error("Unhandled error",
			"context", context,
			"error", err,
			"error_type", "unknown")
	}
}

// LogUploadProgress logs transfer progress information
func LogUploadProgress(filename string, transferred, total int64, rate float64) {
	percent := float64(transferred) / float64(total) * 100
	slog.Info("Upload progress",
		"file", filename,
		"transferred_mb", float64(transferred)/(1024*1024),
		"total_mb", float64(total)/(1024*1024),
		"percent_complete", percent,
		"transfer_rate_mbps", rate,
		"remaining_mb", float64(total-transferred)/(1024*1024))
}

// LogUploadComplete logs successful upload completion
func LogUploadComplete(filename string, size int64, attempts int, duration time.Duration) {
	rate := float64(size) / (1024 * 1024) / duration.Seconds()
	slog.Info("Upload completed successfully",
		"file", filename,
		"total_size_mb", float64(size)/(1024*1024),
		"attempts", attempts,
		"duration_seconds", int(duration.Seconds()),
		"average_rate_mbps", rate)
}
