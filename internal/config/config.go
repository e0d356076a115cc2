package config

import (
	"flag"
	"fmt"
	"time"
)

// Constants for default values
const (
	DefaultServerAddr  = "130.49.146.15:8888"
	DefaultClientName  = "R2.0S"
	DefaultLogLevel    = "info"
	DefaultJournalPath = "journal.db"

	DefaultChunkSize    = 4 * 1024 * 1024 // 4MB
	DefaultFileBuffer   = 4 * 1024 * 1024 // 4MB
	DefaultSocketBuffer = 4 * 1024 * 1024 // 4MB rcv/snd

	// Write-buffer watermarks: drain is skipped while queued bytes stay
	// below high, so the sender is not suspended on every chunk.
	DefaultHighWatermark = 32 * 1024 * 1024 // 32MB
	DefaultLowWatermark  = 8 * 1024 * 1024  // 8MB

	DefaultConnectTimeout  = 10 * time.Second
	DefaultResponseTimeout = 30 * time.Second
	DefaultOffsetTimeout   = 120 * time.Second
	DefaultDrainTimeout    = 30 * time.Second

	DefaultRetries    = 0 // 0 = retry forever
	DefaultRetryDelay = 2 * time.Second

	// File system constants
	LogDirPerms = 0755
)

// Config holds all configuration parameters for the application
type Config struct {
	// Connection settings
	ServerAddress string
	ClientName    string
	FilePath      string
	LogLevel      string

	// Performance settings
	ChunkSize     int64
	FileBuffer    int
	SocketBuffer  int
	HighWatermark int
	LowWatermark  int

	// Timeouts
	ConnectTimeout  time.Duration
	ResponseTimeout time.Duration
	OffsetTimeout   time.Duration
	DrainTimeout    time.Duration

	// Retry policy
	MaxRetries int
	RetryDelay time.Duration

	// Collaborators
	ShowProgress  bool
	JournalPath   string
	UseTLS        bool
	TLSSkipVerify bool

	// Maintenance modes
	SweepDir     string
	SweepDryRun  bool
	HistoryCount int
}

// UploadMode reports whether the process should run a file upload rather
// than one of the maintenance modes.
func (c *Config) UploadMode() bool {
	return c.SweepDir == "" && c.HistoryCount == 0
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.ClientName == "" {
		return fmt.Errorf("client name is required")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive")
	}
	if c.FileBuffer <= 0 {
		return fmt.Errorf("file buffer must be positive")
	}
	if c.SocketBuffer <= 0 {
		return fmt.Errorf("socket buffer must be positive")
	}
	if c.HighWatermark <= 0 || c.LowWatermark <= 0 {
		return fmt.Errorf("watermarks must be positive")
	}
	if c.HighWatermark <= c.LowWatermark {
		return fmt.Errorf("high watermark must exceed low watermark")
	}
	if c.ConnectTimeout <= 0 || c.ResponseTimeout <= 0 || c.OffsetTimeout <= 0 || c.DrainTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("retries cannot be negative")
	}
	if c.RetryDelay <= 0 {
		return fmt.Errorf("retry delay must be positive")
	}
	if c.HistoryCount < 0 {
		return fmt.Errorf("history count cannot be negative")
	}

	if c.UploadMode() && c.FilePath == "" {
		return fmt.Errorf("file path is required in upload mode")
	}

	return nil
}

// ParseFlags parses command line arguments and returns a Config
func ParseFlags() (*Config, error) {
	// Connection flags
	serverAddr := flag.String("connect", DefaultServerAddr, "Server address to upload to")
	clientName := flag.String("name", DefaultClientName, "Client name reported to the server")
	filePath := flag.String("file", "", "File to upload")
	logLevel := flag.String("log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")

	// Performance flags
	chunkSize := flag.Int64("chunk", DefaultChunkSize, "Chunk size in bytes (4MB default)")
	fileBuffer := flag.Int("file-buffer", DefaultFileBuffer, "Read buffer for the source file in bytes")
	socketBuffer := flag.Int("net-buffer", DefaultSocketBuffer, "Socket receive/send buffer size in bytes")
	wmHigh := flag.Int("wm-high", DefaultHighWatermark, "Write-buffer high watermark in bytes")
	wmLow := flag.Int("wm-low", DefaultLowWatermark, "Write-buffer low watermark in bytes")

	// Timeout flags
	connectTimeout := flag.Duration("connect-timeout", DefaultConnectTimeout, "Connection timeout")
	responseTimeout := flag.Duration("response-timeout", DefaultResponseTimeout, "Timeout for the final status reply")
	offsetTimeout := flag.Duration("offset-timeout", DefaultOffsetTimeout, "Timeout for the resume offset reply")
	drainTimeout := flag.Duration("drain-timeout", DefaultDrainTimeout, "Timeout for flushing buffered writes")

	// Retry flags
	retries := flag.Int("retries", DefaultRetries, "Max reconnect attempts (0 = unlimited)")
	retryDelay := flag.Duration("retry-delay", DefaultRetryDelay, "Delay between reconnect attempts")

	// Collaborator flags
	showProgress := flag.Bool("progress", true, "Show progress during transfer")
	journalPath := flag.String("journal", DefaultJournalPath, "Path to the upload journal database (empty disables)")
	useTLS := flag.Bool("tls", false, "Wrap the connection in TLS")
	tlsSkipVerify := flag.Bool("tls-skip-verify", false, "Skip TLS certificate verification")

	// Maintenance flags
	sweepDir := flag.String("sweep", "", "Remove empty directories under this path and exit")
	sweepDryRun := flag.Bool("sweep-dry-run", false, "Report empty directories without removing them")
	historyCount := flag.Int("history", 0, "Print the last N journal entries and exit")

	flag.Parse()

	config := &Config{
		ServerAddress:   *serverAddr,
		ClientName:      *clientName,
		FilePath:        *filePath,
		LogLevel:        *logLevel,
		ChunkSize:       *chunkSize,
		FileBuffer:      *fileBuffer,
		SocketBuffer:    *socketBuffer,
		HighWatermark:   *wmHigh,
		LowWatermark:    *wmLow,
		ConnectTimeout:  *connectTimeout,
		ResponseTimeout: *responseTimeout,
		OffsetTimeout:   *offsetTimeout,
		DrainTimeout:    *drainTimeout,
		MaxRetries:      *retries,
		RetryDelay:      *retryDelay,
		ShowProgress:    *showProgress,
		JournalPath:     *journalPath,
		UseTLS:          *useTLS,
		TLSSkipVerify:   *tlsSkipVerify,
		SweepDir:        *sweepDir,
		SweepDryRun:     *sweepDryRun,
		HistoryCount:    *historyCount,
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// String returns a string representation of the config for logging
func (c *Config) String() string {
	retries := "unlimited"
	if c.MaxRetries > 0 {
		retries = fmt.Sprintf("%d", c.MaxRetries)
	}

	return fmt.Sprintf("Config{Server: %s, Client: %s, ChunkSize: %d, Watermarks: %d/%d, Retries: %s, TLS: %v}",
		c.ServerAddress, c.ClientName, c.ChunkSize, c.HighWatermark, c.LowWatermark, retries, c.UseTLS)
}
