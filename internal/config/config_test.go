package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		ServerAddress:   "localhost:8888",
		ClientName:      "R2.0S",
		FilePath:        "capture.jpg",
		ChunkSize:       DefaultChunkSize,
		FileBuffer:      DefaultFileBuffer,
		SocketBuffer:    DefaultSocketBuffer,
		HighWatermark:   DefaultHighWatermark,
		LowWatermark:    DefaultLowWatermark,
		ConnectTimeout:  DefaultConnectTimeout,
		ResponseTimeout: DefaultResponseTimeout,
		OffsetTimeout:   DefaultOffsetTimeout,
		DrainTimeout:    DefaultDrainTimeout,
		MaxRetries:      DefaultRetries,
		RetryDelay:      DefaultRetryDelay,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid upload config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "valid sweep config without file",
			mutate: func(c *Config) {
				c.FilePath = ""
				c.SweepDir = "/data/decoded"
			},
			wantErr: false,
		},
		{
			name: "valid history config without file",
			mutate: func(c *Config) {
				c.FilePath = ""
				c.HistoryCount = 10
			},
			wantErr: false,
		},
		{
			name:    "missing client name",
			mutate:  func(c *Config) { c.ClientName = "" },
			wantErr: true,
			errMsg:  "client name is required",
		},
		{
			name:    "invalid chunk size",
			mutate:  func(c *Config) { c.ChunkSize = 0 },
			wantErr: true,
			errMsg:  "chunk size must be positive",
		},
		{
			name:    "invalid file buffer",
			mutate:  func(c *Config) { c.FileBuffer = -1 },
			wantErr: true,
			errMsg:  "file buffer must be positive",
		},
		{
			name:    "invalid socket buffer",
			mutate:  func(c *Config) { c.SocketBuffer = 0 },
			wantErr: true,
			errMsg:  "socket buffer must be positive",
		},
		{
			name:    "zero watermark",
			mutate:  func(c *Config) { c.LowWatermark = 0 },
			wantErr: true,
			errMsg:  "watermarks must be positive",
		},
		{
			name: "inverted watermarks",
			mutate: func(c *Config) {
				c.HighWatermark = 8 * 1024 * 1024
				c.LowWatermark = 32 * 1024 * 1024
			},
			wantErr: true,
			errMsg:  "high watermark must exceed low watermark",
		},
		{
			name:    "invalid connect timeout",
			mutate:  func(c *Config) { c.ConnectTimeout = 0 },
			wantErr: true,
			errMsg:  "timeouts must be positive",
		},
		{
			name:    "invalid drain timeout",
			mutate:  func(c *Config) { c.DrainTimeout = -time.Second },
			wantErr: true,
			errMsg:  "timeouts must be positive",
		},
		{
			name:    "negative retries",
			mutate:  func(c *Config) { c.MaxRetries = -1 },
			wantErr: true,
			errMsg:  "retries cannot be negative",
		},
		{
			name:    "invalid retry delay",
			mutate:  func(c *Config) { c.RetryDelay = 0 },
			wantErr: true,
			errMsg:  "retry delay must be positive",
		},
		{
			name:    "negative history count",
			mutate:  func(c *Config) { c.HistoryCount = -5 },
			wantErr: true,
			errMsg:  "history count cannot be negative",
		},
		{
			name:    "upload without file path",
			mutate:  func(c *Config) { c.FilePath = "" },
			wantErr: true,
			errMsg:  "file path is required in upload mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_UploadMode(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.UploadMode())

	sweep := validConfig()
	sweep.SweepDir = "/data/decoded"
	assert.False(t, sweep.UploadMode())

	history := validConfig()
	history.HistoryCount = 5
	assert.False(t, history.UploadMode())
}

func TestConfig_String(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name: "unlimited retries",
			config: Config{
				ServerAddress: "130.49.146.15:8888",
				ClientName:    "R2.0S",
				ChunkSize:     4 * 1024 * 1024,
				HighWatermark: 32 * 1024 * 1024,
				LowWatermark:  8 * 1024 * 1024,
				MaxRetries:    0,
			},
			expected: "Config{Server: 130.49.146.15:8888, Client: R2.0S, ChunkSize: 4194304, Watermarks: 33554432/8388608, Retries: unlimited, TLS: false}",
		},
		{
			name: "bounded retries with TLS",
			config: Config{
				ServerAddress: "collector:9999",
				ClientName:    "R3.1N",
				ChunkSize:     1024 * 1024,
				HighWatermark: 8 * 1024 * 1024,
				LowWatermark:  2 * 1024 * 1024,
				MaxRetries:    5,
				UseTLS:        true,
			},
			expected: "Config{Server: collector:9999, Client: R3.1N, ChunkSize: 1048576, Watermarks: 8388608/2097152, Retries: 5, TLS: true}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.config.String()
			assert.Equal(t, tt.expected, result)
		})
	}
}
