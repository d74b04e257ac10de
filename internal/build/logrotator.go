package build

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jrick/logrotate/rotator"
)

const (
	// DefaultMaxLogFiles is the default number of rotated log files kept
	// on disk.
	DefaultMaxLogFiles = 5

	// DefaultMaxLogFileSize is the default maximum log file size in MB
	// before rotation occurs.
	DefaultMaxLogFileSize = 10

	// DefaultLogFilename is the log file name used when no custom name
	// is configured.
	DefaultLogFilename = "notifierd.log"
)

// FileLoggerConfig holds the settings for the rotating log file sink.
type FileLoggerConfig struct {
	// LogDir is the directory where log files are written.
	LogDir string

	// MaxLogFiles is the number of rotated files to keep. Zero disables
	// rotation and lets a single file grow unbounded.
	MaxLogFiles int

	// MaxLogFileSize is the file size in megabytes that triggers a
	// rotation.
	MaxLogFileSize int

	// Filename overrides DefaultLogFilename when set.
	Filename string
}

// DefaultFileLoggerConfig returns a FileLoggerConfig with sane defaults.
func DefaultFileLoggerConfig(logDir string) *FileLoggerConfig {
	return &FileLoggerConfig{
		LogDir:         logDir,
		MaxLogFiles:    DefaultMaxLogFiles,
		MaxLogFileSize: DefaultMaxLogFileSize,
		Filename:       DefaultLogFilename,
	}
}

// RotatingLogWriter is an io.Writer that feeds a jrick/logrotate rotator
// through a pipe. Rotated files are gzip compressed.
type RotatingLogWriter struct {
	pipe    *io.PipeWriter
	rotator *rotator.Rotator
}

// NewRotatingLogWriter creates the log directory, sets up the rotator with
// the configured size limits, and starts the rotator goroutine.
func NewRotatingLogWriter(cfg *FileLoggerConfig) (*RotatingLogWriter, error) {
	filename := cfg.Filename
	if filename == "" {
		filename = DefaultLogFilename
	}
	logFile := filepath.Join(cfg.LogDir, filename)

	if err := os.MkdirAll(filepath.Dir(logFile), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w",
			err)
	}

	// The rotator takes its threshold in KB while the config is in MB.
	rot, err := rotator.New(
		logFile, int64(cfg.MaxLogFileSize*1024), false, cfg.MaxLogFiles,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create file rotator: %w",
			err)
	}
	rot.SetCompressor(gzip.NewWriter(nil), ".gz")

	// Errors go to stderr since the rotator itself is the log
	// destination.
	pr, pw := io.Pipe()
	go func() {
		if err := rot.Run(pr); err != nil {
			_, _ = fmt.Fprintf(
				os.Stderr,
				"failed to run file rotator: %v\n", err,
			)
		}
	}()

	return &RotatingLogWriter{pipe: pw, rotator: rot}, nil
}

// Write writes the byte slice to the rotator pipe.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	return r.pipe.Write(b)
}

// Close closes the pipe writer, which signals the rotator goroutine to
// flush and exit.
func (r *RotatingLogWriter) Close() error {
	return r.pipe.Close()
}
