package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

const maxLogSize = 1_000_000 // rotate at 1MB

// Setup configures the process-wide logger to append to
// <dir>/debug.log, rotating the previous file to debug.log.1 when it
// grows past maxLogSize. Diagnostic output (raw API bodies) only
// appears at debug level.
func Setup(dir, level string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05Z07:00",
	})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, "debug.log")
	rotate(path)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	log.SetOutput(f)
	return nil
}

// SetupStderr points the logger at stderr, for interactive commands.
func SetupStderr(level string) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
}

// Discard silences the logger entirely. The live dashboard owns the
// terminal, so anything written to stderr would corrupt the display.
func Discard() {
	log.SetOutput(io.Discard)
}

func rotate(path string) {
	info, err := os.Stat(path)
	if err != nil || info.Size() <= maxLogSize {
		return
	}
	backup := path + ".1"
	os.Remove(backup)
	os.Rename(path, backup)
}
