package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	logMaxSizeMB  = 20
	logMaxBackups = 10
	logMaxAgeDays = 30
)

// NewLogWriter opens a size-rotated log file under dir. Rotation keeps
// disk usage bounded without an external logrotate; old files compress.
func NewLogWriter(dir string) (io.WriteCloser, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   filepath.Join(dir, "server.log"),
		MaxSize:    logMaxSizeMB,
		MaxBackups: logMaxBackups,
		MaxAge:     logMaxAgeDays,
		Compress:   true,
	}, nil
}
