// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config controls the logger.
type Config struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Rotation limits for --log-file.
const (
	maxSizeMB  = 10
	maxBackups = 5
	maxAgeDays = 30
)

// ParseLevel parses a level name; empty means info.
func ParseLevel(level string) (log.Level, error) {
	if level == "" {
		return log.InfoLevel, nil
	}
	switch strings.ToLower(level) {
	case "debug":
		return log.DebugLevel, nil
	case "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level: %s", level)
	}
}

// Setup configures the standard logger to write to stderr and, when cfg.File
// is set, to a rotated log file. The returned closer flushes the file.
func Setup(cfg Config, stderr io.Writer) (io.Closer, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	log.SetLevel(level)
	log.SetFormatter(&log.TextFormatter{
		DisableTimestamp: level != log.DebugLevel,
		FullTimestamp:    true,
	})

	if cfg.File == "" {
		log.SetOutput(stderr)
		return io.NopCloser(nil), nil
	}

	file := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
	}
	log.SetOutput(io.MultiWriter(stderr, file))
	return file, nil
}

// Default resets the logger to info on stderr.
func Default() {
	log.SetLevel(log.InfoLevel)
	log.SetOutput(os.Stderr)
}
