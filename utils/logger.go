package utils

import (
	"io"
	"log"
	"os"

	"github.com/amirphl/tv-slot-pool/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger builds a logger writing to stdout, a rotating file, or both
func NewLogger(cfg config.LoggingConfig, prefix string) *log.Logger {
	return log.New(LogWriter(cfg), prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC)
}

// LogWriter returns the destination configured by LOG_OUTPUT
func LogWriter(cfg config.LoggingConfig) io.Writer {
	var file io.Writer
	if cfg.Output == "file" || cfg.Output == "both" {
		file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  false,
		}
	}

	switch cfg.Output {
	case "file":
		return file
	case "both":
		return io.MultiWriter(os.Stdout, file)
	default:
		return os.Stdout
	}
}

// DiscardLogger returns a logger that drops everything, for tests
func DiscardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
