package logging

import (
	"fmt"
	"log/slog"

	"eyescan-server/internal/utils"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// Logger provides access to both the slog handler and the tagged logger API.
type Logger struct {
	tagged *utils.Logger
}

// New creates a Logger backed by the tagged utils logger.
func New(cfg Config) (*Logger, error) {
	tagged, err := utils.NewLogger(&utils.LogCfg{
		LogLevel: cfg.Level,
		LogDir:   cfg.Dir,
		LogFile:  cfg.Filename,
	})
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	return &Logger{tagged: tagged}, nil
}

// Tagged exposes the tagged logger used across transport and domain code.
func (l *Logger) Tagged() *utils.Logger {
	return l.tagged
}

// Slog exposes the structured logger for new integrations.
func (l *Logger) Slog() *slog.Logger {
	return l.tagged.Slog()
}

// Close flushes and closes the underlying log file.
func (l *Logger) Close() error {
	return l.tagged.Close()
}
