package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "logs/crawler.log"

var current atomic.Pointer[slog.Logger]

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// InitLogger builds the process logger from cfg and installs it as the slog default.
func InitLogger(cfg config.LoggerConfig) error {
	logger, err := New(cfg)
	if err != nil {
		return err
	}
	current.Store(logger)
	slog.SetDefault(logger)
	return nil
}

// New builds a logger tagged with the crawler service name without installing it.
func New(cfg config.LoggerConfig) (*slog.Logger, error) {
	sink, err := openSink(cfg)
	if err != nil {
		return nil, fmt.Errorf("open log sink: %w", err)
	}

	opts := &slog.HandlerOptions{
		Level:       parseLogLevel(cfg.Level),
		AddSource:   cfg.AddSource,
		ReplaceAttr: shortSource,
	}

	var h slog.Handler = slog.NewTextHandler(sink, opts)
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(sink, opts)
	}
	return slog.New(h).With("service", "anime-crawler"), nil
}

// GetLogger returns the installed logger, or slog's default before InitLogger.
func GetLogger() *slog.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// L returns the logger carried by ctx, falling back to GetLogger.
func L(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(contextKeyLogger).(*slog.Logger); ok {
			return l
		}
	}
	return GetLogger()
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLogLevel(level string) slog.Level {
	if l, ok := levels[strings.ToLower(level)]; ok {
		return l
	}
	return slog.LevelInfo
}

// shortSource keeps only the file name of the caller.
func shortSource(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.SourceKey {
		return a
	}
	if src, ok := a.Value.Any().(*slog.Source); ok && src != nil {
		src.File = filepath.Base(src.File)
	}
	return a
}

// openSink resolves Output ("stdout", "file" or "both") to a writer.
// Anything else writes to stdout.
func openSink(cfg config.LoggerConfig) (io.Writer, error) {
	out := strings.ToLower(cfg.Output)
	toStdout := out != "file"
	toFile := out == "file" || out == "both"

	if !toFile {
		return os.Stdout, nil
	}

	file, err := openLogFile(cfg)
	if err != nil {
		return nil, err
	}
	if !toStdout {
		return file, nil
	}
	return io.MultiWriter(os.Stdout, file), nil
}

func openLogFile(cfg config.LoggerConfig) (io.Writer, error) {
	path := cfg.FilePath
	if path == "" {
		path = defaultLogFile
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	if cfg.EnableRotation {
		// MaxSize in MB, MaxAge in days.
		return &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: cfg.MaxBackups,
			LocalTime:  true,
			Compress:   cfg.Compress,
		}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}
