package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/NHYCRaymond/go-anime-crawler/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		config config.LoggerConfig
	}{
		{
			name: "JSON format to stdout",
			config: config.LoggerConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "Text format to rotated file",
			config: config.LoggerConfig{
				Level:          "debug",
				Format:         "text",
				Output:         "file",
				FilePath:       filepath.Join(t.TempDir(), "crawler.log"),
				EnableRotation: true,
				MaxSize:        1,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.config)
			require.NoError(t, err)
			assert.NotNil(t, GetLogger())
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}

func TestContextLogging(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := context.Background()
	ctx = ContextWithMessageID(ctx, "msg-123")
	ctx = ContextWithStage(ctx, "detail")
	assert.Equal(t, "msg-123", MessageIDFromContext(ctx))
	assert.Equal(t, "detail", StageFromContext(ctx))

	ctx = ContextWithLogger(ctx, base, "source_id", "src-1")
	L(ctx).Info("processing")

	out := buf.String()
	assert.Contains(t, out, `"message_id":"msg-123"`)
	assert.Contains(t, out, `"stage":"detail"`)
	assert.Contains(t, out, `"source_id":"src-1"`)
}

func TestLFallsBackToDefault(t *testing.T) {
	assert.NotNil(t, L(context.Background()))
}

func TestNewWritesServiceTagToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crawler.log")
	logger, err := New(config.LoggerConfig{Level: "warn", Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)

	logger.Info("dropped")
	logger.Warn("kept", "stage", "link")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, `"msg":"kept"`)
	assert.Contains(t, out, `"service":"anime-crawler"`)
}
