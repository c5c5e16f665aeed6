package logger

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	l, closer, err := New(nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.True(t, l.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, l.Enabled(context.Background(), slog.LevelDebug))
	assert.NoError(t, closer.Close())
}

func TestNew_RejectsUnknownValues(t *testing.T) {
	_, _, err := New(&Options{Level: "loud"})
	assert.Error(t, err)

	_, _, err = New(&Options{Format: "xml"})
	assert.Error(t, err)
}

func TestNew_WritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "upsert.log")

	l, closer, err := New(&Options{Level: "debug", Format: "json", File: path})
	require.NoError(t, err)
	l.Debug("staging loaded", "rows", 3)
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"staging loaded"`)
	assert.Contains(t, string(data), `"rows":3`)
}

func TestOrDefault(t *testing.T) {
	assert.Same(t, slog.Default(), OrDefault(nil))
	l := slog.New(slog.NewTextHandler(os.Stderr, nil))
	assert.Same(t, l, OrDefault(l))
}
