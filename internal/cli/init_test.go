package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labfunds/internal/config"
	"labfunds/internal/log"
)

func TestSetupLoggerTo(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	logger := SetupLoggerTo(&buf, &config.Config{LogLevel: "warn", LogFormat: "json"}, log.ComponentWorker)

	logger.Info("dropped")
	logger.Warn("kept", "k", "v")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec), buf.String())
	assert.Equal(t, "kept", rec["msg"])
	assert.Equal(t, log.ComponentWorker, rec[log.FieldComponent])
	assert.Equal(t, "v", rec["k"])
}

func TestGracefulShutdownRunsCleanup(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Output: &buf, Component: "test"})

	cleaned := make(chan struct{})
	ctx, done := GracefulShutdown(logger, time.Second, func(ctx context.Context) error {
		close(cleaned)
		return errors.New("flush failed")
	})

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
	<-cleaned
	assert.Contains(t, buf.String(), "Shutdown signal received")
	assert.Contains(t, buf.String(), "flush failed")
}
