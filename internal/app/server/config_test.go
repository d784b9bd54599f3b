package server

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chess-vn/lines/internal/matchmaking"
	"github.com/chess-vn/lines/internal/rules"
	"github.com/chess-vn/lines/internal/session"
	"github.com/chess-vn/lines/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMain(m *testing.M) {
	logging.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
	return dir
}

func TestNewConfig(t *testing.T) {
	dir := writeConfig(t, `
Server:
  Port: "9000"
Queue:
  MaxSize: 4
  StaleAfter: 2m
Match:
  ReadyTimeout: 15s
Storage:
  Driver: Redis
Log:
  Format: console
`)
	t.Setenv("QUEUE_MAXSIZE", "8")

	cfg, err := NewConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, 8, cfg.MaxQueueSize)
	assert.Equal(t, 2*time.Minute, cfg.QueueStaleAfter)
	assert.Equal(t, 15*time.Second, cfg.ReadyTimeout)
	assert.Equal(t, "redis", cfg.StorageDriver)
	assert.Equal(t, "console", cfg.Log.Format)
	// Untouched keys keep their defaults.
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, "lines", cfg.RedisPrefix)
}

func TestNewConfigWithoutFile(t *testing.T) {
	t.Setenv("SERVER_PORT", "7300")

	cfg, err := NewConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "7300", cfg.Port)
	assert.Equal(t, 50, cfg.MaxQueueSize)
	assert.Equal(t, "memory", cfg.StorageDriver)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
}

func TestNewConfigRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty queue", "Queue:\n  MaxSize: 0\n"},
		{"unknown driver", "Storage:\n  Driver: cassandra\n"},
		{"broken yaml", "Server: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrInvalidPayload, StatusInvalidPayload},
		{rules.ErrInvalidSide, StatusInvalidPayload},
		{fmt.Errorf("insert: %w", matchmaking.ErrQueueFull), StatusQueueFull},
		{ErrAlreadyQueued, StatusAlreadyQueued},
		{ErrAlreadyInSession, StatusAlreadyInSession},
		{session.ErrGameNotFound, StatusSessionNotFound},
		{session.ErrNotParticipant, StatusNotAParticipant},
		{ErrForbidden, StatusForbidden},
		{session.ErrSessionOver, StatusInvalidState},
		{ErrNotQueued, StatusInvalidState},
		{session.ErrWrongTurn, StatusWrongTurn},
		{ErrWrongSide, StatusWrongSide},
		{fmt.Errorf("%w: %w", session.ErrIllegalMove, rules.ErrJumpsOpponent), StatusInvalidMove},
		{session.ErrStorage, StatusStorageFailure},
		{ErrUnknownEvent, StatusUnknownEvent},
		{errors.New("boom"), StatusInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}
