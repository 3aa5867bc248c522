package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestIsRetryableError(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp 127.0.0.1:9000: connect: Connection refused"), true},
		{"clickhouse timeout", errors.New("code: 159, message: Timeout exceeded"), true},
		{"syntax", errors.New("code: 62, message: Syntax error"), false},
		{"cancelled", fmt.Errorf("insert: %w", context.Canceled), false},
		{"other", errors.New("table does not exist"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err, cfg))
		})
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	permanent := errors.New("unknown table")
	calls := 0
	err := Do(context.Background(), fastConfig(5), func() error {
		calls++
		return permanent
	})
	assert.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDoWithResult_GivesUp(t *testing.T) {
	transient := errors.New("connection refused")
	calls := 0
	_, err := DoWithResult(context.Background(), fastConfig(3), func() (int, error) {
		calls++
		return 0, transient
	})
	assert.ErrorIs(t, err, transient)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, 3, calls)
}

func TestDoWithResult_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := DoWithResult(ctx, fastConfig(3), func() (string, error) {
		calls++
		return "x", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestConfig_WithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	def := DefaultConfig()
	assert.Equal(t, def.MaxAttempts, cfg.MaxAttempts)
	assert.Equal(t, def.InitialDelay, cfg.InitialDelay)
	assert.Equal(t, def.InitialDelay, cfg.MaxDelay)
	assert.Equal(t, def.Multiplier, cfg.Multiplier)
}
