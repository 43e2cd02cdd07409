package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "urlconn/internal/common/errors"
	"urlconn/internal/common/logging"
)

func testConfig(maxFailures int, timeout time.Duration) Config {
	return Config{
		MaxFailures:           maxFailures,
		Timeout:               timeout,
		MaxConcurrentRequests: 1,
	}
}

func TestBreaker(t *testing.T) {
	logger := logging.GetGlobalLogger()
	dialFailure := apperrors.ConnectionError("dial failed", errors.New("connection refused"))

	t.Run("starts closed and passes results through", func(t *testing.T) {
		cb := New("basic", testConfig(2, time.Second), logger)
		assert.Equal(t, StateClosed, cb.State())
		assert.Equal(t, "basic", cb.Name())

		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("opens after consecutive connection failures", func(t *testing.T) {
		cb := New("failures", testConfig(3, time.Second), logger)

		for i := 0; i < 3; i++ {
			err := cb.Execute(context.Background(), func() error { return dialFailure })
			assert.Same(t, dialFailure, err)
		}
		assert.Equal(t, StateOpen, cb.State())

		err := cb.Execute(context.Background(), func() error {
			t.Fatal("should not be called while open")
			return nil
		})
		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConnection))
		assert.Contains(t, err.Error(), "BREAKER_OPEN")
	})

	t.Run("caller errors do not trip", func(t *testing.T) {
		cb := New("caller", testConfig(1, time.Second), logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(context.Background(), func() error {
				return apperrors.InvalidArgumentError("bad method")
			})
			assert.True(t, apperrors.IsType(err, apperrors.ErrTypeInvalidArgument))
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("half-open after timeout then closes on success", func(t *testing.T) {
		cb := New("recover", testConfig(1, 50*time.Millisecond), logger)

		_ = cb.Execute(context.Background(), func() error { return dialFailure })
		assert.Equal(t, StateOpen, cb.State())

		time.Sleep(80 * time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("canceled context short-circuits", func(t *testing.T) {
		cb := New("canceled", testConfig(1, time.Second), logger)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := cb.Execute(ctx, func() error {
			t.Fatal("should not be called")
			return nil
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeCanceled))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("expired context is a timeout", func(t *testing.T) {
		cb := New("expired", testConfig(1, time.Second), logger)
		ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
		defer cancel()

		err := cb.Execute(ctx, func() error {
			t.Fatal("should not be called")
			return nil
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeTimeout))
	})

	t.Run("canceled errors do not trip", func(t *testing.T) {
		cb := New("canceled-inside", testConfig(1, time.Second), logger)
		err := cb.Execute(context.Background(), func() error {
			return apperrors.CanceledError("connect", context.Canceled)
		})
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeCanceled))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := New("invalid", Config{}, logger)
		require.NotNil(t, cb)
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("stats", func(t *testing.T) {
		cb := New("stats", testConfig(5, time.Second), logger)
		_ = cb.Execute(context.Background(), func() error { return nil })
		_ = cb.Execute(context.Background(), func() error { return dialFailure })

		stats := cb.Stats()
		assert.Equal(t, "stats", stats.Name)
		assert.Equal(t, "closed", stats.State)
		assert.Equal(t, 1, stats.Successes)
		assert.Equal(t, 1, stats.Failures)
	})
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestManager(t *testing.T) {
	m := NewManager(testConfig(1, time.Second), nil)

	a := m.GetOrCreate("a.example:80")
	assert.Same(t, a, m.GetOrCreate("a.example:80"))

	err := m.Execute(context.Background(), "b.example:80", func() error {
		return apperrors.ConnectionError("refused", nil)
	})
	require.Error(t, err)

	assert.Equal(t, StateOpen, m.GetOrCreate("b.example:80").State())
	assert.Equal(t, StateClosed, a.State())

	stats := m.AllStats()
	require.Len(t, stats, 2)
	assert.Equal(t, "a.example:80", stats[0].Name)
	assert.Equal(t, "b.example:80", stats[1].Name)
	assert.Equal(t, "open", stats[1].State)
}
