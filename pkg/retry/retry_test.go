package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoSucceedsEventually(t *testing.T) {
	p := Policy{MaxAttempts: 5, InitialBackoff: time.Millisecond, Factor: 2.0}

	calls := 0
	err := Do(context.Background(), p, func(attempt int) error {
		assert.Equal(t, calls, attempt)
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 4, InitialBackoff: time.Millisecond, Factor: 1.0}

	wantErr := errors.New("still broken")
	calls := 0
	err := Do(context.Background(), p, func(int) error {
		calls++
		return wantErr
	})

	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 4, calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	p := Policy{MaxAttempts: 10, InitialBackoff: time.Millisecond, Factor: 1.0}

	calls := 0
	err := Do(context.Background(), p, func(int) error {
		calls++
		return Permanent{Err: errors.New("bad request")}
	})

	require.Error(t, err)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, 1, calls)
}

func TestDoHonoursContext(t *testing.T) {
	p := Policy{MaxAttempts: 100, InitialBackoff: 50 * time.Millisecond, Factor: 1.0}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, p, func(int) error {
		calls++
		return errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, calls, 2)
}

func TestPermanentUnwraps(t *testing.T) {
	inner := errors.New("root cause")
	err := Permanent{Err: inner}
	assert.ErrorIs(t, err, inner)
}
