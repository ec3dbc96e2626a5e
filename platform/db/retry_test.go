package db

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"crm_backend/platform/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithRetry(t *testing.T) {
	log := logger.NewWithWriter("test", io.Discard)
	ctx := context.Background()

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(ctx, log, "connect", 3, time.Millisecond, func() error {
			calls++
			if calls < 3 {
				return errors.New("not yet")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after the last attempt", func(t *testing.T) {
		calls := 0
		want := errors.New("down")
		err := WithRetry(ctx, log, "connect", 2, time.Millisecond, func() error {
			calls++
			return want
		})
		require.ErrorIs(t, err, want)
		assert.Contains(t, err.Error(), "connect")
		assert.Equal(t, 2, calls)
	})

	t.Run("rejects zero attempts", func(t *testing.T) {
		err := WithRetry(ctx, log, "connect", 0, time.Millisecond, func() error { return nil })
		require.Error(t, err)
	})
}
