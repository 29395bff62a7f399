package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNow(t *testing.T) {
	t.Run("falls back to wall clock", func(t *testing.T) {
		before := time.Now()
		got := Now(context.Background())
		assert.False(t, got.Before(before))
	})

	t.Run("injected time wins", func(t *testing.T) {
		fixed := time.Date(2026, 2, 14, 10, 15, 30, 0, time.UTC)
		assert.Equal(t, fixed, Now(WithTime(context.Background(), fixed)))
	})
}

func TestActorAndRequestID(t *testing.T) {
	ctx := WithRequestID(WithActor(context.Background(), "Admin"), "req-1")
	assert.Equal(t, "Admin", Actor(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
}
