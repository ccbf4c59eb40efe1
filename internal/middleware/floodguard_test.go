package middleware_test

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/serroba/chatid-bot/internal/middleware"
	"github.com/serroba/chatid-bot/internal/ratelimit"
	"github.com/serroba/chatid-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type errLimiter struct{}

func (errLimiter) Allow(_ context.Context, _ string) (bool, error) {
	return false, errors.New("limiter down")
}

func updateFrom(id int64) *models.Update {
	return &models.Update{Message: &models.Message{From: &models.User{ID: id}}}
}

func countingHandler(calls *int) tgbot.HandlerFunc {
	return func(_ context.Context, _ *tgbot.Bot, _ *models.Update) {
		*calls++
	}
}

func TestFloodGuard(t *testing.T) {
	t.Run("passes updates under the limit and drops the rest", func(t *testing.T) {
		limiter := ratelimit.NewSlidingWindowLimiter(store.NewRateLimitMemoryStore(), 3, time.Minute)
		calls := 0
		h := middleware.FloodGuard(limiter, zap.NewNop())(countingHandler(&calls))

		for range 5 {
			h(context.Background(), nil, updateFrom(42))
		}

		assert.Equal(t, 3, calls)
	})

	t.Run("limits senders independently", func(t *testing.T) {
		limiter := ratelimit.NewSlidingWindowLimiter(store.NewRateLimitMemoryStore(), 1, time.Minute)
		calls := 0
		h := middleware.FloodGuard(limiter, zap.NewNop())(countingHandler(&calls))

		h(context.Background(), nil, updateFrom(1))
		h(context.Background(), nil, updateFrom(1))
		h(context.Background(), nil, updateFrom(2))

		assert.Equal(t, 2, calls)
	})

	t.Run("passes updates without a sender", func(t *testing.T) {
		limiter := ratelimit.NewSlidingWindowLimiter(store.NewRateLimitMemoryStore(), 1, time.Minute)
		calls := 0
		h := middleware.FloodGuard(limiter, zap.NewNop())(countingHandler(&calls))

		h(context.Background(), nil, &models.Update{})
		h(context.Background(), nil, &models.Update{})

		assert.Equal(t, 2, calls)
	})

	t.Run("fails open when the limiter errors", func(t *testing.T) {
		calls := 0
		h := middleware.FloodGuard(errLimiter{}, zap.NewNop())(countingHandler(&calls))

		h(context.Background(), nil, updateFrom(42))

		assert.Equal(t, 1, calls)
	})
}
