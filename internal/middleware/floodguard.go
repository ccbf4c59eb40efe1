// Package middleware holds Telegram update middlewares.
package middleware

import (
	"context"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/serroba/chatid-bot/internal/ratelimit"
	"go.uber.org/zap"
)

// FloodGuard drops updates from senders that exceed the limiter.
// Updates without a sender pass through, and a failing limiter lets the
// update through rather than silencing the bot.
func FloodGuard(limiter ratelimit.Limiter, logger *zap.Logger) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			key, ok := senderKey(update)
			if !ok {
				next(ctx, b, update)

				return
			}

			allowed, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.Error("flood guard check failed", zap.String("user_id", key), zap.Error(err))
				next(ctx, b, update)

				return
			}

			if !allowed {
				logger.Warn("flood guard dropped update", zap.String("user_id", key))

				return
			}

			next(ctx, b, update)
		}
	}
}

// senderKey returns the id of the user who sent the update.
func senderKey(update *models.Update) (string, bool) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return "", false
	}

	return strconv.FormatInt(update.Message.From.ID, 10), true
}
