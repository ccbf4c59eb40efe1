package analytics

import (
	"context"
	"time"

	"github.com/serroba/chatid-bot/internal/messaging"
	"github.com/serroba/chatid-bot/internal/quota"
	"go.uber.org/zap"
)

// TrackedLimiter wraps a quota.Limiter and publishes every Allow decision.
// Usage queries are passed through untracked.
type TrackedLimiter struct {
	wrapped quota.Limiter
	publish messaging.Publish[DecisionEvent]
	logger  *zap.Logger
	now     func() time.Time
}

var _ quota.Limiter = (*TrackedLimiter)(nil)

// NewTrackedLimiter creates a limiter that reports decisions through publish.
func NewTrackedLimiter(limiter quota.Limiter, publish messaging.Publish[DecisionEvent], logger *zap.Logger) *TrackedLimiter {
	return &TrackedLimiter{
		wrapped: limiter,
		publish: publish,
		logger:  logger,
		now:     time.Now,
	}
}

func (t *TrackedLimiter) Allow(ctx context.Context, userID string) bool {
	allowed := t.wrapped.Allow(ctx, userID)

	event := &DecisionEvent{
		UserID:    userID,
		Action:    ActionFromContext(ctx),
		Allowed:   allowed,
		DecidedAt: t.now().UTC(),
	}

	if err := t.publish(ctx, event); err != nil {
		t.logger.Warn("failed to publish decision event",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}

	return allowed
}

func (t *TrackedLimiter) Usage(ctx context.Context, userID string) quota.Usage {
	return t.wrapped.Usage(ctx, userID)
}
