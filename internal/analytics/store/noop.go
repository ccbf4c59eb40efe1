package store

import (
	"context"

	"github.com/serroba/chatid-bot/internal/analytics"
	"go.uber.org/zap"
)

// Noop is an analytics.Store that only logs the events it receives.
type Noop struct {
	logger *zap.Logger
}

// NewNoop creates a new no-op analytics store.
func NewNoop(logger *zap.Logger) *Noop {
	return &Noop{logger: logger}
}

func (n *Noop) SaveDecision(_ context.Context, event *analytics.DecisionEvent) error {
	n.logger.Info("quota decision",
		zap.String("user_id", event.UserID),
		zap.String("action", event.Action),
		zap.Bool("allowed", event.Allowed),
		zap.Time("decided_at", event.DecidedAt),
	)

	return nil
}
