// Package analytics publishes quota decisions as events and consumes them
// for reporting.
package analytics

import (
	"context"
	"time"
)

// TopicDecision carries one event per chargeable decision.
const TopicDecision = "quota.decision"

// Chargeable actions.
const (
	ActionUsersShared = "users_shared"
	ActionChatShared  = "chat_shared"
)

// DecisionEvent represents a single allow/deny decision of the quota gate.
type DecisionEvent struct {
	UserID    string    `json:"userId"`
	Action    string    `json:"action"`
	Allowed   bool      `json:"allowed"`
	DecidedAt time.Time `json:"decidedAt"`
}

type actionKey struct{}

// WithAction returns a context tagged with the chargeable action name.
func WithAction(ctx context.Context, action string) context.Context {
	return context.WithValue(ctx, actionKey{}, action)
}

// ActionFromContext returns the action name stored by WithAction.
func ActionFromContext(ctx context.Context) string {
	action, _ := ctx.Value(actionKey{}).(string)

	return action
}
