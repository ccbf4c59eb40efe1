package store

import (
	"context"

	"github.com/serroba/chatid-bot/internal/quota"
)

// Inert is a quota.Store used when no remote store is configured.
// Loads are always empty and saves are discarded, so every user starts
// each action with a fresh quota.
type Inert struct{}

// NewInert creates a store that persists nothing.
func NewInert() *Inert {
	return &Inert{}
}

func (Inert) Load(_ context.Context) (quota.Document, error) {
	return quota.Document{}, nil
}

func (Inert) Save(_ context.Context, _ quota.Document) error {
	return nil
}

// Ping always succeeds.
func (Inert) Ping(_ context.Context) error {
	return nil
}
