// Package bot routes Telegram updates to the quota gate and formats replies.
package bot

import (
	"context"
	"strconv"
	"strings"

	"github.com/serroba/chatid-bot/internal/analytics"
	"github.com/serroba/chatid-bot/internal/quota"
	"go.uber.org/zap"
)

// Menu button labels.
const (
	ButtonUserInfo   = "👤 User Info"
	ButtonGroup      = "👥 Group"
	ButtonChannel    = "📢 Channel"
	ButtonBot        = "🤖 Bot"
	ButtonCheckLimit = "📊 Check Limit"
)

// Replier sends a message back to a chat.
type Replier interface {
	// Reply sends HTML text to chatID. withMenu attaches the main keyboard.
	Reply(ctx context.Context, chatID int64, text string, withMenu bool) error
}

// Incoming is the part of an inbound message the bot acts on.
type Incoming struct {
	ChatID       int64
	From         Profile
	Text         string
	SharedUsers  []SharedUser
	SharedChatID int64
	ChatShared   bool
}

// Handler answers inbound messages.
type Handler struct {
	limiter quota.Limiter
	ownerID int64
	logger  *zap.Logger
}

// NewHandler creates a new message handler.
func NewHandler(limiter quota.Limiter, ownerID int64, logger *zap.Logger) *Handler {
	return &Handler{
		limiter: limiter,
		ownerID: ownerID,
		logger:  logger,
	}
}

// Handle dispatches a message. Messages that match nothing are ignored.
func (h *Handler) Handle(ctx context.Context, r Replier, in Incoming) {
	switch {
	case len(in.SharedUsers) > 0:
		h.usersShared(ctx, r, in)
	case in.ChatShared:
		h.chatShared(ctx, r, in)
	case isCommand(in.Text, "start"):
		h.start(ctx, r, in)
	case isCommand(in.Text, "limit"), in.Text == ButtonCheckLimit:
		h.checkLimit(ctx, r, in)
	}
}

func (h *Handler) start(ctx context.Context, r Replier, in Incoming) {
	owner := h.ownerID != 0 && in.From.ID == h.ownerID

	h.reply(ctx, r, in.ChatID, startText(in.From, owner), true)
}

func (h *Handler) checkLimit(ctx context.Context, r Replier, in Incoming) {
	usage := h.limiter.Usage(ctx, userKey(in.From.ID))

	h.reply(ctx, r, in.ChatID, usageText(usage), false)
}

// usersShared charges one action per shared user and stops at the first
// denial.
func (h *Handler) usersShared(ctx context.Context, r Replier, in Incoming) {
	ctx = analytics.WithAction(ctx, analytics.ActionUsersShared)
	uid := userKey(in.From.ID)

	for _, u := range in.SharedUsers {
		if !h.limiter.Allow(ctx, uid) {
			h.reply(ctx, r, in.ChatID, limitReachedText, false)

			return
		}

		h.reply(ctx, r, in.ChatID, sharedUserText(u), false)
	}
}

func (h *Handler) chatShared(ctx context.Context, r Replier, in Incoming) {
	ctx = analytics.WithAction(ctx, analytics.ActionChatShared)

	if !h.limiter.Allow(ctx, userKey(in.From.ID)) {
		h.reply(ctx, r, in.ChatID, limitReachedText, false)

		return
	}

	h.reply(ctx, r, in.ChatID, sharedChatText(in.SharedChatID), false)
}

func (h *Handler) reply(ctx context.Context, r Replier, chatID int64, text string, withMenu bool) {
	if err := r.Reply(ctx, chatID, text, withMenu); err != nil {
		h.logger.Error("failed to send reply",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
}

// userKey formats a Telegram user id as a quota document key.
func userKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

// isCommand reports whether text is /name, optionally addressed as
// /name@botname and followed by arguments.
func isCommand(text, name string) bool {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return false
	}

	cmd, _, _ := strings.Cut(fields[0], "@")

	return cmd == "/"+name
}
