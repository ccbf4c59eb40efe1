package bot

import (
	"fmt"
	"html"
	"strings"

	"github.com/serroba/chatid-bot/internal/quota"
)

const (
	limitReachedText = "❌ Daily limit reached!"
	unlimitedText    = "♾️ Unlimited access (Owner)"
)

// Profile describes the user who sent an update.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Username  string
}

// FullName joins first and last name the way Telegram clients show them.
func (p Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SharedUser is a user picked through a request_users keyboard button.
type SharedUser struct {
	UserID    int64
	FirstName string
	LastName  string
	Username  string
}

func startText(p Profile, owner bool) string {
	status := "✅ <b>Access granted</b>"
	if owner {
		status = "👑 <b>Owner verified</b>"
	}

	username := "No username"
	if p.Username != "" {
		username = "@" + p.Username
	}

	return fmt.Sprintf(
		"%s\n\n🆔 <b>Account Details:</b>\nUser ID: <code>%d</code>\nName: <code>%s</code>\nUsername: <code>%s</code>",
		status, p.ID, html.EscapeString(p.FullName()), html.EscapeString(username),
	)
}

func usageText(u quota.Usage) string {
	if u.Unlimited {
		return unlimitedText
	}

	return fmt.Sprintf(
		"📊 <b>Daily Usage</b>\n\nUsed: <code>%d</code>\nLeft: <code>%d/%d</code>\n\n🕛 Reset at 12:00 AM",
		u.Used, u.Remaining, u.Limit,
	)
}

func sharedUserText(u SharedUser) string {
	username := "None"
	if u.Username != "" {
		username = u.Username
	}

	name := strings.TrimSpace(u.FirstName + " " + u.LastName)

	return fmt.Sprintf(
		"🆔 <b>User ID:</b> <code>%d</code>\n👤 <b>Name:</b> <code>%s</code>\n🔗 <b>Username:</b> @%s",
		u.UserID, html.EscapeString(name), html.EscapeString(username),
	)
}

func sharedChatText(chatID int64) string {
	return fmt.Sprintf("🎯 <b>Chat ID:</b> <code>%d</code>", chatID)
}
