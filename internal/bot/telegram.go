package bot

import (
	"context"
	"fmt"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"go.uber.org/zap"
)

// Keyboard request ids, echoed back by Telegram in users_shared/chat_shared.
const (
	requestUserInfo = 1
	requestChannel  = 2
	requestGroup    = 3
	requestBot      = 4
)

// Telegram connects a Handler to the Telegram Bot API with long polling.
type Telegram struct {
	bot     *tgbot.Bot
	handler *Handler
	logger  *zap.Logger
}

// NewTelegram creates a polling bot. Middlewares run before every update.
func NewTelegram(
	token string,
	handler *Handler,
	logger *zap.Logger,
	middlewares []tgbot.Middleware,
	opts ...tgbot.Option,
) (*Telegram, error) {
	t := &Telegram{
		handler: handler,
		logger:  logger,
	}

	options := []tgbot.Option{
		tgbot.WithDefaultHandler(t.onUpdate),
		tgbot.WithMiddlewares(middlewares...),
	}
	options = append(options, opts...)

	b, err := tgbot.New(token, options...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}

	t.bot = b

	return t, nil
}

// Run polls for updates until ctx is cancelled.
func (t *Telegram) Run(ctx context.Context) {
	t.logger.Info("bot polling started")
	t.bot.Start(ctx)
	t.logger.Info("bot polling stopped")
}

func (t *Telegram) onUpdate(ctx context.Context, b *tgbot.Bot, update *models.Update) {
	in, ok := incomingFromUpdate(update)
	if !ok {
		return
	}

	t.handler.Handle(ctx, &replier{bot: b}, in)
}

// incomingFromUpdate extracts the fields the handler needs. Updates without
// a message or sender are skipped.
func incomingFromUpdate(update *models.Update) (Incoming, bool) {
	if update == nil || update.Message == nil || update.Message.From == nil {
		return Incoming{}, false
	}

	msg := update.Message

	in := Incoming{
		ChatID: msg.Chat.ID,
		From: Profile{
			ID:        msg.From.ID,
			FirstName: msg.From.FirstName,
			LastName:  msg.From.LastName,
			Username:  msg.From.Username,
		},
		Text: msg.Text,
	}

	if msg.UsersShared != nil {
		for _, u := range msg.UsersShared.Users {
			in.SharedUsers = append(in.SharedUsers, SharedUser{
				UserID:    u.UserID,
				FirstName: u.FirstName,
				LastName:  u.LastName,
				Username:  u.Username,
			})
		}
	}

	if msg.ChatShared != nil {
		in.ChatShared = true
		in.SharedChatID = msg.ChatShared.ChatID
	}

	return in, true
}

type replier struct {
	bot *tgbot.Bot
}

func (r *replier) Reply(ctx context.Context, chatID int64, text string, withMenu bool) error {
	params := &tgbot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeHTML,
	}

	if withMenu {
		params.ReplyMarkup = menu()
	}

	_, err := r.bot.SendMessage(ctx, params)

	return err
}

// replyKeyboard mirrors the Bot API reply keyboard. The library type drops
// user_is_bot when false, which Telegram reads as "any user", so the menu
// is encoded with these types instead.
type replyKeyboard struct {
	Keyboard       [][]keyboardButton `json:"keyboard"`
	ResizeKeyboard bool               `json:"resize_keyboard,omitempty"`
}

type keyboardButton struct {
	Text         string        `json:"text"`
	RequestUsers *requestUsers `json:"request_users,omitempty"`
	RequestChat  *requestChat  `json:"request_chat,omitempty"`
}

type requestUsers struct {
	RequestID   int32 `json:"request_id"`
	UserIsBot   bool  `json:"user_is_bot"`
	MaxQuantity int   `json:"max_quantity,omitempty"`
}

type requestChat struct {
	RequestID     int32 `json:"request_id"`
	ChatIsChannel bool  `json:"chat_is_channel"`
}

func menu() *replyKeyboard {
	return &replyKeyboard{
		Keyboard: [][]keyboardButton{
			{{Text: ButtonUserInfo, RequestUsers: &requestUsers{
				RequestID: requestUserInfo, UserIsBot: false, MaxQuantity: 1,
			}}},
			{{Text: ButtonGroup, RequestChat: &requestChat{
				RequestID: requestGroup, ChatIsChannel: false,
			}}},
			{{Text: ButtonChannel, RequestChat: &requestChat{
				RequestID: requestChannel, ChatIsChannel: true,
			}}},
			{{Text: ButtonBot, RequestUsers: &requestUsers{
				RequestID: requestBot, UserIsBot: true, MaxQuantity: 1,
			}}},
			{{Text: ButtonCheckLimit}},
		},
		ResizeKeyboard: true,
	}
}
