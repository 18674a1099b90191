// Package notify formats announcements and delivers them to subscribed users.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"announcement-radar/internal/logger"
)

// Notifier delivers a formatted message to a chat user.
type Notifier interface {
	// SendMessageToUser returns true when the platform accepted the message.
	SendMessageToUser(ctx context.Context, externalUserID int64, text string) (bool, error)
}

// ErrMissingToken is returned when no bot token is configured.
var ErrMissingToken = errors.New("notify: missing bot token")

// TelegramNotifier sends HTML messages through the Telegram Bot API.
type TelegramNotifier struct {
	bot *tgbotapi.BotAPI
}

// NewTelegramNotifier authenticates the bot. An empty endpoint uses the public API.
func NewTelegramNotifier(token, endpoint string, client *http.Client) (*TelegramNotifier, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrMissingToken
	}
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if client == nil {
		client = &http.Client{}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

var _ Notifier = (*TelegramNotifier)(nil)

// SendMessageToUser sends text in HTML parse mode. The bot API has no context
// support; ctx is checked before the call.
func (n *TelegramNotifier) SendMessageToUser(ctx context.Context, externalUserID int64, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	msg := tgbotapi.NewMessage(externalUserID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := n.bot.Send(msg); err != nil {
		return false, fmt.Errorf("send telegram message to %d: %w", externalUserID, err)
	}
	return true, nil
}

// LogNotifier writes messages to the log instead of a chat. Used when no bot
// token is configured.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogNotifier{log: log}
}

var _ Notifier = (*LogNotifier)(nil)

// SendMessageToUser logs the message and reports it as delivered.
func (n *LogNotifier) SendMessageToUser(ctx context.Context, externalUserID int64, text string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n.log.Info("notification", logger.Int64("external_user_id", externalUserID), logger.String("text", text))
	return true, nil
}
