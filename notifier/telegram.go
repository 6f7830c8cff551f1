package notifier

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers alerts as bot messages. The handle is a numeric chat id
// or an @channel username.
type TelegramSender struct {
	bot botAPI
}

func NewTelegramSender(token string) (*TelegramSender, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	log.Printf("[Notifier] Authorized on telegram account %s", bot.Self.UserName)
	return &TelegramSender{bot: bot}, nil
}

func (t *TelegramSender) SendMessage(ctx context.Context, handle string, p Payload) error {
	msg, err := newMessage(handle, fmt.Sprintf("%s\n%s", p.Message, p.URL))
	if err != nil {
		return err
	}

	// The bot client takes no context; the send is abandoned, not cancelled, on timeout.
	done := make(chan error, 1)
	go func() {
		_, err := t.bot.Send(msg)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send telegram message to %s: %w", handle, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send telegram message to %s: %w", handle, ctx.Err())
	}
}

func newMessage(handle, text string) (tgbotapi.MessageConfig, error) {
	handle = strings.TrimSpace(handle)
	if strings.HasPrefix(handle, "@") {
		return tgbotapi.NewMessageToChannel(handle, text), nil
	}
	chatID, err := strconv.ParseInt(handle, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid telegram chat id %q: %w", handle, err)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}
