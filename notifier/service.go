package notifier

import (
	"context"
	"errors"
)

// ErrChannelDisabled is returned when the transport for a channel is not configured
var ErrChannelDisabled = errors.New("notification channel disabled")

// Service routes alerts to the configured transports. Either transport may be nil.
type Service struct {
	email    *EmailSender
	telegram *TelegramSender
}

func NewService(email *EmailSender, telegram *TelegramSender) *Service {
	return &Service{email: email, telegram: telegram}
}

func (s *Service) SendEmail(ctx context.Context, address string, p Payload) error {
	if s.email == nil {
		return ErrChannelDisabled
	}
	return s.email.SendEmail(ctx, address, p)
}

func (s *Service) SendMessage(ctx context.Context, phone string, p Payload) error {
	if s.telegram == nil {
		return ErrChannelDisabled
	}
	return s.telegram.SendMessage(ctx, phone, p)
}
