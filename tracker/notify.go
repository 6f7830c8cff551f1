package tracker

import (
	"context"
	"strings"

	"github.com/raushankrgupta/price-tracker/models"
	"github.com/raushankrgupta/price-tracker/notifier"
	"github.com/raushankrgupta/price-tracker/utils"
)

// notify sends the alert on every enabled channel and returns how many succeeded.
// Channel failures are logged only; the alert stays recorded.
func (c *Checker) notify(ctx context.Context, item models.DueItem, v Verdict, logb *strings.Builder) int {
	if c.notifier == nil {
		utils.AddToLogMessage(logb, "No notifier configured, alert %s not delivered", v.Type)
		return 0
	}

	t, u, p := item.Tracking, item.User, item.Product
	payload := notifier.NewPayload(p, v.Type, p.CurrentPrice, v.PercentChange)

	sent := 0
	if t.Notifications.Email && u.Preferences.EmailNotifications && u.Email != "" {
		if c.deliver(ctx, "email", logb, func(ctx context.Context) error {
			return c.notifier.SendEmail(ctx, u.Email, payload)
		}) {
			sent++
		}
	}
	if t.Notifications.Messaging && u.Preferences.MessagingNotifications && u.Phone != "" {
		if c.deliver(ctx, "messaging", logb, func(ctx context.Context) error {
			return c.notifier.SendMessage(ctx, u.Phone, payload)
		}) {
			sent++
		}
	}
	return sent
}

func (c *Checker) deliver(ctx context.Context, channel string, logb *strings.Builder, send func(context.Context) error) (ok bool) {
	ctx, cancel := context.WithTimeout(ctx, c.settings.NotifyTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			utils.AddToLogMessage(logb, "Notification via %s panicked: %v", channel, r)
			ok = false
		}
	}()

	if err := send(ctx); err != nil {
		utils.AddToLogMessage(logb, "Notification via %s failed: %v", channel, err)
		return false
	}
	utils.AddToLogMessage(logb, "Notification via %s sent", channel)
	return true
}
