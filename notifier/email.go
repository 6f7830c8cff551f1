package notifier

import (
	"context"
	"fmt"
	"html"
	"log"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

type mailClient interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSender sends alerts using SendGrid
type EmailSender struct {
	client mailClient
	from   *mail.Email
}

func NewEmailSender(apiKey, fromName, fromAddress string) (*EmailSender, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("SENDGRID_API_KEY is not set")
	}
	if fromAddress == "" {
		return nil, fmt.Errorf("EMAIL_FROM_ADDRESS is not set")
	}
	return &EmailSender{
		client: sendgrid.NewSendClient(apiKey),
		from:   mail.NewEmail(fromName, fromAddress),
	}, nil
}

func (e *EmailSender) SendEmail(ctx context.Context, address string, p Payload) error {
	to := mail.NewEmail("", address)
	message := mail.NewSingleEmail(e.from, p.Subject, to, textBody(p), htmlBody(p))

	response, err := e.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("send email to %s: %w", address, err)
	}
	if response.StatusCode >= 400 {
		log.Printf("[Notifier] SendGrid API Error: Status Code %d, Body: %s", response.StatusCode, response.Body)
		return fmt.Errorf("failed to send email, status code: %d", response.StatusCode)
	}

	log.Printf("[Notifier] Email sent to %s. Status Code: %d", address, response.StatusCode)
	return nil
}

func textBody(p Payload) string {
	return fmt.Sprintf("%s\n\n%s\n", p.Message, p.URL)
}

func htmlBody(p Payload) string {
	body := fmt.Sprintf("<p>%s</p><p><a href=\"%s\">View product</a></p>", html.EscapeString(p.Message), html.EscapeString(p.URL))
	if p.Image != "" {
		body = fmt.Sprintf("<img src=\"%s\" alt=\"%s\" width=\"200\">", html.EscapeString(p.Image), html.EscapeString(p.Title)) + body
	}
	return body
}
