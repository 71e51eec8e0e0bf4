package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"gopkg.in/gomail.v2"
)

const defaultEmailSubject = "Notification"

type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPProvider delivers email through an SMTP relay.
type SMTPProvider struct {
	sender mailSender
	from   string
}

func NewSMTPProvider(host string, port int, username, password, from string) (*SMTPProvider, error) {
	if strings.TrimSpace(host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if port <= 0 {
		return nil, fmt.Errorf("invalid smtp port %d", port)
	}

	return newSMTPProvider(gomail.NewDialer(host, port, username, password), from)
}

func newSMTPProvider(sender mailSender, from string) (*SMTPProvider, error) {
	if sender == nil {
		return nil, fmt.Errorf("mail sender is required")
	}
	if strings.TrimSpace(from) == "" {
		return nil, fmt.Errorf("sender address is required")
	}

	return &SMTPProvider{sender: sender, from: strings.TrimSpace(from)}, nil
}

// Send runs the SMTP exchange until it completes or ctx ends. gomail takes no
// context, so an abandoned exchange finishes in the background and its outcome
// is discarded.
func (p *SMTPProvider) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if p == nil || p.sender == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, missingRecipient()
	}
	if err := ctx.Err(); err != nil {
		return nil, abortedSend(err)
	}

	done := make(chan error, 1)
	m := p.buildMessage(msg)
	go func() {
		done <- p.sender.DialAndSend(m)
	}()

	select {
	case <-ctx.Done():
		return nil, abortedSend(ctx.Err())
	case err := <-done:
		if err != nil {
			var netErr net.Error
			return nil, &ProviderError{
				Message:   "smtp delivery failed",
				Transient: errors.As(err, &netErr),
				Cause:     err,
			}
		}
	}

	return &ProviderResponse{}, nil
}

func abortedSend(err error) *ProviderError {
	return &ProviderError{
		Message:   "email send aborted",
		Cause:     err,
		Transient: errors.Is(err, context.DeadlineExceeded),
	}
}

func (p *SMTPProvider) buildMessage(msg Message) *gomail.Message {
	subject := strings.TrimSpace(msg.Subject)
	if subject == "" {
		subject = defaultEmailSubject
	}

	m := gomail.NewMessage()
	m.SetHeader("From", p.from)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", subject)
	if msg.NotificationID != "" {
		m.SetHeader("X-Notification-ID", msg.NotificationID)
	}
	m.SetBody("text/plain", msg.Body)
	return m
}
