// Package channel implements the per-channel delivery strategies the
// orchestrator walks through. A sender decides whether a notification can be
// delivered on its channel and, if so, hands the message to a provider.
package channel

import (
	"context"
	"fmt"
	"strings"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

// Sender is the contract every delivery channel implements.
type Sender interface {
	Channel() domain.Channel
	// IsAvailable reports whether the notification carries the contact this channel needs.
	IsAvailable(n *domain.Notification) bool
	// UnavailableReason explains why IsAvailable returned false.
	UnavailableReason(n *domain.Notification) string
	// Send delivers the notification. Ordinary delivery failures are reported in
	// the Result, never as a panic or an error value.
	Send(ctx context.Context, n *domain.Notification) Result
}

// Result is the outcome of a single send. ErrorMessage is non-empty iff Success is false.
type Result struct {
	Success      bool
	ErrorMessage string
}

func Succeeded() Result { return Result{Success: true} }

func Failed(message string) Result {
	if strings.TrimSpace(message) == "" {
		message = "delivery failed"
	}
	return Result{ErrorMessage: message}
}

func (r Result) String() string {
	if r.Success {
		return "success"
	}
	return "failed: " + r.ErrorMessage
}

func defaultUnavailableReason(ch domain.Channel) string {
	return fmt.Sprintf("channel %s is not available for this notification", ch)
}

// contactSender implements Sender for channels that deliver to a single contact field.
type contactSender struct {
	channel       domain.Channel
	contact       func(n *domain.Notification) string
	missingReason string
	provider      provider.Provider
	logger        *zap.Logger
}

func newContactSender(
	ch domain.Channel,
	contact func(n *domain.Notification) string,
	missingReason string,
	p provider.Provider,
	logger *zap.Logger,
) (*contactSender, error) {
	if p == nil {
		return nil, fmt.Errorf("%s provider is required", ch)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &contactSender{
		channel:       ch,
		contact:       contact,
		missingReason: missingReason,
		provider:      p,
		logger:        logger.With(zap.String("channel", ch.String())),
	}, nil
}

func (s *contactSender) Channel() domain.Channel { return s.channel }

func (s *contactSender) IsAvailable(n *domain.Notification) bool {
	return n != nil && s.contact(n) != ""
}

func (s *contactSender) UnavailableReason(n *domain.Notification) string {
	if !s.IsAvailable(n) {
		return s.missingReason
	}
	return defaultUnavailableReason(s.channel)
}

func (s *contactSender) Send(ctx context.Context, n *domain.Notification) Result {
	if !s.IsAvailable(n) {
		reason := s.UnavailableReason(n)
		s.logger.Warn("channel unavailable", zap.String("reason", reason))
		return Failed(reason)
	}

	msg := provider.Message{
		NotificationID: n.ID,
		Channel:        s.channel,
		To:             s.contact(n),
		Body:           n.Body,
	}
	if n.Subject != nil {
		msg.Subject = *n.Subject
	}

	resp, err := s.provider.Send(ctx, msg)
	if err != nil {
		reason := provider.FailureMessage(err)
		s.logger.Warn("send failed",
			zap.String("notificationId", n.ID),
			zap.Bool("transient", provider.IsTransient(err)),
			zap.Error(err),
		)
		return Failed(reason)
	}

	fields := []zap.Field{zap.String("notificationId", n.ID)}
	if resp != nil && resp.MessageID != "" {
		fields = append(fields, zap.String("providerMessageId", resp.MessageID))
	}
	s.logger.Info("sent", fields...)

	return Succeeded()
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}
