package channel

import (
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

type EmailSender struct {
	*contactSender
}

func NewEmailSender(p provider.Provider, logger *zap.Logger) (*EmailSender, error) {
	s, err := newContactSender(
		domain.ChannelEmail,
		func(n *domain.Notification) string { return trimmed(n.ToEmail) },
		"No email address provided",
		p,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &EmailSender{contactSender: s}, nil
}
