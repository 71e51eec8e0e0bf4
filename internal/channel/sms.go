package channel

import (
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

type SMSSender struct {
	*contactSender
}

func NewSMSSender(p provider.Provider, logger *zap.Logger) (*SMSSender, error) {
	s, err := newContactSender(
		domain.ChannelSMS,
		func(n *domain.Notification) string { return trimmed(n.ToPhone) },
		"No phone number provided",
		p,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &SMSSender{contactSender: s}, nil
}
