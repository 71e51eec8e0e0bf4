package channel

import (
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

type TelegramSender struct {
	*contactSender
}

func NewTelegramSender(p provider.Provider, logger *zap.Logger) (*TelegramSender, error) {
	s, err := newContactSender(
		domain.ChannelTelegram,
		func(n *domain.Notification) string { return trimmed(n.ToTelegramChatID) },
		"No Telegram chat ID provided",
		p,
		logger,
	)
	if err != nil {
		return nil, err
	}
	return &TelegramSender{contactSender: s}, nil
}
