package channel

import (
	"fmt"
	"strings"

	"github.com/kursadbilgin/fallback-dispatch/internal/config"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

const (
	simulatedEmailFailure    = "Email service temporarily unavailable"
	simulatedSMSFailure      = "SMS provider API error"
	simulatedTelegramFailure = "Telegram Bot API timeout"
)

// NewRegistryFromConfig wires every known channel to its live provider when one
// is configured, or to a simulated provider otherwise.
func NewRegistryFromConfig(cfg *config.Config, logger *zap.Logger) (*Registry, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	emailProvider, err := emailProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	smsProvider, err := smsProvider(cfg, logger)
	if err != nil {
		return nil, err
	}
	telegramProvider, err := telegramProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	email, err := NewEmailSender(emailProvider, logger)
	if err != nil {
		return nil, err
	}
	sms, err := NewSMSSender(smsProvider, logger)
	if err != nil {
		return nil, err
	}
	telegram, err := NewTelegramSender(telegramProvider, logger)
	if err != nil {
		return nil, err
	}

	return NewRegistry(email, sms, telegram)
}

func emailProvider(cfg *config.Config, logger *zap.Logger) (provider.Provider, error) {
	if strings.TrimSpace(cfg.SMTPHost) == "" {
		logger.Info("email channel uses simulated provider")
		return provider.NewSimulatedProvider(cfg.SimulatedEmailFailureRate, simulatedEmailFailure)
	}

	p, err := provider.NewSMTPProvider(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	if err != nil {
		return nil, fmt.Errorf("failed to init email provider: %w", err)
	}
	return p, nil
}

func smsProvider(cfg *config.Config, logger *zap.Logger) (provider.Provider, error) {
	if strings.TrimSpace(cfg.SMSGatewayURL) == "" {
		logger.Info("sms channel uses simulated provider")
		return provider.NewSimulatedProvider(cfg.SimulatedSMSFailureRate, simulatedSMSFailure)
	}

	p, err := provider.NewWebhookProvider(cfg.SMSGatewayURL)
	if err != nil {
		return nil, fmt.Errorf("failed to init sms provider: %w", err)
	}
	return provider.NewBreakerProvider("sms", p), nil
}

func telegramProvider(cfg *config.Config, logger *zap.Logger) (provider.Provider, error) {
	if strings.TrimSpace(cfg.TelegramBotToken) == "" {
		logger.Info("telegram channel uses simulated provider")
		return provider.NewSimulatedProvider(cfg.SimulatedTelegramFailureRate, simulatedTelegramFailure)
	}

	p, err := provider.NewTelegramProvider(cfg.TelegramAPIURL, cfg.TelegramBotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram provider: %w", err)
	}
	return provider.NewBreakerProvider("telegram", p), nil
}
