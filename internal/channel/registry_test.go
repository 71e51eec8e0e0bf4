package channel

import (
	"testing"

	"github.com/kursadbilgin/fallback-dispatch/internal/config"
	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"go.uber.org/zap"
)

func TestRegistryLookup(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(newSenders(t, &fakeProvider{})...)
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}

	for _, ch := range domain.DefaultChannels {
		s, ok := registry.Lookup(ch)
		if !ok {
			t.Fatalf("Lookup(%s) not found", ch)
		}
		if s.Channel() != ch {
			t.Fatalf("Lookup(%s).Channel() = %s", ch, s.Channel())
		}
	}

	if _, ok := registry.Lookup(domain.Channel("bogus")); ok {
		t.Fatal("Lookup(bogus) should not be found")
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	t.Parallel()

	email, err := NewEmailSender(&fakeProvider{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmailSender() error = %v", err)
	}

	if _, err := NewRegistry(email, email); err == nil {
		t.Fatal("expected error for duplicate channel")
	}
}

func TestNewRegistryFromConfigSimulated(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistryFromConfig(&config.Config{}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}

	for _, ch := range domain.DefaultChannels {
		if _, ok := registry.Lookup(ch); !ok {
			t.Fatalf("Lookup(%s) not found", ch)
		}
	}
}

func TestNewRegistryFromConfigLive(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistryFromConfig(&config.Config{
		SMTPHost:         "smtp.example.com",
		SMTPPort:         587,
		SMTPFrom:         "noreply@example.com",
		SMSGatewayURL:    "https://sms.example.com/send",
		TelegramBotToken: "token",
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if _, ok := registry.Lookup(domain.ChannelTelegram); !ok {
		t.Fatal("telegram sender missing")
	}

	if _, err := NewRegistryFromConfig(&config.Config{SMSGatewayURL: "::bad"}, zap.NewNop()); err == nil {
		t.Fatal("expected error for invalid sms gateway url")
	}
}
