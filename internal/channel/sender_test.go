package channel

import (
	"context"
	"testing"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
	"github.com/kursadbilgin/fallback-dispatch/internal/provider"
	"go.uber.org/zap"
)

type fakeProvider struct {
	sendFn func(ctx context.Context, msg provider.Message) (*provider.ProviderResponse, error)
	calls  []provider.Message
}

func (f *fakeProvider) Send(ctx context.Context, msg provider.Message) (*provider.ProviderResponse, error) {
	f.calls = append(f.calls, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return &provider.ProviderResponse{}, nil
}

func strPtr(v string) *string { return &v }

func newSenders(t *testing.T, p provider.Provider) []Sender {
	t.Helper()

	email, err := NewEmailSender(p, zap.NewNop())
	if err != nil {
		t.Fatalf("NewEmailSender() error = %v", err)
	}
	sms, err := NewSMSSender(p, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}
	telegram, err := NewTelegramSender(p, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTelegramSender() error = %v", err)
	}
	return []Sender{email, sms, telegram}
}

func TestSendersAvailability(t *testing.T) {
	t.Parallel()

	senders := newSenders(t, &fakeProvider{})

	tests := []struct {
		name       string
		n          *domain.Notification
		want       map[domain.Channel]bool
		wantReason map[domain.Channel]string
	}{
		{
			name: "no contacts",
			n:    &domain.Notification{ID: "n1", Body: "hi"},
			want: map[domain.Channel]bool{
				domain.ChannelEmail:    false,
				domain.ChannelSMS:      false,
				domain.ChannelTelegram: false,
			},
			wantReason: map[domain.Channel]string{
				domain.ChannelEmail:    "No email address provided",
				domain.ChannelSMS:      "No phone number provided",
				domain.ChannelTelegram: "No Telegram chat ID provided",
			},
		},
		{
			name: "all contacts",
			n: &domain.Notification{
				ID:               "n2",
				ToEmail:          strPtr("user@example.com"),
				ToPhone:          strPtr("+79991234567"),
				ToTelegramChatID: strPtr("123456"),
			},
			want: map[domain.Channel]bool{
				domain.ChannelEmail:    true,
				domain.ChannelSMS:      true,
				domain.ChannelTelegram: true,
			},
		},
		{
			name: "whitespace contact is unavailable",
			n:    &domain.Notification{ID: "n3", ToEmail: strPtr("  ")},
			want: map[domain.Channel]bool{
				domain.ChannelEmail:    false,
				domain.ChannelSMS:      false,
				domain.ChannelTelegram: false,
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			for _, s := range senders {
				if got := s.IsAvailable(tt.n); got != tt.want[s.Channel()] {
					t.Fatalf("%s IsAvailable() = %v, want %v", s.Channel(), got, tt.want[s.Channel()])
				}
				if reason, ok := tt.wantReason[s.Channel()]; ok {
					if got := s.UnavailableReason(tt.n); got != reason {
						t.Fatalf("%s UnavailableReason() = %q, want %q", s.Channel(), got, reason)
					}
				}
			}
		})
	}
}

func TestSenderUnavailableReasonGenericWhenContactPresent(t *testing.T) {
	t.Parallel()

	s, err := NewEmailSender(&fakeProvider{}, nil)
	if err != nil {
		t.Fatalf("NewEmailSender() error = %v", err)
	}

	got := s.UnavailableReason(&domain.Notification{ToEmail: strPtr("user@example.com")})
	if got != "channel email is not available for this notification" {
		t.Fatalf("UnavailableReason() = %q", got)
	}
}

func TestSenderSendFailsFastWhenUnavailable(t *testing.T) {
	t.Parallel()

	p := &fakeProvider{}
	senders := newSenders(t, p)

	for _, s := range senders {
		result := s.Send(context.Background(), &domain.Notification{ID: "n1", Body: "hi"})
		if result.Success {
			t.Fatalf("%s Send() succeeded without contact", s.Channel())
		}
		if result.ErrorMessage != s.UnavailableReason(&domain.Notification{}) {
			t.Fatalf("%s ErrorMessage = %q, want unavailability reason", s.Channel(), result.ErrorMessage)
		}
	}

	if len(p.calls) != 0 {
		t.Fatalf("provider calls = %d, want 0", len(p.calls))
	}
}

func TestSenderSendMapsProviderOutcome(t *testing.T) {
	t.Parallel()

	n := &domain.Notification{
		ID:      "n1",
		ToPhone: strPtr(" +79991234567 "),
		Subject: strPtr("Subject"),
		Body:    "hello",
	}

	okProvider := &fakeProvider{}
	sms, err := NewSMSSender(okProvider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}

	result := sms.Send(context.Background(), n)
	if !result.Success || result.ErrorMessage != "" {
		t.Fatalf("Send() = %+v, want success without message", result)
	}
	if len(okProvider.calls) != 1 {
		t.Fatalf("provider calls = %d, want 1", len(okProvider.calls))
	}
	got := okProvider.calls[0]
	if got.To != "+79991234567" || got.Channel != domain.ChannelSMS || got.Subject != "Subject" || got.Body != "hello" {
		t.Fatalf("provider message = %+v", got)
	}

	failingProvider := &fakeProvider{
		sendFn: func(ctx context.Context, msg provider.Message) (*provider.ProviderResponse, error) {
			return nil, &provider.ProviderError{Message: "SMS provider API error", Transient: true}
		},
	}
	sms, err = NewSMSSender(failingProvider, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSMSSender() error = %v", err)
	}

	result = sms.Send(context.Background(), n)
	if result.Success {
		t.Fatal("Send() succeeded, want failure")
	}
	if result.ErrorMessage != "SMS provider API error" {
		t.Fatalf("ErrorMessage = %q, want provider message", result.ErrorMessage)
	}
}

func TestFailedNeverEmpty(t *testing.T) {
	t.Parallel()

	if got := Failed("  "); got.ErrorMessage == "" || got.Success {
		t.Fatalf("Failed() = %+v, want non-empty message", got)
	}
}

func TestNewSenderRequiresProvider(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegramSender(nil, zap.NewNop()); err == nil {
		t.Fatal("expected error for nil provider")
	}
}
