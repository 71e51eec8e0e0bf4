package provider

import (
	"context"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
)

// Provider is the outbound delivery port a channel sender hands its message to.
type Provider interface {
	Send(ctx context.Context, msg Message) (*ProviderResponse, error)
}

// Message is the channel-agnostic payload handed to a provider.
type Message struct {
	NotificationID string
	Channel        domain.Channel
	To             string
	Subject        string
	Body           string
}

// ProviderResponse stores provider call metadata for logging.
type ProviderResponse struct {
	StatusCode int
	Body       string
	MessageID  string
}
