package provider

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
)

const (
	breakerInterval            = 60 * time.Second
	breakerOpenTimeout         = 30 * time.Second
	breakerConsecutiveFailures = 5
)

// BreakerProvider short-circuits calls to a provider that keeps failing transiently.
type BreakerProvider struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker[*ProviderResponse]
}

func NewBreakerProvider(name string, next Provider) *BreakerProvider {
	return NewBreakerProviderWithSettings(next, gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    breakerInterval,
		Timeout:     breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		// Permanent errors (bad recipient, 4xx) do not count against the breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || !IsTransient(err)
		},
	})
}

func NewBreakerProviderWithSettings(next Provider, settings gobreaker.Settings) *BreakerProvider {
	return &BreakerProvider{
		next:    next,
		breaker: gobreaker.NewCircuitBreaker[*ProviderResponse](settings),
	}
}

func (p *BreakerProvider) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	resp, err := p.breaker.Execute(func() (*ProviderResponse, error) {
		return p.next.Send(ctx, msg)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &ProviderError{
			Message:   "provider circuit open",
			Transient: true,
			Cause:     err,
		}
	}
	return resp, err
}
