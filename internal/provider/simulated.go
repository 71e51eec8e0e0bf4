package provider

import (
	"context"
	"fmt"
	"math/rand"
)

// SimulatedProvider stands in for a channel without a live integration.
// It fails with the configured probability and otherwise reports success.
type SimulatedProvider struct {
	failureRate    float64
	failureMessage string
	randFloat      func() float64
}

func NewSimulatedProvider(failureRate float64, failureMessage string) (*SimulatedProvider, error) {
	if failureRate < 0 || failureRate > 1 {
		return nil, fmt.Errorf("failure rate must be within [0, 1], got %v", failureRate)
	}
	if failureMessage == "" {
		failureMessage = "simulated provider failure"
	}

	return &SimulatedProvider{
		failureRate:    failureRate,
		failureMessage: failureMessage,
		randFloat:      rand.Float64,
	}, nil
}

func (p *SimulatedProvider) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, &ProviderError{Message: "simulated send aborted", Cause: err}
	}
	if p.failureRate > 0 && p.randFloat() < p.failureRate {
		return nil, &ProviderError{Message: p.failureMessage, Transient: true}
	}
	return &ProviderResponse{MessageID: "simulated-" + msg.NotificationID}, nil
}
