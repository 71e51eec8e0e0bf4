package channel

import (
	"fmt"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
)

// Registry maps channel identifiers to their senders.
type Registry struct {
	senders map[domain.Channel]Sender
}

func NewRegistry(senders ...Sender) (*Registry, error) {
	r := &Registry{senders: make(map[domain.Channel]Sender, len(senders))}
	for _, s := range senders {
		if s == nil {
			return nil, fmt.Errorf("sender is required")
		}
		ch := s.Channel()
		if _, exists := r.senders[ch]; exists {
			return nil, fmt.Errorf("duplicate sender for channel %q", ch)
		}
		r.senders[ch] = s
	}
	return r, nil
}

// Lookup returns the sender for ch; ok is false for unknown identifiers.
func (r *Registry) Lookup(ch domain.Channel) (Sender, bool) {
	if r == nil {
		return nil, false
	}
	s, ok := r.senders[ch]
	return s, ok
}
