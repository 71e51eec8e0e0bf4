package domain

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDelivered, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusFailed
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// Channel identifies a delivery channel.
type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelSMS      Channel = "sms"
	ChannelTelegram Channel = "telegram"
)

// DefaultChannels is the fallback order used when a notification carries no preference.
var DefaultChannels = []Channel{ChannelEmail, ChannelSMS, ChannelTelegram}

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelSMS, ChannelTelegram:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Notification is the unit of delivery work.
type Notification struct {
	ID               string
	RequestID        *string
	ToEmail          *string
	ToPhone          *string
	ToTelegramChatID *string
	Subject          *string
	Body             string
	Channels         []Channel
	Status           Status
	UsedChannel      *Channel
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ResolvedChannels returns the channel preference, or the default order when none was given.
func (n *Notification) ResolvedChannels() []Channel {
	if n == nil || len(n.Channels) == 0 {
		resolved := make([]Channel, len(DefaultChannels))
		copy(resolved, DefaultChannels)
		return resolved
	}
	resolved := make([]Channel, len(n.Channels))
	copy(resolved, n.Channels)
	return resolved
}

func (n *Notification) HasContact() bool {
	if n == nil {
		return false
	}
	return nonEmpty(n.ToEmail) || nonEmpty(n.ToPhone) || nonEmpty(n.ToTelegramChatID)
}

// Validate checks the invariants required before a notification can be accepted.
func (n *Notification) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", ErrValidation)
	}
	if !n.HasContact() {
		return fmt.Errorf("%w: at least one contact method must be provided (toEmail, toPhone or toTelegramChatId)", ErrValidation)
	}
	if strings.TrimSpace(n.Body) == "" {
		return fmt.Errorf("%w: body is required", ErrValidation)
	}
	for _, ch := range n.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("%w: invalid channel %q", ErrValidation, ch)
		}
	}
	return nil
}

// CheckInvariant verifies that UsedChannel is set if and only if the notification was delivered.
func (n *Notification) CheckInvariant() error {
	if n == nil {
		return nil
	}
	delivered := n.Status == StatusDelivered
	if delivered && n.UsedChannel == nil {
		return fmt.Errorf("notification %s is delivered without a used channel", n.ID)
	}
	if !delivered && n.UsedChannel != nil {
		return fmt.Errorf("notification %s has used channel %q in status %s", n.ID, *n.UsedChannel, n.Status)
	}
	return nil
}

func nonEmpty(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}
