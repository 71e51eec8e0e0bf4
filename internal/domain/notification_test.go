package domain

import (
	"errors"
	"testing"
)

func strPtr(v string) *string { return &v }

func TestParseStatusFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Status
		wantErr bool
	}{
		{name: "valid lowercase", input: "delivered", want: StatusDelivered},
		{name: "valid uppercase with spaces", input: " IN_PROGRESS ", want: StatusInProgress},
		{name: "invalid", input: "sent", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseStatusFromString(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ParseStatusFromString() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("ParseStatusFromString() unexpected error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("ParseStatusFromString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" Telegram ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelTelegram {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelTelegram)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestStatusIsTerminal(t *testing.T) {
	t.Parallel()

	if StatusPending.IsTerminal() || StatusInProgress.IsTerminal() {
		t.Fatal("pending and in_progress must not be terminal")
	}
	if !StatusDelivered.IsTerminal() || !StatusFailed.IsTerminal() {
		t.Fatal("delivered and failed must be terminal")
	}
}

func TestNotificationResolvedChannels(t *testing.T) {
	t.Parallel()

	n := &Notification{}
	got := n.ResolvedChannels()
	if len(got) != 3 || got[0] != ChannelEmail || got[1] != ChannelSMS || got[2] != ChannelTelegram {
		t.Fatalf("ResolvedChannels() = %v, want default order", got)
	}

	// Mutating the result must not leak into the package default.
	got[0] = ChannelTelegram
	if DefaultChannels[0] != ChannelEmail {
		t.Fatal("DefaultChannels mutated through ResolvedChannels()")
	}

	n.Channels = []Channel{ChannelSMS, Channel("bogus")}
	got = n.ResolvedChannels()
	if len(got) != 2 || got[0] != ChannelSMS || got[1] != Channel("bogus") {
		t.Fatalf("ResolvedChannels() = %v, want explicit preference", got)
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	base := Notification{
		ToEmail: strPtr("user@example.com"),
		Body:    "hello",
	}

	tests := []struct {
		name    string
		mutate  func(*Notification)
		wantErr bool
	}{
		{
			name:   "valid notification",
			mutate: func(n *Notification) {},
		},
		{
			name: "phone only",
			mutate: func(n *Notification) {
				n.ToEmail = nil
				n.ToPhone = strPtr("+79991234567")
			},
		},
		{
			name: "no contacts",
			mutate: func(n *Notification) {
				n.ToEmail = nil
			},
			wantErr: true,
		},
		{
			name: "blank contact does not count",
			mutate: func(n *Notification) {
				n.ToEmail = strPtr("   ")
			},
			wantErr: true,
		},
		{
			name: "missing body",
			mutate: func(n *Notification) {
				n.Body = " "
			},
			wantErr: true,
		},
		{
			name: "unknown channel",
			mutate: func(n *Notification) {
				n.Channels = []Channel{ChannelEmail, Channel("fax")}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			current := base
			tt.mutate(&current)

			err := current.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("Validate() error = %v, want ErrValidation", err)
				}
				return
			}

			if err != nil {
				t.Fatalf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestNotificationCheckInvariant(t *testing.T) {
	t.Parallel()

	email := ChannelEmail

	tests := []struct {
		name    string
		n       Notification
		wantErr bool
	}{
		{name: "pending without channel", n: Notification{Status: StatusPending}},
		{name: "delivered with channel", n: Notification{Status: StatusDelivered, UsedChannel: &email}},
		{name: "delivered without channel", n: Notification{Status: StatusDelivered}, wantErr: true},
		{name: "failed with channel", n: Notification{Status: StatusFailed, UsedChannel: &email}, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.n.CheckInvariant()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckInvariant() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
