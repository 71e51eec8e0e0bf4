package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kursadbilgin/fallback-dispatch/internal/domain"
)

func TestTelegramProviderSendSuccess(t *testing.T) {
	t.Parallel()

	var gotPath string
	var gotBody telegramSendMessageRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":42}}`))
	}))
	defer server.Close()

	p, err := NewTelegramProvider(server.URL, "bot-token")
	if err != nil {
		t.Fatalf("NewTelegramProvider() error = %v", err)
	}

	resp, err := p.Send(context.Background(), Message{
		NotificationID: "n1",
		Channel:        domain.ChannelTelegram,
		To:             "123456",
		Subject:        "Alert",
		Body:           "hello",
	})
	if err != nil {
		t.Fatalf("Send() unexpected error: %v", err)
	}

	if gotPath != "/botbot-token/sendMessage" {
		t.Fatalf("path = %q, want /botbot-token/sendMessage", gotPath)
	}
	if gotBody.ChatID != "123456" {
		t.Fatalf("chat_id = %q, want 123456", gotBody.ChatID)
	}
	if !strings.HasPrefix(gotBody.Text, "Alert") || !strings.HasSuffix(gotBody.Text, "hello") {
		t.Fatalf("text = %q, want subject and body", gotBody.Text)
	}
	if resp.MessageID != "42" {
		t.Fatalf("MessageID = %q, want 42", resp.MessageID)
	}
}

func TestTelegramProviderSendAPIError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	p, err := NewTelegramProvider(server.URL, "bot-token")
	if err != nil {
		t.Fatalf("NewTelegramProvider() error = %v", err)
	}

	_, err = p.Send(context.Background(), Message{
		Channel: domain.ChannelTelegram,
		To:      "missing",
		Body:    "hello",
	})
	if err == nil {
		t.Fatal("expected error")
	}

	var providerErr *ProviderError
	if !errors.As(err, &providerErr) {
		t.Fatalf("expected ProviderError, got %T", err)
	}
	if providerErr.Message != "Bad Request: chat not found" {
		t.Fatalf("Message = %q, want telegram description", providerErr.Message)
	}
	if IsTransient(err) {
		t.Fatal("400 from telegram should be permanent")
	}
}

func TestNewTelegramProviderRequiresToken(t *testing.T) {
	t.Parallel()

	if _, err := NewTelegramProvider("", " "); err == nil {
		t.Fatal("expected error for empty token")
	}
}
