package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
)

const DefaultTelegramAPIURL = "https://api.telegram.org"

type telegramSendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// TelegramProvider delivers messages through the Telegram Bot API sendMessage method.
type TelegramProvider struct {
	client  *resty.Client
	baseURL string
	token   string
}

func NewTelegramProvider(baseURL string, token string) (*TelegramProvider, error) {
	client := resty.New()
	client.SetTimeout(defaultHTTPTimeout)
	client.SetRetryCount(0)

	return NewTelegramProviderWithClient(baseURL, token, client)
}

func NewTelegramProviderWithClient(baseURL string, token string, client *resty.Client) (*TelegramProvider, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultTelegramAPIURL
	}
	trimmedURL, err := validateEndpoint(baseURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}

	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultHTTPTimeout)
	}
	client.SetRetryCount(0)

	return &TelegramProvider{
		client:  client,
		baseURL: strings.TrimRight(trimmedURL, "/"),
		token:   strings.TrimSpace(token),
	}, nil
}

func (p *TelegramProvider) Send(ctx context.Context, msg Message) (*ProviderResponse, error) {
	if p == nil || p.client == nil {
		return nil, fmt.Errorf("provider is not initialized")
	}
	if strings.TrimSpace(msg.To) == "" {
		return nil, &ProviderError{Message: "chat id is required"}
	}

	text := msg.Body
	if subject := strings.TrimSpace(msg.Subject); subject != "" {
		text = subject + "\n\n" + msg.Body
	}

	var result telegramResponse
	response, err := p.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(telegramSendMessageRequest{ChatID: msg.To, Text: text}).
		SetResult(&result).
		SetError(&result).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", p.baseURL, p.token))
	if err != nil {
		return nil, requestFailed("telegram", err)
	}

	statusCode := response.StatusCode()
	if isSuccessStatus(statusCode) && result.OK {
		messageID := ""
		if result.Result.MessageID != 0 {
			messageID = strconv.FormatInt(result.Result.MessageID, 10)
		}
		return &ProviderResponse{
			StatusCode: statusCode,
			Body:       strings.TrimSpace(response.String()),
			MessageID:  messageID,
		}, nil
	}

	return nil, statusError(statusCode, result.Description, response.String())
}
