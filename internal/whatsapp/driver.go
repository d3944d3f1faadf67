package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Sender delivers outbound text to a requester channel through the messaging
// gateway. Implementations must be safe for concurrent use.
type Sender interface {
	SendText(ctx context.Context, channelID, text string) error
}

type outboundText struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// HTTPSender posts outbound messages to the gateway REST endpoint.
type HTTPSender struct {
	gatewayURL string
	token      string
	client     *http.Client
	logger     *zap.Logger
}

// NewHTTPSender builds the sender.
func NewHTTPSender(gatewayURL, token string, logger *zap.Logger) *HTTPSender {
	return &HTTPSender{
		gatewayURL: gatewayURL,
		token:      token,
		client:     &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// SendText posts one text message. A non-2xx gateway response is an error so
// the caller can mark the message failed.
func (s *HTTPSender) SendText(ctx context.Context, channelID, text string) error {
	if s.gatewayURL == "" {
		return fmt.Errorf("whatsapp gateway url not configured")
	}
	body, err := json.Marshal(outboundText{ChannelID: channelID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.gatewayURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		s.logger.Warn("whatsapp gateway rejected message",
			zap.String("channel_id", channelID),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("whatsapp gateway returned status %d", resp.StatusCode)
	}
	return nil
}

// NopSender swallows outbound messages; used in development without a gateway.
type NopSender struct{}

func (NopSender) SendText(context.Context, string, string) error { return nil }
