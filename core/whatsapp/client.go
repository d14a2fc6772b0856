// Package whatsapp serves the booking flow over the WhatsApp Cloud API.
// Inbound messages arrive on a webhook; outbound messages are plain HTTP
// calls to the Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glowdesk/bookingbot/core/logger"
	"log/slog"
)

// Client is a minimal WhatsApp Cloud API sender.
type Client struct {
	baseURL     string
	accessToken string
	http        *http.Client
}

// NewClient builds a Cloud API client for one business phone number.
func NewClient(phoneID, accessToken, apiVersion string) (*Client, error) {
	if strings.TrimSpace(phoneID) == "" {
		return nil, fmt.Errorf("whatsapp: phone_id is required")
	}
	if strings.TrimSpace(accessToken) == "" {
		return nil, fmt.Errorf("whatsapp: access_token is required")
	}
	if apiVersion == "" {
		apiVersion = "v18.0"
	}

	return &Client{
		baseURL:     fmt.Sprintf("https://graph.facebook.com/%s/%s", apiVersion, phoneID),
		accessToken: accessToken,
		http:        &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// SendText sends a plain text message to a phone number.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                cleanPhoneNumber(to),
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        body,
		},
	}
	return c.post(ctx, "/messages", payload)
}

// MarkRead acknowledges an inbound message so the customer sees read ticks.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}
	return c.post(ctx, "/messages", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.Error(ctx, "wa", "api.fail",
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
			slog.String("body", logger.SanitizeLimit(string(respBody), 512)),
		)
		return fmt.Errorf("whatsapp: %s status %d", path, resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	logger.Debug(ctx, "wa", "api.sent",
		slog.String("path", path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return nil
}

// cleanPhoneNumber strips JID suffixes and punctuation; the Cloud API wants
// bare digit strings.
func cleanPhoneNumber(number string) string {
	if at := strings.IndexByte(number, '@'); at >= 0 {
		number = number[:at]
	}
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
}
