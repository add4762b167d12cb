// Package notificationapi delivers caregiver SMS through the
// NotificationAPI service.
package notificationapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pillbox/internal/services/notify"
)

const defaultBaseURL = "https://api.notificationapi.com"

type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// Client implements notify.Channel over the NotificationAPI REST sender
// endpoint. No Go SDK exists for the service, so this is a thin hand-rolled
// HTTP client.
type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" {
		return nil, errors.New("notificationapi: client id and secret are required")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{cfg: cfg, http: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (c *Client) Name() string { return "notificationapi" }

type sendRequest struct {
	Type string      `json:"type"`
	To   sendTo      `json:"to"`
	SMS  sendSMSBody `json:"sms"`
}

type sendTo struct {
	ID     string `json:"id"`
	Number string `json:"number,omitempty"`
}

type sendSMSBody struct {
	Message string `json:"message"`
}

func (c *Client) Send(ctx context.Context, n notify.Notification) error {
	body, err := json.Marshal(sendRequest{
		Type: "medication",
		To:   sendTo{ID: n.Recipient.ID, Number: n.Recipient.Contact},
		SMS:  sendSMSBody{Message: n.Message},
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/%s/sender", c.cfg.BaseURL, c.cfg.ClientID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.cfg.ClientID, c.cfg.ClientSecret)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep error bodies short; the API returns small JSON blobs.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("notificationapi: send failed: %s: %s", resp.Status, strings.TrimSpace(string(b)))
	}
	return nil
}
