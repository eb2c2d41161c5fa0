package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SMSClient talks to an Africa's Talking-compatible bulk SMS gateway.
type SMSClient struct {
	url      string
	username string
	apiKey   string
	from     string
	client   *http.Client
}

func NewSMSClient(gatewayURL, username, apiKey, from string) *SMSClient {
	return &SMSClient{
		url:      gatewayURL,
		username: username,
		apiKey:   apiKey,
		from:     from,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type sendResponse struct {
	SMSMessageData struct {
		Message    string `json:"Message"`
		Recipients []struct {
			Number    string `json:"number"`
			Status    string `json:"status"`
			MessageID string `json:"messageId"`
		} `json:"Recipients"`
	} `json:"SMSMessageData"`
}

// Send delivers one SMS and returns the gateway-assigned message id.
func (c *SMSClient) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	form := url.Values{}
	form.Set("username", c.username)
	form.Set("to", phoneNumber)
	form.Set("message", message)
	if c.from != "" {
		form.Set("from", c.from)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apiKey", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("failed to decode json: %w body=%q", err, string(body))
	}
	if len(sr.SMSMessageData.Recipients) == 0 {
		return "", fmt.Errorf("no recipients in response body=%q", string(body))
	}

	rcpt := sr.SMSMessageData.Recipients[0]
	if rcpt.Status != "Success" {
		return "", fmt.Errorf("gateway rejected recipient: status=%q number=%q", rcpt.Status, rcpt.Number)
	}
	if rcpt.MessageID == "" {
		return "", fmt.Errorf("missing messageId in response body=%q", string(body))
	}

	return rcpt.MessageID, nil
}
