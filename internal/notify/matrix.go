package notify

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

// MatrixAdapter posts events into a Matrix room as m.room.message
// events.
//
// Settings: domain (required, homeserver host), token (required,
// access token), room_id (required), custom_values for extra payload
// fields.
type MatrixAdapter struct {
	description string
	endpoint    string
	values      []customValue
	client      *http.Client
}

// newMatrixAdapter builds a MatrixAdapter from a notifier's settings.
func newMatrixAdapter(cfg *NotifierConfig) (*MatrixAdapter, error) {
	domain, err := cfg.RequiredSetting("domain")
	if err != nil {
		return nil, err
	}
	token, err := cfg.RequiredSetting("token")
	if err != nil {
		return nil, err
	}
	roomID, err := cfg.RequiredSetting("room_id")
	if err != nil {
		return nil, err
	}

	a := &MatrixAdapter{
		description: cfg.Description,
		endpoint: fmt.Sprintf(
			"https://%s/_matrix/client/r0/rooms/%s/send/m.room.message?access_token=%s",
			domain, url.PathEscape(roomID), url.QueryEscape(token)),
		client: &http.Client{Timeout: 10 * time.Second},
	}

	if raw := cfg.Setting("custom_values", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.values); err != nil {
			return nil, fmt.Errorf("%w: custom_values: %v", ErrInvalidSetting, err)
		}
	}

	return a, nil
}

// Send posts one room message.
func (a *MatrixAdapter) Send(ctx context.Context, delivery Delivery) error {
	payload := map[string]string{
		"msgtype":   "m.text",
		"body":      fmt.Sprintf("From %s: %s", a.description, delivery.Message),
		"notifier":  a.description,
		"eventid":   delivery.EventID(),
		"eventdesc": delivery.EventDescription(),
		"raw":       delivery.Raw,
	}
	for _, v := range a.values {
		payload[v.Key] = substituteReplacers(v.Value, delivery)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%w: encoding matrix payload: %v", ErrDeliveryFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.endpoint, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("%w: building matrix request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", webhookUserAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: matrix: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: matrix returned %s: %s",
			ErrDeliveryFailed, resp.Status, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
