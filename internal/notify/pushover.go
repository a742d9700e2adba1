package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// pushoverEndpoint is the Pushover message API.
const pushoverEndpoint = "https://api.pushover.net/1/messages.json"

// PushoverAdapter delivers push notifications through Pushover.
//
// Settings: token (required), user_key (required), priority, title.
type PushoverAdapter struct {
	token    string
	userKey  string
	priority int
	title    string

	endpoint string
	client   *http.Client
}

// newPushoverAdapter builds a PushoverAdapter from a notifier's settings.
func newPushoverAdapter(cfg *NotifierConfig) (*PushoverAdapter, error) {
	token, err := cfg.RequiredSetting("token")
	if err != nil {
		return nil, err
	}
	userKey, err := cfg.RequiredSetting("user_key")
	if err != nil {
		return nil, err
	}

	priority, err := strconv.Atoi(cfg.Setting("priority", "0"))
	if err != nil || priority < -2 || priority > 2 {
		return nil, fmt.Errorf("%w: priority %q", ErrInvalidSetting, cfg.Setting("priority", ""))
	}

	return &PushoverAdapter{
		token:    token,
		userKey:  userKey,
		priority: priority,
		title:    cfg.Setting("title", "Alarm event"),
		endpoint: pushoverEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send transmits one push message.
func (a *PushoverAdapter) Send(ctx context.Context, delivery Delivery) error {
	form := url.Values{
		"token":     {a.token},
		"user":      {a.userKey},
		"title":     {a.title},
		"message":   {delivery.Message},
		"priority":  {strconv.Itoa(a.priority)},
		"timestamp": {strconv.FormatInt(time.Now().Unix(), 10)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building pushover request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: pushover: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: pushover returned %s: %s",
			ErrDeliveryFailed, resp.Status, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
