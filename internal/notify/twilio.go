package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioAdapter delivers SMS messages through the Twilio REST API.
//
// Settings: account_sid (required), auth_token (required), number_to
// (required), number_from (required), suppress_timestamp.
type TwilioAdapter struct {
	accountSID string
	authToken  string
	to         string
	from       string

	description     string
	appendTimestamp bool

	endpoint string
	client   *http.Client
}

// newTwilioAdapter builds a TwilioAdapter from a notifier's settings.
func newTwilioAdapter(cfg *NotifierConfig) (*TwilioAdapter, error) {
	accountSID, err := cfg.RequiredSetting("account_sid")
	if err != nil {
		return nil, err
	}
	authToken, err := cfg.RequiredSetting("auth_token")
	if err != nil {
		return nil, err
	}
	to, err := cfg.RequiredSetting("number_to")
	if err != nil {
		return nil, err
	}
	from, err := cfg.RequiredSetting("number_from")
	if err != nil {
		return nil, err
	}

	return &TwilioAdapter{
		accountSID:      accountSID,
		authToken:       authToken,
		to:              to,
		from:            from,
		description:     cfg.Description,
		appendTimestamp: cfg.Setting("suppress_timestamp", "0") != "1",
		endpoint: fmt.Sprintf(
			"https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", accountSID),
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Send transmits one SMS.
func (a *TwilioAdapter) Send(ctx context.Context, delivery Delivery) error {
	body := fmt.Sprintf("From %s. %s", a.description, delivery.Message)
	if a.appendTimestamp {
		body = fmt.Sprintf("%s Sent at %s.", body, time.Now().Format(time.RFC1123Z))
	}

	form := url.Values{
		"To":   {a.to},
		"From": {a.from},
		"Body": {body},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: building twilio request: %v", ErrDeliveryFailed, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(a.accountSID, a.authToken)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: twilio: %v", ErrDeliveryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: twilio returned %s: %s",
			ErrDeliveryFailed, resp.Status, strings.TrimSpace(string(detail)))
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}
