package notify

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// Webhook body encodings.
const (
	bodyURLEncoded = "urlencoded"
	bodyJSON       = "json"
	bodyXML        = "xml"
)

// Placeholder values an operator may use in custom key/value pairs.
// They are replaced with live values at send time.
const (
	replacerMessage   = "{{message}}"
	replacerRaw       = "{{raw}}"
	replacerTimestamp = "{{timestamp}}"
	replacerEventID   = "{{eventid}}"
	replacerEventDesc = "{{eventdesc}}"
)

const webhookUserAgent = "alarmbridge/1.0"

var webhookContentTypes = map[string]string{
	bodyURLEncoded: "application/x-www-form-urlencoded",
	bodyJSON:       "application/json",
	bodyXML:        "application/xml",
}

// customValue is one operator-defined key/value pair carried in the
// webhook payload. Stored as a JSON array under the custom_values
// setting.
type customValue struct {
	Key   string `json:"custom_key"`
	Value string `json:"custom_value"`
}

// WebhookAdapter posts events to an operator-configured HTTP endpoint.
//
// Settings: url (required, host[:port]), path, method (GET or POST,
// default POST), post_type (urlencoded, json or xml; GET allows only
// urlencoded), is_ssl, require_auth + auth_username/auth_password for
// basic auth, custom_values for extra payload fields.
type WebhookAdapter struct {
	endpoint string
	method   string
	bodyType string
	username string
	password string
	useAuth  bool
	values   []customValue

	client *http.Client
}

// newWebhookAdapter builds a WebhookAdapter from a notifier's settings.
func newWebhookAdapter(cfg *NotifierConfig) (*WebhookAdapter, error) {
	host, err := cfg.RequiredSetting("url")
	if err != nil {
		return nil, err
	}

	scheme := "http"
	if cfg.Setting("is_ssl", "0") == "1" {
		scheme = "https"
	}
	path := cfg.Setting("path", "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	method := strings.ToUpper(cfg.Setting("method", http.MethodPost))
	if method != http.MethodGet && method != http.MethodPost {
		return nil, fmt.Errorf("%w: method %q", ErrInvalidSetting, method)
	}

	bodyType := cfg.Setting("post_type", bodyURLEncoded)
	if _, ok := webhookContentTypes[bodyType]; !ok {
		return nil, fmt.Errorf("%w: post_type %q", ErrInvalidSetting, bodyType)
	}
	if method == http.MethodGet && bodyType != bodyURLEncoded {
		return nil, fmt.Errorf("%w: GET requests allow only urlencoded payloads", ErrInvalidSetting)
	}

	a := &WebhookAdapter{
		endpoint: scheme + "://" + host + path,
		method:   method,
		bodyType: bodyType,
		useAuth:  cfg.Setting("require_auth", "0") == "1",
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	if a.useAuth {
		a.username = strings.ReplaceAll(cfg.Setting("auth_username", ""), "\n", "")
		a.password = strings.ReplaceAll(cfg.Setting("auth_password", ""), "\n", "")
	}

	if raw := cfg.Setting("custom_values", ""); raw != "" {
		if err := json.Unmarshal([]byte(raw), &a.values); err != nil {
			return nil, fmt.Errorf("%w: custom_values: %v", ErrInvalidSetting, err)
		}
	}

	return a, nil
}

// Send transmits one event payload.
func (a *WebhookAdapter) Send(ctx context.Context, delivery Delivery) error {
	payload := a.buildPayload(delivery)

	var req *http.Request
	var err error
	switch a.method {
	case http.MethodGet:
		req, err = http.NewRequestWithContext(ctx, http.MethodGet,
			a.endpoint+"?"+encodeForm(payload), nil)
	default:
		var body string
		body, err = a.encodeBody(payload)
		if err == nil {
			req, err = http.NewRequestWithContext(ctx, http.MethodPost,
				a.endpoint, strings.NewReader(body))
		}
	}
	if err != nil {
		return fmt.Errorf("%w: building webhook request: %v", ErrDeliveryFailed, err)
	}

	req.Header.Set("User-Agent", webhookUserAgent)
	req.Header.Set("Content-Type", webhookContentTypes[a.bodyType])
	if a.useAuth {
		req.SetBasicAuth(a.username, a.password)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: webhook %s: %v", ErrDeliveryFailed, a.endpoint, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: webhook %s returned %s", ErrDeliveryFailed, a.endpoint, resp.Status)
	}
	return nil
}

// buildPayload assembles the key/value payload, substituting the
// replacer placeholders with live values.
func (a *WebhookAdapter) buildPayload(delivery Delivery) map[string]string {
	payload := make(map[string]string, len(a.values))
	if len(a.values) == 0 {
		payload["message"] = delivery.Message
		return payload
	}

	for _, v := range a.values {
		payload[v.Key] = substituteReplacers(v.Value, delivery)
	}
	return payload
}

// substituteReplacers swaps a placeholder value for its live
// counterpart. Matching is exact, as in the upstream configurations.
func substituteReplacers(value string, delivery Delivery) string {
	switch value {
	case replacerMessage:
		return delivery.Message
	case replacerRaw:
		return delivery.Raw
	case replacerTimestamp:
		return time.Now().Format("2006-01-02 15:04:05 MST")
	case replacerEventID:
		return delivery.EventID()
	case replacerEventDesc:
		return delivery.EventDescription()
	default:
		return value
	}
}

// encodeBody serializes the payload per the configured body type.
func (a *WebhookAdapter) encodeBody(payload map[string]string) (string, error) {
	switch a.bodyType {
	case bodyJSON:
		b, err := json.Marshal(payload)
		if err != nil {
			return "", err
		}
		return string(b), nil
	case bodyXML:
		return encodeXMLPayload("notification", payload), nil
	default:
		return encodeForm(payload), nil
	}
}

func encodeForm(payload map[string]string) string {
	form := url.Values{}
	for k, v := range payload {
		form.Set(k, v)
	}
	return form.Encode()
}

// encodeXMLPayload renders <tag><key>value</key>...</tag> with keys in
// deterministic order.
func encodeXMLPayload(tag string, payload map[string]string) string {
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("<" + tag + ">")
	for _, k := range keys {
		b.WriteString("<" + k + ">")
		xml.EscapeText(&b, []byte(payload[k]))
		b.WriteString("</" + k + ">")
	}
	b.WriteString("</" + tag + ">")
	return b.String()
}
