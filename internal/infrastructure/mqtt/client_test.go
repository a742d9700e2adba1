package mqtt

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/asterhall/alarmbridge/internal/infrastructure/config"
)

// offlineClient returns a client that has never connected. Validation
// paths and subscription bookkeeping are exercised without a broker;
// round-trip behaviour is covered by integration runs against a live
// Mosquitto instance.
func offlineClient() *Client {
	return &Client{
		cfg: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     1883,
				ClientID: "alarmbridge-test",
			},
			QoS: 1,
		},
		subscriptions: make(map[string]subscription),
	}
}

func TestCloseNil(t *testing.T) {
	client := offlineClient()

	if err := client.Close(); err != nil {
		t.Errorf("Close() on unconnected client error = %v", err)
	}
}

func TestIsConnected_InitialState(t *testing.T) {
	client := offlineClient()

	if client.IsConnected() {
		t.Error("IsConnected() = true for a client that never connected")
	}
}

func TestHealthCheckDisconnected(t *testing.T) {
	client := offlineClient()

	err := client.HealthCheck(context.Background())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}
}

func TestHealthCheckCancelled(t *testing.T) {
	client := offlineClient()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.HealthCheck(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestPublishEmptyTopic(t *testing.T) {
	client := offlineClient()

	err := client.Publish("", []byte("test"), 1, false)
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish() error = %v, want ErrInvalidTopic", err)
	}
}

func TestPublishInvalidQoS(t *testing.T) {
	client := offlineClient()

	err := client.Publish("test/topic", []byte("test"), 3, false)
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish() error = %v, want ErrInvalidQoS", err)
	}
}

func TestPublishOversizedPayload(t *testing.T) {
	client := offlineClient()

	err := client.Publish("test/topic", make([]byte, maxPayloadSize+1), 1, false)
	if !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish() error = %v, want ErrPublishFailed", err)
	}
}

func TestPublishDisconnected(t *testing.T) {
	client := offlineClient()

	err := client.Publish("test/topic", []byte("test"), 1, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Publish() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeEmptyTopic(t *testing.T) {
	client := offlineClient()

	err := client.Subscribe("", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestSubscribeInvalidQoS(t *testing.T) {
	client := offlineClient()

	err := client.Subscribe("test/topic", 3, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Subscribe() error = %v, want ErrInvalidQoS", err)
	}
}

func TestSubscribeNilHandler(t *testing.T) {
	client := offlineClient()

	err := client.Subscribe("test/topic", 1, nil)
	if !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("Subscribe() error = %v, want ErrSubscribeFailed", err)
	}
}

func TestSubscribeDisconnected(t *testing.T) {
	client := offlineClient()

	err := client.Subscribe("test/topic", 1, func(string, []byte) error { return nil })
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Subscribe() error = %v, want ErrNotConnected", err)
	}

	// A failed subscribe must not be tracked for restore-on-reconnect.
	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestUnsubscribeEmptyTopic(t *testing.T) {
	client := offlineClient()

	err := client.Unsubscribe("")
	if !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe() error = %v, want ErrInvalidTopic", err)
	}
}

func TestUnsubscribeDisconnected(t *testing.T) {
	client := offlineClient()

	err := client.Unsubscribe("test/topic")
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestSubscriptionCount_Empty(t *testing.T) {
	client := offlineClient()

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", client.SubscriptionCount())
	}
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"event", topics.Event("alarm"), "alarmbridge/event/alarm"},
		{"message", topics.Message("keypad"), "alarmbridge/message/keypad"},
		{"panel status", topics.PanelStatus(), "alarmbridge/system/panel"},
		{"system status", topics.SystemStatus(), "alarmbridge/system/status"},
		{"command", topics.Command("reconnect"), "alarmbridge/command/reconnect"},
		{"all events", topics.AllEvents(), "alarmbridge/event/+"},
		{"all messages", topics.AllMessages(), "alarmbridge/message/+"},
		{"all commands", topics.AllCommands(), "alarmbridge/command/+"},
		{"all topics", topics.AllTopics(), "alarmbridge/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("bridge-1")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "bridge-1") {
		t.Errorf("online payload missing fields: %s", online)
	}

	offline := buildOfflinePayload("bridge-1")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload missing fields: %s", offline)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "broker.example.com",
			Port:     8883,
			TLS:      true,
			ClientID: "alarmbridge-test",
		},
	}

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 {
		t.Fatalf("expected 1 broker, got %d", len(opts.Servers))
	}
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("broker scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil {
		t.Error("TLS enabled but no TLS config set")
	}
}
