package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/asterhall/alarmbridge/internal/infrastructure/logging"
	"github.com/asterhall/alarmbridge/internal/infrastructure/mqtt"
)

// refresher reloads notifier definitions from the database.
type refresher interface {
	Refresh(ctx context.Context) error
}

// reconnectRequester asks the panel manager to drop and redial.
type reconnectRequester interface {
	RequestReconnect()
}

// commandHandler services the alarmbridge/command/+ topic so operators
// can poke the running service over the bus: "refresh" reloads notifier
// and template configuration after a database edit, "reconnect" forces
// the panel connection to be re-established.
type commandHandler struct {
	registry  refresher
	templates func(ctx context.Context) error
	panel     reconnectRequester
	log       *logging.Logger
}

// handle implements mqtt.MessageHandler. The command is the final topic
// segment; payloads are ignored.
func (h *commandHandler) handle(topic string, _ []byte) error {
	action := topic[strings.LastIndex(topic, "/")+1:]

	ctx := context.Background()
	switch action {
	case "refresh":
		if err := h.registry.Refresh(ctx); err != nil {
			h.log.Warn("notifier refresh failed", "error", err)
		}
		if err := h.templates(ctx); err != nil {
			return fmt.Errorf("refreshing templates: %w", err)
		}
		h.log.Info("configuration refreshed", "source", "mqtt command")
	case "reconnect":
		h.panel.RequestReconnect()
		h.log.Info("panel reconnect requested", "source", "mqtt command")
	default:
		h.log.Debug("unknown command ignored", "action", action)
	}
	return nil
}

// subscribeCommands wires the command handler onto the broker at QoS 1.
// A duplicate refresh or reconnect is harmless.
func subscribeCommands(client *mqtt.Client, handler *commandHandler) error {
	topics := mqtt.Topics{}
	return client.Subscribe(topics.AllCommands(), 1, handler.handle)
}
