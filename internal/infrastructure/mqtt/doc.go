// Package mqtt provides MQTT client connectivity for AlarmBridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// AlarmBridge publishes every decoded panel event and raw panel message
// onto the broker as a live broadcast, alongside the per-notifier dispatch
// pipeline. Dashboards and home automation systems subscribe to the
// broadcast topics without being registered as notifiers.
//
//	Alarm Panel -> AlarmBridge -> MQTT Broker -> Subscribers
//
// Broadcast publishing is best-effort: a broker outage never blocks or
// fails event dispatch to notifiers.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Event("alarm")
//	client.Publish(topic, payload, 1, false)
package mqtt
