// Package mqtt is the message channel for homesec.
//
// It wraps paho.mqtt.golang and adds the pieces the control loop needs to
// stay non-blocking:
//
//   - Client: one broker connection, remembered subscriptions restored on
//     every connect, retained online/offline status with LWT.
//   - Supervisor: the link lifecycle as an explicit state machine
//     (Disconnected, Connecting, Connected) with a constant-delay retry
//     policy from cenkalti/backoff. Unbounded by default.
//   - Outbox: an asynchronous FIFO publish queue behind a sony/gobreaker
//     circuit breaker. Callers enqueue and return; messages that cannot be
//     delivered are dropped and reported, never retried.
//
// # Topics
//
// Topic names are those already used by the doorway and actuator nodes,
// see topics.go. Payloads are small JSON documents.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	client.Subscribe(mqtt.TopicLightingCommand, 0, handler)
//
//	sup := mqtt.NewSupervisor(client, cfg.MQTT.Reconnect, logger)
//	go sup.Run(ctx)
//
//	outbox := mqtt.NewOutbox(client, cfg.MQTT, logger)
//	go outbox.Run(ctx)
//	outbox.PublishJSON(mqtt.TopicSecurityStatus, status)
package mqtt
