package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mqttClient is the subset of mqtt.Client the publisher uses.
type mqttClient interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// mqttPublisher mirrors the DND state to an MQTT topic as a retained ON/OFF
// value, for home-automation dashboards.
type mqttPublisher struct {
	client mqttClient
	topic  string
	qos    byte
	retain bool
	logger *slog.Logger
}

const mqttPublishTimeout = 5 * time.Second

// newMQTTPublisher connects to the configured broker.
func newMQTTPublisher(cfg MQTTConfig, logger *slog.Logger) (*mqttPublisher, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.PasswordFile != "" {
		b, err := os.ReadFile(ExpandPath(cfg.PasswordFile))
		if err != nil {
			return nil, fmt.Errorf("read mqtt password file: %w", err)
		}
		opts.SetPassword(strings.TrimSpace(string(b)))
	}
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("mqtt connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(mqtt.Client) {
		logger.Info("mqtt connected", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.WaitTimeout(mqttPublishTimeout) && token.Error() != nil {
		return nil, fmt.Errorf("connect to mqtt broker %s: %w", cfg.Broker, token.Error())
	}

	return &mqttPublisher{
		client: client,
		topic:  cfg.Topic,
		qos:    byte(cfg.QoS),
		retain: cfg.Retain,
		logger: logger,
	}, nil
}

// Run publishes every DND change from src until ctx is canceled or src is
// closed, then disconnects.
func (p *mqttPublisher) Run(ctx context.Context, src <-chan StateBroadcast) {
	defer p.client.Disconnect(mqttQuiesceMS)

	for {
		select {
		case <-ctx.Done():
			return

		case b, ok := <-src:
			if !ok {
				return
			}
			changed, ok := b.(BroadcastDNDChanged)
			if !ok {
				continue
			}
			if err := p.publish(changed.Filter); err != nil {
				p.logger.Error("mqtt publish failed", "topic", p.topic, "error", err)
			}
		}
	}
}

func (p *mqttPublisher) publish(filter InterruptionFilter) error {
	payload := mqttPayloadOff
	if filter.Blocked() {
		payload = mqttPayloadOn
	}

	token := p.client.Publish(p.topic, p.qos, p.retain, payload)
	if !token.WaitTimeout(mqttPublishTimeout) {
		return fmt.Errorf("publish %s: timed out", payload)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", payload, err)
	}
	p.logger.Debug("mqtt state published", "topic", p.topic, "payload", payload)
	return nil
}
