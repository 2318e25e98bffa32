package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/relabs-tech/optical_tachometer/internal/config"
	"github.com/relabs-tech/optical_tachometer/internal/telemetry"
)

const publishTimeout = 2 * time.Second

// connectMQTT connects with auto-reconnect enabled.
func connectMQTT(broker, clientID string, log *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(2 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn("mqtt connection lost", "err", err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) {
		return nil, fmt.Errorf("mqtt connect to %s: timed out", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", broker, err)
	}
	log.Info("connected to MQTT broker", "broker", broker, "client_id", clientID)
	return client, nil
}

// subscribeJSON decodes every message on topic into a fresh T.
func subscribeJSON[T any](client mqtt.Client, topic string, log *slog.Logger, fn func(T)) error {
	token := client.Subscribe(topic, 0, func(_ mqtt.Client, msg mqtt.Message) {
		var v T
		if err := json.Unmarshal(msg.Payload(), &v); err != nil {
			log.Warn("mqtt payload unmarshal error", "topic", topic, "err", err)
			return
		}
		fn(v)
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("subscribe %s: %w", topic, err)
	}
	log.Info("subscribed to MQTT topic", "topic", topic)
	return nil
}

// mqttPublisher publishes without blocking the tick loop on acknowledgement.
type mqttPublisher struct {
	client mqtt.Client
	topics config.MQTTConfig
	log    *slog.Logger
}

func (p *mqttPublisher) PublishReading(r telemetry.Reading)     { p.publish(p.topics.TopicReading, true, r) }
func (p *mqttPublisher) PublishAlignment(a telemetry.Alignment) { p.publish(p.topics.TopicAlignment, true, a) }
func (p *mqttPublisher) PublishReply(r telemetry.Reply)         { p.publish(p.topics.TopicReply, false, r) }

func (p *mqttPublisher) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Warn("json marshal error", "topic", topic, "err", err)
		return
	}
	token := p.client.Publish(topic, 0, retained, payload)
	go func() {
		if !token.WaitTimeout(publishTimeout) {
			p.log.Warn("mqtt publish timed out", "topic", topic)
			return
		}
		if err := token.Error(); err != nil {
			p.log.Warn("mqtt publish error", "topic", topic, "err", err)
		}
	}()
}

// startEmbeddedBroker runs an in-process broker that accepts any client.
func startEmbeddedBroker(address string, log *slog.Logger) (*mochi.Server, error) {
	srv := mochi.New(nil)
	if err := srv.AddHook(&auth.AllowHook{}, nil); err != nil {
		return nil, fmt.Errorf("embedded broker auth hook: %w", err)
	}
	tcp := listeners.NewTCP(listeners.Config{Type: "tcp", ID: "tachometer", Address: address})
	if err := srv.AddListener(tcp); err != nil {
		return nil, fmt.Errorf("embedded broker listener %s: %w", address, err)
	}
	if err := srv.Serve(); err != nil {
		return nil, fmt.Errorf("embedded broker serve: %w", err)
	}
	log.Info("embedded MQTT broker listening", "address", address)
	return srv, nil
}
