package rabbitmq

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// IPublisher publishes raw payloads on MQTT topics.
type IPublisher interface {
	PublishMessage(payload []byte) error
	PublishTo(topic string, qos byte, retained bool, payload []byte) error
	Close()
}

// Publisher holds the shared client and a default topic.
type Publisher struct {
	client mqtt.Client
	topic  string
}

// NewPublisher creates a Publisher bound to topic (used by PublishMessage).
func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage pubblica sul topic di default a QoS 0.
func (p *Publisher) PublishMessage(payload []byte) error {
	return p.PublishTo(p.topic, 0, false, payload)
}

// PublishTo publishes on an explicit topic and waits for the token.
func (p *Publisher) PublishTo(topic string, qos byte, retained bool, payload []byte) error {
	if p.client == nil {
		return fmt.Errorf("publish %s: nil MQTT client", topic)
	}
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Close disconnects the underlying client.
func (p *Publisher) Close() {
	CloseRabbitMQConn(p.client)
}
