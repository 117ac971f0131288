package rabbitmq

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
)

// Handler processes one message received on topic.
type Handler func(topic string, message mqtt.Message) error

// IConsumer subscribes a handler to a topic until the context ends.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// Consumer holds the client and the subscription topic.
type Consumer struct {
	client  mqtt.Client
	handler Handler
	topic   string
}

// NewConsumer creates a Consumer using the shared MQTT client.
func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{client: client, topic: topic, handler: handler}
}

func (c *Consumer) SetHandler(handler Handler) {
	c.handler = handler
}

// comandi e readings viaggiano a QoS1, il resto a QoS0
func qosFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "irrigation/command") || strings.HasPrefix(t, "sensor/readings") {
		return 1
	}
	return 0
}

// ConsumeMessage subscribes and blocks until ctx is cancelled, then unsubscribes.
func (c *Consumer) ConsumeMessage(ctx context.Context) {
	log := logger.WithComponent("mqtt-consumer").With().Str("topic", c.topic).Logger()

	token := c.client.Subscribe(c.topic, qosFor(c.topic), func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Warn().Msg("no handler set")
			return
		}
		if err := c.handler(c.topic, message); err != nil {
			log.Error().Err(err).Msg("error handling message")
		}
	})
	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Msg("subscribe failed")
		return
	}
	log.Info().Msg("subscribed")

	<-ctx.Done()

	c.client.Unsubscribe(c.topic).Wait()
}
