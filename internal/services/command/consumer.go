package command

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/model"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/dedup"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

// Executor applica un comando di irrigazione (l'Engine).
type Executor interface {
	ExecuteIrrigation(cmd model.IrrigationCommand) (model.IrrigationStatus, error)
}

// Consumer riceve comandi di irrigazione via MQTT (QoS1) e li inoltra all'engine.
// Comandi identici ripetuti sono legittimi (vince l'ultimo): si scartano solo
// i command_id gia' visti e le redelivery QoS1 di un payload gia' applicato.
type Consumer struct {
	consumer rabbitmq.IConsumer
	executor Executor
	ids      *dedup.Deduper // command_id espliciti
	redeliv  *dedup.Deduper // hash dei payload applicati, per i messaggi con flag DUP
}

func NewConsumer(c rabbitmq.IConsumer, ex Executor) *Consumer {
	return &Consumer{
		consumer: c,
		executor: ex,
		ids:      dedup.New(10*time.Minute, 5000),
		redeliv:  dedup.New(time.Minute, 5000),
	}
}

// Start blocca fino alla cancellazione di ctx.
func (c *Consumer) Start(ctx context.Context) {
	c.consumer.SetHandler(c.handleMessage)
	c.consumer.ConsumeMessage(ctx)
}

func (c *Consumer) handleMessage(topic string, msg mqtt.Message) error {
	return c.handle(topic, msg.Payload(), msg.Duplicate())
}

func (c *Consumer) handle(topic string, payload []byte, redelivered bool) error {
	log := logger.WithComponent("command").With().Str("topic", topic).Logger()

	var cmd model.IrrigationCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("invalid IrrigationCommand: %w", err)
	}

	key := dedup.PayloadKey(payload)
	switch {
	case cmd.CommandID != "":
		if c.ids.Seen(cmd.CommandID) {
			log.Debug().Str("command_id", cmd.CommandID).Msg("duplicate command dropped")
			return nil
		}
	case redelivered && c.redeliv.Seen(key):
		log.Debug().Msg("redelivered command dropped")
		return nil
	}

	status, err := c.executor.ExecuteIrrigation(cmd)
	if err != nil {
		return fmt.Errorf("command rejected: %w", err)
	}
	c.ids.Mark(cmd.CommandID)
	c.redeliv.Mark(key)

	log.Info().Bool("activate", cmd.Activate).Int("duration_min", cmd.DurationMinutes).
		Str("zone", status.CurrentZone).Bool("is_active", status.IsActive).Msg("command applied")
	return nil
}
