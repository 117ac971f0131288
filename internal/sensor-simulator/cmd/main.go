package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/config"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	sensorSimulator "github.com/LeonardoBeccarini/agri_telemetry/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()

	clientID := flag.String("client-id", "sensorPublisher1", "MQTT client ID")
	topic := flag.String("topic", cfg.IngestTopic, "publish topic")
	interval := flag.Duration("interval", 10*time.Second, "publish interval")
	seed := flag.Bool("soilgrids", cfg.SoilGridsSeed, "seed moisture baseline from SoilGrids")
	flag.Parse()

	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("sensor-sim")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mqttCfg := cfg.Rabbit
	mqttCfg.ClientID = *clientID
	client, err := rabbitmq.NewRabbitMQConn(&mqttCfg, ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("mqtt connect failed")
	}

	generator := sensorSimulator.NewDataGenerator()
	if *seed {
		if err := generator.SeedFromSoilGrids(ctx, cfg.Latitude, cfg.Longitude); err != nil {
			log.Warn().Err(err).Msg("soilgrids seed failed, using default baseline")
		}
	}

	publisher := rabbitmq.NewPublisher(client, *topic)
	sim := sensorSimulator.NewSensorSimulator(publisher, generator)

	log.Info().Str("topic", *topic).Dur("interval", *interval).Msg("simulator started")
	sim.Start(ctx, *interval)
}
