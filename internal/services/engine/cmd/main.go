package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/LeonardoBeccarini/agri_telemetry/internal/config"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/engine"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/logger"
	sensorSimulator "github.com/LeonardoBeccarini/agri_telemetry/internal/sensor-simulator"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/api"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/command"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/event"
	controller "github.com/LeonardoBeccarini/agri_telemetry/internal/services/irrigation-controller"
	"github.com/LeonardoBeccarini/agri_telemetry/internal/services/persistence"
	"github.com/LeonardoBeccarini/agri_telemetry/pkg/rabbitmq"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)
	log := logger.WithComponent("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- MQTT (opzionale: senza broker l'engine gira comunque) ----
	var mqClient mqtt.Client
	if cfg.MQTTEnabled {
		c, err := rabbitmq.NewRabbitMQConn(&cfg.Rabbit, ctx)
		if err != nil {
			log.Warn().Err(err).Msg("MQTT unavailable, continuing without broker")
		} else {
			mqClient = c
		}
	}

	// ---- InfluxDB (condiviso tra store e sink) ----
	var influx influxdb2.Client
	if cfg.StoreBackend == "influx" || cfg.HasSink("influx") {
		influx = influxdb2.NewClient(cfg.InfluxURL, cfg.InfluxToken)
	}

	// ---- Persistence ----
	store, err := persistence.New(ctx, cfg, influx)
	if err != nil {
		log.Warn().Err(err).Str("backend", cfg.StoreBackend).Msg("store unavailable, readings kept in memory only")
		store = persistence.NopStore{}
	}

	// ---- Event sinks ----
	var sinks []event.Sink
	if cfg.HasSink("mqtt") && mqClient != nil {
		sinks = append(sinks, event.NewMQTTSink(rabbitmq.NewPublisher(mqClient, cfg.EventPrefix), cfg.EventPrefix))
	}
	if cfg.HasSink("kafka") {
		sinks = append(sinks, event.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic))
	}
	var influxSink *event.InfluxSink
	if cfg.HasSink("influx") {
		influxSink = event.NewInfluxSink(influx.WriteAPI(cfg.InfluxOrg, cfg.InfluxBucket))
		sinks = append(sinks, influxSink)
	}
	dispatcher := event.NewDispatcher(event.DispatcherConfig{Timeout: cfg.StoreTimeout}, sinks...)
	dispatcher.Start()

	// ---- Source ----
	var source sensorSimulator.Source
	switch {
	case cfg.Source == "ingest" && mqClient != nil:
		ingest := sensorSimulator.NewIngestSource(rabbitmq.NewConsumer(mqClient, cfg.IngestTopic, nil))
		ingest.Start(ctx)
		source = ingest
	default:
		if cfg.Source == "ingest" {
			log.Warn().Msg("ingest source needs MQTT, falling back to generator")
			cfg.Source = "generator"
		}
		gen := sensorSimulator.NewDataGenerator()
		if cfg.SoilGridsSeed {
			if err := gen.SeedFromSoilGrids(ctx, cfg.Latitude, cfg.Longitude); err != nil {
				log.Warn().Err(err).Msg("soilgrids seed failed, using default baseline")
			}
		}
		source = gen
	}

	// ---- Engine + Scheduler ----
	ctrl := controller.NewController(
		controller.WithLocation(cfg.Location()),
		controller.WithFlowRate(cfg.FlowLpm),
		controller.WithDefaultZone(cfg.DefaultZone),
	)
	eng := engine.New(source,
		engine.WithStore(store),
		engine.WithEvents(dispatcher),
		engine.WithController(ctrl),
		engine.WithStoreTimeout(cfg.StoreTimeout),
		engine.WithSourceName(cfg.Source),
	)
	sched := engine.NewScheduler(eng, engine.SchedulerConfig{
		ReadingInterval:    cfg.ReadingInterval,
		SweepInterval:      cfg.SweepInterval,
		AlertRetention:     cfg.AlertRetention,
		DeepSweepInterval:  cfg.DeepSweepInterval,
		DeepRetention:      cfg.DeepRetention,
		IrrigationInterval: cfg.IrrigationInterval,
		BackoffMin:         cfg.BackoffMin,
		BackoffMax:         cfg.BackoffMax,
	})
	sched.Start(ctx)

	// ---- Command consumer ----
	if mqClient != nil {
		cmds := command.NewConsumer(rabbitmq.NewConsumer(mqClient, cfg.CommandTopic, nil), eng)
		go cmds.Start(ctx)
	}

	// ---- gRPC health ----
	var grpcServer *grpc.Server
	healthSrv := health.NewServer()
	if cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
		if err != nil {
			log.Warn().Err(err).Int("port", cfg.GRPCPort).Msg("gRPC health disabled")
		} else {
			grpcServer = grpc.NewServer()
			healthpb.RegisterHealthServer(grpcServer, healthSrv)
			healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
			go func() {
				log.Info().Str("addr", lis.Addr().String()).Msg("gRPC health listening")
				if err := grpcServer.Serve(lis); err != nil {
					log.Error().Err(err).Msg("gRPC serve error")
				}
			}()
		}
	}

	// ---- HTTP ----
	ready := func() map[string]bool {
		deps := map[string]bool{"scheduler": sched.Running()}
		if cfg.MQTTEnabled {
			deps["mqtt"] = mqClient != nil && mqClient.IsConnectionOpen()
		}
		if influxSink != nil {
			deps["influx_events"] = influxSink.LastErrorAge() > 30*time.Second
		}
		return deps
	}
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           api.NewRouter(eng, ready),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server error")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down...")

	// ---- graceful shutdown ----
	healthSrv.Shutdown()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	if grpcServer != nil {
		grpcServer.GracefulStop()
	}

	sched.Stop()
	dispatcher.Stop()
	store.Close()
	if influx != nil {
		influx.Close()
	}
	if mqClient != nil {
		rabbitmq.CloseRabbitMQConn(mqClient)
	}
	log.Info().Msg("shutdown complete")
}
