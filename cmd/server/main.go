package main

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"parkwatch-service/internal/config"
	"parkwatch-service/internal/correlation"
	"parkwatch-service/internal/db"
	"parkwatch-service/internal/detector"
	httphandler "parkwatch-service/internal/http"
	"parkwatch-service/internal/notify"
	"parkwatch-service/internal/repository"
	"parkwatch-service/internal/security"
	"parkwatch-service/internal/service"
	"parkwatch-service/internal/stream"
)

func main() {
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	database, err := db.Open(cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open database")
	}

	bookingRepo := repository.NewBookingRepository(database)
	detectionRepo := repository.NewDetectionRepository(database)
	alarmRepo := repository.NewAlarmRepository(database)

	detectorClient := detector.NewClient(
		cfg.Inference.BaseURL,
		cfg.Inference.APIToken,
		cfg.Inference.Timeout,
		log.With().Str("component", "detector").Logger(),
	)
	ttsClient := security.NewTTSClient(
		cfg.Inference.BaseURL,
		cfg.Inference.APIToken,
		cfg.Inference.TTSModel,
		cfg.Inference.Timeout,
		log.With().Str("component", "tts").Logger(),
	)

	threatPipeline := security.NewThreatPipeline(
		detectorClient, ttsClient,
		cfg.Inference.ThreatModel,
		cfg.Inference.ThreatThreshold,
		cfg.Inference.FallbackThreshold,
		log.With().Str("component", "threat-pipeline").Logger(),
	)
	firePipeline := security.NewFirePipeline(
		detectorClient,
		cfg.Inference.FireModel,
		cfg.Inference.FireThreshold,
		cfg.Inference.FallbackThreshold,
		log.With().Str("component", "fire-pipeline").Logger(),
	)

	notifier, err := notify.New(cfg.Notify.URLs, log.With().Str("component", "notifier").Logger())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build notifier")
	}

	correlator := correlation.New(bookingRepo, log.With().Str("component", "correlator").Logger())

	sightingService := service.NewSightingService(
		correlator,
		threatPipeline,
		firePipeline,
		detectionRepo,
		alarmRepo,
		notifier,
		log.With().Str("component", "sighting-service").Logger(),
	)

	publisher := stream.NewPublisher(
		detectionRepo,
		alarmRepo,
		cfg.Stream.HeartbeatInterval,
		cfg.Stream.BatchSize,
		log.With().Str("component", "change-feed").Logger(),
	)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	handler := httphandler.NewHandler(
		sightingService,
		threatPipeline,
		firePipeline,
		ttsClient,
		sightingService,
		publisher,
		cfg,
		log.With().Str("component", "http").Logger(),
	)
	handler.Register(r)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	log.Info().Str("addr", addr).Msg("starting plate-sighting service")
	if err := r.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization", "Cache-Control"},
		MaxAge:       24 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
	}
	return c
}
