// Package main provides the entrypoint for the walkthrough daemon: the local
// API the mobile shell drives to plan walks.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/walkthrough/walkthrough/internal/api"
	"github.com/walkthrough/walkthrough/internal/api/middleware"
	"github.com/walkthrough/walkthrough/internal/backend"
	"github.com/walkthrough/walkthrough/internal/config"
	"github.com/walkthrough/walkthrough/internal/favorites"
	"github.com/walkthrough/walkthrough/internal/geocoding"
	"github.com/walkthrough/walkthrough/internal/geocoding/googlemaps"
	"github.com/walkthrough/walkthrough/internal/geocoding/nominatim"
	"github.com/walkthrough/walkthrough/internal/provider/resilience"
	"github.com/walkthrough/walkthrough/internal/routing/openrouteservice"
	"github.com/walkthrough/walkthrough/internal/telemetry"
	"github.com/walkthrough/walkthrough/internal/trip"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	cfg, err := config.Load("", "")
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("invalid configuration")
	}

	log := newLogger(cfg)
	log.Info().
		Str("build_time", BuildTime).
		Str("env", cfg.Env).
		Msg("starting walkthrough")

	ctx := context.Background()

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    telemetry.DefaultServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		Enabled:        cfg.Telemetry.Enabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()
	if tp.Enabled() {
		log.Info().Str("otlp_endpoint", cfg.Telemetry.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics(tp.Meter)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	registry := resilience.NewRegistry()

	routes := openrouteservice.NewClient(openrouteservice.ClientConfig{
		APIKey:   cfg.Routing.APIKey,
		BaseURL:  cfg.Routing.BaseURL,
		Timeout:  cfg.Routing.Timeout.Duration,
		Registry: registry,
		Logger:   log.With().Str("component", "openrouteservice").Logger(),
		Tracer:   tp.Tracer,
	})

	geocoder, err := newGeocoder(cfg, registry, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize geocoder")
	}
	log.Info().Str("geocoder", geocoder.Name()).Msg("geocoder initialized")

	location := geocoding.NewDeviceLocation(cfg.Location.MaxAge.Duration)
	resolver := geocoding.NewResolver(geocoding.ResolverConfig{
		Geocoder: geocoder,
		Location: location,
		Logger:   log.With().Str("component", "resolver").Logger(),
	})

	backendClient := backend.NewClient(backend.ClientConfig{
		BaseURL:  cfg.Backend.BaseURL,
		Timeout:  cfg.Backend.Timeout.Duration,
		Registry: registry,
		Logger:   log.With().Str("component", "backend").Logger(),
	})

	favoriteService := favorites.NewService(favorites.ServiceConfig{
		Saver:     backendClient,
		Addresses: favorites.NewAddressResolver(geocoder, log.With().Str("component", "addresses").Logger()),
		Logger:    log.With().Str("component", "favorites").Logger(),
	})

	planner := trip.NewPlanner(trip.PlannerConfig{
		Resolver:       resolver,
		Provider:       routes,
		Landmarks:      backendClient,
		Favorites:      favoriteService,
		Steps:          backendClient,
		Users:          backendClient,
		Logger:         log.With().Str("component", "planner").Logger(),
		RoutingTimeout: cfg.Routing.Timeout.Duration,
		Language:       cfg.Routing.Language,
		Meter:          tp.Meter,
	})

	router := api.NewRouter(api.RouterConfig{
		Version:                Version,
		BuildTime:              BuildTime,
		Logger:                 log,
		ServiceName:            telemetry.DefaultServiceName,
		Metrics:                metrics,
		Trip:                   planner,
		Location:               location,
		Health:                 registry,
		AllowedHosts:           middleware.LoopbackHosts,
		GeocodingRatePerMinute: cfg.Server.GeocodingRatePerMinute,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout.Duration,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout.Duration,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Cancels in-flight route computations and waits for their goroutines.
	planner.Close()

	log.Info().Msg("server stopped")
}

func newLogger(cfg config.Config) zerolog.Logger {
	var log zerolog.Logger
	if cfg.Log.Pretty {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	} else {
		log = zerolog.New(os.Stdout)
	}
	return log.Level(cfg.LogLevel()).
		With().
		Timestamp().
		Str("service", telemetry.DefaultServiceName).
		Str("version", Version).
		Logger()
}

func newGeocoder(cfg config.Config, registry *resilience.Registry, log zerolog.Logger) (geocoding.Geocoder, error) {
	if cfg.Geocoding.Provider == config.GeocoderGoogle {
		client, err := googlemaps.NewClient(googlemaps.ClientConfig{
			APIKey:   cfg.Geocoding.GoogleAPIKey,
			BaseURL:  cfg.Geocoding.GoogleBaseURL,
			Language: cfg.Geocoding.Language,
			Registry: registry,
			Logger:   log.With().Str("component", "googlemaps").Logger(),
		})
		if err != nil {
			return nil, err
		}
		return client, nil
	}
	return nominatim.NewClient(nominatim.ClientConfig{
		BaseURL:   cfg.Geocoding.NominatimURL,
		UserAgent: cfg.Geocoding.UserAgent,
		Language:  cfg.Geocoding.Language,
		Registry:  registry,
		Logger:    log.With().Str("component", "nominatim").Logger(),
	}), nil
}
