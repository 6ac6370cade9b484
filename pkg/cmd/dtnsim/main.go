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

	"github.com/gilchrisn/dtn-routing-service/pkg/api"
	"github.com/gilchrisn/dtn-routing-service/pkg/netstate"
	"github.com/gilchrisn/dtn-routing-service/pkg/routing"
	"github.com/gilchrisn/dtn-routing-service/pkg/sim"
)

func main() {
	opts, err := loadConfig(os.Args[1:])
	if err != nil {
		exitOnFlagError(err)
	}

	cfg, err := opts.routingConfig()
	if err != nil {
		logger := routing.NewConfig().CreateLogger()
		logger.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logger := cfg.CreateLogger()

	if err := run(opts, cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Simulation failed")
	}
}

func run(opts *options, cfg *routing.Config, logger zerolog.Logger) error {
	if err := os.MkdirAll(cfg.ExportDir(), 0755); err != nil {
		return err
	}
	sink, err := cfg.NewSink()
	if err != nil {
		return err
	}

	var store *netstate.Store
	if cfg.Policy() == routing.PolicyEpic {
		store = netstate.New()
	}
	strategy, err := routing.NewStrategy(cfg, routing.Dependencies{Store: store, Sink: sink})
	if err != nil {
		return err
	}
	proto := routing.NewRouter(nil, strategy, cfg)

	events, err := sim.LoadTrace(opts.TraceFile)
	if err != nil {
		return err
	}
	until := opts.Until
	if until <= 0 && len(events) > 0 {
		until = events[len(events)-1].Time + opts.Step
	}

	network := sim.NewNetwork(opts.simOptions(), proto, logger)

	var server *http.Server
	if opts.Listen != "" {
		var storeView api.StoreView
		if store != nil {
			storeView = store
		}
		handlers := api.NewHandlers(network, storeView, string(cfg.Policy()))
		server = &http.Server{
			Addr:         opts.Listen,
			Handler:      api.NewHandler(handlers, opts.Origins),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info().Str("address", opts.Listen).Msg("HTTP server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("HTTP server stopped")
			}
		}()
	}

	logger.Info().
		Str("policy", string(cfg.Policy())).
		Str("trace", opts.TraceFile).
		Int("events", len(events)).
		Float64("until", until).
		Msg("Simulation starting")

	start := time.Now()
	if err := network.Run(events, until); err != nil {
		return err
	}

	stats := network.Stats()
	logger.Info().
		Int("created", stats.Created).
		Int("delivered", stats.Delivered).
		Int("relayed", stats.Relayed).
		Int("aborted", stats.Aborted).
		Int("expired", stats.Expired).
		Int("forward_limit_drops", stats.ForwardLimitDrops).
		Float64("delivery_ratio", stats.DeliveryRatio).
		Float64("latency_mean", stats.LatencyMean).
		Dur("wall", time.Since(start)).
		Msg("Simulation finished")

	// Runs shorter than epic.export_at still leave their series behind
	if store != nil && store.MarkExported() {
		if err := store.Export(sink); err != nil {
			logger.Warn().Err(err).Msg("Final export failed")
		} else {
			logger.Info().Str("dir", cfg.ExportDir()).Msg("Exported lambda and replica series")
		}
	}

	if server == nil {
		return nil
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}
