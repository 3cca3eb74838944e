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
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/TusharChoudharyy/zava-chat-app/internal/config"
	"github.com/TusharChoudharyy/zava-chat-app/internal/events"
	"github.com/TusharChoudharyy/zava-chat-app/internal/logging"
	"github.com/TusharChoudharyy/zava-chat-app/internal/metrics"
	"github.com/TusharChoudharyy/zava-chat-app/internal/registry"
	"github.com/TusharChoudharyy/zava-chat-app/internal/relay"
	"github.com/TusharChoudharyy/zava-chat-app/internal/server"
	"github.com/TusharChoudharyy/zava-chat-app/internal/turn"
	"github.com/TusharChoudharyy/zava-chat-app/internal/version"
)

const shutdownTimeout = 5 * time.Second

func main() {
	configFile := pflag.StringP("config", "c", "", "path to a YAML config file")
	pflag.Parse()

	logging.Init(zerolog.InfoLevel)

	if err := run(*configFile); err != nil {
		log.Error().Err(err).Msg("Relay stopped")
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadRelay(configFile)
	if err != nil {
		return err
	}

	// 1. Room state and instrumentation
	reg := registry.New(cfg.RegistryOptions())
	m := metrics.NewRelay()

	pub, err := events.Open(cfg.EventOptions())
	if err != nil {
		return err
	}
	emitter := events.NewAsync(pub, cfg.Events.BufferSize, m.EventsDropped.Inc)
	defer emitter.Close()

	// 2. Optional TURN server for peers behind symmetric NATs
	if cfg.TURN.Enabled {
		ts, err := turn.NewServer(turn.Options{
			ListenAddr: cfg.TURN.ListenAddr,
			Realm:      cfg.TURN.Realm,
			PublicIP:   cfg.TURN.PublicIP,
			Users:      cfg.TURN.Users,
		})
		if err != nil {
			return err
		}
		defer ts.Close()
		log.Info().Str("addr", ts.Addr().String()).Msg("TURN server listening")
	}

	// 3. The hub's event loop
	hub := relay.NewHub(reg, m, emitter)
	go hub.Run()
	defer hub.Stop()

	// 4. HTTP surface
	srv := server.New(hub, reg, m, server.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		ExposeRooms:    cfg.ExposeRooms,
		Limits:         cfg.Limits(),
	})
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Str("version", version.Version).Msg("Starting relay")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
