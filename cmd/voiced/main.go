// voiced — the UDP voice streaming daemon.
//
// It binds the voice UDP socket, authenticates clients against the channel
// management store, fans audio out to channel peers, and serves the event
// stream and Prometheus metrics over a small HTTP sidecar.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Armagedda/whisper-fleet-link/internal/auth"
	"github.com/Armagedda/whisper-fleet-link/internal/config"
	"github.com/Armagedda/whisper-fleet-link/internal/event"
	"github.com/Armagedda/whisper-fleet-link/internal/presence"
	"github.com/Armagedda/whisper-fleet-link/internal/server"
	"github.com/Armagedda/whisper-fleet-link/internal/signaling"
	"github.com/Armagedda/whisper-fleet-link/internal/store"
	"github.com/Armagedda/whisper-fleet-link/internal/util"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if os.Getenv("VOICE_DEBUG") != "" {
		util.EnableDebug()
	}

	if err := godotenv.Load(); err != nil {
		util.LogWarning("no .env file found, continuing without it")
	}

	cfg, err := config.FromEnv(ctx)
	if err != nil {
		util.LogError("failed to load configuration: %v", err)
		os.Exit(1)
	}

	var membership store.Membership
	if cfg.PostgresDSN != "" {
		pg, perr := store.NewPostgresStore(ctx, cfg.PostgresDSN)
		if perr != nil {
			util.LogError("failed to connect to channel store: %v", perr)
			os.Exit(1)
		}
		defer pg.Close()
		membership = pg
	} else {
		util.LogWarning("VOICE_POSTGRES_DSN not set; using an empty in-memory membership store (development only)")
		membership = store.NewStaticStore()
	}

	bus := event.NewBus()
	registry := presence.NewRegistry()
	authn := auth.NewAuthenticator(cfg.JWTSecret, membership, cfg.HandshakeTimeout)
	metrics := server.NewMetrics(prometheus.DefaultRegisterer)
	srv := server.New(cfg, authn, registry, bus, metrics)

	mux := http.NewServeMux()
	mux.Handle("/events", signaling.NewHub(bus).Handler())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		// Clients read the expected heartbeat cadence from here.
		fmt.Fprintf(w, `{"status":"healthy","service":"voiced","heartbeat_interval_seconds":%d}`,
			int(cfg.HeartbeatInterval.Seconds()))
	})

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()
	go func() {
		util.LogInfo("http sidecar listening on %s", cfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			util.LogError("http sidecar: %v", err)
		}
	}()

	if err := srv.Run(ctx); err != nil {
		util.LogError("voice server: %v", err)
		os.Exit(1)
	}
	util.LogInfo("voice server stopped")
}
