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
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/tablesync/go/clients/lobbyapi"
	"github.com/mcdev12/tablesync/go/internal/config"
	"github.com/mcdev12/tablesync/go/internal/dbconfig"
	"github.com/mcdev12/tablesync/go/internal/models"
	"github.com/mcdev12/tablesync/go/internal/realtime/channel"
	"github.com/mcdev12/tablesync/go/internal/realtime/session"
	"github.com/mcdev12/tablesync/go/internal/relay"
	"github.com/mcdev12/tablesync/go/internal/statusapi"
	"github.com/mcdev12/tablesync/go/internal/tableclient"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if err := run(cfg); err != nil {
		log.Fatal().Err(err).Msg("table client failed")
	}
	log.Info().Msg("table client shutdown complete")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hints, closeHints, err := setupHints(ctx, cfg)
	if err != nil {
		return fmt.Errorf("set up session hints: %w", err)
	}
	defer closeHints()

	clock := clockwork.NewRealClock()
	dialer := channel.NewWebSocketDialer(channel.DefaultConfig(cfg.ServerURL))
	svc := tableclient.New(cfg.Client(), clock, dialer, hints)
	svc.OnRecovery(func(err error) {
		if err != nil {
			return
		}
		p := svc.Session().Placement()
		log.Info().
			Str("table_id", p.TableID).
			Str("spectator_table_id", p.SpectatorTableID).
			Msg("session recovered")
	})

	if cfg.APIURL != "" {
		bootstrap(ctx, svc, cfg)
	}

	var relayStatus statusapi.RelayStatus
	if cfg.RelayEnabled() {
		r, err := relay.Connect(cfg.RelayConfig(), clock)
		if err != nil {
			return fmt.Errorf("connect relay: %w", err)
		}
		defer r.Close()
		r.Attach(svc.Store())
		relayStatus = r
	}

	log.Info().
		Str("server_url", cfg.ServerURL).
		Str("hint_store", cfg.Hints.Store).
		Bool("relay", cfg.RelayEnabled()).
		Msg("starting table client")

	g, gctx := errgroup.WithContext(ctx)

	if cfg.StatusAddr != "" {
		server := &http.Server{
			Addr:         cfg.StatusAddr,
			Handler:      statusapi.NewHandler(svc, relayStatus).Routes(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}
		g.Go(func() error {
			log.Info().Str("addr", server.Addr).Msg("status server starting")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("status server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		// A failed first dial is retried by the connection manager.
		if err := svc.Connect(gctx, cfg.Token); err != nil {
			log.Warn().Err(err).Msg("initial connect failed")
		}
		<-gctx.Done()
		log.Info().Msg("received shutdown signal")
		svc.Disconnect()
		return nil
	})

	return g.Wait()
}

func setupHints(ctx context.Context, cfg *config.Config) (session.HintStore, func(), error) {
	switch cfg.Hints.Store {
	case config.HintsMemory:
		return &session.MemoryHints{}, func() {}, nil
	case config.HintsFile:
		return session.NewFileHints(cfg.Hints.File), func() {}, nil
	}

	// The hint store kind names the database/sql driver.
	dbCfg := dbconfig.NewConfigFromEnv()
	dbCfg.Driver = cfg.Hints.Store
	hints, err := session.OpenSQLHints(ctx, dbCfg, cfg.Hints.Key)
	if err != nil {
		return nil, nil, err
	}
	return hints, func() {
		if err := hints.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close hint database")
		}
	}, nil
}

// bootstrap seeds the profile and lobby over HTTP so a renderer has
// something to show before the channel is up.
func bootstrap(ctx context.Context, svc *tableclient.Service, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client := lobbyapi.NewLobbyApiClient(cfg.APIURL, cfg.Token)
	me, err := client.GetMe(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch profile")
	} else {
		svc.SeedProfile(me.Profile())
	}

	tables, err := client.GetTables(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to fetch lobby tables")
		return
	}
	svc.SeedLobby(models.Lobby{Tables: tables})
	log.Info().Int("tables", len(tables)).Msg("lobby seeded")
}
