package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/onnwee/streamcast/chat"
	"github.com/onnwee/streamcast/config"
	"github.com/onnwee/streamcast/credentials"
	"github.com/onnwee/streamcast/db"
	"github.com/onnwee/streamcast/dispatch"
	"github.com/onnwee/streamcast/obsws"
	"github.com/onnwee/streamcast/roster"
	"github.com/onnwee/streamcast/scenes"
	"github.com/onnwee/streamcast/server"
	"github.com/onnwee/streamcast/telemetry"
	"github.com/onnwee/streamcast/twitchapi"
)

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}
	for _, w := range cfg.Warnings() {
		slog.Warn(w, slog.String("component", "config"))
	}

	telemetry.Init()
	// Tracing is optional; requires OTEL_EXPORTER_OTLP_ENDPOINT.
	shutdownTracing, err := telemetry.InitTracing("streamcast", version)
	if err != nil {
		return fmt.Errorf("tracing initialization failed: %w", err)
	}
	defer shutdownTracing()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg.CredentialsKey)
	if err != nil {
		return err
	}
	rec := credentials.Parse(store.LoadFile(cfg.CredentialsFile))
	if err := cfg.ValidateChatReady(rec.BotToken); err != nil {
		return err
	}
	slog.Info("credentials loaded",
		slog.String("file", cfg.CredentialsFile),
		slog.Int("moderators", len(rec.Moderators)),
		slog.Bool("obs_password", rec.ControlPassword != ""))

	obs := obsws.New(obsws.Config{
		Host:     cfg.OBSHost,
		Port:     cfg.OBSPort,
		Password: rec.ControlPassword,
		Timeout:  cfg.OBSTimeout,
	})
	cache := scenes.NewCache()

	dcfg := dispatch.Config{
		Control:         obs,
		Roster:          roster.FromModerators(rec.Moderators),
		Scenes:          cache,
		Store:           store,
		CredentialsPath: cfg.CredentialsFile,
		Record:          rec,
	}

	// Optional audit log.
	var database *sql.DB
	var auditLog *db.AuditLog
	if cfg.DBDsn != "" {
		database, err = db.Connect(ctx, cfg.DBDsn)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if err := database.Close(); err != nil {
				slog.Error("failed to close database", slog.Any("err", err))
			}
		}()
		slog.Info("running database migrations", slog.String("component", "db_migrate"))
		if err := db.Migrate(ctx, database); err != nil {
			return fmt.Errorf("failed to migrate db: %w", err)
		}
		auditLog = db.NewAuditLog(database)
		dcfg.Audit = auditLog
	} else {
		slog.Info("audit log disabled (DB_DSN not set)")
	}

	d, err := dispatch.New(dcfg)
	if err != nil {
		return err
	}

	if cfg.SceneRefreshSchedule != "" {
		sched, err := scenes.NewScheduler(cache, cfg.SceneRefreshSchedule, d.FetchScenes, 2*cfg.OBSTimeout)
		if err != nil {
			return err
		}
		sched.Start(ctx)
	}

	gw, err := buildGateway(ctx, cfg, rec.BotToken, d)
	if err != nil {
		return err
	}

	opts := server.Options{
		Bridge:   d,
		Control:  obs,
		Scenes:   cache,
		Platform: gw.Platform(),
		HasToken: rec.BotToken != "",
		DB:       database,
	}
	if auditLog != nil {
		opts.Audit = auditLog
	}
	go func() {
		if err := server.Start(ctx, opts, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Warm the scene cache; OBS may not be running yet, which is fine.
	go func() {
		warmCtx, cancel := context.WithTimeout(ctx, 2*cfg.OBSTimeout)
		defer cancel()
		names := d.RefreshScenes(warmCtx)
		slog.Info("initial scene list", slog.Int("scenes", len(names)), slog.String("component", "scene_cache"))
	}()

	slog.Info("bridge started", slog.String("platform", gw.Platform()), slog.String("http_addr", cfg.HTTPAddr))
	if err := gw.Run(ctx); err != nil {
		return err
	}
	slog.Info("shutting down")
	return nil
}

// buildGateway validates the bot token where the platform allows it up front
// and returns the configured chat gateway.
func buildGateway(ctx context.Context, cfg *config.Config, token string, d *dispatch.Dispatcher) (chat.Gateway, error) {
	switch cfg.Platform {
	case config.PlatformTelegram:
		gw, err := chat.NewTelegramGateway(chat.TelegramConfig{
			Token:   token,
			OwnerID: cfg.TelegramOwnerID,
			Prefix:  cfg.CommandPrefix,
		}, d)
		if err != nil {
			return nil, err
		}
		return gw, nil
	default:
		vctx, cancel := context.WithTimeout(ctx, 8*time.Second)
		info, err := twitchapi.ValidateToken(vctx, nil, token)
		cancel()
		switch {
		case errors.Is(err, twitchapi.ErrInvalidToken):
			return nil, err
		case err != nil:
			// Twitch unreachable: let the IRC login decide.
			slog.Warn("twitch token validation skipped", slog.Any("err", err))
		default:
			slog.Info("twitch token validated", slog.String("login", info.Login), slog.Int("expires_in", info.ExpiresIn))
			if !info.HasScope("chat:read") || !info.HasScope("chat:edit") {
				slog.Warn("bot token lacks chat:read/chat:edit scopes", slog.Any("scopes", info.Scopes))
			}
		}

		tc := chat.TwitchConfig{
			Channel:     cfg.TwitchChannel,
			BotUsername: cfg.TwitchBotUsername,
			Token:       token,
			Prefix:      cfg.CommandPrefix,
		}
		if cfg.HelixEnabled() {
			tc.Users = &twitchapi.HelixClient{
				AppTokenSource: &twitchapi.TokenSource{ClientID: cfg.TwitchClientID, ClientSecret: cfg.TwitchClientSecret},
				ClientID:       cfg.TwitchClientID,
			}
		} else {
			slog.Info("helix lookups disabled; only users seen in chat can be targeted", slog.String("component", "twitch_gateway"))
		}
		gw, err := chat.NewTwitchGateway(tc, d)
		if err != nil {
			return nil, err
		}
		return gw, nil
	}
}
