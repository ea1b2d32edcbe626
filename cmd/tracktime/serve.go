package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	tt "github.com/panyam/tracktime"
	"github.com/panyam/tracktime/client"
	"github.com/panyam/tracktime/config"
	"github.com/panyam/tracktime/logger"
	"github.com/panyam/tracktime/oauth2"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(g *globalFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(g)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ListenAddr = addr
				cfg.Sources["listen_addr"] = config.SourceFlag
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides config)")
	return cmd
}

func appConfig(cfg *config.Config, store tt.SettingsStore) tt.AppConfig {
	oauthOpts := []oauth2.Option{
		oauth2.WithTimeout(cfg.HTTPTimeout),
		oauth2.WithEndpoints(oauth2.Endpoints{
			AuthURL:      cfg.Endpoints.AuthURL,
			TokenURL:     cfg.Endpoints.TokenURL,
			ResourcesURL: cfg.Endpoints.ResourcesURL,
			UserInfoURL:  cfg.Endpoints.UserInfoURL,
		}),
	}
	trackerOpts := []client.ClientOption{client.WithTimeout(cfg.HTTPTimeout)}
	if cfg.Endpoints.TrackerURL != "" {
		trackerOpts = append(trackerOpts, client.WithBaseURL(cfg.Endpoints.TrackerURL))
	}
	return tt.AppConfig{
		Store:           store,
		RedirectURI:     cfg.CallbackURL(),
		SettingsPath:    cfg.SettingsPath,
		AdminSecret:     cfg.AdminSecret,
		SessionLifetime: cfg.SessionLifetime,
		OAuthOptions:    oauthOpts,
		TrackerOptions:  trackerOpts,
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.New()

	store, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			log.Warn().Err(err).Msg("Closing settings store")
		}
	}()

	ac := appConfig(cfg, store)
	ac.Logger = log
	app, err := tt.NewApp(ctx, ac)
	if err != nil {
		return err
	}
	if cfg.AdminSecret == "" {
		log.Warn().Msg("No admin secret configured, admin routes are disabled")
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", cfg.ListenAddr).
			Str("redirect_uri", cfg.CallbackURL()).
			Str("store", cfg.Store).
			Msg("Starting server")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
