package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"finpilot-server/src/api"
	"finpilot-server/src/cache"
	"finpilot-server/src/config"
	"finpilot-server/src/db"
	"finpilot-server/src/handlers"
	"finpilot-server/src/logging"
	"finpilot-server/src/plaid"
	"finpilot-server/src/providers"
	"finpilot-server/src/realtime"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logging.Setup(cfg.LogLevel)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply schema.sql before serving")
}

func serve(ctx context.Context, cfg config.Config) error {
	// Connect to database
	pool, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db connection failed: %w", err)
	}
	defer pool.Close()

	if migrateOnStart {
		if err := db.Migrate(ctx, pool); err != nil {
			return err
		}
		slog.Info("Schema applied")
	}

	qc, err := cache.NewQueryCache(cfg.CacheStaleTime)
	if err != nil {
		return err
	}
	defer qc.Close()

	hub := realtime.NewHub(cfg.AllowedOrigins)
	go hub.Run(ctx)

	inv := cache.NewInvalidator(qc, hub)
	listener := realtime.NewListener(func(ctx context.Context) (*pgx.Conn, error) {
		return db.ListenConn(ctx, cfg.DatabaseURL)
	}, inv)
	go listener.Run(ctx)

	plaidClient, err := plaid.NewPlaidClient(cfg.PlaidClientID, cfg.PlaidSecret, cfg.PlaidEnv)
	if err != nil {
		return err
	}

	env := &handlers.Env{
		DB:          pool,
		Cache:       qc,
		Coalescer:   cache.NewCoalescer(),
		Invalidator: inv,
		Plaid:       plaid.NewService(plaidClient, cfg.PlaidWebhook),
		Crypto:      providers.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoKey),
		Stocks:      providers.NewAlphaVantageClient(cfg.AlphaVantageURL, cfg.AlphaVantageKey),
		FX:          providers.NewExchangeRateClient(cfg.ExchangeRateURL),
		LLM:         providers.NewLLMClient(cfg.LLMGatewayURL, cfg.LLMGatewayKey, cfg.LLMModel),
	}

	router := api.NewRouter(env, hub, api.Options{
		JWTSecret:      cfg.JWTSecret,
		AllowedOrigins: cfg.AllowedOrigins,
		ReadOnly:       cfg.ReadOnly,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server running", "port", cfg.Port, "read_only", cfg.ReadOnly)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
