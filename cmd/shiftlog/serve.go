package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jdcarver/shiftlog/internal/api"
	"github.com/jdcarver/shiftlog/internal/auth"
	"github.com/jdcarver/shiftlog/internal/config"
	"github.com/jdcarver/shiftlog/internal/metrics"
	"github.com/jdcarver/shiftlog/internal/ratelimit"
	"github.com/jdcarver/shiftlog/internal/shift"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the shiftlog API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	store := shift.NewStore(pool)

	verifier, err := auth.NewVerifier(auth.Config{
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return err
	}

	limiter := ratelimit.New(cfg.RateLimit.Default, cfg.RateLimit.Window)

	m := metrics.New()
	m.RegisterDBPoolCollector(func() (total, idle, acquired int32) {
		st := pool.Stat()
		return st.TotalConns(), st.IdleConns(), st.AcquiredConns()
	})
	store.Instrument(m.RecordStoreOperation)

	router := api.NewRouter(api.RouterDeps{
		Store:          store,
		Verifier:       verifier,
		Limiter:        limiter,
		Metrics:        m,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}
