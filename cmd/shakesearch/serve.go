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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/shakesearch/internal/config"
	logpkg "github.com/kailas-cloud/shakesearch/internal/logger"
	"github.com/kailas-cloud/shakesearch/internal/metrics"
	"github.com/kailas-cloud/shakesearch/internal/repository/corpus"
	chiTransport "github.com/kailas-cloud/shakesearch/internal/transport/chi"
	"github.com/kailas-cloud/shakesearch/internal/transport/web"
	healthuc "github.com/kailas-cloud/shakesearch/internal/usecase/health"
	searchuc "github.com/kailas-cloud/shakesearch/internal/usecase/search"
	"github.com/kailas-cloud/shakesearch/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the search API, the search page and static files",
	Long: `Serve loads the corpus into a suffix array and serves GET /search, the
server-rendered page at /ui, /health, /metrics and the static directory.

Configuration is read from config/$ENV.yaml (ENV defaults to "local") unless
--config names a file.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("config", "", "config file (default: config/$ENV.yaml)")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	env := config.GetEnv()

	cfg, err := loadServeConfig(cmd, env)
	if err != nil {
		return err
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting shakesearch server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("corpus", cfg.Corpus.Path),
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.handler,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Received shutdown signal")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", zap.Error(err))
		return err //nolint:wrapcheck // already wrapped in the group
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func loadServeConfig(cmd *cobra.Command, env string) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	var (
		cfg config.Config
		err error
	)
	if path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// app is the composition root of the server.
type app struct {
	handler http.Handler
	ui      *web.Handler
}

func newApp(cfg config.Config, logger *zap.Logger) (*app, error) {
	// Register metrics explicitly (no init())
	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	idx, err := corpus.Load(cfg.Corpus.Path)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	logger.Info("Corpus loaded", zap.String("path", cfg.Corpus.Path), zap.Int("bytes", idx.Len()))

	searchSvc := searchuc.New(idx).
		WithPaging(cfg.Corpus.PageSize, cfg.Corpus.PreviewSize).
		WithMaxQueryLen(cfg.Corpus.MaxQueryLen)
	searcher := searchuc.NewInstrumented(searchSvc, logger)

	ui := web.NewHandler(searcher, web.Config{
		SessionTTL:  time.Duration(cfg.UI.SessionTTLSec) * time.Second,
		MaxSessions: cfg.UI.MaxSessions,
	}, logger)

	server := chiTransport.NewServer(searcher, healthuc.New(idx), logger)
	handler := server.NewRouter(chiTransport.RouterConfig{
		APIKeys:   cfg.Auth.APIKeys,
		ProtectUI: cfg.Auth.ProtectUI,
		StaticDir: cfg.Static.Dir,
		Mount:     ui.Mount,
	})

	return &app{handler: handler, ui: ui}, nil
}

func (a *app) close() {
	a.ui.Close()
}
