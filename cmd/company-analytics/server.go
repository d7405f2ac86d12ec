package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/imran59059/company-analytics/internal/api"
	"github.com/imran59059/company-analytics/internal/composer"
	"github.com/imran59059/company-analytics/internal/config"
	"github.com/imran59059/company-analytics/internal/llm"
	"github.com/imran59059/company-analytics/internal/openrouter"
	"github.com/imran59059/company-analytics/internal/pipeline"
	"github.com/imran59059/company-analytics/internal/search"
	"github.com/imran59059/company-analytics/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStdioMCP()
	},
}

// service is the wired dependency graph shared by the HTTP and stdio modes.
type service struct {
	cfg       config.Config
	store     *storage.Store
	providers *llm.Registry
	analyzer  *api.Analyzer
	closers   []io.Closer
}

func (s *service) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}

func setupLogging(level string, w io.Writer) {
	logLevel := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})))
}

func newService(ctx context.Context, cfg config.Config) (*service, error) {
	for _, w := range cfg.Warnings() {
		slog.Warn(w)
	}

	svc := &service{cfg: cfg}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}
	svc.store = store
	svc.closers = append(svc.closers, store)

	providers := llm.NewRegistry(cfg.LLM.DefaultProvider)
	providers.Register(llm.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL), cfg.OpenAI.Model)
	var orClient *openrouter.Client
	if cfg.OpenRouter.APIKey != "" {
		orClient = openrouter.NewClient(cfg.OpenRouter.APIKey)
	}
	providers.Register(llm.NewOpenRouter(orClient), cfg.OpenRouter.Model)
	providers.Register(llm.NewOllama(cfg.Ollama.BaseURL, cfg.Ollama.Model), cfg.Ollama.Model)
	svc.providers = providers

	var searcher search.Searcher
	if cfg.Search.TavilyAPIKey != "" {
		searcher = search.NewTavily(cfg.Search.TavilyAPIKey, cfg.Search.BaseURL)
		if cfg.Redis.Addr != "" {
			rdb := redis.NewClient(&redis.Options{
				Addr:     cfg.Redis.Addr,
				Password: cfg.Redis.Password,
				DB:       cfg.Redis.DB,
			})
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := rdb.Ping(pctx).Err()
			cancel()
			if err != nil {
				slog.Warn("redis unavailable, search cache disabled", "addr", cfg.Redis.Addr, "error", err)
				rdb.Close()
			} else {
				searcher = search.NewCached(searcher, rdb, cfg.Search.CacheTTL)
				svc.closers = append(svc.closers, rdb)
				slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Search.CacheTTL)
			}
		}
	}

	comp := composer.New(composer.Product{
		Name: cfg.Prompt.ProductName,
		URL:  cfg.Prompt.ProductURL,
	}, 0)
	orch := pipeline.New(providers, searcher, comp, pipeline.Options{
		StageTimeout: cfg.Pipeline.StageTimeout,
		Policy:       pipeline.Policy{SuppressPhrasesOnEvidence: cfg.Pipeline.SuppressPhrasesOnEvidence},
	})
	svc.analyzer = api.NewAnalyzer(orch, store, nil)
	return svc, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (*storage.Store, error) {
	if cfg.Driver == "sqlite" {
		store, err := storage.Open(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening storage: %w", err)
		}
		slog.Info("storage ready", "driver", store.Dialect(), "data_dir", cfg.DataDir)
		return store, nil
	}
	store, err := storage.OpenMySQL(ctx, storage.MySQLOptions{
		DSN:          cfg.MySQLDSN(),
		MaxOpenConns: cfg.MaxOpenConns,
		AutoMigrate:  cfg.AutoMigrate,
	})
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	slog.Info("storage ready", "driver", store.Dialect(), "host", cfg.Host, "database", cfg.Database)
	return store, nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "company-analytics version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg.Log.Level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Analyzer: svc.analyzer,
		Store:    svc.store,
		Version:  version,
	})

	handler := api.NewHandler(api.Deps{
		Analyzer:  svc.analyzer,
		Store:     svc.store,
		Providers: svc.providers,
		RateLimit: api.RateLimit{RPS: cfg.RateLimit.RPS, Burst: cfg.RateLimit.Burst},
		MCP:       server.NewStreamableHTTPServer(mcpSrv),
	})

	addr := cfg.Server.ListenAddr()
	srv := newHTTPServer(ctx, addr, handler)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", addr, "mcp", "/mcp")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	// Request contexts derive from ctx, so open streams are already cancelled
	// here and persist their partial rows before Shutdown returns.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newHTTPServer builds the server with every request context derived from
// ctx. Cancelling ctx ends long-lived streams that Shutdown alone would wait on.
func newHTTPServer(ctx context.Context, addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
}

func runStdioMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// stdout carries the protocol.
	setupLogging(cfg.Log.Level, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Analyzer: svc.analyzer,
		Store:    svc.store,
		Version:  version,
	})
	slog.Info("MCP server started (stdio transport)")
	if err := server.NewStdioServer(mcpSrv).Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
