// Command chronicler is the main entry point for the Chronicler narrative
// memory server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/chronicler/internal/config"
	"github.com/MrWong99/chronicler/internal/httpapi"
	"github.com/MrWong99/chronicler/internal/narrative"
	"github.com/MrWong99/chronicler/internal/observe"
	"github.com/MrWong99/chronicler/internal/resilience"
	"github.com/MrWong99/chronicler/pkg/memory"
	"github.com/MrWong99/chronicler/pkg/memory/memstore"
	"github.com/MrWong99/chronicler/pkg/memory/postgres"
	"github.com/MrWong99/chronicler/pkg/provider/llm"
	"github.com/MrWong99/chronicler/pkg/provider/llm/anyllm"
	"github.com/MrWong99/chronicler/pkg/provider/llm/openai"
)

const (
	defaultListenAddr  = ":8080"
	shutdownTimeout    = 15 * time.Second
	serviceVersionInfo = "0.1.0"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "chronicler: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "chronicler: %v\n", err)
		}
		return 1
	}

	logLevel := new(slog.LevelVar)
	logLevel.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	slog.Info("chronicler starting",
		"config", *configPath,
		"listen_addr", listenAddr,
		"provider", cfg.Provider.Name,
		"model", cfg.Provider.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "chronicler",
		ServiceVersion: serviceVersionInfo,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	store, closeStore, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open session store", "err", err)
		return 1
	}
	defer closeStore()

	provider, err := buildProvider(cfg)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}

	engine := narrative.NewEngine(narrative.EngineConfig{
		Store:    store,
		Provider: provider,
		Trigger: narrative.Trigger{
			AutoThreshold: cfg.Summarize.AutoThreshold,
			ManualMinimum: cfg.Summarize.ManualMinimum,
		},
		MaxAttempts:    cfg.Summarize.MaxAttempts,
		AttemptTimeout: time.Duration(cfg.Summarize.AttemptTimeout),
		Backoff:        time.Duration(cfg.Summarize.Backoff),
	})

	watcher, err := config.NewWatcher(*configPath, func(_, _ *config.Config, diff config.ConfigDiff) {
		if diff.LogLevelChanged {
			logLevel.Set(slogLevel(diff.NewLogLevel))
			slog.Info("log level updated", "level", diff.NewLogLevel)
		}
		if diff.SummarizeChanged {
			engine.SetTrigger(narrative.Trigger{
				AutoThreshold: diff.NewSummarize.AutoThreshold,
				ManualMinimum: diff.NewSummarize.ManualMinimum,
			})
			slog.Info("summarize thresholds updated",
				"auto_threshold", diff.NewSummarize.AutoThreshold,
				"manual_minimum", diff.NewSummarize.ManualMinimum,
			)
		}
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	api := httpapi.New(httpapi.Config{
		Store:     store,
		Engine:    engine,
		Assembler: narrative.NewAssembler(engine),
		AutoFire:  cfg.Summarize.AutoFire,
	})

	srv := &http.Server{
		Addr:              listenAddr,
		Handler:           api.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server ready — press Ctrl+C to shut down", "addr", listenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gCtx.Done()
		slog.Info("shutdown signal received, stopping…")
		shCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildStore opens the Postgres store when a DSN is configured and falls back
// to the volatile in-memory store otherwise.
func buildStore(ctx context.Context, cfg *config.Config) (memory.Store, func(), error) {
	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("no postgres_dsn configured; session state will not survive a restart")
		return memstore.New(), func() {}, nil
	}
	pg, err := postgres.NewStore(ctx, cfg.Memory.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to postgres session store")
	return pg, pg.Close, nil
}

// buildProvider constructs the configured LLM provider, wrapping it in a
// failover chain when fallbacks are configured.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	primary, err := buildBackend(cfg.Provider.Name, cfg.Provider.Model,
		cfg.Provider.APIKey, cfg.Provider.BaseURL, time.Duration(cfg.Provider.Timeout))
	if err != nil {
		return nil, err
	}
	if len(cfg.Provider.Fallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewLLMFallback(primary, cfg.Provider.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Provider.Fallbacks {
		backend, err := buildBackend(entry.Name, entry.Model, entry.APIKey, entry.BaseURL, 0)
		if err != nil {
			return nil, fmt.Errorf("fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, backend)
		slog.Info("registered fallback generation backend", "name", entry.Name, "model", entry.Model)
	}
	return fb, nil
}

// buildBackend constructs a single generation backend. "openai" uses the
// native client; every other name is routed through the any-llm gateway.
func buildBackend(name, model, apiKey, baseURL string, timeout time.Duration) (llm.Provider, error) {
	switch name {
	case "openai":
		var opts []openai.Option
		if baseURL != "" {
			opts = append(opts, openai.WithBaseURL(baseURL))
		}
		if timeout > 0 {
			opts = append(opts, openai.WithTimeout(timeout))
		}
		return openai.New(apiKey, model, opts...)
	default:
		var opts []anyllmlib.Option
		if apiKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(apiKey))
		}
		if baseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(baseURL))
		}
		return anyllm.New(name, model, opts...)
	}
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
