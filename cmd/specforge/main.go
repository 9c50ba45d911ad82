// Package main wires every collaborator, store, and package in this
// module into a runnable HTTP server, grounded on
// rpggio-trellis/cmd/server/main.go's shape: load config, build a slog
// logger, construct the dependency graph, start an http.Server in a
// goroutine, then block on signal.Notify for a graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/specforge/trdgraph/internal/collab"
	"github.com/specforge/trdgraph/internal/config"
	"github.com/specforge/trdgraph/internal/cost"
	"github.com/specforge/trdgraph/internal/events"
	"github.com/specforge/trdgraph/internal/httpapi"
	"github.com/specforge/trdgraph/internal/nodes"
	"github.com/specforge/trdgraph/internal/scheduler"
	"github.com/specforge/trdgraph/internal/sgraph"
	"github.com/specforge/trdgraph/internal/state"
	"github.com/specforge/trdgraph/internal/store"

	"github.com/specforge/trdgraph/graph/model"
	"github.com/specforge/trdgraph/graph/model/anthropic"
	"github.com/specforge/trdgraph/graph/model/google"
	"github.com/specforge/trdgraph/graph/model/openai"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(*logLevel),
	}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	chatModel, modelName, err := buildChatModel()
	if err != nil {
		logger.Error("failed to build chat model", "error", err)
		os.Exit(1)
	}

	tracker, err := cost.NewTracker()
	if err != nil {
		logger.Error("failed to build cost tracker", "error", err)
		os.Exit(1)
	}
	completer := collab.NewTrackedCompleter(collab.NewModelCompleter(chatModel), modelName, tracker)

	researchCache, err := buildResearchCache(time.Duration(cfg.Research.CacheTTL))
	if err != nil {
		logger.Error("failed to build research cache", "error", err)
		os.Exit(1)
	}

	checkpoints, err := buildCheckpointer(context.Background())
	if err != nil {
		logger.Error("failed to build checkpoint store", "error", err)
		os.Exit(1)
	}

	bus := events.NewBus(cfg.Event.QueueCapacity)
	stepSink, eventSink := scheduler.NewEngineDeps(checkpoints, bus, cfg.Checkpoint.CompactAfter)
	if tracerProvider := setupTracing(); tracerProvider != nil {
		defer tracerProvider.Shutdown(context.Background())
		otelSink := events.NewOTelNodeSink(otel.Tracer("specforge"))
		eventSink = events.ComposeNodeSinks(eventSink, otelSink)
	}

	engine := nodes.BuildEngine(nodes.Deps{
		UpstreamLoader:    collab.NewHTTPUpstreamLoader(envOr("SPECFORGE_UPSTREAM_URL", "http://localhost:9001")),
		Completer:         completer,
		Searcher:          collab.NewWebSearchTool(envOr("SPECFORGE_SEARCH_ENDPOINT", "http://localhost:9002"), os.Getenv("SPECFORGE_SEARCH_API_KEY")),
		ResearchCache:     researchCache,
		CodeBundleFetcher: collab.NewHTTPCodeBundleFetcher(envOr("SPECFORGE_CODEBUNDLE_URL", "http://localhost:9003")),
		ArtifactStore:     collab.NewLocalArtifactStore(envOr("SPECFORGE_ARTIFACT_ROOT", "./artifacts")),
		Notifier:          collab.NewWebhookNotifier(envOr("SPECFORGE_NOTIFY_URL", "http://localhost:9004/notify")),
		ProjectName:       envOr("SPECFORGE_PROJECT_NAME", "specforge"),
		StepSink:          stepSink,
		Events:            eventSink,
		Options:           sgraph.Options{DefaultNodeTimeout: time.Duration(cfg.Node.DefaultTimeout)},
		QualityThreshold:  cfg.TRD.QualityThreshold,
		OptionsPerGap:     cfg.Research.OptionsPerGap,
		MaxGapsPerSession: cfg.Research.MaxGapsPerSession,
	})

	schedCfg := scheduler.Config{
		SessionTTL:       time.Duration(cfg.Session.TTL),
		UserIdleReminder: time.Duration(cfg.Session.UserIdleReminder),
		SweepInterval:    time.Minute,
	}
	sched := scheduler.New(engine, checkpoints, bus, schedCfg)
	defer sched.Stop()

	server := httpapi.NewServer(sched, logger)

	httpServer := &http.Server{
		Addr:    *addr,
		Handler: server,
	}

	go func() {
		logger.Info("server listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	}()

	waitForShutdown(logger, httpServer)
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}

// buildChatModel picks a provider from SPECFORGE_LLM_PROVIDER
// (anthropic|openai|google, default anthropic) and its matching API key
// env var, mirroring graph/model's three first-party adapters.
func buildChatModel() (model.ChatModel, string, error) {
	provider := envOr("SPECFORGE_LLM_PROVIDER", "anthropic")
	switch provider {
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", provider)
		}
		modelName := envOr("SPECFORGE_LLM_MODEL", "claude-sonnet-4-5-20250929")
		return anthropic.NewChatModel(apiKey, modelName), modelName, nil
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required for provider %q", provider)
		}
		modelName := envOr("SPECFORGE_LLM_MODEL", "gpt-4o")
		return openai.NewChatModel(apiKey, modelName), modelName, nil
	case "google":
		apiKey := os.Getenv("GOOGLE_API_KEY")
		if apiKey == "" {
			return nil, "", fmt.Errorf("GOOGLE_API_KEY is required for provider %q", provider)
		}
		modelName := envOr("SPECFORGE_LLM_MODEL", "gemini-1.5-pro")
		return google.NewChatModel(apiKey, modelName), modelName, nil
	default:
		return nil, "", fmt.Errorf("unknown SPECFORGE_LLM_PROVIDER %q", provider)
	}
}

// buildResearchCache embeds gap descriptions with OpenAI's embedding API
// when OPENAI_API_KEY is set, otherwise falls back to chromem-go's default
// (a local ONNX model that needs no network call), so the cache still
// works for deployments running a non-OpenAI chat provider.
func buildResearchCache(ttl time.Duration) (*collab.ResearchCache, error) {
	var embed chromem.EmbeddingFunc
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		embed = chromem.NewEmbeddingFuncOpenAI(apiKey, chromem.EmbeddingModelOpenAI3Small)
	} else {
		embed = chromem.NewEmbeddingFuncDefault()
	}
	return collab.NewResearchCache(context.Background(), embed, ttl)
}

// buildCheckpointer selects a Checkpointer backend from
// SPECFORGE_CHECKPOINT_BACKEND (memory|sqlite|postgres|mysql, default
// sqlite) plus SPECFORGE_CHECKPOINT_DSN.
func buildCheckpointer(ctx context.Context) (store.Checkpointer[state.Session], error) {
	backend := envOr("SPECFORGE_CHECKPOINT_BACKEND", "sqlite")
	dsn := os.Getenv("SPECFORGE_CHECKPOINT_DSN")
	switch backend {
	case "memory":
		return store.NewMemoryStore[state.Session](), nil
	case "sqlite":
		if dsn == "" {
			dsn = "./specforge.db"
		}
		return store.NewSQLiteStore[state.Session](dsn)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("SPECFORGE_CHECKPOINT_DSN is required for backend %q", backend)
		}
		return store.NewPostgresStore[state.Session](ctx, dsn)
	case "mysql":
		if dsn == "" {
			return nil, fmt.Errorf("SPECFORGE_CHECKPOINT_DSN is required for backend %q", backend)
		}
		return store.NewMySQLStore[state.Session](dsn)
	default:
		return nil, fmt.Errorf("unknown SPECFORGE_CHECKPOINT_BACKEND %q", backend)
	}
}

// setupTracing installs a global TracerProvider and returns it for
// shutdown, only when SPECFORGE_OTEL_ENABLED is set. No exporter is wired
// here since none of the pack's dependencies include one; a deployment
// wanting spans to actually leave the process registers a
// sdktrace.WithBatcher(exporter) provider in a fork of this function.
func setupTracing() *sdktrace.TracerProvider {
	if envOr("SPECFORGE_OTEL_ENABLED", "") == "" {
		return nil
	}
	tp := sdktrace.NewTracerProvider()
	otel.SetTracerProvider(tp)
	return tp
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
