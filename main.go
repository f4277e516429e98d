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

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"

	"github.com/xiaot623/aetheron/internal/adapter/llm"
	"github.com/xiaot623/aetheron/internal/config"
	"github.com/xiaot623/aetheron/internal/logger"
	"github.com/xiaot623/aetheron/internal/repository"
	"github.com/xiaot623/aetheron/internal/service"
	server "github.com/xiaot623/aetheron/internal/transport/http"
	"github.com/xiaot623/aetheron/internal/transport/ws"
	"github.com/xiaot623/aetheron/internal/transport/ws/hub"
	"github.com/xiaot623/aetheron/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("starting aetheron",
		"http_port", cfg.HTTPPort,
		"internal_port", cfg.InternalPort,
		"database", cfg.DatabaseURL,
		"llm_base_url", cfg.LLMBaseURL,
		"model", cfg.LLMModel,
		"session_policy", cfg.SessionPolicy,
	)
	if cfg.UsesDefaultJWTSecret() {
		log.Warn("JWT_SECRET is not set; tokens are signed with the development default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to initialize store", "error", err)
	}
	defer db.Close()

	// Initialize policy engine
	policyEngine, err := policy.NewEngineByName(ctx, cfg.SessionPolicy)
	if err != nil {
		log.Fatal("failed to initialize policy engine", "error", err)
	}

	// Initialize LLM client
	llmClient := llm.NewLLMClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMTimeout)

	// Initialize service
	svc := service.New(db, llmClient, cfg, policyEngine, log.With("component", "service"))

	// Initialize websocket hub
	h := hub.NewHub(log.With("component", "hub"))
	svc.SetNotifier(h)
	wsServer := ws.NewServer(ctx, cfg, h, svc, log.With("component", "ws"))

	externalServer := server.NewExternalServer(cfg, svc, wsServer, log)
	internalServer := server.NewInternalServer(svc, h, log)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	g.Go(func() error {
		svc.RunRetentionMonitor(gctx)
		return nil
	})
	g.Go(func() error {
		return serve(externalServer, cfg.HTTPPort)
	})
	g.Go(func() error {
		return serve(internalServer, cfg.InternalPort)
	})

	log.Info("servers started", "http_port", cfg.HTTPPort, "internal_port", cfg.InternalPort)

	// Wait for a signal or a server failure
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := externalServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("external server did not shut down gracefully", "error", err)
		}
		if err := internalServer.Shutdown(shutdownCtx); err != nil {
			log.Warn("internal server did not shut down gracefully", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("aetheron stopped")
}

func serve(e *echo.Echo, port int) error {
	if err := e.Start(fmt.Sprintf(":%d", port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
