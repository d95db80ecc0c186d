package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/promptgate/gateway/internal/config"
	"github.com/promptgate/gateway/internal/httpserver"
	"github.com/promptgate/gateway/internal/logging"
	"github.com/promptgate/gateway/internal/orchestrator"
	"github.com/promptgate/gateway/internal/session"
	sessionpostgres "github.com/promptgate/gateway/internal/session/postgres"
	sessionsqlite "github.com/promptgate/gateway/internal/session/sqlite"
	upstreamanthropic "github.com/promptgate/gateway/internal/upstream/anthropic"
)

func main() {
	configPath := flag.String("config", "gateway.yaml", "path to the YAML config file")
	flag.Parse()

	// A .env beside the binary is a convenience for local runs; absence is fine.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	closer, err := logging.Setup(cfg.LogFile)
	if err != nil {
		log.Fatalf("init logging: %v", err)
	}
	defer closer.Close()

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("open session store: %v", err)
	}
	defer store.Close()

	sessions := session.NewManager(store, cfg.SessionMaxTurns, cfg.SessionTTL())

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sessions.RunSweeper(sweepCtx, cfg.SweepInterval())

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		log.Fatalf("init orchestrator: %v", err)
	}

	backend := "cli"
	if cfg.UseHostedAPI() {
		backend = "api"
	}
	log.Printf("gatewayd: backend=%s cli_path=%s max_concurrency=%d session_backend=%s",
		backend, cfg.CLIPath, cfg.MaxConcurrency, cfg.SessionBackend)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     httpserver.New(cfg, sessions, orch).Router(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		log.Printf("gatewayd: listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server error: %v", err)
		}
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGINT)
	<-sigs

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
}

func openStore(cfg config.Config) (session.Store, error) {
	switch cfg.SessionBackend {
	case "postgres":
		return sessionpostgres.New(cfg.PostgresDSN)
	default:
		return sessionsqlite.New(cfg.SessionPath)
	}
}

func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, error) {
	opts := orchestrator.Options{
		Pool:           orchestrator.NewPool(cfg.MaxConcurrency, cfg.QueueWait()),
		Allow:          orchestrator.NewAllowList(cfg.AllowedCommands),
		DefaultTimeout: cfg.DefaultTimeout(),
		MaxTimeout:     cfg.MaxTimeout(),
	}
	if cfg.AnthropicAPIKey != "" {
		remote, err := upstreamanthropic.New(upstreamanthropic.Config{
			APIKey:  cfg.AnthropicAPIKey,
			BaseURL: cfg.AnthropicBaseURL,
			Version: cfg.AnthropicVersion,
		})
		if err != nil {
			return nil, err
		}
		opts.Remote = remote
	}
	opts.Subprocess = &orchestrator.SubprocessRunner{
		BinaryPath: cfg.CLIPath,
		APIKey:     cfg.AnthropicAPIKey,
	}
	return orchestrator.New(opts), nil
}
