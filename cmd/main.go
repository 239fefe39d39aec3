package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/MimeLyc/polyglot-cms/internal/config"
	"github.com/MimeLyc/polyglot-cms/internal/httpapi"
	"github.com/MimeLyc/polyglot-cms/internal/jobs"
	"github.com/MimeLyc/polyglot-cms/internal/llm"
	"github.com/MimeLyc/polyglot-cms/internal/persistence"
	"github.com/MimeLyc/polyglot-cms/internal/service"
	"github.com/MimeLyc/polyglot-cms/internal/translate"
	"github.com/MimeLyc/polyglot-cms/pkg/log"
)

func main() {
	// .env is optional, real deployments set the environment directly
	_ = godotenv.Load()

	cfg, err := config.NewFromEnv()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}

	store, err := persistence.NewSQLiteStore(cfg.Server.DBPath)
	if err != nil {
		log.Fatal("Failed to open store at %s: %v", cfg.Server.DBPath, err)
	}
	defer store.Close()

	client, err := llm.NewClient(&llm.Config{
		APIKey:      cfg.LLM.APIKey,
		APIURL:      cfg.LLM.APIURL,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		log.Fatal("Failed to create translation backend client: %v", err)
	}

	translator := translate.New(client,
		translate.WithMaxRetries(cfg.Translate.MaxRetries),
		translate.WithChunking(cfg.Translate.MaxChunkSize, cfg.Translate.CombineThreshold),
	)

	queue := jobs.NewQueue(cfg.Translate.Workers, store)
	orchestrator := service.NewOrchestrator(store, translator, queue)
	queue.Start(orchestrator.ExecuteTask)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Translate.BackfillCronExpr, func() {
		if _, err := orchestrator.Backfill(context.Background()); err != nil {
			log.Error("Backfill sweep failed: %v", err)
		}
	}); err != nil {
		log.Fatal("Failed to schedule backfill sweep: %v", err)
	}
	scheduler.Start()

	server := httpapi.NewServer(orchestrator, store, httpapi.WithQueue(queue))

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening on %s", cfg.Server.Addr)
		errCh <- server.ListenAndServe(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("Received %s, shutting down", sig)
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server failed: %v", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP shutdown: %v", err)
	}

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	// Lets in-flight translation tasks finish so no work is lost mid-write.
	queue.Stop()
	log.Info("Shutdown complete")
}
