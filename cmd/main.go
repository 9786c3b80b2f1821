package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docdigest/internal/config"
	"docdigest/internal/document"
	"docdigest/internal/engine"
	"docdigest/internal/ratelimiter"
	"docdigest/internal/storage"
	"docdigest/internal/summarizer"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(log)

	saveKey := flag.String("save-api-key", "", "store an API key for the configured provider and exit")
	recent := flag.Int("recent", 0, "print the N most recent summaries and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		sig := <-c
		log.InfoContext(ctx, "Shutdown signal is received",
			"signal", sig.String())
		cancel()
	}()

	if err := run(ctx, log, *saveKey, *recent, flag.Arg(0)); err != nil {
		log.ErrorContext(ctx, "Run failed",
			"error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger, saveKey string, recent int, path string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	store, err := storage.New(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.WarnContext(ctx, "Failed to close store",
				"error", closeErr,
				"dbPath", cfg.DBPath)
		}
	}()

	if saveKey != "" {
		if err := store.SaveAPIKey(ctx, cfg.Provider, saveKey); err != nil {
			return fmt.Errorf("save API key: %w", err)
		}
		log.InfoContext(ctx, "API key is saved",
			"provider", cfg.Provider)

		return nil
	}

	if recent > 0 {
		return printRecent(ctx, store, recent)
	}

	if path == "" {
		return errors.New("usage: docdigest [flags] <document>")
	}

	apiKey := cfg.APIKey()
	if apiKey == "" {
		apiKey, err = store.LoadAPIKey(ctx, cfg.Provider)
		if err != nil {
			return fmt.Errorf("load API key: %w", err)
		}
	}
	if apiKey == "" {
		return fmt.Errorf("no API key for provider %s: set the env var or use -save-api-key", cfg.Provider)
	}

	provider, err := summarizer.NewProvider(ctx, cfg.Provider, apiKey, cfg.Model)
	if err != nil {
		return fmt.Errorf("create provider: %w", err)
	}
	log.InfoContext(ctx, "Provider is initialized",
		"provider", provider.Name(),
		"model", cfg.Model)

	limiter := ratelimiter.New(cfg.RequestsPerMinute, cfg.MinimumDelay, log)
	client := summarizer.NewClient(
		provider,
		limiter,
		cfg.MaxAttempts,
		cfg.BaseBackoff,
		cfg.RequestTimeout,
		log,
	)

	eng, err := engine.New(client, engine.Options{
		MaxChunkSize:      cfg.MaxChunkSize,
		ChunkOverlap:      cfg.ChunkOverlap,
		Workers:           cfg.Workers,
		ReduceTokenBudget: cfg.ReduceTokenBudget,
		Temperature:       cfg.Temperature,
		TopP:              cfg.TopP,
		TopK:              cfg.TopK,
		MaxOutputTokens:   cfg.MaxOutputTokens,
	}, log)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	text, err := document.Read(path)
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}
	text = document.Normalize(text)
	log.InfoContext(ctx, "Document is read",
		"path", path,
		"characters", len(text))

	start := time.Now()
	result, err := eng.Summarize(ctx, text, consoleSink{})
	if err != nil {
		return err
	}

	fmt.Println(result.Summary)

	if result.ChunkFailed > 0 {
		log.WarnContext(ctx, "Some chunks could not be summarized",
			"failed", result.ChunkFailed,
			"total", result.ChunkTotal,
			"failedIndexes", result.FailedIndexes)
	}
	log.InfoContext(ctx, "Summarization is completed",
		"chunks", result.ChunkTotal,
		"durationSeconds", time.Since(start).Seconds())

	if err := store.SaveRun(ctx, storage.RunRecord{
		DocumentPath: path,
		Summary:      result.Summary,
		ChunkTotal:   result.ChunkTotal,
		ChunkFailed:  result.ChunkFailed,
		Duration:     result.Duration,
	}); err != nil {
		log.WarnContext(ctx, "Failed to save run",
			"error", err,
			"path", path)
	}

	return nil
}

func printRecent(ctx context.Context, store *storage.Store, limit int) error {
	records, err := store.RecentRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("list recent runs: %w", err)
	}

	for _, rec := range records {
		fmt.Printf("%s  %s (%d/%d chunks, %s)\n%s\n\n",
			rec.CreatedAt.Format(time.RFC3339),
			rec.DocumentPath,
			rec.ChunkTotal-rec.ChunkFailed,
			rec.ChunkTotal,
			rec.Duration.Round(time.Millisecond),
			rec.Summary)
	}

	return nil
}

// consoleSink writes progress to stderr so stdout stays clean for the
// final summary.
type consoleSink struct{}

func (consoleSink) OnProgress(completed, total int) {
	fmt.Fprintf(os.Stderr, "\rchunks: %d/%d", completed, total)
	if completed == total {
		fmt.Fprintln(os.Stderr)
	}
}

func (consoleSink) OnStatus(message string) {
	fmt.Fprintf(os.Stderr, "%s\n", message)
}
