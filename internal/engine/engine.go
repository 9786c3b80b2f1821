// Package engine owns a summarization run: it chunks the document,
// dispatches chunks to a bounded worker pool behind the rate-limited
// client, collects per-chunk results keyed by original order, and
// reduces them into one final summary.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"docdigest/internal/chunker"
	"docdigest/internal/summarizer"
)

const (
	// maxReduceDepth bounds the re-chunk/re-summarize loop so every
	// run terminates even when summaries refuse to shrink.
	maxReduceDepth = 3

	summaryCacheSize = 512
)

var (
	ErrEmptyDocument   = errors.New("document is empty")
	ErrAllChunksFailed = errors.New("all chunks failed")
	ErrReductionFailed = errors.New("reduction failed")
	ErrCancelled       = errors.New("run cancelled")
)

// State tracks where a run is in its lifecycle.
type State int

const (
	StateCreated State = iota
	StateChunking
	StateDispatching
	StateReducing
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateChunking:
		return "chunking"
	case StateDispatching:
		return "dispatching"
	case StateReducing:
		return "reducing"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Generator is the slice of the API client the engine needs.
type Generator interface {
	Generate(ctx context.Context, req summarizer.Request) (text string, attempts int, err error)
	GenerateStream(ctx context.Context, req summarizer.Request, fn func(fragment string) error) (string, error)
	CountTokens(ctx context.Context, text string) int
}

// Options configure one engine instance.
type Options struct {
	MaxChunkSize int
	ChunkOverlap int
	Workers      int

	// ReduceTokenBudget is the single-request size budget: combined
	// chunk summaries above it trigger another chunk/summarize pass.
	ReduceTokenBudget int

	// Model parameters applied to every request.
	Temperature     float64
	TopP            float64
	TopK            int
	MaxOutputTokens int
}

// ChunkResult is the terminal outcome for one chunk, written exactly
// once at its index.
type ChunkResult struct {
	Index    int
	Summary  string
	Attempts int
	Err      error
}

// Result is a finished run.
type Result struct {
	Summary       string
	ChunkTotal    int
	ChunkFailed   int
	FailedIndexes []int
	Duration      time.Duration
}

type Engine struct {
	client Generator
	opts   Options
	cache  *lru.Cache[string, string]
	log    *slog.Logger
}

func New(client Generator, opts Options, log *slog.Logger) (*Engine, error) {
	if opts.Workers < 1 {
		return nil, fmt.Errorf("workers must be at least 1 (got %d)", opts.Workers)
	}
	if opts.ReduceTokenBudget <= 0 {
		return nil, fmt.Errorf("reduce token budget must be positive (got %d)", opts.ReduceTokenBudget)
	}

	cache, err := lru.New[string, string](summaryCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create summary cache: %w", err)
	}

	return &Engine{client: client, opts: opts, cache: cache, log: log}, nil
}

// Summarize runs the whole pipeline for one document. sink may be nil.
// The final summary preserves original document order regardless of
// chunk completion order.
func (e *Engine) Summarize(ctx context.Context, text string, sink ProgressSink) (*Result, error) {
	if sink == nil {
		sink = NopSink{}
	}

	start := time.Now()
	run := &Result{}

	e.transition(ctx, sink, StateChunking)
	chunks, err := chunker.Create(text, e.opts.MaxChunkSize, e.opts.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("create chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}

	run.ChunkTotal = len(chunks)
	depth := 0

	for {
		e.transition(ctx, sink, StateDispatching)
		sink.OnStatus(fmt.Sprintf("summarizing %d chunks", len(chunks)))

		results, err := e.processChunks(ctx, chunks, sink)
		if err != nil {
			return nil, e.terminal(ctx, err)
		}

		summaries, failed := splitResults(results)
		if depth == 0 {
			run.ChunkFailed = len(failed)
			run.FailedIndexes = failed
		}
		for _, idx := range failed {
			sink.OnStatus(fmt.Sprintf("chunk %d failed and is omitted from the summary", idx))
		}

		if len(summaries) == 0 {
			if depth == 0 {
				return nil, fmt.Errorf("%w: %d of %d chunks", ErrAllChunksFailed, len(failed), len(results))
			}

			return nil, fmt.Errorf("%w: every re-chunked section failed", ErrReductionFailed)
		}

		e.transition(ctx, sink, StateReducing)
		combined := strings.Join(summaries, "\n\n")

		tokens := e.client.CountTokens(ctx, combined)
		if tokens <= e.opts.ReduceTokenBudget {
			final, err := e.client.GenerateStream(ctx, e.request(reducePrompt(combined)), nil)
			if err != nil {
				if terminal := e.terminal(ctx, err); errors.Is(terminal, ErrCancelled) {
					return nil, terminal
				}

				return nil, fmt.Errorf("%w: %w", ErrReductionFailed, err)
			}

			run.Summary = final
			run.Duration = time.Since(start)
			e.transition(ctx, sink, StateDone)

			return run, nil
		}

		depth++
		if depth > maxReduceDepth {
			return nil, fmt.Errorf(
				"%w: combined summaries still exceed the %d token budget after %d passes",
				ErrReductionFailed, e.opts.ReduceTokenBudget, maxReduceDepth,
			)
		}

		sink.OnStatus(fmt.Sprintf(
			"combined summaries are %d tokens, re-chunking (pass %d)", tokens, depth,
		))

		chunks, err = chunker.Create(combined, e.opts.MaxChunkSize, e.opts.ChunkOverlap)
		if err != nil || len(chunks) == 0 {
			return nil, fmt.Errorf("%w: re-chunk combined summaries: %v", ErrReductionFailed, err)
		}
	}
}

// processChunks fans chunks out to the worker pool. Workers report
// completions on a channel; a single collector goroutine counts them
// and notifies the sink, so progress is monotonic and workers never
// block on sink behavior.
func (e *Engine) processChunks(
	ctx context.Context,
	chunks []chunker.Chunk,
	sink ProgressSink,
) ([]ChunkResult, error) {
	total := len(chunks)
	results := make([]ChunkResult, total)

	workers := e.opts.Workers
	if workers > total {
		workers = total
	}

	var wg sync.WaitGroup
	semCh := make(chan struct{}, workers)
	doneCh := make(chan int, total)

	collectorDone := make(chan struct{})
	go func() {
		defer close(collectorDone)

		completed := 0
		for range doneCh {
			completed++
			sink.OnProgress(completed, total)
		}
	}()

	for _, c := range chunks {
		// No new dispatch after cancellation; in-flight workers run on.
		// The slot wait must stay cancellable too, or a freed slot would
		// launch one more worker after cancel.
		select {
		case semCh <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}

		wg.Add(1)
		go func(c chunker.Chunk) {
			defer wg.Done()

			results[c.Index] = e.processChunk(ctx, c)
			doneCh <- c.Index

			<-semCh
		}(c)
	}

	wg.Wait()
	close(doneCh)
	<-collectorDone

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (e *Engine) processChunk(ctx context.Context, c chunker.Chunk) ChunkResult {
	key := cacheKey(c.Text)
	if summary, ok := e.cache.Get(key); ok {
		e.log.DebugContext(ctx, "Chunk summary served from cache",
			"chunkIndex", c.Index)

		return ChunkResult{Index: c.Index, Summary: summary}
	}

	summary, attempts, err := e.client.Generate(ctx, e.request(chunkPrompt(c.Text)))
	if err != nil {
		e.log.WarnContext(ctx, "Chunk failed",
			"chunkIndex", c.Index,
			"attempts", attempts,
			"error", err)

		return ChunkResult{Index: c.Index, Attempts: attempts, Err: err}
	}

	e.cache.Add(key, summary)

	return ChunkResult{Index: c.Index, Summary: summary, Attempts: attempts}
}

func (e *Engine) request(prompt string) summarizer.Request {
	return summarizer.Request{
		Prompt:          prompt,
		Temperature:     e.opts.Temperature,
		TopP:            e.opts.TopP,
		TopK:            e.opts.TopK,
		MaxOutputTokens: e.opts.MaxOutputTokens,
	}
}

// terminal maps cancellation onto ErrCancelled and leaves everything
// else untouched.
func (e *Engine) terminal(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}

	return err
}

func (e *Engine) transition(ctx context.Context, sink ProgressSink, state State) {
	e.log.DebugContext(ctx, "Run state changed", "state", state.String())
	sink.OnStatus(state.String())
}

// splitResults separates summaries (in index order) from failed chunk
// indexes. Failed chunks are omitted rather than replaced with
// placeholder text, so the reducer only ever sees real content.
func splitResults(results []ChunkResult) ([]string, []int) {
	summaries := make([]string, 0, len(results))
	var failed []int

	for _, r := range results {
		if r.Err != nil {
			failed = append(failed, r.Index)

			continue
		}

		summaries = append(summaries, r.Summary)
	}

	return summaries, failed
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))

	return hex.EncodeToString(sum[:])
}
