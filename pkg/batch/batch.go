// Package batch runs many cache commands in parallel with a bounded worker pool.
//
// Example usage:
//
//	runner := batch.New(client, batch.DefaultConfig())
//	results, err := runner.Run(ctx, []cacheapi.CommandConfig{
//		{Command: cacheapi.CommandGet, Key: "a"},
//		{Command: cacheapi.CommandGet, Key: "b"},
//	})
//
// The runner:
//   - Spawns a worker pool (default 8 workers)
//   - Applies a timeout to each command
//   - Returns one Result per command, in input order
//   - Reports the first failed command (by input order) as the error,
//     alongside the results of every other command
package batch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Sternrassler/zato-cache-client/pkg/cacheapi"
	"github.com/rs/zerolog/log"
)

// Config holds batch runner configuration.
type Config struct {
	// MaxConcurrency is the maximum number of parallel requests.
	MaxConcurrency int

	// Timeout per command. Zero means no timeout.
	Timeout time.Duration
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxConcurrency: 8,
		Timeout:        15 * time.Second,
	}
}

// CommandRunner executes a single command. *cacheapi.Client implements it.
type CommandRunner interface {
	RunCommand(ctx context.Context, cfg cacheapi.CommandConfig) (*cacheapi.CommandResponse, error)
}

// Result is the outcome of one command.
type Result struct {
	Index    int
	Command  cacheapi.CommandConfig
	Response *cacheapi.CommandResponse
	Error    error
}

// Runner runs commands in parallel.
type Runner struct {
	runner CommandRunner
	config Config
}

// New creates a runner.
func New(runner CommandRunner, config Config) *Runner {
	if config.MaxConcurrency <= 0 {
		config.MaxConcurrency = DefaultConfig().MaxConcurrency
	}
	return &Runner{runner: runner, config: config}
}

// Run executes cmds and returns their results in input order. Commands not
// started before ctx is cancelled fail with the context error.
func (r *Runner) Run(ctx context.Context, cmds []cacheapi.CommandConfig) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(cmds))
	if len(cmds) == 0 {
		return results, nil
	}

	queue := make(chan int, len(cmds))
	for i := range cmds {
		queue <- i
	}
	close(queue)

	workers := r.config.MaxConcurrency
	if workers > len(cmds) {
		workers = len(cmds)
	}

	// Each worker writes only the slots of the indices it takes off the queue.
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go r.worker(ctx, cmds, queue, results, &wg, i)
	}
	wg.Wait()

	failed := 0
	var firstErr error
	for _, res := range results {
		if res.Error == nil {
			continue
		}
		failed++
		if firstErr == nil {
			firstErr = fmt.Errorf("command %d (%s %q): %w", res.Index, res.Command.Command, res.Command.Key, res.Error)
		}
	}

	log.Debug().
		Int("commands", len(cmds)).
		Int("failed", failed).
		Int("workers", workers).
		Dur("duration", time.Since(start)).
		Msg("Batch complete")

	return results, firstErr
}

func (r *Runner) worker(ctx context.Context, cmds []cacheapi.CommandConfig, queue <-chan int, results []Result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()
	processed := 0

	for i := range queue {
		results[i] = Result{Index: i, Command: cmds[i]}

		if err := ctx.Err(); err != nil {
			results[i].Error = err
			continue
		}

		cmdCtx, cancel := ctx, context.CancelFunc(func() {})
		if r.config.Timeout > 0 {
			cmdCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		}
		resp, err := r.runner.RunCommand(cmdCtx, cmds[i])
		cancel()

		if err != nil {
			log.Warn().
				Err(err).
				Int("worker_id", workerID).
				Str("key", cmds[i].Key).
				Msg("Command failed")
		}
		results[i].Response = resp
		results[i].Error = err
		processed++
	}

	if processed > 0 {
		log.Debug().
			Int("worker_id", workerID).
			Int("commands_processed", processed).
			Msg("Worker completed")
	}
}
