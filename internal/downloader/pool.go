package downloader

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"xscraper/pkg/logger"
	"xscraper/pkg/models"
)

// Job is one media reference to materialize. Index is the caller's position
// for the reference so results can be matched back up.
type Job struct {
	Index int
	Ref   models.MediaRef
}

// Result is the outcome of a Job
type Result struct {
	Job      Job
	Path     string
	Size     int64
	Error    error
	Duration time.Duration
}

// Materializer fetches a URL to a local file
type Materializer interface {
	Materialize(ctx context.Context, sourceURL string) (string, error)
}

// WorkerPool runs materializations concurrently
type WorkerPool struct {
	numWorkers   int
	jobQueue     chan Job
	resultQueue  chan Result
	wg           sync.WaitGroup
	ctx          context.Context
	cancel       context.CancelFunc
	materializer Materializer
	logger       logger.Logger
}

// NewWorkerPool creates a pool bound to ctx. Cancelling ctx aborts
// in-flight downloads.
func NewWorkerPool(ctx context.Context, numWorkers int, m Materializer, log logger.Logger) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	return &WorkerPool{
		numWorkers:   numWorkers,
		jobQueue:     make(chan Job, numWorkers*2),
		resultQueue:  make(chan Result, numWorkers),
		ctx:          ctx,
		cancel:       cancel,
		materializer: m,
		logger:       log.WithField("component", "downloader"),
	}
}

// Start launches the workers
func (wp *WorkerPool) Start() {
	wp.logger.DebugWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})
	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for workers to drain it and closes Results
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()
}

// Submit queues a job, failing once the pool's context is done
func (wp *WorkerPool) Submit(job Job) error {
	if err := wp.ctx.Err(); err != nil {
		return fmt.Errorf("worker pool is shutting down: %w", err)
	}
	select {
	case wp.jobQueue <- job:
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the channel results are delivered on
func (wp *WorkerPool) Results() <-chan Result {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		result := wp.processJob(job, id)
		// callers must drain Results until it is closed
		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) processJob(job Job, workerID int) Result {
	start := time.Now()
	result := Result{Job: job}

	if err := wp.ctx.Err(); err != nil {
		result.Error = err
		return result
	}

	path, err := wp.materializer.Materialize(wp.ctx, job.Ref.SourceURL)
	result.Duration = time.Since(start)
	if err != nil {
		result.Error = fmt.Errorf("materialize %s: %w", job.Ref.SourceURL, err)
		wp.logger.WarnWithFields("Media download failed", map[string]interface{}{
			"worker_id": workerID,
			"url":       job.Ref.SourceURL,
			"error":     err.Error(),
		})
		return result
	}

	result.Path = path
	if path != "" {
		if info, statErr := os.Stat(path); statErr == nil {
			result.Size = info.Size()
		}
	}

	wp.logger.DebugWithFields("Media downloaded", map[string]interface{}{
		"worker_id": workerID,
		"url":       job.Ref.SourceURL,
		"size":      result.Size,
		"duration":  result.Duration,
	})
	return result
}

// Run materializes refs with numWorkers concurrent downloads and returns
// one Result per ref, in input order.
func Run(ctx context.Context, numWorkers int, m Materializer, refs []models.MediaRef, log logger.Logger) []Result {
	results := make([]Result, len(refs))
	if len(refs) == 0 {
		return results
	}
	for i, ref := range refs {
		results[i] = Result{Job: Job{Index: i, Ref: ref}, Error: context.Canceled}
	}

	if numWorkers > len(refs) {
		numWorkers = len(refs)
	}
	pool := NewWorkerPool(ctx, numWorkers, m, log)
	pool.Start()

	go func() {
		defer pool.Stop()
		for i, ref := range refs {
			if err := pool.Submit(Job{Index: i, Ref: ref}); err != nil {
				return
			}
		}
	}()

	for r := range pool.Results() {
		results[r.Job.Index] = r
	}
	return results
}
