// Package assetreaper removes stored images that no blog record points at
// anymore. Removal runs in the background so that a committed mutation never
// waits for, or fails because of, storage cleanup.
package assetreaper

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/blogshelf/internal/logger"
	"github.com/patric-chuzhbe/blogshelf/internal/models"
)

const drainTimeout = 10 * time.Second

type assetRemover interface {
	Remove(ctx context.Context, reference string) error
}

// AssetReaper batches removal jobs and hands them to the asset store every flush interval.
type AssetReaper struct {
	queue         chan *models.AssetRemoveJob
	remover       assetRemover
	flushInterval time.Duration
	errorChannel  chan error
	done          chan struct{}
	inline        sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// New creates a reaper. Call Run to start it.
func New(
	remover assetRemover,
	channelCapacity int,
	flushInterval time.Duration,
) *AssetReaper {
	return &AssetReaper{
		remover:       remover,
		queue:         make(chan *models.AssetRemoveJob, channelCapacity),
		flushInterval: flushInterval,
		errorChannel:  make(chan error, channelCapacity),
		done:          make(chan struct{}),
	}
}

// ListenErrors calls callback for every failed removal until the reaper stops.
func (r *AssetReaper) ListenErrors(callback func(error)) {
	go func() {
		for err := range r.errorChannel {
			callback(err)
		}
	}()
}

// Run starts the background loop. When ctx is cancelled the loop drains the
// queue, processes what is left and stops; Wait blocks until then.
func (r *AssetReaper) Run(ctx context.Context) {
	go func() {
		defer close(r.done)
		defer r.stop()

		ticker := time.NewTicker(r.flushInterval)
		defer ticker.Stop()

		var jobs []*models.AssetRemoveJob

		for {
			select {
			case job := <-r.queue:
				jobs = append(jobs, job)
			case <-ticker.C:
				if len(jobs) == 0 {
					continue
				}
				r.process(ctx, jobs)
				jobs = nil
			case <-ctx.Done():
				jobs = append(jobs, r.drainQueue()...)
				drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
				r.process(drainCtx, jobs)
				r.inline.Wait()
				cancel()
				return
			}
		}
	}()
}

// Wait blocks until Run has returned after its context was cancelled.
func (r *AssetReaper) Wait() {
	<-r.done
}

// EnqueueJob schedules a removal. It never blocks the caller: when the queue
// is full the removal runs on its own goroutine instead.
func (r *AssetReaper) EnqueueJob(job *models.AssetRemoveJob) {
	if job == nil || job.Reference == "" {
		return
	}

	select {
	case r.queue <- job:
	default:
		r.inline.Add(1)
		go func() {
			defer r.inline.Done()
			ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			r.process(ctx, []*models.AssetRemoveJob{job})
		}()
	}
}

func (r *AssetReaper) drainQueue() []*models.AssetRemoveJob {
	var jobs []*models.AssetRemoveJob
	for {
		select {
		case job := <-r.queue:
			jobs = append(jobs, job)
		default:
			return jobs
		}
	}
}

func (r *AssetReaper) process(ctx context.Context, jobs []*models.AssetRemoveJob) {
	references := make([]string, 0, len(jobs))
	owners := make(map[string]string, len(jobs))
	for _, job := range jobs {
		references = append(references, job.Reference)
		owners[job.Reference] = job.BlogID
	}

	removed := 0
	for _, reference := range funk.UniqString(references) {
		if err := r.remover.Remove(ctx, reference); err != nil {
			r.reportError(fmt.Errorf("blog %s: %w", owners[reference], err))
			continue
		}
		removed++
	}

	logger.Log.Debugf("processed removing of %d assets", removed)
}

func (r *AssetReaper) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	close(r.errorChannel)
}

func (r *AssetReaper) reportError(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		logger.Log.Warnw("asset cleanup failed", "error", err)
		return
	}

	select {
	case r.errorChannel <- err:
	default:
		logger.Log.Warnw("asset cleanup failed", "error", err)
	}
}
