package firehose

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
)

// CommitProcessor handles one commit. Processor implements it.
type CommitProcessor interface {
	ProcessCommit(ctx context.Context, commit *Commit) error
}

// Dispatcher fans commits out to a fixed set of workers. Every commit from a
// given repository goes to the same worker, so operations on one record are
// applied in stream order while different repositories are processed in
// parallel.
type Dispatcher struct {
	processor CommitProcessor
	logger    *slog.Logger
	queues    []chan *Commit
	wg        sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with the given number of workers, each
// with a queue of queueSize commits. Call Start before Dispatch.
func NewDispatcher(processor CommitProcessor, workers, queueSize int, logger *slog.Logger) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	queues := make([]chan *Commit, workers)
	for i := range queues {
		queues[i] = make(chan *Commit, queueSize)
	}
	return &Dispatcher{
		processor: processor,
		logger:    logger,
		queues:    queues,
	}
}

// Start launches the workers. Commits already queued when ctx is cancelled
// are still processed; Close waits for them.
func (d *Dispatcher) Start(ctx context.Context) {
	workCtx := context.WithoutCancel(ctx)
	for i, q := range d.queues {
		d.wg.Add(1)
		go d.work(workCtx, i, q)
	}
}

func (d *Dispatcher) work(ctx context.Context, id int, queue <-chan *Commit) {
	defer d.wg.Done()
	for commit := range queue {
		if err := d.processor.ProcessCommit(ctx, commit); err != nil {
			d.logger.Error("failed to handle commit",
				"worker", id,
				"seq", commit.Seq,
				"repo", commit.Repo,
				"error", err,
			)
		}
	}
}

// Dispatch queues commit for processing and returns without waiting for it.
// It blocks only while the target worker's queue is full.
func (d *Dispatcher) Dispatch(ctx context.Context, commit *Commit) error {
	select {
	case d.queues[d.shard(commit.Repo)] <- commit:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) shard(repo string) int {
	h := fnv.New32a()
	h.Write([]byte(repo))
	return int(h.Sum32() % uint32(len(d.queues)))
}

// Close stops accepting commits and waits for queued ones to finish. Dispatch
// must not be called after Close.
func (d *Dispatcher) Close() {
	for _, q := range d.queues {
		close(q)
	}
	d.wg.Wait()
}
