package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrAlreadyRunning is returned by RunNow while the task is executing.
var ErrAlreadyRunning = errors.New("task already running")

type Task func(ctx context.Context) error

// Job runs a task on a fixed interval. At most one execution of the task is
// in flight at a time, whether triggered by the ticker or by RunNow.
type Job struct {
	name     string
	interval time.Duration
	task     Task
	logger   *zap.Logger

	running atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewJob(name string, interval time.Duration, task Task, logger *zap.Logger) *Job {
	return &Job{
		name:     name,
		interval: interval,
		task:     task,
		logger:   logger.With(zap.String("job", name)),
	}
}

// Start begins the periodic loop. Calling Start twice is a no-op.
func (j *Job) Start(ctx context.Context) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done != nil {
		return
	}

	ctx, j.cancel = context.WithCancel(ctx)
	j.done = make(chan struct{})
	go j.loop(ctx, j.done)
	j.logger.Info("Job started", zap.Duration("interval", j.interval))
}

// Stop ends the loop and waits for a running tick to finish.
func (j *Job) Stop() {
	j.mu.Lock()
	cancel, done := j.cancel, j.done
	j.cancel, j.done = nil, nil
	j.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	j.logger.Info("Job stopped")
}

// RunNow executes the task immediately unless it is already running.
func (j *Job) RunNow(ctx context.Context) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer j.running.Store(false)
	return j.task(ctx)
}

func (j *Job) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.RunNow(ctx); err != nil {
				if errors.Is(err, ErrAlreadyRunning) {
					j.logger.Debug("Tick skipped, previous run still active")
					continue
				}
				j.logger.Warn("Job run failed", zap.Error(err))
			}
		}
	}
}
