// Package dispatch serialises cycles through a single worker.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/job-hunter/internal/cycle"
	"github.com/spigell/job-hunter/internal/logger"
)

const DefaultQueueSize = 4

var (
	ErrQueueFull = errors.New("cycle queue is full")
	ErrStopped   = errors.New("dispatcher is stopped")
)

// Func runs one cycle.
type Func func(ctx context.Context) cycle.Result

// Status describes a submitted cycle.
type Status struct {
	ID          string        `json:"task_id"`
	Source      string        `json:"source"`
	SubmittedAt time.Time     `json:"submitted_at"`
	StartedAt   time.Time     `json:"started_at,omitempty"`
	FinishedAt  *time.Time    `json:"finished_at,omitempty"`
	Result      *cycle.Result `json:"result,omitempty"`
	Error       string        `json:"error,omitempty"`
}

type task struct {
	id          string
	source      string
	submittedAt time.Time
}

type Dispatcher struct {
	run    Func
	queue  chan task
	done   chan struct{}
	once   sync.Once
	logger *zap.Logger

	mu      sync.Mutex
	current *Status
	last    *Status
}

func New(run Func, queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}

	return &Dispatcher{
		run:    run,
		queue:  make(chan task, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Submit queues a cycle and returns its task id without waiting for it.
func (d *Dispatcher) Submit(source string) (string, error) {
	select {
	case <-d.done:
		return "", ErrStopped
	default:
	}

	t := task{id: uuid.NewString(), source: source, submittedAt: time.Now()}

	select {
	case d.queue <- t:
		d.logger.Info("cycle queued", zap.String(logger.FieldTaskID, t.id), zap.String("source", source))
		return t.id, nil
	default:
		d.logger.Warn("cycle rejected: queue is full", zap.String("source", source), zap.Int("queue_size", cap(d.queue)))
		return "", ErrQueueFull
	}
}

// Run processes queued cycles one at a time until ctx is done. A cycle in
// progress receives the same ctx and is expected to stop with it.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.stop()

	d.logger.Info("dispatcher started", zap.Int("queue_size", cap(d.queue)))

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopped", zap.Int("dropped", len(d.queue)))
			return nil
		case t := <-d.queue:
			d.process(ctx, t)
		}
	}
}

// Close rejects further submissions with ErrStopped. Run also closes the
// dispatcher when it returns.
func (d *Dispatcher) Close() {
	d.stop()
}

func (d *Dispatcher) stop() {
	d.once.Do(func() { close(d.done) })
}

func (d *Dispatcher) process(ctx context.Context, t task) {
	status := &Status{
		ID:          t.id,
		Source:      t.source,
		SubmittedAt: t.submittedAt,
		StartedAt:   time.Now(),
	}

	d.mu.Lock()
	d.current = status
	d.mu.Unlock()

	log := d.logger.With(zap.String(logger.FieldTaskID, t.id), zap.String("source", t.source))
	log.Info("cycle running")

	res := d.run(ctx)

	if res.Err != nil {
		log.Warn("cycle failed", zap.Error(res.Err))
	} else {
		log.Info("cycle done", zap.Int("approved", res.Approved))
	}

	finished := time.Now()

	d.mu.Lock()
	status.FinishedAt = &finished
	status.Result = &res
	if res.Err != nil {
		status.Error = res.Err.Error()
	}
	d.current = nil
	d.last = status
	d.mu.Unlock()
}

// Status returns copies of the running and the last finished cycle. Either may be nil.
func (d *Dispatcher) Status() (current, last *Status) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.current != nil {
		c := *d.current
		current = &c
	}
	if d.last != nil {
		l := *d.last
		last = &l
	}

	return current, last
}

// Pending reports how many cycles wait in the queue.
func (d *Dispatcher) Pending() int { return len(d.queue) }
