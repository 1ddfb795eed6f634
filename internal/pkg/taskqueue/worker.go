package taskqueue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// HandlerFunc executes one task. A returned error schedules a retry until
// the attempt budget runs out.
type HandlerFunc func(ctx context.Context, task *Task) error

// Store is the task record storage the worker pool runs against.
// *Service implements it over Redis.
type Store interface {
	Create(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*Task, bool, error)
	GetByID(ctx context.Context, id string) (*Task, error)
	UpdateStatus(ctx context.Context, id string, status TaskStatus, attempts int, errMsg string) error
	ListPending(ctx context.Context, limit int) ([]*Task, error)
}

const (
	defaultWorkers     = 4
	defaultMaxAttempts = 5
	defaultBaseBackoff = 2 * time.Second
	defaultMaxBackoff  = 5 * time.Minute
	queueCapacity      = 256
)

// Queue is a bounded worker pool over the task store. Failed tasks are
// retried with capped exponential backoff; terminal failures stay
// visible through Service.List. A task record that never made it into
// the in-memory buffer stays pending in the store until DispatchPending
// returns it to the pool, so no task is lost to overflow or restart.
type Queue struct {
	svc     Store
	logger  *zap.Logger
	workers int

	maxAttempts int
	baseBackoff time.Duration
	maxBackoff  time.Duration

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	pending chan string
	wg      sync.WaitGroup

	// trackMu guards inflight (ids buffered or executing) and retries
	// (ids waiting out a backoff timer). Together they keep one task
	// from being dispatched twice.
	trackMu  sync.Mutex
	inflight map[string]struct{}
	retries  map[string]*time.Timer
}

func NewQueue(svc Store, logger *zap.Logger) *Queue {
	return &Queue{
		svc:         svc,
		logger:      logger,
		workers:     defaultWorkers,
		maxAttempts: defaultMaxAttempts,
		baseBackoff: defaultBaseBackoff,
		maxBackoff:  defaultMaxBackoff,
		handlers:    make(map[string]HandlerFunc),
		pending:     make(chan string, queueCapacity),
		inflight:    make(map[string]struct{}),
		retries:     make(map[string]*time.Timer),
	}
}

// Handle registers the handler for a task type. Must be called before Start.
func (q *Queue) Handle(taskType string, fn HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[taskType] = fn
}

// Start launches the worker goroutines and returns pending records left
// over from a previous process to the pool.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.runWorker(ctx)
	}
	go q.stopRetriesOnDone(ctx)
	go func() {
		n, err := q.DispatchPending(ctx, queueCapacity)
		if err != nil {
			q.logger.Warn("не удалось восстановить отложенные задачи", zap.Error(err))
			return
		}
		if n > 0 {
			q.logger.Info("отложенные задачи возвращены в обработку", zap.Int("count", n))
		}
	}()
}

// Wait blocks until all workers have drained after context cancellation.
func (q *Queue) Wait() {
	q.wg.Wait()
}

// Enqueue records a task and hands it to the pool. When the buffer is
// full the record stays pending in the store; DispatchPending (run at
// startup and by the periodic sweep) returns it to the pool later, so
// the call never blocks the request path.
func (q *Queue) Enqueue(ctx context.Context, taskType string, payload interface{}, dedupKey string) (*Task, error) {
	task, created, err := q.svc.Create(ctx, taskType, payload, dedupKey)
	if err != nil {
		return nil, err
	}
	if !created {
		return task, nil
	}

	if !q.dispatch(task.ID) {
		q.logger.Warn("очередь задач переполнена, задача дождётся следующего обхода",
			zap.String("type", taskType), zap.String("id", task.ID))
	}
	return task, nil
}

// DispatchPending scans the store for pending records and hands them to
// the pool, skipping ids already buffered, executing, or waiting out a
// backoff. It returns how many tasks were dispatched.
func (q *Queue) DispatchPending(ctx context.Context, limit int) (int, error) {
	tasks, err := q.svc.ListPending(ctx, limit)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, task := range tasks {
		if q.dispatch(task.ID) {
			n++
		}
	}
	return n, nil
}

// dispatch pushes an id into the buffer unless it is already tracked or
// the buffer is full.
func (q *Queue) dispatch(id string) bool {
	q.trackMu.Lock()
	if _, ok := q.inflight[id]; ok {
		q.trackMu.Unlock()
		return false
	}
	if _, ok := q.retries[id]; ok {
		q.trackMu.Unlock()
		return false
	}
	q.inflight[id] = struct{}{}
	q.trackMu.Unlock()

	select {
	case q.pending <- id:
		return true
	default:
		q.trackMu.Lock()
		delete(q.inflight, id)
		q.trackMu.Unlock()
		return false
	}
}

// scheduleRetry arms a backoff timer that re-dispatches the task. The
// inflight slot is released in the same critical section, so when the
// timer fires the id can re-enter the pool. Timers live in q.retries so
// a sweep does not fire a retry early and shutdown can stop them all at
// once.
func (q *Queue) scheduleRetry(id string, delay time.Duration) {
	q.trackMu.Lock()
	defer q.trackMu.Unlock()
	delete(q.inflight, id)
	if old, ok := q.retries[id]; ok {
		old.Stop()
	}
	q.retries[id] = time.AfterFunc(delay, func() {
		q.trackMu.Lock()
		delete(q.retries, id)
		q.trackMu.Unlock()
		// on a full buffer the record stays pending and the sweep
		// picks it up
		q.dispatch(id)
	})
}

func (q *Queue) stopRetriesOnDone(ctx context.Context) {
	<-ctx.Done()
	q.trackMu.Lock()
	defer q.trackMu.Unlock()
	for id, t := range q.retries {
		t.Stop()
		delete(q.retries, id)
	}
}

func (q *Queue) runWorker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-q.pending:
			q.process(ctx, id)
		}
	}
}

func (q *Queue) clearInflight(id string) {
	q.trackMu.Lock()
	delete(q.inflight, id)
	q.trackMu.Unlock()
}

// process runs one task to a terminal status or a scheduled retry. Every
// exit path releases the inflight slot: directly, or via scheduleRetry.
func (q *Queue) process(ctx context.Context, id string) {
	task, err := q.svc.GetByID(ctx, id)
	if err != nil || task == nil {
		q.clearInflight(id)
		return
	}
	if task.Status == TaskCancelled || task.Status == TaskCompleted || task.Status == TaskFailed {
		q.clearInflight(id)
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[task.Type]
	q.mu.RUnlock()
	if !ok {
		_ = q.svc.UpdateStatus(ctx, id, TaskFailed, task.Attempts, fmt.Sprintf("no handler for task type %q", task.Type))
		q.clearInflight(id)
		return
	}

	attempt := task.Attempts + 1
	_ = q.svc.UpdateStatus(ctx, id, TaskRunning, attempt, "")

	err = handler(ctx, task)
	if err == nil {
		_ = q.svc.UpdateStatus(ctx, id, TaskCompleted, attempt, "")
		q.clearInflight(id)
		return
	}

	if attempt >= q.maxAttempts {
		q.logger.Error("задача окончательно провалена",
			zap.String("type", task.Type), zap.String("id", id),
			zap.Int("attempts", attempt), zap.Error(err))
		_ = q.svc.UpdateStatus(ctx, id, TaskFailed, attempt, err.Error())
		q.clearInflight(id)
		return
	}

	delay := q.backoff(attempt)
	q.logger.Warn("задача завершилась с ошибкой, повтор запланирован",
		zap.String("type", task.Type), zap.String("id", id),
		zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
	_ = q.svc.UpdateStatus(ctx, id, TaskPending, attempt, err.Error())
	q.scheduleRetry(id, delay)
}

func (q *Queue) backoff(attempt int) time.Duration {
	delay := q.baseBackoff
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.maxBackoff {
			return q.maxBackoff
		}
	}
	return delay
}
