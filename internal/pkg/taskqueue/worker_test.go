package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memStore is an in-memory Store with the same dedup and terminal-status
// behaviour as the Redis-backed Service.
type memStore struct {
	mu    sync.Mutex
	seq   int
	tasks map[string]*Task
	order []string
	dedup map[string]string // type+key -> task id
}

func newMemStore() *memStore {
	return &memStore{
		tasks: make(map[string]*Task),
		dedup: make(map[string]string),
	}
}

func (m *memStore) seed(taskType string, status TaskStatus) *Task {
	task, _, _ := m.Create(context.Background(), taskType, nil, "")
	task.Status = status
	return task
}

func (m *memStore) Create(_ context.Context, taskType string, payload interface{}, dedupKey string) (*Task, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if dedupKey != "" {
		if id, ok := m.dedup[taskType+"/"+dedupKey]; ok {
			if task, ok := m.tasks[id]; ok {
				return task, false, nil
			}
		}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, false, err
	}
	m.seq++
	task := &Task{
		ID:        fmt.Sprintf("task-%d", m.seq),
		Type:      taskType,
		Payload:   data,
		Status:    TaskPending,
		DedupKey:  dedupKey,
		CreatedAt: time.Now(),
	}
	m.tasks[task.ID] = task
	m.order = append(m.order, task.ID)
	if dedupKey != "" {
		m.dedup[taskType+"/"+dedupKey] = task.ID
	}
	return task, true, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, nil
	}
	cp := *task
	return &cp, nil
}

func (m *memStore) UpdateStatus(_ context.Context, id string, status TaskStatus, attempts int, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return fmt.Errorf("task %q not found", id)
	}
	task.Status = status
	task.Attempts = attempts
	task.Error = errMsg
	if (status == TaskCompleted || status == TaskFailed || status == TaskCancelled) && task.DedupKey != "" {
		delete(m.dedup, task.Type+"/"+task.DedupKey)
	}
	return nil
}

func (m *memStore) ListPending(_ context.Context, limit int) ([]*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Task
	for _, id := range m.order {
		task := m.tasks[id]
		if task.Status != TaskPending {
			continue
		}
		cp := *task
		out = append(out, &cp)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) status(id string) TaskStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[id].Status
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())

	assert.Equal(t, 2*time.Second, q.backoff(1))
	assert.Equal(t, 4*time.Second, q.backoff(2))
	assert.Equal(t, 8*time.Second, q.backoff(3))

	// far beyond the doubling range the delay stays at the ceiling
	assert.Equal(t, q.maxBackoff, q.backoff(20))
}

func TestHandleRegistersByType(t *testing.T) {
	q := NewQueue(nil, zap.NewNop())
	q.Handle("crm.push_lead", func(ctx context.Context, task *Task) error { return nil })

	q.mu.RLock()
	defer q.mu.RUnlock()
	assert.Contains(t, q.handlers, "crm.push_lead")
	assert.NotContains(t, q.handlers, "unknown")
}

func TestStartResumesPendingRecords(t *testing.T) {
	store := newMemStore()
	seeded := store.seed("crm.push_lead", TaskPending)

	q := NewQueue(store, zap.NewNop())
	done := make(chan string, 1)
	q.Handle("crm.push_lead", func(ctx context.Context, task *Task) error {
		done <- task.ID
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	select {
	case id := <-done:
		assert.Equal(t, seeded.ID, id)
	case <-time.After(2 * time.Second):
		t.Fatal("отложенная задача не была подхвачена после старта")
	}
	assert.Eventually(t, func() bool {
		return store.status(seeded.ID) == TaskCompleted
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRetryRecoversAfterFailure(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, zap.NewNop())
	q.baseBackoff = time.Millisecond
	q.maxBackoff = 10 * time.Millisecond

	var calls int
	var mu sync.Mutex
	q.Handle("crm.push_lead", func(ctx context.Context, task *Task) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("CRM недоступен")
		}
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	task, err := q.Enqueue(ctx, "crm.push_lead", map[string]string{"lead_id": "x"}, "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return store.status(task.ID) == TaskCompleted
	}, 2*time.Second, 10*time.Millisecond)

	got, err := store.GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Attempts)
}

func TestTerminalFailureFreesDedupKey(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, zap.NewNop())
	q.baseBackoff = time.Millisecond
	q.maxBackoff = time.Millisecond
	q.maxAttempts = 2

	q.Handle("crm.push_lead", func(ctx context.Context, task *Task) error {
		return errors.New("постоянная ошибка")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	task, err := q.Enqueue(ctx, "crm.push_lead", nil, "crm:push:lead-1")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return store.status(task.ID) == TaskFailed
	}, 2*time.Second, 10*time.Millisecond)

	// the dedup key must not strand the lead: a fresh push creates a new task
	again, err := q.Enqueue(ctx, "crm.push_lead", nil, "crm:push:lead-1")
	require.NoError(t, err)
	assert.NotEqual(t, task.ID, again.ID)
}

func TestDispatchPendingSkipsTrackedIDs(t *testing.T) {
	store := newMemStore()
	store.seed("notify.operator", TaskPending)
	store.seed("notify.operator", TaskPending)
	store.seed("notify.operator", TaskCompleted)

	// no workers running: dispatched ids sit in the buffer
	q := NewQueue(store, zap.NewNop())

	n, err := q.DispatchPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second sweep must not queue the same records again
	n, err = q.DispatchPending(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRetryTimersStopOnShutdown(t *testing.T) {
	store := newMemStore()
	q := NewQueue(store, zap.NewNop())
	q.baseBackoff = time.Hour // long enough to outlive the test
	q.maxBackoff = time.Hour

	q.Handle("crm.push_lead", func(ctx context.Context, task *Task) error {
		return errors.New("временная ошибка")
	})

	ctx, cancel := context.WithCancel(context.Background())
	q.Start(ctx)

	task, err := q.Enqueue(ctx, "crm.push_lead", nil, "")
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		q.trackMu.Lock()
		defer q.trackMu.Unlock()
		_, ok := q.retries[task.ID]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	q.Wait()

	assert.Eventually(t, func() bool {
		q.trackMu.Lock()
		defer q.trackMu.Unlock()
		return len(q.retries) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
