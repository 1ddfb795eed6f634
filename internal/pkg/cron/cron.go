package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Status is the outcome of a job's most recent run.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
)

// Job describes a periodic maintenance task: CRM retry sweeps, log
// pruning, cache refreshes.
type Job struct {
	Name        string
	Description string
	Every       time.Duration
	Run         func(ctx context.Context) error
}

// entry keeps the runtime state of one registered job.
type entry struct {
	Job
	mu        sync.Mutex
	status    Status
	lastError string
	lastRun   *time.Time
	lastTook  time.Duration
	nextRun   time.Time
	runs      int
}

// JobInfo is the admin-panel view of a job.
type JobInfo struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Status      Status     `json:"status"`
	Interval    string     `json:"interval"`
	Runs        int        `json:"runs"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastTookMS  int64      `json:"lastTookMs,omitempty"`
	NextRunAt   time.Time  `json:"nextRunAt"`
	LastError   string     `json:"lastError,omitempty"`
}

// RunStatus is returned when polling a single job.
type RunStatus struct {
	Status    Status `json:"status"`
	LastError string `json:"lastError,omitempty"`
}

// Scheduler runs each registered job on its own interval. There is no
// cron expression syntax: every job here is "repeat every N".
type Scheduler struct {
	mu   sync.RWMutex
	jobs map[string]*entry
}

func New() *Scheduler {
	return &Scheduler{jobs: make(map[string]*entry)}
}

// Register adds a job. Must be called before Start; re-registering a
// name replaces the job.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &entry{
		Job:     job,
		status:  StatusIdle,
		nextRun: time.Now().Add(job.Every),
	}
}

// Start launches one goroutine per registered job. The goroutines exit
// when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.jobs {
		go s.loop(ctx, e)
	}
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	for {
		e.mu.Lock()
		wait := time.Until(e.nextRun)
		e.mu.Unlock()
		if wait < 0 {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
			s.execute(ctx, e)
			e.mu.Lock()
			e.nextRun = time.Now().Add(e.Every)
			e.mu.Unlock()
		}
	}
}

// execute runs the job once, skipping if a previous run is still going.
func (s *Scheduler) execute(ctx context.Context, e *entry) {
	e.mu.Lock()
	if e.status == StatusRunning {
		e.mu.Unlock()
		return
	}
	e.status = StatusRunning
	e.mu.Unlock()

	started := time.Now()
	err := e.Run(ctx)
	took := time.Since(started)

	e.mu.Lock()
	e.lastRun = &started
	e.lastTook = took
	e.runs++
	if err != nil {
		e.status = StatusFailed
		e.lastError = err.Error()
	} else {
		e.status = StatusOK
		e.lastError = ""
	}
	e.mu.Unlock()
}

// Trigger starts a job by name outside its schedule. It returns as soon
// as the run is launched; poll Status for the outcome.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	go s.execute(ctx, e)
	return nil
}

// Status reports the current state of one job.
func (s *Scheduler) Status(name string) (*RunStatus, error) {
	s.mu.RLock()
	e, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("job %q not found", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return &RunStatus{Status: e.status, LastError: e.lastError}, nil
}

// List returns all jobs sorted by name.
func (s *Scheduler) List() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]JobInfo, 0, len(s.jobs))
	for _, e := range s.jobs {
		e.mu.Lock()
		items = append(items, JobInfo{
			Name:        e.Name,
			Description: e.Description,
			Status:      e.status,
			Interval:    e.Every.String(),
			Runs:        e.runs,
			LastRunAt:   e.lastRun,
			LastTookMS:  e.lastTook.Milliseconds(),
			NextRunAt:   e.nextRun,
			LastError:   e.lastError,
		})
		e.mu.Unlock()
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items
}
