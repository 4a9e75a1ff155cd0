package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/google/uuid"
)

// JobStatus состояние задания
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobDone      JobStatus = "done"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// ErrJobNotFound возвращается для неизвестного ID задания
var ErrJobNotFound = errors.New("задание не найдено")

// Job снимок асинхронного задания поиска
type Job struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Query       Query      `json:"query"`
	Submitted   time.Time  `json:"submitted"`
	Finished    *time.Time `json:"finished,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	SubmittedBy string     `json:"submitted_by,omitempty"`
}

type jobEntry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

const (
	DefaultJobTTL       = time.Hour
	DefaultKeepFinished = 256
)

// JobManager запускает поиски в фоне и хранит их состояние.
// Завершённые задания вытесняются при следующем Submit: по возрасту
// (старше ttl) и по количеству (не больше keepFinished, старые первыми).
// Запущенные задания не вытесняются.
type JobManager struct {
	searcher     *Searcher
	mu           sync.RWMutex
	jobs         map[string]*jobEntry
	wg           sync.WaitGroup
	ttl          time.Duration
	keepFinished int
	now          func() time.Time
}

// JobOption настраивает JobManager
type JobOption func(*JobManager)

// WithJobTTL задаёт, сколько хранится завершённое задание. 0: DefaultJobTTL.
func WithJobTTL(d time.Duration) JobOption {
	return func(m *JobManager) {
		if d > 0 {
			m.ttl = d
		}
	}
}

// WithKeepFinished ограничивает число хранимых завершённых заданий. 0: DefaultKeepFinished.
func WithKeepFinished(n int) JobOption {
	return func(m *JobManager) {
		if n > 0 {
			m.keepFinished = n
		}
	}
}

// NewJobManager создаёт менеджер заданий
func NewJobManager(s *Searcher, opts ...JobOption) *JobManager {
	m := &JobManager{
		searcher:     s,
		jobs:         make(map[string]*jobEntry),
		ttl:          DefaultJobTTL,
		keepFinished: DefaultKeepFinished,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// pruneLocked удаляет устаревшие завершённые задания. Вызывается под m.mu.
func (m *JobManager) pruneLocked() {
	cutoff := m.now().UTC().Add(-m.ttl)
	finished := make([]*jobEntry, 0, len(m.jobs))
	for id, e := range m.jobs {
		if e.job.Finished == nil {
			continue
		}
		if e.job.Finished.Before(cutoff) {
			delete(m.jobs, id)
			continue
		}
		finished = append(finished, e)
	}

	excess := len(finished) - m.keepFinished
	if excess <= 0 {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].job.Finished.Before(*finished[j].job.Finished)
	})
	for _, e := range finished[:excess] {
		delete(m.jobs, e.job.ID)
	}
}

// Submit проверяет запрос и запускает поиск. Возвращает снимок задания.
func (m *JobManager) Submit(spec *sublevel.Spec, q Query, owner string) (Job, error) {
	if err := q.Normalize(); err != nil {
		return Job{}, err
	}
	if spec == nil || spec.Name != q.Sublevel {
		return Job{}, fmt.Errorf("подуровень %q не передан", q.Sublevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &jobEntry{
		job: Job{
			ID:          uuid.NewString(),
			Status:      JobRunning,
			Query:       q,
			Submitted:   m.now().UTC(),
			SubmittedBy: owner,
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}

	m.mu.Lock()
	m.pruneLocked()
	m.jobs[e.job.ID] = e
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)
		defer cancel()

		res, err := m.searcher.run(ctx, e.job.ID, spec, q)

		m.mu.Lock()
		defer m.mu.Unlock()
		now := m.now().UTC()
		e.job.Finished = &now
		e.job.Result = res
		switch {
		case errors.Is(err, context.Canceled):
			e.job.Status = JobCancelled
		case err != nil:
			e.job.Status = JobFailed
			e.job.Error = err.Error()
		default:
			e.job.Status = JobDone
		}
	}()

	return e.job, nil
}

// Get возвращает снимок задания
func (m *JobManager) Get(id string) (Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return e.job, nil
}

// Wait ждёт завершения задания или отмены ctx
func (m *JobManager) Wait(ctx context.Context, id string) (Job, error) {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return Job{}, ErrJobNotFound
	}
	select {
	case <-e.done:
		return m.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Cancel останавливает задание. Уже выданные сиды дорабатываются.
func (m *JobManager) Cancel(id string) error {
	m.mu.RLock()
	e, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return ErrJobNotFound
	}
	e.cancel()
	return nil
}

// Shutdown отменяет все задания и ждёт их завершения
func (m *JobManager) Shutdown() {
	m.mu.RLock()
	for _, e := range m.jobs {
		e.cancel()
	}
	m.mu.RUnlock()
	m.wg.Wait()
}
