// Package search перебирает диапазон сидов и отбирает раскладки по условиям.
//
// Сиды раздаются пулу воркеров через канал, описание подуровня общее и
// только читается. Результат не зависит от числа воркеров: совпадения
// сортируются по порядку сидов в диапазоне, а при Limit берутся первые.
package search

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/annel0/cavegen/internal/eventbus"
	"github.com/annel0/cavegen/internal/layout"
	"github.com/annel0/cavegen/internal/logging"
	"github.com/annel0/cavegen/internal/storage"
	"github.com/annel0/cavegen/internal/sublevel"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const eventSource = "search"

// Hit сид, прошедший фильтры
type Hit struct {
	Seed        uint32         `json:"seed"`
	Slug        string         `json:"slug"`
	ShareCode   string         `json:"share_code"`
	Fingerprint uint64         `json:"fingerprint"`
	Layout      *layout.Layout `json:"-"`
}

// Result итог одного прогона
type Result struct {
	JobID     string                       `json:"job_id"`
	Sublevel  string                       `json:"sublevel"`
	Query     Query                        `json:"query"`
	Scanned   uint64                       `json:"scanned"`
	Failed    uint64                       `json:"failed"`
	Failures  map[layout.FailureReason]int `json:"failures"`
	Hits      []Hit                        `json:"hits"`
	Elapsed   time.Duration                `json:"elapsed"`
	Cancelled bool                         `json:"cancelled"`
}

// SeedFound полезная нагрузка события seed.found
type SeedFound struct {
	JobID     string `json:"job_id"`
	Sublevel  string `json:"sublevel"`
	Seed      uint32 `json:"seed"`
	Slug      string `json:"slug"`
	ShareCode string `json:"share_code"`
}

// SearchFinished полезная нагрузка события search.finished
type SearchFinished struct {
	JobID     string        `json:"job_id"`
	Sublevel  string        `json:"sublevel"`
	Scanned   uint64        `json:"scanned"`
	Failed    uint64        `json:"failed"`
	Hits      int           `json:"hits"`
	Elapsed   time.Duration `json:"elapsed"`
	Cancelled bool          `json:"cancelled"`
}

// Searcher выполняет поиск. Шина, хранилище и метрики необязательны.
type Searcher struct {
	bus     eventbus.EventBus
	repo    storage.ResultRepo
	metrics *Metrics
	tracer  trace.Tracer
	logger  *logging.Logger
	workers int
}

// Option настраивает Searcher
type Option func(*Searcher)

// WithBus публикует seed.found для каждого совпадения
func WithBus(bus eventbus.EventBus) Option {
	return func(s *Searcher) { s.bus = bus }
}

// WithRepo сохраняет совпадения в хранилище
func WithRepo(repo storage.ResultRepo) Option {
	return func(s *Searcher) { s.repo = repo }
}

// WithMetrics включает Prometheus-метрики
func WithMetrics(m *Metrics) Option {
	return func(s *Searcher) { s.metrics = m }
}

// WithTracerProvider задаёт провайдер трассировки вместо глобального
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Searcher) { s.tracer = tp.Tracer("cavegen/search") }
}

// WithLogger задаёт логгер
func WithLogger(l *logging.Logger) Option {
	return func(s *Searcher) { s.logger = l }
}

// WithWorkers задаёт число воркеров для запросов без Workers
func WithWorkers(n int) Option {
	return func(s *Searcher) { s.workers = n }
}

// New создаёт Searcher
func New(opts ...Option) *Searcher {
	s := &Searcher{}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer("cavegen/search")
	}
	if s.logger == nil {
		s.logger = logging.GetSearchLogger()
	}
	return s
}

// Run выполняет поиск без шины и хранилища
func Run(ctx context.Context, spec *sublevel.Spec, q Query) (*Result, error) {
	return New().Run(ctx, spec, q)
}

// Run перебирает сиды [From, From+Count) с переполнением uint32.
// При отмене контекста возвращает частичный результат и ctx.Err().
func (s *Searcher) Run(ctx context.Context, spec *sublevel.Spec, q Query) (*Result, error) {
	return s.run(ctx, uuid.NewString(), spec, q)
}

func (s *Searcher) run(ctx context.Context, jobID string, spec *sublevel.Spec, q Query) (*Result, error) {
	if err := q.Normalize(); err != nil {
		return nil, err
	}
	if err := sublevel.Validate(spec); err != nil {
		return nil, err
	}
	if spec.Name != q.Sublevel {
		return nil, fmt.Errorf("запрос для %q, передан подуровень %q", q.Sublevel, spec.Name)
	}

	workers := q.Workers
	if workers == 0 {
		workers = s.workers
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	ctx, span := s.tracer.Start(ctx, "search.Run", trace.WithAttributes(
		attribute.String("job.id", jobID),
		attribute.String("sublevel", q.Sublevel),
		attribute.Int64("seed.from", int64(q.From)),
		attribute.Int64("seed.count", int64(q.Count)),
		attribute.Int("workers", workers),
	))
	defer span.End()

	s.metrics.jobStarted()
	defer s.metrics.jobDone()

	s.logger.Info("🔎 Поиск %s: %s, сиды 0x%08X+%d, воркеров %d", jobID, q.Sublevel, q.From, q.Count, workers)
	start := time.Now()

	type found struct {
		offset uint32
		hit    Hit
	}

	var (
		mu       sync.Mutex
		hits     []found
		failures = make(map[layout.FailureReason]int)
		scanned  uint64
		failed   uint64
		hitCount atomic.Int64
	)

	seeds := make(chan uint32)
	g, gctx := errgroup.WithContext(ctx)

	// Сид считается выданным, только когда его принял воркер
	g.Go(func() error {
		defer close(seeds)
		for i := uint32(0); i < q.Count; i++ {
			if q.Limit > 0 && hitCount.Load() >= int64(q.Limit) {
				return nil
			}
			select {
			case seeds <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for offset := range seeds {
				seed := q.From + offset
				t0 := time.Now()
				l, err := layout.Generate(seed, spec)
				elapsed := time.Since(t0)
				atomic.AddUint64(&scanned, 1)

				if err != nil {
					var failure *layout.GenerationFailure
					if !errors.As(err, &failure) {
						return fmt.Errorf("сид 0x%08X: %w", seed, err)
					}
					atomic.AddUint64(&failed, 1)
					mu.Lock()
					failures[failure.Reason]++
					mu.Unlock()
					s.metrics.failure(q.Sublevel, failure.Reason)
					s.metrics.observe(q.Sublevel, "failed", elapsed)
					continue
				}

				if !q.Match(l) {
					s.metrics.observe(q.Sublevel, "miss", elapsed)
					continue
				}
				s.metrics.observe(q.Sublevel, "hit", elapsed)

				slug := l.Slug()
				h := Hit{
					Seed:        seed,
					Slug:        slug,
					ShareCode:   layout.EncodeShareCode(slug),
					Fingerprint: l.Fingerprint(),
					Layout:      l,
				}
				mu.Lock()
				hits = append(hits, found{offset: offset, hit: h})
				mu.Unlock()
				hitCount.Add(1)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].offset < hits[j].offset })
	if q.Limit > 0 && len(hits) > q.Limit {
		hits = hits[:q.Limit]
	}

	res := &Result{
		JobID:     jobID,
		Sublevel:  q.Sublevel,
		Query:     q,
		Scanned:   scanned,
		Failed:    failed,
		Failures:  failures,
		Hits:      make([]Hit, len(hits)),
		Elapsed:   time.Since(start),
		Cancelled: ctx.Err() != nil,
	}
	for i := range hits {
		res.Hits[i] = hits[i].hit
	}

	span.SetAttributes(
		attribute.Int64("seeds.scanned", int64(res.Scanned)),
		attribute.Int64("seeds.failed", int64(res.Failed)),
		attribute.Int("hits", len(res.Hits)),
	)

	// Сохранение и события идут после сортировки, чтобы порядок не зависел от воркеров
	if err := s.persist(context.WithoutCancel(ctx), res); err != nil {
		s.logger.Warn("⚠️ Не удалось сохранить результаты %s: %v", jobID, err)
		span.RecordError(err)
	}
	s.publish(context.WithoutCancel(ctx), res)

	s.logger.Info("✅ Поиск %s завершён: проверено %d, неудач %d, совпадений %d за %s",
		jobID, res.Scanned, res.Failed, len(res.Hits), res.Elapsed)

	if res.Cancelled {
		span.SetStatus(codes.Error, "cancelled")
		return res, ctx.Err()
	}
	return res, nil
}

func (s *Searcher) persist(ctx context.Context, res *Result) error {
	if s.repo == nil || len(res.Hits) == 0 {
		return nil
	}
	recs := make([]*storage.Record, 0, len(res.Hits))
	for _, h := range res.Hits {
		rec, err := storage.NewRecord(h.Layout)
		if err != nil {
			return err
		}
		recs = append(recs, rec)
	}
	return s.repo.BatchSave(ctx, recs)
}

func (s *Searcher) publish(ctx context.Context, res *Result) {
	if s.bus == nil {
		return
	}
	for _, h := range res.Hits {
		ev, err := eventbus.NewEnvelope(eventSource, eventbus.EventSeedFound, SeedFound{
			JobID:     res.JobID,
			Sublevel:  res.Sublevel,
			Seed:      h.Seed,
			Slug:      h.Slug,
			ShareCode: h.ShareCode,
		})
		if err != nil {
			s.logger.Error("❌ Событие %s: %v", eventbus.EventSeedFound, err)
			continue
		}
		ev.CorrelationID = res.JobID
		if err := s.bus.Publish(ctx, ev); err != nil {
			s.logger.Warn("⚠️ Не удалось опубликовать %s: %v", ev.EventType, err)
		}
	}

	ev, err := eventbus.NewEnvelope(eventSource, eventbus.EventSearchFinished, SearchFinished{
		JobID:     res.JobID,
		Sublevel:  res.Sublevel,
		Scanned:   res.Scanned,
		Failed:    res.Failed,
		Hits:      len(res.Hits),
		Elapsed:   res.Elapsed,
		Cancelled: res.Cancelled,
	})
	if err != nil {
		s.logger.Error("❌ Событие %s: %v", eventbus.EventSearchFinished, err)
		return
	}
	ev.CorrelationID = res.JobID
	ev.Priority = 5 // итог задания не отбрасывается при заполненном буфере
	if err := s.bus.Publish(ctx, ev); err != nil {
		s.logger.Warn("⚠️ Не удалось опубликовать %s: %v", ev.EventType, err)
	}
}
