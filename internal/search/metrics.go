package search

import (
	"time"

	"github.com/annel0/cavegen/internal/layout"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics счётчики поиска сидов. Nil-значение допустимо и ничего не пишет.
//
// Метрики:
// * cavegen_search_seeds_total{sublevel,outcome}: outcome: hit|miss|failed
// * cavegen_search_failures_total{sublevel,reason}
// * cavegen_search_generate_seconds: histogram
// * cavegen_search_jobs_running: gauge
type Metrics struct {
	seeds    *prometheus.CounterVec
	failures *prometheus.CounterVec
	generate prometheus.Histogram
	running  prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg (nil: глобальный регистр)
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		seeds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cavegen",
			Subsystem: "search",
			Name:      "seeds_total",
			Help:      "Проверенные сиды по исходу.",
		}, []string{"sublevel", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cavegen",
			Subsystem: "search",
			Name:      "failures_total",
			Help:      "Неудачные генерации по причине.",
		}, []string{"sublevel", "reason"}),
		generate: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cavegen",
			Subsystem: "search",
			Name:      "generate_seconds",
			Help:      "Время генерации одной раскладки.",
			Buckets:   []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "cavegen",
			Subsystem: "search",
			Name:      "jobs_running",
			Help:      "Задания поиска в работе.",
		}),
	}
	reg.MustRegister(m.seeds, m.failures, m.generate, m.running)
	return m
}

func (m *Metrics) observe(sublevel, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.seeds.WithLabelValues(sublevel, outcome).Inc()
	m.generate.Observe(elapsed.Seconds())
}

func (m *Metrics) failure(sublevel string, reason layout.FailureReason) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(sublevel, string(reason)).Inc()
}

func (m *Metrics) jobStarted() {
	if m != nil {
		m.running.Inc()
	}
}

func (m *Metrics) jobDone() {
	if m != nil {
		m.running.Dec()
	}
}
