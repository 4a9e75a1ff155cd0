package api

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// ServerMetrics содержит метрики сервера и счётчики выдачи раскладок
type ServerMetrics struct {
	StartTime time.Time

	generated  atomic.Uint64 // раскладки, построенные по запросу
	cacheHits  atomic.Uint64 // раскладки, отданные из хранилища
	genFailure atomic.Uint64 // сиды без раскладки
}

// ServerStats снимок для /api/server
type ServerStats struct {
	Version         string  `json:"version"`
	Uptime          string  `json:"uptime"`
	Goroutines      int     `json:"goroutines"`
	ProcessRSSMB    float64 `json:"process_rss_mb"`
	ProcessCPU      float64 `json:"process_cpu_percent"`
	SystemMemUsed   float64 `json:"system_mem_used_percent"`
	SystemCPUCount  int     `json:"system_cpu_count"`
	LayoutsBuilt    uint64  `json:"layouts_generated"`
	LayoutsCached   uint64  `json:"layouts_cached"`
	LayoutsFailed   uint64  `json:"layouts_failed"`
	SublevelsLoaded int     `json:"sublevels_loaded"`
}

// NewServerMetrics создает новый экземпляр метрик
func NewServerMetrics() *ServerMetrics {
	return &ServerMetrics{
		StartTime: time.Now(),
	}
}

// GetUptime возвращает время работы сервера
func (sm *ServerMetrics) GetUptime() string {
	uptime := time.Since(sm.StartTime)

	days := int(uptime.Hours()) / 24
	hours := int(uptime.Hours()) % 24
	minutes := int(uptime.Minutes()) % 60
	seconds := int(uptime.Seconds()) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dд %dч %dм %dс", days, hours, minutes, seconds)
	case hours > 0:
		return fmt.Sprintf("%dч %dм %dс", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dм %dс", minutes, seconds)
	default:
		return fmt.Sprintf("%dс", seconds)
	}
}

// Snapshot собирает метрики процесса через gopsutil. Ошибки gopsutil
// не фатальны: недоступное значение остаётся нулём.
func (sm *ServerMetrics) Snapshot(version string, sublevels int) ServerStats {
	stats := ServerStats{
		Version:         version,
		Uptime:          sm.GetUptime(),
		Goroutines:      runtime.NumGoroutine(),
		SystemCPUCount:  runtime.NumCPU(),
		LayoutsBuilt:    sm.generated.Load(),
		LayoutsCached:   sm.cacheHits.Load(),
		LayoutsFailed:   sm.genFailure.Load(),
		SublevelsLoaded: sublevels,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if info, err := proc.MemoryInfo(); err == nil {
			stats.ProcessRSSMB = float64(info.RSS) / 1024 / 1024
		}
		if pct, err := proc.CPUPercent(); err == nil {
			stats.ProcessCPU = pct
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.SystemMemUsed = vm.UsedPercent
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		stats.SystemCPUCount = n
	}
	return stats
}
