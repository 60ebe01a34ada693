package perf

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"sync"
	"time"

	"github.com/shirou/gopsutil/process"
)

// Metrics is a point-in-time copy of the monitor's counters.
type Metrics struct {
	AvgFrameTimeMs   float64
	MinFrameTimeMs   float64
	MaxFrameTimeMs   float64
	TotalFrames      uint64
	UptimeSeconds    float64
	ConnectedPlayers int
	PacketsSent      uint64
	PacketsReceived  uint64
	DBQueries        uint64
	DBAvgQueryMs     float64
	DBQueueDepth     int
	DBWritesDropped  uint64
}

// Monitor accumulates frame timings and traffic counters and renders the
// periodic report. EndFrame and the record methods may be called from the
// sim thread while a stats reader asks for Metrics, so a mutex guards the
// counters.
type Monitor struct {
	mu sync.Mutex

	startTime  time.Time
	frameStart time.Time

	frameTimeSum float64
	metrics      Metrics

	proc   *process.Process
	logger *slog.Logger
}

func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Monitor{
		startTime: time.Now(),
		logger:    logger,
	}
	m.metrics.MinFrameTimeMs = math.MaxFloat64

	// Process handle for CPU/RSS sampling; reporting degrades gracefully
	// when unavailable.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		m.proc = proc
	} else {
		logger.Warn("process metrics unavailable", "error", err)
	}

	return m
}

func (m *Monitor) StartFrame() {
	m.frameStart = time.Now()
}

func (m *Monitor) EndFrame() {
	elapsed := time.Since(m.frameStart)

	m.mu.Lock()
	defer m.mu.Unlock()

	frameMs := float64(elapsed.Microseconds()) / 1000.0
	m.frameTimeSum += frameMs
	m.metrics.TotalFrames++
	m.metrics.AvgFrameTimeMs = m.frameTimeSum / float64(m.metrics.TotalFrames)
	m.metrics.MinFrameTimeMs = math.Min(m.metrics.MinFrameTimeMs, frameMs)
	m.metrics.MaxFrameTimeMs = math.Max(m.metrics.MaxFrameTimeMs, frameMs)
	m.metrics.UptimeSeconds = time.Since(m.startTime).Seconds()
}

func (m *Monitor) SetConnectedPlayers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.ConnectedPlayers = n
}

func (m *Monitor) RecordPacketSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.PacketsSent++
}

func (m *Monitor) RecordPacketReceived() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.PacketsReceived++
}

func (m *Monitor) RecordDatabaseQuery(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	total := m.metrics.DBAvgQueryMs * float64(m.metrics.DBQueries)
	m.metrics.DBQueries++
	m.metrics.DBAvgQueryMs = (total + float64(d.Microseconds())/1000.0) / float64(m.metrics.DBQueries)
}

func (m *Monitor) SetDBQueueStats(depth int, dropped uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics.DBQueueDepth = depth
	m.metrics.DBWritesDropped = dropped
}

func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Report logs the human-readable summary, including process CPU and RSS
// when the process handle is available.
func (m *Monitor) Report() {
	snap := m.Metrics()

	avgFPS := 0.0
	if snap.AvgFrameTimeMs > 0 {
		avgFPS = 1000.0 / snap.AvgFrameTimeMs
	}
	minMs := snap.MinFrameTimeMs
	if snap.TotalFrames == 0 {
		minMs = 0
	}

	attrs := []any{
		"uptime", fmt.Sprintf("%.0fs", snap.UptimeSeconds),
		"frames", snap.TotalFrames,
		"avg_frame_ms", fmt.Sprintf("%.3f", snap.AvgFrameTimeMs),
		"min_frame_ms", fmt.Sprintf("%.3f", minMs),
		"max_frame_ms", fmt.Sprintf("%.3f", snap.MaxFrameTimeMs),
		"avg_fps", fmt.Sprintf("%.1f", avgFPS),
		"players", snap.ConnectedPlayers,
		"packets_sent", snap.PacketsSent,
		"packets_received", snap.PacketsReceived,
		"db_queries", snap.DBQueries,
		"db_avg_query_ms", fmt.Sprintf("%.3f", snap.DBAvgQueryMs),
		"db_queue_depth", snap.DBQueueDepth,
		"db_writes_dropped", snap.DBWritesDropped,
	}

	if m.proc != nil {
		if cpu, err := m.proc.CPUPercent(); err == nil {
			attrs = append(attrs, "cpu_percent", fmt.Sprintf("%.2f", cpu))
		}
		if mem, err := m.proc.MemoryInfo(); err == nil {
			attrs = append(attrs, "rss_mb", fmt.Sprintf("%.1f", float64(mem.RSS)/(1024*1024)))
		}
	}

	m.logger.Info("performance report", attrs...)
}

func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.startTime = time.Now()
	m.frameTimeSum = 0
	m.metrics = Metrics{MinFrameTimeMs: math.MaxFloat64}
}
