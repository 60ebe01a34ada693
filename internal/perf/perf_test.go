package perf

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func newTestMonitor() *Monitor {
	return NewMonitor(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestFrameAccounting(t *testing.T) {
	m := newTestMonitor()

	for i := 0; i < 3; i++ {
		m.StartFrame()
		m.EndFrame()
	}

	snap := m.Metrics()
	if snap.TotalFrames != 3 {
		t.Fatalf("total frames = %d, want 3", snap.TotalFrames)
	}
	if snap.MinFrameTimeMs > snap.MaxFrameTimeMs {
		t.Fatalf("min %f > max %f", snap.MinFrameTimeMs, snap.MaxFrameTimeMs)
	}
	if snap.AvgFrameTimeMs < 0 {
		t.Fatalf("avg frame time negative")
	}
}

func TestCounters(t *testing.T) {
	m := newTestMonitor()

	m.RecordPacketSent()
	m.RecordPacketSent()
	m.RecordPacketReceived()
	m.SetConnectedPlayers(5)
	m.SetDBQueueStats(3, 7)

	snap := m.Metrics()
	if snap.PacketsSent != 2 || snap.PacketsReceived != 1 {
		t.Fatalf("packet counters = %d sent, %d received", snap.PacketsSent, snap.PacketsReceived)
	}
	if snap.ConnectedPlayers != 5 {
		t.Fatalf("players = %d", snap.ConnectedPlayers)
	}
	if snap.DBQueueDepth != 3 || snap.DBWritesDropped != 7 {
		t.Fatalf("db queue stats = %d, %d", snap.DBQueueDepth, snap.DBWritesDropped)
	}
}

func TestDatabaseQueryAverage(t *testing.T) {
	m := newTestMonitor()

	m.RecordDatabaseQuery(10 * time.Millisecond)
	m.RecordDatabaseQuery(20 * time.Millisecond)

	snap := m.Metrics()
	if snap.DBQueries != 2 {
		t.Fatalf("query count = %d", snap.DBQueries)
	}
	if snap.DBAvgQueryMs < 14 || snap.DBAvgQueryMs > 16 {
		t.Fatalf("avg query time = %f, want ~15", snap.DBAvgQueryMs)
	}
}

func TestResetClearsMetrics(t *testing.T) {
	m := newTestMonitor()

	m.StartFrame()
	m.EndFrame()
	m.RecordPacketSent()
	m.Reset()

	snap := m.Metrics()
	if snap.TotalFrames != 0 || snap.PacketsSent != 0 {
		t.Fatalf("reset left counters: %+v", snap)
	}
}

func TestReportDoesNotPanic(t *testing.T) {
	m := newTestMonitor()
	m.Report()

	m.StartFrame()
	m.EndFrame()
	m.Report()
}
