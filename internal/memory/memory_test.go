package memory

import (
	"testing"
	"time"
)

func envMap(m map[string]string) Env {
	return func(key string) string { return m[key] }
}

type limitRecorder struct {
	current int64
	set     []int64
}

func (l *limitRecorder) setLimit(v int64) int64 {
	prev := l.current
	if v >= 0 {
		l.current = v
		l.set = append(l.set, v)
	}
	return prev
}

func TestConfigure(t *testing.T) {
	tests := []struct {
		name       string
		env        map[string]string
		startLimit int64
		source     string
		configured bool
		goMemLimit int64
		ratio      float64
	}{
		{
			name:   "nothing set",
			env:    map[string]string{},
			source: "none",
		},
		{
			name:       "GOMEMLIMIT wins",
			env:        map[string]string{"GOMEMLIMIT": "512MiB", "MEMORY_LIMIT": "1073741824"},
			startLimit: 512 << 20,
			source:     "GOMEMLIMIT",
			configured: true,
			goMemLimit: 512 << 20,
		},
		{
			name:       "MEMORY_LIMIT with default ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000"},
			source:     "MEMORY_LIMIT",
			configured: true,
			goMemLimit: 600000000,
			ratio:      DefaultMemoryRatio,
		},
		{
			name:       "custom ratio",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "0.5"},
			source:     "MEMORY_LIMIT",
			configured: true,
			goMemLimit: 500000000,
			ratio:      0.5,
		},
		{
			name:       "ratio out of range falls back",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "1.5"},
			source:     "MEMORY_LIMIT",
			configured: true,
			goMemLimit: 600000000,
			ratio:      DefaultMemoryRatio,
		},
		{
			name:       "unparseable ratio falls back",
			env:        map[string]string{"MEMORY_LIMIT": "1000000000", "MEMORY_RATIO": "half"},
			source:     "MEMORY_LIMIT",
			configured: true,
			goMemLimit: 600000000,
			ratio:      DefaultMemoryRatio,
		},
		{
			name:   "unparseable limit",
			env:    map[string]string{"MEMORY_LIMIT": "2Gi"},
			source: "none",
		},
		{
			name:   "negative limit",
			env:    map[string]string{"MEMORY_LIMIT": "-5"},
			source: "none",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &limitRecorder{current: tt.startLimit}
			got := Configure(envMap(tt.env), rec.setLimit)

			if got.Source != tt.source {
				t.Errorf("Source = %q, want %q", got.Source, tt.source)
			}
			if got.Configured != tt.configured {
				t.Errorf("Configured = %v, want %v", got.Configured, tt.configured)
			}
			if got.GoMemLimit != tt.goMemLimit {
				t.Errorf("GoMemLimit = %d, want %d", got.GoMemLimit, tt.goMemLimit)
			}
			if got.Ratio != tt.ratio {
				t.Errorf("Ratio = %v, want %v", got.Ratio, tt.ratio)
			}
			if tt.source == "MEMORY_LIMIT" {
				if len(rec.set) != 1 || rec.set[0] != tt.goMemLimit {
					t.Errorf("limit set to %v, want [%d]", rec.set, tt.goMemLimit)
				}
			} else if len(rec.set) != 0 {
				t.Errorf("limit should not be changed, got %v", rec.set)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.MemoryLimitBytes != 0 {
		t.Errorf("MemoryLimitBytes = %d, want 0", cfg.MemoryLimitBytes)
	}
	if cfg.HighWaterMark >= cfg.CriticalWaterMark {
		t.Errorf("HighWaterMark %.2f must be below CriticalWaterMark %.2f", cfg.HighWaterMark, cfg.CriticalWaterMark)
	}
	if cfg.CheckInterval != 5*time.Second {
		t.Errorf("CheckInterval = %v, want 5s", cfg.CheckInterval)
	}
}

func newTestMonitor(limit int64, heap *uint64) *Monitor {
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = limit
	m := NewMonitor(cfg)
	m.readHeap = func() uint64 { return *heap }
	return m
}

func TestMonitorPauseAndRecover(t *testing.T) {
	var heap uint64
	m := newTestMonitor(1000, &heap)

	steps := []struct {
		heap   uint64
		paused bool
	}{
		{500, false},
		{800, false}, // between marks, not yet critical
		{900, true},
		{800, true}, // between marks, stays paused
		{600, false},
	}

	for i, s := range steps {
		heap = s.heap
		m.checkMemory()
		if got := m.IsPaused(); got != s.paused {
			t.Errorf("step %d (heap %d): IsPaused() = %v, want %v", i, s.heap, got, s.paused)
		}
	}

	current, limit, usage := m.GetStats()
	if current != 600 || limit != 1000 || usage != 0.6 {
		t.Errorf("GetStats() = %d, %d, %v", current, limit, usage)
	}
}

func TestMonitorWithoutLimit(t *testing.T) {
	var heap uint64 = 1 << 40
	m := newTestMonitor(0, &heap)
	m.limit = 0 // ignore any GOMEMLIMIT in the test environment

	m.checkMemory()
	if m.IsPaused() {
		t.Error("monitor without a limit must never pause")
	}
	m.Start()
	m.Stop()
	m.Stop()
}

func TestNilMonitorNeverPauses(t *testing.T) {
	var m *Monitor
	if m.IsPaused() {
		t.Error("nil monitor should not pause")
	}
}

func TestMonitorStartStop(t *testing.T) {
	var heap uint64 = 950
	cfg := DefaultConfig()
	cfg.MemoryLimitBytes = 1000
	cfg.CheckInterval = time.Millisecond
	m := NewMonitor(cfg)
	m.readHeap = func() uint64 { return heap }

	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for !m.IsPaused() {
		if time.Now().After(deadline) {
			t.Fatal("monitor never paused")
		}
		time.Sleep(time.Millisecond)
	}
}
