package status

import (
	"testing"
	"time"
)

// --- Mocks ---

type mockGate struct {
	ready  bool
	loaded map[string]bool
	uptime time.Duration
}

func (m *mockGate) IsReady() bool { return m.ready }

func (m *mockGate) Loaded(name string) bool { return m.loaded[name] }

func (m *mockGate) Uptime() time.Duration { return m.uptime }

type mockIndex struct {
	n int
}

func (m *mockIndex) Len() int { return m.n }

// --- Tests ---

func TestReport_Ready(t *testing.T) {
	gate := &mockGate{
		ready:  true,
		loaded: map[string]bool{StepIndex: true, StepSTTFallback: true},
		uptime: 90 * time.Second,
	}
	idx := &mockIndex{n: 1234}
	svc := New(gate, func() Index { return idx }, "ragserve", "1.2.3", "text-embedding-3-small", true)

	r := svc.Report()

	if r.Status != "ready" {
		t.Errorf("expected status ready, got %q", r.Status)
	}
	if r.Service != "ragserve" || r.Version != "1.2.3" {
		t.Errorf("unexpected identity: %q %q", r.Service, r.Version)
	}
	if r.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("unexpected embedding model %q", r.EmbeddingModel)
	}
	if !r.IndexLoaded || r.NumChunks != 1234 {
		t.Errorf("unexpected index facts: loaded=%v chunks=%d", r.IndexLoaded, r.NumChunks)
	}
	if !r.WhisperAvailable || !r.LangdetectAvailable {
		t.Errorf("unexpected capabilities: whisper=%v langdetect=%v", r.WhisperAvailable, r.LangdetectAvailable)
	}
	if r.UptimeSeconds != 90 {
		t.Errorf("expected uptime 90s, got %f", r.UptimeSeconds)
	}
}

func TestReport_Initializing(t *testing.T) {
	gate := &mockGate{loaded: map[string]bool{}}
	svc := New(gate, func() Index { return nil }, "ragserve", "dev", "text-embedding-3-small", false)

	r := svc.Report()

	if r.Status != "initializing" {
		t.Errorf("expected status initializing, got %q", r.Status)
	}
	if r.IndexLoaded || r.NumChunks != 0 {
		t.Errorf("index must not be reported before load: loaded=%v chunks=%d", r.IndexLoaded, r.NumChunks)
	}
	if r.WhisperAvailable {
		t.Error("whisper must not be reported before load")
	}
}

func TestReport_DegradedSTT(t *testing.T) {
	gate := &mockGate{
		ready:  true,
		loaded: map[string]bool{StepIndex: true, StepSTTFallback: false},
	}
	idx := &mockIndex{n: 10}
	svc := New(gate, func() Index { return idx }, "ragserve", "dev", "text-embedding-3-small", true)

	r := svc.Report()

	if r.Status != "ready" {
		t.Errorf("a degraded speech slot must not block readiness, got %q", r.Status)
	}
	if r.WhisperAvailable {
		t.Error("expected whisper_available false when the fallback slot failed to load")
	}
}
