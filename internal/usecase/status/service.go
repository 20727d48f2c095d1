// Package status assembles the service self-description served by
// GET /status.
package status

// Startup step names as registered with the readiness gate.
const (
	StepIndex       = "index"
	StepSTTFallback = "stt_fallback"
)

// Report is the point-in-time service status.
type Report struct {
	Status              string
	Service             string
	Version             string
	EmbeddingModel      string
	IndexLoaded         bool
	NumChunks           int
	WhisperAvailable    bool
	LangdetectAvailable bool
	UptimeSeconds       float64
}

// Service builds status reports.
type Service struct {
	gate           Gate
	index          func() Index
	service        string
	version        string
	embeddingModel string
	langdetect     bool
}

// New creates a Service. index is a deferred accessor because the index
// store only exists once the readiness gate has loaded it; it may return
// nil until then.
func New(gate Gate, index func() Index, service, version, embeddingModel string, langdetect bool) *Service {
	return &Service{
		gate:           gate,
		index:          index,
		service:        service,
		version:        version,
		embeddingModel: embeddingModel,
		langdetect:     langdetect,
	}
}

// Report assembles the current status. It never fails; a service that is
// still starting up reports status "initializing" with zeroed index facts.
func (s *Service) Report() Report {
	r := Report{
		Status:              "initializing",
		Service:             s.service,
		Version:             s.version,
		EmbeddingModel:      s.embeddingModel,
		IndexLoaded:         s.gate.Loaded(StepIndex),
		WhisperAvailable:    s.gate.Loaded(StepSTTFallback),
		LangdetectAvailable: s.langdetect,
		UptimeSeconds:       s.gate.Uptime().Seconds(),
	}
	if s.gate.IsReady() {
		r.Status = "ready"
	}
	if idx := s.index(); idx != nil {
		r.NumChunks = idx.Len()
	}
	return r
}
