// Package chi implements the HTTP API over the retrieval, transcription,
// status and stock services.
package chi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/domain"
	retrievaluc "github.com/shankh-ai/ragserve/internal/usecase/retrieval"
	statusuc "github.com/shankh-ai/ragserve/internal/usecase/status"
	stocksuc "github.com/shankh-ai/ragserve/internal/usecase/stocks"
	transcribeuc "github.com/shankh-ai/ragserve/internal/usecase/transcribe"
)

const (
	defaultK = 5
	maxK     = 50

	// Upload cap for /transcribe request bodies.
	maxAudioBytes = 25 << 20
)

type errorCode string

const (
	codeBadRequest             errorCode = "bad_request"
	codeValidationFailed       errorCode = "validation_failed"
	codeServiceNotReady        errorCode = "service_not_ready"
	codeSTTUnavailable         errorCode = "stt_unavailable"
	codeTranscriptionFailed    errorCode = "transcription_failed"
	codeEmbeddingProviderError errorCode = "embedding_provider_error"
	codeSymbolNotFound         errorCode = "symbol_not_found"
	codeQuoteUnavailable       errorCode = "quote_unavailable"
	codeInternalError          errorCode = "internal_error"
)

type errorResponse struct {
	Code    errorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API. stocks may be nil; the stock routes are
// then not mounted at all.
type Server struct {
	retrieval     *retrievaluc.Service
	transcription *transcribeuc.Service
	status        *statusuc.Service
	stocks        *stocksuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	retrieval *retrievaluc.Service,
	transcription *transcribeuc.Service,
	status *statusuc.Service,
	stocks *stocksuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		retrieval:     retrieval,
		transcription: transcription,
		status:        status,
		stocks:        stocks,
		logger:        logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNotReady, http.StatusServiceUnavailable, codeServiceNotReady),
		sentinelHandler(domain.ErrSTTUnavailable, http.StatusNotImplemented, codeSTTUnavailable),
		// Transcription failures carry the underlying model error in the
		// response body.
		verbatimHandler(domain.ErrTranscriptionFailed, http.StatusInternalServerError, codeTranscriptionFailed),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, codeEmbeddingProviderError),
		verbatimHandler(domain.ErrSymbolNotFound, http.StatusNotFound, codeSymbolNotFound),
		sentinelHandler(domain.ErrQuoteUnavailable, http.StatusBadGateway, codeQuoteUnavailable),
	}
	return s
}

// Register mounts all API routes on the router.
func (s *Server) Register(r chi.Router) {
	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/retrieve", s.handleRetrieve)
	r.Post("/transcribe", s.handleTranscribe)

	if s.stocks != nil {
		r.Post("/stock/price", s.handleStockPrice)
		r.Post("/stock/multiple", s.handleStockMultiple)
		r.Post("/stock/search", s.handleStockSearch)
		r.Get("/stock/indices", s.handleStockIndices)
	}
}

// --- Serving ---

type retrieveRequest struct {
	Query     string   `json:"query"`
	K         *int     `json:"k"`
	LangHint  string   `json:"lang_hint"`
	Threshold *float32 `json:"threshold"`
}

type retrievedChunk struct {
	ChunkID   int     `json:"chunk_id"`
	Filename  string  `json:"filename"`
	PageNum   int     `json:"page_num"`
	Text      string  `json:"text"`
	Excerpt   string  `json:"excerpt"`
	Score     float32 `json:"score"`
	CharStart int     `json:"char_start"`
	CharEnd   int     `json:"char_end"`
}

type retrieveResponse struct {
	Query            string           `json:"query"`
	Results          []retrievedChunk `json:"results"`
	NumResults       int              `json:"num_results"`
	DetectedLanguage string           `json:"detected_language,omitempty"`
	ProcessingTimeMS float64          `json:"processing_time_ms"`
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req retrieveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}
	k := defaultK
	if req.K != nil {
		k = *req.K
		if k < 1 || k > maxK {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "k must be between 1 and 50")
			return
		}
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 1) {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "threshold must be between 0 and 1")
		return
	}

	resp, err := s.retrieval.Retrieve(r.Context(), domain.Query{
		Text:      req.Query,
		K:         k,
		LangHint:  req.LangHint,
		Threshold: req.Threshold,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]retrievedChunk, len(resp.Results))
	for i, res := range resp.Results {
		results[i] = retrievedChunk{
			ChunkID:   res.Chunk.ChunkID,
			Filename:  res.Chunk.Filename,
			PageNum:   res.Chunk.PageNum,
			Text:      res.Chunk.Text,
			Excerpt:   res.Chunk.Excerpt,
			Score:     res.Score,
			CharStart: res.Chunk.CharStart,
			CharEnd:   res.Chunk.CharEnd,
		}
	}

	writeJSON(w, http.StatusOK, retrieveResponse{
		Query:            resp.Query,
		Results:          results,
		NumResults:       len(results),
		DetectedLanguage: resp.DetectedLanguage,
		ProcessingTimeMS: float64(resp.Elapsed.Microseconds()) / 1000.0,
	})
}

type transcriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

type transcribeResponse struct {
	Text       string              `json:"text"`
	Language   string              `json:"language"`
	Confidence *float32            `json:"confidence,omitempty"`
	Segments   []transcriptSegment `json:"segments"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAudioBytes)

	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Audio file is required: "+err.Error())
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Failed to read audio file: "+err.Error())
		return
	}

	transcription, _, err := s.transcription.Transcribe(r.Context(), audio, header.Filename)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	segments := make([]transcriptSegment, len(transcription.Segments))
	for i, seg := range transcription.Segments {
		segments[i] = transcriptSegment{Start: seg.Start, End: seg.End, Text: seg.Text}
	}

	writeJSON(w, http.StatusOK, transcribeResponse{
		Text:       transcription.Text,
		Language:   transcription.Language,
		Confidence: transcription.Confidence,
		Segments:   segments,
	})
}

// --- Introspection ---

type statusResponse struct {
	Status              string  `json:"status"`
	Service             string  `json:"service"`
	Version             string  `json:"version"`
	EmbeddingModel      string  `json:"embedding_model"`
	IndexLoaded         bool    `json:"index_loaded"`
	NumChunks           int     `json:"num_chunks"`
	WhisperAvailable    bool    `json:"whisper_available"`
	LangdetectAvailable bool    `json:"langdetect_available"`
	UptimeSeconds       float64 `json:"uptime_seconds"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	report := s.status.Report()
	writeJSON(w, http.StatusOK, statusResponse{
		Status:              report.Status,
		Service:             report.Service,
		Version:             report.Version,
		EmbeddingModel:      report.EmbeddingModel,
		IndexLoaded:         report.IndexLoaded,
		NumChunks:           report.NumChunks,
		WhisperAvailable:    report.WhisperAvailable,
		LangdetectAvailable: report.LangdetectAvailable,
		UptimeSeconds:       report.UptimeSeconds,
	})
}

// handleHealth is the liveness probe: it answers 200 while the service
// is still loading, with readiness reported in the body.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"ready":  s.status.Report().Status == "ready",
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	report := s.status.Report()
	state := "initializing"
	if report.Status == "ready" {
		state = "running"
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": report.Service,
		"status":  state,
	})
}

// --- Stocks ---

type stockQuote struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name,omitempty"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Currency      string  `json:"currency,omitempty"`
	Exchange      string  `json:"exchange,omitempty"`
}

func quoteToJSON(q domain.StockQuote) stockQuote {
	return stockQuote{
		Symbol:        q.Symbol,
		Name:          q.Name,
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Currency:      q.Currency,
		Exchange:      q.Exchange,
	}
}

func quotesToJSON(quotes map[string]domain.StockQuote) map[string]stockQuote {
	out := make(map[string]stockQuote, len(quotes))
	for symbol, q := range quotes {
		out[symbol] = quoteToJSON(q)
	}
	return out
}

func (s *Server) handleStockPrice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbol string `json:"symbol"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Symbol == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Symbol is required")
		return
	}

	quote, err := s.stocks.Price(r.Context(), req.Symbol)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quoteToJSON(quote))
}

func (s *Server) handleStockMultiple(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Symbols []string `json:"symbols"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(req.Symbols) == 0 {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Symbols are required")
		return
	}

	quotes, err := s.stocks.Multiple(r.Context(), req.Symbols)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotesToJSON(quotes))
}

func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "Query is required")
		return
	}

	matches, err := s.stocks.Search(r.Context(), req.Query)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	results := make([]stockQuote, len(matches))
	for i, m := range matches {
		results[i] = quoteToJSON(m)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) handleStockIndices(w http.ResponseWriter, r *http.Request) {
	quotes, err := s.stocks.Indices(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quotesToJSON(quotes))
}

// --- Error plumbing ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code errorCode, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// sentinelHandler maps a domain sentinel to a status code with the
// sanitized message.
func sentinelHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// verbatimHandler maps a domain sentinel to a status code, keeping the
// full wrapped error text in the response.
func verbatimHandler(sentinel error, status int, code errorCode) errorHandler {
	return func(w http.ResponseWriter, err error, _ string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, err.Error())
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}

func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrNotReady,
		domain.ErrSTTUnavailable,
		domain.ErrTranscriptionFailed,
		domain.ErrEmbeddingProviderError,
		domain.ErrSymbolNotFound,
		domain.ErrQuoteUnavailable,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}
