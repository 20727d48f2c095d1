package domain

import "errors"

var (
	// ErrNotReady signals that the service has not finished initializing.
	ErrNotReady = errors.New("service not ready")
	// ErrSTTUnavailable signals that no speech model is loaded.
	ErrSTTUnavailable = errors.New("no speech model available")
	// ErrTranscriptionFailed signals that every attempted speech model failed.
	ErrTranscriptionFailed = errors.New("transcription failed")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrSymbolNotFound signals an unknown stock symbol.
	ErrSymbolNotFound = errors.New("symbol not found")
	// ErrQuoteUnavailable signals that the market data source is unreachable.
	ErrQuoteUnavailable = errors.New("quote source unavailable")
)
