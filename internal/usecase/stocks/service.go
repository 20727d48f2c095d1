// Package stocks implements the market quote read-through for Indian
// equities and indices. The service holds no state; every request goes
// to the market data source through a shared circuit breaker.
package stocks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/shankh-ai/ragserve/internal/domain"
	"github.com/shankh-ai/ragserve/internal/logger"
)

// Index aliases accepted as plain symbols.
var indexSymbols = map[string]string{
	"NIFTY":     "^NSEI",
	"SENSEX":    "^BSESN",
	"BANKNIFTY": "^NSEBANK",
}

// Indices reported by the indices overview, in response order.
var indexOrder = []string{"NIFTY", "SENSEX", "BANKNIFTY"}

// Service resolves quote requests against the market data source.
type Service struct {
	client  QuoteClient
	breaker *gobreaker.CircuitBreaker[any]
}

// New creates a Service around the given quote client.
func New(client QuoteClient, log *zap.Logger) *Service {
	settings := gobreaker.Settings{
		Name:        "market-data",
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// An unknown symbol is an answer from the upstream, not an
			// upstream failure.
			return err == nil || errors.Is(err, domain.ErrSymbolNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &Service{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Price returns the current quote for one symbol. Index aliases
// (NIFTY, SENSEX, BANKNIFTY) and bare NSE tickers are resolved before
// the upstream call; the returned quote keeps the caller's symbol.
func (s *Service) Price(ctx context.Context, symbol string) (domain.StockQuote, error) {
	requested := strings.ToUpper(strings.TrimSpace(symbol))
	if requested == "" {
		return domain.StockQuote{}, fmt.Errorf("%w: empty symbol", domain.ErrSymbolNotFound)
	}

	quote, err := s.fetch(ctx, resolveSymbol(requested))
	if err != nil {
		return domain.StockQuote{}, err
	}
	quote.Symbol = requested
	return quote, nil
}

// Multiple returns quotes for each symbol, keyed by the requested
// symbol. Symbols that fail to resolve are simply absent; one bad
// symbol never fails the batch.
func (s *Service) Multiple(ctx context.Context, symbols []string) (map[string]domain.StockQuote, error) {
	log := logger.FromContext(ctx)

	quotes := make(map[string]domain.StockQuote, len(symbols))
	for _, symbol := range symbols {
		quote, err := s.Price(ctx, symbol)
		if err != nil {
			if errors.Is(err, domain.ErrSymbolNotFound) {
				log.Warn("Skipping unknown symbol", zap.String("symbol", symbol))
				continue
			}
			return nil, err
		}
		quotes[quote.Symbol] = quote
	}
	return quotes, nil
}

// Search looks up symbols by name or ticker fragment.
func (s *Service) Search(ctx context.Context, query string) ([]domain.StockQuote, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.client.Search(ctx, query)
	})
	if err != nil {
		return nil, mapBreakerErr(err)
	}
	return result.([]domain.StockQuote), nil
}

// Indices returns the standing market indices overview.
func (s *Service) Indices(ctx context.Context) (map[string]domain.StockQuote, error) {
	return s.Multiple(ctx, indexOrder)
}

func (s *Service) fetch(ctx context.Context, symbol string) (domain.StockQuote, error) {
	result, err := s.breaker.Execute(func() (any, error) {
		return s.client.Quote(ctx, symbol)
	})
	if err != nil {
		return domain.StockQuote{}, mapBreakerErr(err)
	}
	return result.(domain.StockQuote), nil
}

// resolveSymbol maps request symbols to the market data source's
// notation: index aliases to their index tickers, bare equity tickers
// to the NSE listing.
func resolveSymbol(symbol string) string {
	if resolved, ok := indexSymbols[symbol]; ok {
		return resolved
	}
	if strings.HasPrefix(symbol, "^") || strings.Contains(symbol, ".") {
		return symbol
	}
	return symbol + ".NS"
}

func mapBreakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	return err
}
