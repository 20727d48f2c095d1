package stocks

import (
	"context"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// QuoteClient fetches quotes from the market data source.
type QuoteClient interface {
	Quote(ctx context.Context, symbol string) (domain.StockQuote, error)
	Search(ctx context.Context, query string) ([]domain.StockQuote, error)
}
