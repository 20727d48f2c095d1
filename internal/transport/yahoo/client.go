// Package yahoo implements a read-only market quote client over the
// Yahoo Finance chart and search endpoints.
package yahoo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/shankh-ai/ragserve/internal/domain"
)

// Client fetches quotes from a Yahoo-compatible finance API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client. baseURL must not have a trailing slash.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				ShortName          string  `json:"shortName"`
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				PreviousClose      float64 `json:"chartPreviousClose"`
			} `json:"meta"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type searchResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		ShortName string `json:"shortname"`
		LongName  string `json:"longname"`
		Exchange  string `json:"exchange"`
		QuoteType string `json:"quoteType"`
	} `json:"quotes"`
}

// Quote fetches the latest market snapshot for one symbol. An unknown
// symbol maps to domain.ErrSymbolNotFound; upstream failures map to
// domain.ErrQuoteUnavailable.
func (c *Client) Quote(ctx context.Context, symbol string) (domain.StockQuote, error) {
	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1d", c.baseURL, url.PathEscape(symbol))

	var parsed chartResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return domain.StockQuote{}, err
	}
	if parsed.Chart.Error != nil {
		return domain.StockQuote{}, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}
	if len(parsed.Chart.Result) == 0 {
		return domain.StockQuote{}, fmt.Errorf("%w: %s", domain.ErrSymbolNotFound, symbol)
	}

	meta := parsed.Chart.Result[0].Meta
	quote := domain.StockQuote{
		Symbol:   meta.Symbol,
		Name:     meta.ShortName,
		Price:    meta.RegularMarketPrice,
		Currency: meta.Currency,
		Exchange: meta.ExchangeName,
	}
	if meta.PreviousClose != 0 {
		quote.Change = meta.RegularMarketPrice - meta.PreviousClose
		quote.ChangePercent = quote.Change / meta.PreviousClose * 100
	}
	return quote, nil
}

// Search looks up symbols by name or ticker fragment. Results carry
// identity fields only, no prices.
func (c *Client) Search(ctx context.Context, query string) ([]domain.StockQuote, error) {
	endpoint := fmt.Sprintf("%s/v1/finance/search?q=%s&quotesCount=10&newsCount=0",
		c.baseURL, url.QueryEscape(query))

	var parsed searchResponse
	if err := c.getJSON(ctx, endpoint, &parsed); err != nil {
		return nil, err
	}

	matches := make([]domain.StockQuote, 0, len(parsed.Quotes))
	for _, q := range parsed.Quotes {
		if q.Symbol == "" {
			continue
		}
		name := q.ShortName
		if name == "" {
			name = q.LongName
		}
		matches = append(matches, domain.StockQuote{
			Symbol:   q.Symbol,
			Name:     name,
			Exchange: q.Exchange,
		})
	}
	return matches, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: build request: %v", domain.ErrQuoteUnavailable, err)
	}
	// Yahoo rejects requests without a browser-ish user agent.
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; ragserve)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrQuoteUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrSymbolNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w: upstream status %d", domain.ErrQuoteUnavailable, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrQuoteUnavailable, err)
	}
	return nil
}
