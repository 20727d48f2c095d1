package yahoo

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shankh-ai/ragserve/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, 5*time.Second)
}

func TestQuote_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v8/finance/chart/RELIANCE.NS" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a user agent header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":[{"meta":{
			"symbol":"RELIANCE.NS","shortName":"Reliance Industries",
			"currency":"INR","exchangeName":"NSI",
			"regularMarketPrice":2950.0,"chartPreviousClose":2900.0
		}}],"error":null}}`))
	})

	quote, err := client.Quote(context.Background(), "RELIANCE.NS")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if quote.Symbol != "RELIANCE.NS" || quote.Name != "Reliance Industries" {
		t.Errorf("unexpected identity: %+v", quote)
	}
	if quote.Price != 2950.0 || quote.Currency != "INR" || quote.Exchange != "NSI" {
		t.Errorf("unexpected quote fields: %+v", quote)
	}
	if quote.Change != 50.0 {
		t.Errorf("expected change 50.0, got %f", quote.Change)
	}
	wantPct := 50.0 / 2900.0 * 100
	if math.Abs(quote.ChangePercent-wantPct) > 1e-9 {
		t.Errorf("expected change percent %f, got %f", wantPct, quote.ChangePercent)
	}
}

func TestQuote_NotFoundStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.Quote(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestQuote_ChartError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	})

	_, err := client.Quote(context.Background(), "NOPE")
	if !errors.Is(err, domain.ErrSymbolNotFound) {
		t.Fatalf("expected ErrSymbolNotFound, got %v", err)
	}
}

func TestQuote_UpstreamFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Quote(context.Background(), "RELIANCE.NS")
	if !errors.Is(err, domain.ErrQuoteUnavailable) {
		t.Fatalf("expected ErrQuoteUnavailable, got %v", err)
	}
}

func TestSearch_Success(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "tata" {
			t.Errorf("unexpected query %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"quotes":[
			{"symbol":"TCS.NS","shortname":"Tata Consultancy Services","exchange":"NSI","quoteType":"EQUITY"},
			{"symbol":"TATAMOTORS.NS","longname":"Tata Motors Limited","exchange":"NSI","quoteType":"EQUITY"},
			{"symbol":"","shortname":"junk row"}
		]}`))
	})

	matches, err := client.Search(context.Background(), "tata")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Symbol != "TCS.NS" || matches[0].Name != "Tata Consultancy Services" {
		t.Errorf("unexpected first match: %+v", matches[0])
	}
	if matches[1].Name != "Tata Motors Limited" {
		t.Errorf("expected longname fallback, got %+v", matches[1])
	}
}
