package domain

// StockQuote is a read-through snapshot of a market quote. The service
// never stores quotes; each request goes straight to the market data
// source.
type StockQuote struct {
	Symbol        string
	Name          string
	Price         float64
	Change        float64
	ChangePercent float64
	Currency      string
	Exchange      string
}
