package service

// Instrument describes one tradable pair. ID is the routing key; the
// remaining fields are informational.
type Instrument struct {
	ID          string `json:"id" mapstructure:"id"`
	Name        string `json:"name" mapstructure:"name"`
	StockSymbol string `json:"stockSymbol" mapstructure:"stock_symbol"`
	Currency    string `json:"currency" mapstructure:"currency"`
}
