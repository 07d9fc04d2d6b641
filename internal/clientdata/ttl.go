package clientdata

import "time"

// TTL constants for different data types.
const (
	TTLQuote        = 5 * time.Minute
	TTLPriceHistory = 6 * time.Hour
	TTLBenchmark    = time.Hour
	// TTLHistoricalClose covers closes far enough in the past that they no longer change.
	TTLHistoricalClose = 30 * 24 * time.Hour
)

// Expired rows are kept this long past expiry so a failing provider can still
// be answered from the last good copy.
const (
	StaleWindowQuote        = 7 * 24 * time.Hour
	StaleWindowPriceHistory = 7 * 24 * time.Hour
	StaleWindowBenchmark    = 24 * time.Hour
)

// StaleWindow returns how long expired rows of table stay available.
func StaleWindow(table string) time.Duration {
	switch table {
	case TableQuotes:
		return StaleWindowQuote
	case TablePriceHistory:
		return StaleWindowPriceHistory
	case TableBenchmarks:
		return StaleWindowBenchmark
	}
	return 0
}
