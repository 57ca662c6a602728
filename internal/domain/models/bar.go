package models

import "time"

// Bar is one OHLCV candle. Bar sequences are ordered by strictly
// increasing timestamp and never mutated after production.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Instrument is one tradeable contract in the scan universe.
type Instrument struct {
	Symbol    string
	LastPrice float64
	Turnover  float64 // 24h quote turnover, used for universe ranking
}

// Tick is one live price update from the market stream.
type Tick struct {
	Symbol    string
	Price     float64
	Timestamp time.Time
}
