package models

import "time"

// PricePoint is one (symbol, date) daily OHLCV record. Re-fetch overwrites.
type PricePoint struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"` // YYYY-MM-DD
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// CoverageSpan records that a (symbol, date range) fetch happened. Advisory:
// the authoritative coverage answer is PricePoint membership.
type CoverageSpan struct {
	Symbol    string    `json:"symbol"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
	Source    string    `json:"source"`
	FetchedAt time.Time `json:"fetched_at"`
}

// DownloadResult summarizes one PriceCache download pass.
type DownloadResult struct {
	Downloaded     []string `json:"downloaded"`
	Failed         []string `json:"failed"`
	RateLimited    bool     `json:"rate_limited"`
	DatesCompleted []string `json:"dates_completed"`
	PartialDates   []string `json:"partial_dates"`
}
