package models

import (
	"math"
	"time"
)

// Reasoning detail levels for the results endpoint.
const (
	ReasoningNone    = "none"
	ReasoningSummary = "summary"
	ReasoningFull    = "full"
)

// ResultFilter selects trading days for the results endpoint.
// Empty fields match everything.
type ResultFilter struct {
	JobID     string
	Model     string
	StartDate string
	EndDate   string
}

// Position is a portfolio state at a point in time.
type Position struct {
	Holdings       []Holding `json:"holdings"`
	Cash           float64   `json:"cash"`
	PortfolioValue float64   `json:"portfolio_value"`
}

// DailyMetrics are the per-day P&L figures of one session.
type DailyMetrics struct {
	Profit               float64 `json:"profit"`
	ReturnPct            float64 `json:"return_pct"`
	DaysSinceLastTrading int     `json:"days_since_last_trading"`
}

// ResultMetadata carries session bookkeeping for a result entry.
type ResultMetadata struct {
	TotalActions           int       `json:"total_actions"`
	SessionDurationSeconds float64   `json:"session_duration_seconds"`
	CompletedAt            time.Time `json:"completed_at"`
}

// DayResult is one (model, date) entry of a single-date results response.
type DayResult struct {
	Date             string         `json:"date"`
	Model            string         `json:"model"`
	JobID            string         `json:"job_id"`
	StartingPosition Position       `json:"starting_position"`
	DailyMetrics     DailyMetrics   `json:"daily_metrics"`
	Trades           []Action       `json:"trades"`
	FinalPosition    Position       `json:"final_position"`
	Metadata         ResultMetadata `json:"metadata"`
	Reasoning        any            `json:"reasoning"` // nil, summary string, or []AgentMessage
}

// DailyValue is one point of a model's equity curve.
type DailyValue struct {
	Date           string  `json:"date"`
	PortfolioValue float64 `json:"portfolio_value"`
}

// PeriodMetrics summarizes a model's performance over a date range.
type PeriodMetrics struct {
	StartingPortfolioValue float64 `json:"starting_portfolio_value"`
	EndingPortfolioValue   float64 `json:"ending_portfolio_value"`
	PeriodReturnPct        float64 `json:"period_return_pct"`
	AnnualizedReturnPct    float64 `json:"annualized_return_pct"`
	CalendarDays           int     `json:"calendar_days"`
	TradingDays            int     `json:"trading_days"`
}

// RangeResult is one model's entry of a range results response.
type RangeResult struct {
	Model                string        `json:"model"`
	StartDate            string        `json:"start_date"`
	EndDate              string        `json:"end_date"`
	DailyPortfolioValues []DailyValue  `json:"daily_portfolio_values"`
	PeriodMetrics        PeriodMetrics `json:"period_metrics"`
}

// AnnualizedReturnPct computes ((ending/starting)^(365/days) - 1) * 100.
// Zero when days or starting value is zero.
func AnnualizedReturnPct(starting, ending float64, calendarDays int) float64 {
	if calendarDays == 0 || starting == 0 {
		return 0
	}
	return (math.Pow(ending/starting, 365.0/float64(calendarDays)) - 1) * 100
}
