package models

import "time"

// TradingDay is the persisted result of one (job, model, date) session.
// A row is created at session start with placeholder ending state and
// updated in place when the session completes.
type TradingDay struct {
	ID                     int64          `json:"-"`
	JobID                  string         `json:"job_id"`
	Model                  string         `json:"model"`
	Date                   string         `json:"date"`
	StartingCash           float64        `json:"starting_cash"`
	StartingPortfolioValue float64        `json:"starting_portfolio_value"`
	DailyProfit            float64        `json:"daily_profit"`
	DailyReturnPct         float64        `json:"daily_return_pct"`
	EndingCash             float64        `json:"ending_cash"`
	EndingPortfolioValue   float64        `json:"ending_portfolio_value"`
	ReasoningSummary       string         `json:"reasoning_summary,omitempty"`
	ReasoningFull          []AgentMessage `json:"reasoning_full,omitempty"`
	TotalActions           int            `json:"total_actions"`
	SessionDurationSeconds float64        `json:"session_duration_seconds"`
	DaysSinceLastTrading   int            `json:"days_since_last_trading"`
	CompletedAt            time.Time      `json:"completed_at"`
}

// TradingDayFinal carries the end-of-session state written back to a
// placeholder TradingDay row.
type TradingDayFinal struct {
	TradingDayID           int64
	EndingCash             float64
	EndingPortfolioValue   float64
	ReasoningSummary       string
	ReasoningFull          []AgentMessage
	TotalActions           int
	SessionDurationSeconds float64
	CompletedAt            time.Time
}

// PreviousDay is the slice of a prior TradingDay needed to seed the next
// session: the cross-job (model, date DESC) lookup result.
type PreviousDay struct {
	TradingDayID         int64
	Date                 string
	EndingCash           float64
	EndingPortfolioValue float64
}

// Holding is one (trading day, symbol) position at end of day. Quantity is
// always >= 1; flat positions are not stored.
type Holding struct {
	Symbol   string `json:"symbol"`
	Quantity int    `json:"quantity"`
}

// Action is one executed trade within a trading day, ordered by creation.
type Action struct {
	ID           int64     `json:"-"`
	TradingDayID int64     `json:"-"`
	Type         string    `json:"type"` // "buy" or "sell"
	Symbol       string    `json:"symbol"`
	Quantity     int       `json:"quantity"`
	Price        float64   `json:"price"`
	CreatedAt    time.Time `json:"created_at"`
}

// Action type constants
const (
	ActionBuy  = "buy"
	ActionSell = "sell"
)

// AgentMessage is one entry in a session transcript.
type AgentMessage struct {
	Role    string `json:"role"` // "user", "model", "tool"
	Content string `json:"content,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Args    string `json:"args,omitempty"`
	Result  string `json:"result,omitempty"`
}

// PortfolioSnapshot is the agent-visible view of the ledger mid-session.
type PortfolioSnapshot struct {
	Cash     float64        `json:"cash"`
	Holdings map[string]int `json:"holdings"`
}
