package interfaces

import (
	"context"

	"github.com/bobmcallan/replay/internal/models"
)

// PriceCache answers which requested dates have complete coverage across the
// tracked universe, and acquires what is missing.
type PriceCache interface {
	Universe() []string

	// MissingCoverage maps each universe symbol to the requested dates it
	// lacks. Symbols with full coverage are omitted.
	MissingCoverage(ctx context.Context, startDate, endDate string) (map[string][]string, error)

	// DownloadMissing fetches symbols in impact order, halting on a
	// rate-limit signal from the provider.
	DownloadMissing(ctx context.Context, missing map[string][]string, requested []string) (*models.DownloadResult, error)

	// AvailableTradingDates returns the requested dates on which every
	// universe symbol has a price point, in ascending order.
	AvailableTradingDates(ctx context.Context, startDate, endDate string) ([]string, error)

	// GetOpen returns open prices for the given symbols on a date.
	// Symbols without a price point are absent from the map.
	GetOpen(ctx context.Context, date string, symbols []string) (map[string]float64, error)
}

// TradingTools are the trade operations exposed to the agent runtime.
// Implemented by the session ledger; precondition violations come back as
// tool errors (ErrInsufficientCash, ErrInsufficientShares), never escalate.
type TradingTools interface {
	Buy(ctx context.Context, symbol string, quantity int) (*models.PortfolioSnapshot, error)
	Sell(ctx context.Context, symbol string, quantity int) (*models.PortfolioSnapshot, error)
	Price(ctx context.Context, symbol string) (float64, error)
	Snapshot() models.PortfolioSnapshot
}

// AgentRuntime runs one reasoning session for a (model, date). The core
// treats it as a black box returning a transcript and step metadata. The
// runtime must not cache the SessionContext across sessions.
type AgentRuntime interface {
	RunSession(ctx context.Context, session models.SessionContext, tools TradingTools) (*models.SessionResult, error)
}

// Summarizer condenses a session transcript to short prose.
type Summarizer interface {
	Summarize(ctx context.Context, transcript []models.AgentMessage) (string, error)
}

// JobManager owns the job lifecycle: creation with duplicate skipping, the
// single-active-job guard, and progress queries.
type JobManager interface {
	CreateJob(ctx context.Context, req models.CreateJobRequest) (*models.Job, error)
	CanStartNewJob(ctx context.Context) (bool, error)
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	GetProgress(ctx context.Context, jobID string) (*models.JobProgress, error)
}

// JobWorker executes one job end to end: price preparation, date-sequential
// model-parallel execution, and final status resolution.
type JobWorker interface {
	Run(ctx context.Context, jobID string)
}
