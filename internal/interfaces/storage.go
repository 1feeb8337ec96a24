// Package interfaces defines service contracts for Replay
package interfaces

import (
	"context"

	"github.com/bobmcallan/replay/internal/models"
)

// StorageManager coordinates the relational store.
type StorageManager interface {
	Jobs() JobStore
	Trading() TradingStore
	Prices() PriceStore

	// Ping verifies database connectivity for the health endpoint.
	Ping(ctx context.Context) error

	Close() error
}

// JobStore manages jobs and their per-(date, model) details.
type JobStore interface {
	// CreateJob inserts the job and all its details atomically.
	CreateJob(ctx context.Context, job *models.Job, details []models.JobDetail) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)

	// GetCurrentJob returns the single active job, or ErrNotFound.
	GetCurrentJob(ctx context.Context) (*models.Job, error)
	FindJobByDateRange(ctx context.Context, startDate, endDate string) (*models.Job, error)

	// UpdateJobStatus sets started_at on the first transition to running
	// and completed_at plus duration on any terminal transition.
	UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error

	// UpdateJobDetailStatus updates one detail and, when every detail has
	// reached a terminal state, recomputes the terminal job status.
	UpdateJobDetailStatus(ctx context.Context, jobID, date, model, status, errMsg string) error

	AddJobWarnings(ctx context.Context, jobID string, warnings []string) error
	GetJobProgress(ctx context.Context, jobID string) (*models.JobProgress, error)
	GetJobDetailStatus(ctx context.Context, jobID, date, model string) (string, error)

	// GetCompletedModelDates returns, per model, the set of dates in
	// [start, end] with a completed detail in any job.
	GetCompletedModelDates(ctx context.Context, modelSigs []string, startDate, endDate string) (map[string]map[string]bool, error)

	// GetLastCompletedDateForModel returns "" when the model never ran.
	GetLastCompletedDateForModel(ctx context.Context, model string) (string, error)
}

// TradingStore manages trading days, holdings, and actions.
type TradingStore interface {
	CreateTradingDay(ctx context.Context, day *models.TradingDay) (int64, error)
	CreateHolding(ctx context.Context, tradingDayID int64, symbol string, quantity int) error
	CreateAction(ctx context.Context, action *models.Action) error

	// PersistSessionEnd lands a session's full trade record and ending
	// holdings in one transaction: all of it or none of it.
	PersistSessionEnd(ctx context.Context, tradingDayID int64, actions []models.Action, holdings []models.Holding) error

	// GetPreviousTradingDay scans across all jobs: most recent trading day
	// for the model strictly before the given date, or ErrNotFound.
	GetPreviousTradingDay(ctx context.Context, model, beforeDate string) (*models.PreviousDay, error)
	GetEndingHoldings(ctx context.Context, tradingDayID int64) ([]models.Holding, error)

	UpdateTradingDayFinalState(ctx context.Context, final *models.TradingDayFinal) error

	// Results queries
	ListTradingDays(ctx context.Context, filter models.ResultFilter) ([]*models.TradingDay, error)
	ListActions(ctx context.Context, tradingDayID int64) ([]models.Action, error)
	GetDailyPortfolioValues(ctx context.Context, model, startDate, endDate string) ([]models.DailyValue, error)
	ListModelsWithResults(ctx context.Context, filter models.ResultFilter) ([]string, error)
}

// PriceStore manages the daily OHLCV cache and coverage spans.
type PriceStore interface {
	UpsertPricePoints(ctx context.Context, points []models.PricePoint) error
	GetAvailableDatesForSymbol(ctx context.Context, symbol string) (map[string]bool, error)
	CountSymbolsAtDate(ctx context.Context, date string) (int, error)
	GetOpenPrices(ctx context.Context, date string, symbols []string) (map[string]float64, error)
	UpsertCoverage(ctx context.Context, span models.CoverageSpan) error
}
