package simulation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
	"github.com/bobmcallan/replay/internal/services/ledger"
	"github.com/bobmcallan/replay/internal/services/pnl"
)

// Executor runs a single (model, date) trading session end to end: seed the
// portfolio from the model's most recent prior day, run the agent, then
// persist the final state.
type Executor struct {
	storage    interfaces.StorageManager
	prices     interfaces.PriceCache
	runtime    interfaces.AgentRuntime
	summarizer interfaces.Summarizer
	config     *common.Config
	logger     *common.Logger
}

// NewExecutor creates a session executor.
func NewExecutor(storage interfaces.StorageManager, prices interfaces.PriceCache, runtime interfaces.AgentRuntime, summarizer interfaces.Summarizer, config *common.Config, logger *common.Logger) *Executor {
	return &Executor{
		storage:    storage,
		prices:     prices,
		runtime:    runtime,
		summarizer: summarizer,
		config:     config,
		logger:     logger,
	}
}

// ExecuteSession runs one session and records its outcome on the job detail.
// The returned error reflects the session result; the detail status is
// always updated before returning.
func (e *Executor) ExecuteSession(ctx context.Context, jobID, model, date string) error {
	jobs := e.storage.Jobs()

	// A pair that already completed is never re-run; resumption after a crash
	// lands here for sessions that finished before the interruption.
	status, err := jobs.GetJobDetailStatus(ctx, jobID, date, model)
	if err != nil {
		return fmt.Errorf("reading detail status: %w", err)
	}
	if status == models.DetailStatusCompleted {
		return nil
	}

	if err := jobs.UpdateJobDetailStatus(ctx, jobID, date, model, models.DetailStatusRunning, ""); err != nil {
		return fmt.Errorf("marking detail running: %w", err)
	}

	sessionStart := time.Now()
	err = e.runSession(ctx, jobID, model, date, sessionStart)
	if err != nil {
		e.logger.Error().Err(err).Str("model", model).Str("date", date).Msg("trading session failed")
		if updateErr := jobs.UpdateJobDetailStatus(ctx, jobID, date, model, models.DetailStatusFailed, err.Error()); updateErr != nil {
			e.logger.Error().Err(updateErr).Msg("failed to record session failure")
		}
		return err
	}

	if err := jobs.UpdateJobDetailStatus(ctx, jobID, date, model, models.DetailStatusCompleted, ""); err != nil {
		return fmt.Errorf("marking detail completed: %w", err)
	}
	return nil
}

func (e *Executor) runSession(ctx context.Context, jobID, model, date string, sessionStart time.Time) error {
	trading := e.storage.Trading()

	// Seed from the model's most recent completed day, in any prior job.
	startingCash := e.config.Simulation.InitialCash
	var startingHoldings []models.Holding

	prev, err := trading.GetPreviousTradingDay(ctx, model, date)
	switch {
	case err == nil:
		startingCash = prev.EndingCash
		startingHoldings, err = trading.GetEndingHoldings(ctx, prev.TradingDayID)
		if err != nil {
			return fmt.Errorf("loading carried holdings: %w", err)
		}
	case errors.Is(err, models.ErrNotFound):
		prev = nil // first session ever for this model
	default:
		return fmt.Errorf("looking up previous day: %w", err)
	}

	opens, err := e.prices.GetOpen(ctx, date, e.prices.Universe())
	if err != nil {
		return fmt.Errorf("loading open prices: %w", err)
	}

	// Revalue the carried portfolio at today's open. A held symbol without a
	// price today makes the session unrunnable.
	day, err := pnl.Calculate(prev, startingHoldings, date, opens, e.config.Simulation.InitialCash)
	if err != nil {
		return err
	}

	dayID, err := trading.CreateTradingDay(ctx, &models.TradingDay{
		JobID:                  jobID,
		Model:                  model,
		Date:                   date,
		StartingCash:           startingCash,
		StartingPortfolioValue: day.StartingPortfolioValue,
		DailyProfit:            day.DailyProfit,
		DailyReturnPct:         day.DailyReturnPct,
		DaysSinceLastTrading:   day.DaysSinceLastTrading,
	})
	if err != nil {
		return fmt.Errorf("creating trading day: %w", err)
	}

	session := models.SessionContext{JobID: jobID, Model: model, Date: date, TradingDayID: dayID}
	book := ledger.New(trading, session, opens, startingCash, startingHoldings)

	result, err := e.runtime.RunSession(ctx, session, book)
	if err != nil {
		return fmt.Errorf("agent session: %w", err)
	}

	endingCash, endingValue, err := book.Close(ctx)
	if err != nil {
		return fmt.Errorf("closing session ledger: %w", err)
	}

	summary, err := e.summarizer.Summarize(ctx, result.Transcript)
	if err != nil {
		// Summaries are best effort.
		e.logger.Warn().Err(err).Msg("summarization failed")
	}

	if err := trading.UpdateTradingDayFinalState(ctx, &models.TradingDayFinal{
		TradingDayID:           dayID,
		EndingCash:             endingCash,
		EndingPortfolioValue:   endingValue,
		ReasoningSummary:       summary,
		ReasoningFull:          result.Transcript,
		TotalActions:           book.TotalActions(),
		SessionDurationSeconds: time.Since(sessionStart).Seconds(),
		CompletedAt:            time.Now(),
	}); err != nil {
		return fmt.Errorf("finalizing trading day: %w", err)
	}

	e.logger.Info().
		Str("model", model).
		Str("date", date).
		Float64("ending_value", endingValue).
		Int("actions", book.TotalActions()).
		Msg("trading session completed")
	return nil
}
