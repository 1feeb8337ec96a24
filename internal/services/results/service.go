// Package results assembles persisted trading days into the shapes the API
// serves: per-day breakdowns, per-model range metrics, and equity charts.
package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// Service reads completed trading history and derives result views.
type Service struct {
	storage interfaces.StorageManager
	logger  *common.Logger
}

// NewService creates a results service.
func NewService(storage interfaces.StorageManager, logger *common.Logger) *Service {
	return &Service{storage: storage, logger: logger}
}

// DailyResults returns one entry per (model, date) matching the filter, with
// reasoning detail controlled by level (none, summary, full).
func (s *Service) DailyResults(ctx context.Context, filter models.ResultFilter, reasoningLevel string) ([]models.DayResult, error) {
	trading := s.storage.Trading()

	days, err := trading.ListTradingDays(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing trading days: %w", err)
	}

	results := make([]models.DayResult, 0, len(days))
	for _, day := range days {
		if day.CompletedAt.IsZero() {
			// Unfinished sessions have no final state to report.
			continue
		}

		entry := models.DayResult{
			Date:  day.Date,
			Model: day.Model,
			JobID: day.JobID,
			StartingPosition: models.Position{
				Cash:           day.StartingCash,
				PortfolioValue: day.StartingPortfolioValue,
				Holdings:       []models.Holding{},
			},
			DailyMetrics: models.DailyMetrics{
				Profit:               day.DailyProfit,
				ReturnPct:            day.DailyReturnPct,
				DaysSinceLastTrading: day.DaysSinceLastTrading,
			},
			FinalPosition: models.Position{
				Cash:           day.EndingCash,
				PortfolioValue: day.EndingPortfolioValue,
			},
			Metadata: models.ResultMetadata{
				TotalActions:           day.TotalActions,
				SessionDurationSeconds: day.SessionDurationSeconds,
				CompletedAt:            day.CompletedAt,
			},
		}

		// Starting holdings are the model's prior day ending holdings.
		if prev, err := trading.GetPreviousTradingDay(ctx, day.Model, day.Date); err == nil {
			holdings, err := trading.GetEndingHoldings(ctx, prev.TradingDayID)
			if err != nil {
				return nil, fmt.Errorf("loading starting holdings: %w", err)
			}
			entry.StartingPosition.Holdings = holdings
		} else if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("looking up prior day: %w", err)
		}

		ending, err := trading.GetEndingHoldings(ctx, day.ID)
		if err != nil {
			return nil, fmt.Errorf("loading ending holdings: %w", err)
		}
		if ending == nil {
			ending = []models.Holding{}
		}
		entry.FinalPosition.Holdings = ending

		trades, err := trading.ListActions(ctx, day.ID)
		if err != nil {
			return nil, fmt.Errorf("loading trades: %w", err)
		}
		if trades == nil {
			trades = []models.Action{}
		}
		entry.Trades = trades

		switch reasoningLevel {
		case models.ReasoningSummary:
			entry.Reasoning = day.ReasoningSummary
		case models.ReasoningFull:
			entry.Reasoning = day.ReasoningFull
		}

		results = append(results, entry)
	}
	return results, nil
}

// RangeResults returns, per model, the equity curve and period metrics over
// [startDate, endDate].
func (s *Service) RangeResults(ctx context.Context, startDate, endDate, modelFilter string) ([]models.RangeResult, error) {
	trading := s.storage.Trading()

	filter := models.ResultFilter{Model: modelFilter, StartDate: startDate, EndDate: endDate}
	modelSigs, err := trading.ListModelsWithResults(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("listing models: %w", err)
	}

	results := make([]models.RangeResult, 0, len(modelSigs))
	for _, model := range modelSigs {
		days, err := trading.ListTradingDays(ctx, models.ResultFilter{Model: model, StartDate: startDate, EndDate: endDate})
		if err != nil {
			return nil, fmt.Errorf("listing days for %s: %w", model, err)
		}
		var completed []*models.TradingDay
		for _, d := range days {
			if !d.CompletedAt.IsZero() {
				completed = append(completed, d)
			}
		}
		if len(completed) == 0 {
			continue
		}

		curve, err := trading.GetDailyPortfolioValues(ctx, model, startDate, endDate)
		if err != nil {
			return nil, fmt.Errorf("loading equity curve for %s: %w", model, err)
		}

		first, last := completed[0], completed[len(completed)-1]
		starting := first.StartingPortfolioValue
		ending := last.EndingPortfolioValue
		calendarDays := inclusiveCalendarDays(first.Date, last.Date)

		periodReturn := 0.0
		if starting != 0 {
			periodReturn = (ending - starting) / starting * 100
		}

		results = append(results, models.RangeResult{
			Model:                model,
			StartDate:            first.Date,
			EndDate:              last.Date,
			DailyPortfolioValues: curve,
			PeriodMetrics: models.PeriodMetrics{
				StartingPortfolioValue: starting,
				EndingPortfolioValue:   ending,
				PeriodReturnPct:        periodReturn,
				AnnualizedReturnPct:    models.AnnualizedReturnPct(starting, ending, calendarDays),
				CalendarDays:           calendarDays,
				TradingDays:            len(completed),
			},
		})
	}
	return results, nil
}

// inclusiveCalendarDays counts both endpoint dates.
func inclusiveCalendarDays(from, to string) int {
	a, err1 := time.Parse(models.DateFormat, from)
	b, err2 := time.Parse(models.DateFormat, to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(b.Sub(a).Hours()/24) + 1
}
