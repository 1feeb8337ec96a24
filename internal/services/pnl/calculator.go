// Package pnl computes session-start profit and loss: the prior day's
// portfolio revalued at today's open prices, compared against its recorded
// ending value.
package pnl

import (
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

// Result is the starting state of one trading session.
type Result struct {
	StartingPortfolioValue float64
	DailyProfit            float64
	DailyReturnPct         float64
	DaysSinceLastTrading   int
}

// Calculate derives a session's starting value and overnight P&L. prev is the
// model's most recent completed day, nil on the model's first session ever.
// Every carried holding must have an open price on currentDate; a missing one
// returns MissingPriceError and no Result.
func Calculate(prev *models.PreviousDay, prevHoldings []models.Holding, currentDate string, opens map[string]float64, initialCash float64) (Result, error) {
	if prev == nil {
		return Result{StartingPortfolioValue: initialCash}, nil
	}

	startingValue := prev.EndingCash
	for _, h := range prevHoldings {
		price, ok := opens[h.Symbol]
		if !ok {
			return Result{}, &models.MissingPriceError{Symbol: h.Symbol, Date: currentDate}
		}
		startingValue += price * float64(h.Quantity)
	}

	profit := startingValue - prev.EndingPortfolioValue
	returnPct := 0.0
	if prev.EndingPortfolioValue != 0 {
		returnPct = profit / prev.EndingPortfolioValue * 100
	}

	return Result{
		StartingPortfolioValue: startingValue,
		DailyProfit:            profit,
		DailyReturnPct:         returnPct,
		DaysSinceLastTrading:   calendarDaysBetween(prev.Date, currentDate),
	}, nil
}

// calendarDaysBetween returns the day count from one date to a later one.
func calendarDaysBetween(from, to string) int {
	a, err1 := time.Parse(models.DateFormat, from)
	b, err2 := time.Parse(models.DateFormat, to)
	if err1 != nil || err2 != nil {
		return 0
	}
	return int(b.Sub(a).Hours() / 24)
}
