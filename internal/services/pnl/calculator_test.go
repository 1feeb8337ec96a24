package pnl

import (
	"errors"
	"testing"

	"github.com/bobmcallan/replay/internal/models"
)

func TestFirstSessionEver(t *testing.T) {
	got, err := Calculate(nil, nil, "2025-01-16", nil, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Result{StartingPortfolioValue: 10000}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestOvernightGain(t *testing.T) {
	prev := &models.PreviousDay{
		Date:                 "2025-01-16",
		EndingCash:           9000,
		EndingPortfolioValue: 10000,
	}
	holdings := []models.Holding{{Symbol: "AAPL", Quantity: 10}}
	opens := map[string]float64{"AAPL": 105}

	got, err := Calculate(prev, holdings, "2025-01-17", opens, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StartingPortfolioValue != 10050 {
		t.Errorf("expected starting value 10050, got %f", got.StartingPortfolioValue)
	}
	if got.DailyProfit != 50 {
		t.Errorf("expected profit 50, got %f", got.DailyProfit)
	}
	if got.DailyReturnPct != 0.5 {
		t.Errorf("expected return 0.5%%, got %f", got.DailyReturnPct)
	}
	if got.DaysSinceLastTrading != 1 {
		t.Errorf("expected 1 day since last trading, got %d", got.DaysSinceLastTrading)
	}
}

func TestOvernightLossAcrossWeekend(t *testing.T) {
	prev := &models.PreviousDay{
		Date:                 "2025-01-17", // Friday
		EndingCash:           5000,
		EndingPortfolioValue: 10000,
	}
	holdings := []models.Holding{{Symbol: "MSFT", Quantity: 25}}
	opens := map[string]float64{"MSFT": 180}

	got, err := Calculate(prev, holdings, "2025-01-20", opens, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.StartingPortfolioValue != 9500 {
		t.Errorf("expected starting value 9500, got %f", got.StartingPortfolioValue)
	}
	if got.DailyProfit != -500 {
		t.Errorf("expected profit -500, got %f", got.DailyProfit)
	}
	if got.DailyReturnPct != -5 {
		t.Errorf("expected return -5%%, got %f", got.DailyReturnPct)
	}
	if got.DaysSinceLastTrading != 3 {
		t.Errorf("expected 3 days since last trading, got %d", got.DaysSinceLastTrading)
	}
}

func TestMissingPriceForHeldSymbol(t *testing.T) {
	prev := &models.PreviousDay{Date: "2025-01-16", EndingCash: 9000, EndingPortfolioValue: 10000}
	holdings := []models.Holding{{Symbol: "AAPL", Quantity: 10}}

	_, err := Calculate(prev, holdings, "2025-01-17", map[string]float64{}, 10000)
	var mpe *models.MissingPriceError
	if !errors.As(err, &mpe) {
		t.Fatalf("expected MissingPriceError, got %v", err)
	}
	if mpe.Symbol != "AAPL" || mpe.Date != "2025-01-17" {
		t.Errorf("unexpected error detail: %+v", mpe)
	}
}

func TestZeroPreviousValueDenominator(t *testing.T) {
	prev := &models.PreviousDay{Date: "2025-01-16", EndingCash: 0, EndingPortfolioValue: 0}

	got, err := Calculate(prev, nil, "2025-01-17", nil, 10000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.DailyReturnPct != 0 {
		t.Errorf("expected zero return on zero denominator, got %f", got.DailyReturnPct)
	}
}
