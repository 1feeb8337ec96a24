package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

func TestUpsertPricePointsOverwrites(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	points := []models.PricePoint{
		{Symbol: "AAPL", Date: "2025-03-03", Open: 100, High: 105, Low: 99, Close: 104, Volume: 1000},
		{Symbol: "AAPL", Date: "2025-03-04", Open: 104, High: 110, Low: 103, Close: 109, Volume: 900},
	}
	if err := m.Prices().UpsertPricePoints(ctx, points); err != nil {
		t.Fatalf("failed to upsert prices: %v", err)
	}

	// Re-fetch with a corrected open; the row is replaced, not duplicated.
	if err := m.Prices().UpsertPricePoints(ctx, []models.PricePoint{
		{Symbol: "AAPL", Date: "2025-03-03", Open: 101, High: 105, Low: 99, Close: 104, Volume: 1000},
	}); err != nil {
		t.Fatalf("failed to re-upsert: %v", err)
	}

	dates, err := m.Prices().GetAvailableDatesForSymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("failed to get dates: %v", err)
	}
	if len(dates) != 2 {
		t.Errorf("expected 2 dates, got %v", dates)
	}

	open, err := m.Prices().GetOpenPrices(ctx, "2025-03-03", []string{"AAPL"})
	if err != nil {
		t.Fatalf("failed to get open prices: %v", err)
	}
	if open["AAPL"] != 101 {
		t.Errorf("expected overwritten open 101, got %f", open["AAPL"])
	}
}

func TestGetOpenPricesOmitsMissing(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Prices().UpsertPricePoints(ctx, []models.PricePoint{
		{Symbol: "AAPL", Date: "2025-03-03", Open: 100, High: 100, Low: 100, Close: 100},
	})

	open, err := m.Prices().GetOpenPrices(ctx, "2025-03-03", []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("failed to get open prices: %v", err)
	}
	if len(open) != 1 {
		t.Errorf("expected only AAPL present, got %v", open)
	}
	if _, ok := open["MSFT"]; ok {
		t.Error("MSFT should be absent, not zero")
	}
}

func TestCountSymbolsAtDate(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	m.Prices().UpsertPricePoints(ctx, []models.PricePoint{
		{Symbol: "AAPL", Date: "2025-03-03", Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "MSFT", Date: "2025-03-03", Open: 1, High: 1, Low: 1, Close: 1},
		{Symbol: "AAPL", Date: "2025-03-04", Open: 1, High: 1, Low: 1, Close: 1},
	})

	count, err := m.Prices().CountSymbolsAtDate(ctx, "2025-03-03")
	if err != nil {
		t.Fatalf("failed to count symbols: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 symbols, got %d", count)
	}

	count, _ = m.Prices().CountSymbolsAtDate(ctx, "2025-03-07")
	if count != 0 {
		t.Errorf("expected 0 symbols on empty date, got %d", count)
	}
}

func TestUpsertCoverage(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	err := m.Prices().UpsertCoverage(ctx, models.CoverageSpan{
		Symbol: "AAPL", StartDate: "2025-03-03", EndDate: "2025-03-07",
		Source: "eodhd", FetchedAt: time.Now(),
	})
	if err != nil {
		t.Errorf("failed to record coverage: %v", err)
	}
}
