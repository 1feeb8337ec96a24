package sqlite

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/bobmcallan/replay/internal/models"
)

func seedTradingDay(t *testing.T, m *Manager, jobID, model, date string, startCash, startValue float64) int64 {
	t.Helper()
	id, err := m.Trading().CreateTradingDay(context.Background(), &models.TradingDay{
		JobID: jobID, Model: model, Date: date,
		StartingCash: startCash, StartingPortfolioValue: startValue,
	})
	if err != nil {
		t.Fatalf("failed to create trading day: %v", err)
	}
	return id
}

func finishTradingDay(t *testing.T, m *Manager, id int64, endCash, endValue float64) {
	t.Helper()
	err := m.Trading().UpdateTradingDayFinalState(context.Background(), &models.TradingDayFinal{
		TradingDayID: id,
		EndingCash:   endCash, EndingPortfolioValue: endValue,
		ReasoningSummary: "held steady",
		CompletedAt:      time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to finalize trading day: %v", err)
	}
}

func TestPreviousTradingDayAcrossJobs(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	seedJob(t, m, "job-1", []string{"2025-03-03", "2025-03-04"}, []string{"m1"})
	seedJob2 := func() { seedJob(t, m, "job-2", []string{"2025-03-05"}, []string{"m1"}) }

	d1 := seedTradingDay(t, m, "job-1", "m1", "2025-03-03", 10000, 10000)
	finishTradingDay(t, m, d1, 8000, 10200)
	d2 := seedTradingDay(t, m, "job-1", "m1", "2025-03-04", 8000, 10200)
	finishTradingDay(t, m, d2, 8500, 10150)

	seedJob2()

	// Continuity reaches back to job-1 from a later job's date.
	prev, err := m.Trading().GetPreviousTradingDay(ctx, "m1", "2025-03-05")
	if err != nil {
		t.Fatalf("failed to get previous day: %v", err)
	}
	if prev.Date != "2025-03-04" {
		t.Errorf("expected 2025-03-04, got %s", prev.Date)
	}
	if prev.EndingCash != 8500 || prev.EndingPortfolioValue != 10150 {
		t.Errorf("unexpected ending state: cash=%f value=%f", prev.EndingCash, prev.EndingPortfolioValue)
	}

	// Strictly before: the session's own date is excluded.
	prev, err = m.Trading().GetPreviousTradingDay(ctx, "m1", "2025-03-04")
	if err != nil {
		t.Fatalf("failed to get previous day: %v", err)
	}
	if prev.Date != "2025-03-03" {
		t.Errorf("expected 2025-03-03, got %s", prev.Date)
	}

	// Unknown model has no history.
	if _, err := m.Trading().GetPreviousTradingDay(ctx, "m2", "2025-03-05"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestPreviousTradingDayIgnoresUnfinished(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-03", "2025-03-04"}, []string{"m1"})

	d1 := seedTradingDay(t, m, "job-1", "m1", "2025-03-03", 10000, 10000)
	finishTradingDay(t, m, d1, 9000, 10100)

	// Crashed mid-session: row exists but completed_at stays NULL.
	seedTradingDay(t, m, "job-1", "m1", "2025-03-04", 9000, 10100)

	prev, err := m.Trading().GetPreviousTradingDay(ctx, "m1", "2025-03-05")
	if err != nil {
		t.Fatalf("failed to get previous day: %v", err)
	}
	if prev.Date != "2025-03-03" {
		t.Errorf("expected unfinished day skipped, got %s", prev.Date)
	}
}

func TestFinalStatePreservesDailyMetrics(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-04"}, []string{"m1"})

	// P&L is written at session start (overnight revaluation); finalizing
	// the day must not touch it.
	id, err := m.Trading().CreateTradingDay(ctx, &models.TradingDay{
		JobID: "job-1", Model: "m1", Date: "2025-03-04",
		StartingCash: 9000, StartingPortfolioValue: 10500,
		DailyProfit: 500, DailyReturnPct: 5.0, DaysSinceLastTrading: 1,
	})
	if err != nil {
		t.Fatalf("failed to create trading day: %v", err)
	}

	err = m.Trading().UpdateTradingDayFinalState(ctx, &models.TradingDayFinal{
		TradingDayID: id,
		EndingCash:   7000, EndingPortfolioValue: 10400,
		ReasoningSummary: "bought tech",
		ReasoningFull:    []models.AgentMessage{{Role: "model", Content: "buying"}},
		TotalActions:     2, SessionDurationSeconds: 12.5,
		CompletedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to finalize: %v", err)
	}

	days, err := m.Trading().ListTradingDays(ctx, models.ResultFilter{JobID: "job-1"})
	if err != nil {
		t.Fatalf("failed to list days: %v", err)
	}
	if len(days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(days))
	}
	day := days[0]
	if day.DailyProfit != 500 {
		t.Errorf("expected profit 500, got %f", day.DailyProfit)
	}
	if math.Abs(day.DailyReturnPct-5.0) > 1e-9 {
		t.Errorf("expected return 5%%, got %f", day.DailyReturnPct)
	}
	if day.DaysSinceLastTrading != 1 {
		t.Errorf("expected 1 day since last trading, got %d", day.DaysSinceLastTrading)
	}
	if day.EndingCash != 7000 || day.EndingPortfolioValue != 10400 {
		t.Errorf("unexpected ending state: %+v", day)
	}
	if day.ReasoningSummary != "bought tech" || len(day.ReasoningFull) != 1 {
		t.Errorf("reasoning round-trip failed: %q %v", day.ReasoningSummary, day.ReasoningFull)
	}
	if day.CompletedAt.IsZero() {
		t.Error("expected completed_at set")
	}

	// Unknown rows are reported, not silently ignored.
	err = m.Trading().UpdateTradingDayFinalState(ctx, &models.TradingDayFinal{
		TradingDayID: id + 999, CompletedAt: time.Now(),
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown day, got %v", err)
	}
}

func TestListTradingDaysFilters(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-03", "2025-03-04"}, []string{"m1", "m2"})

	for _, date := range []string{"2025-03-03", "2025-03-04"} {
		for _, sig := range []string{"m1", "m2"} {
			id := seedTradingDay(t, m, "job-1", sig, date, 10000, 10000)
			finishTradingDay(t, m, id, 10000, 10000)
		}
	}

	all, _ := m.Trading().ListTradingDays(ctx, models.ResultFilter{})
	if len(all) != 4 {
		t.Errorf("expected 4 days unfiltered, got %d", len(all))
	}

	byModel, _ := m.Trading().ListTradingDays(ctx, models.ResultFilter{Model: "m1"})
	if len(byModel) != 2 {
		t.Errorf("expected 2 days for m1, got %d", len(byModel))
	}

	byDate, _ := m.Trading().ListTradingDays(ctx, models.ResultFilter{StartDate: "2025-03-04", EndDate: "2025-03-04"})
	if len(byDate) != 2 {
		t.Errorf("expected 2 days on 2025-03-04, got %d", len(byDate))
	}

	sigs, _ := m.Trading().ListModelsWithResults(ctx, models.ResultFilter{})
	if len(sigs) != 2 || sigs[0] != "m1" || sigs[1] != "m2" {
		t.Errorf("unexpected model list: %v", sigs)
	}
}

func TestPersistSessionEndIsAtomic(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-03"}, []string{"m1"})
	id := seedTradingDay(t, m, "job-1", "m1", "2025-03-03", 10000, 10000)

	actions := []models.Action{
		{TradingDayID: id, Type: models.ActionBuy, Symbol: "AAPL", Quantity: 5, Price: 100, CreatedAt: time.Now()},
		{TradingDayID: id, Type: models.ActionSell, Symbol: "AAPL", Quantity: 2, Price: 100, CreatedAt: time.Now()},
	}
	holdings := []models.Holding{{Symbol: "AAPL", Quantity: 3}}
	if err := m.Trading().PersistSessionEnd(ctx, id, actions, holdings); err != nil {
		t.Fatalf("failed to persist session end: %v", err)
	}

	got, _ := m.Trading().ListActions(ctx, id)
	if len(got) != 2 || got[0].Type != models.ActionBuy || got[1].Type != models.ActionSell {
		t.Errorf("actions not stored in order: %+v", got)
	}
	h, _ := m.Trading().GetEndingHoldings(ctx, id)
	if len(h) != 1 || h[0].Quantity != 3 {
		t.Errorf("unexpected holdings: %+v", h)
	}

	// A batch that violates a constraint rolls back entirely: the bad holding
	// (zero quantity) must take the new action down with it.
	id2 := seedTradingDay(t, m, "job-1", "m1", "2025-03-04", 10000, 10000)
	err := m.Trading().PersistSessionEnd(ctx, id2,
		[]models.Action{{TradingDayID: id2, Type: models.ActionBuy, Symbol: "MSFT", Quantity: 1, Price: 200, CreatedAt: time.Now()}},
		[]models.Holding{{Symbol: "MSFT", Quantity: 0}})
	if err == nil {
		t.Fatal("expected constraint violation")
	}
	got, _ = m.Trading().ListActions(ctx, id2)
	if len(got) != 0 {
		t.Errorf("failed batch leaked %d actions", len(got))
	}
}

func TestDailyPortfolioValues(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-03", "2025-03-04", "2025-03-05"}, []string{"m1"})

	values := []float64{10100, 10050, 10300}
	dates := []string{"2025-03-03", "2025-03-04", "2025-03-05"}
	for i, date := range dates {
		id := seedTradingDay(t, m, "job-1", "m1", date, 10000, 10000)
		finishTradingDay(t, m, id, 5000, values[i])
	}

	curve, err := m.Trading().GetDailyPortfolioValues(ctx, "m1", "2025-03-03", "2025-03-05")
	if err != nil {
		t.Fatalf("failed to get equity curve: %v", err)
	}
	if len(curve) != 3 {
		t.Fatalf("expected 3 points, got %d", len(curve))
	}
	for i, p := range curve {
		if p.Date != dates[i] || p.PortfolioValue != values[i] {
			t.Errorf("point %d mismatch: %+v", i, p)
		}
	}
}

func TestHoldingsAndActions(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()
	seedJob(t, m, "job-1", []string{"2025-03-03"}, []string{"m1"})
	id := seedTradingDay(t, m, "job-1", "m1", "2025-03-03", 10000, 10000)

	if err := m.Trading().CreateHolding(ctx, id, "MSFT", 3); err != nil {
		t.Fatalf("failed to create holding: %v", err)
	}
	if err := m.Trading().CreateHolding(ctx, id, "AAPL", 5); err != nil {
		t.Fatalf("failed to create holding: %v", err)
	}
	// Upsert replaces quantity for the same symbol.
	if err := m.Trading().CreateHolding(ctx, id, "AAPL", 7); err != nil {
		t.Fatalf("failed to upsert holding: %v", err)
	}

	holdings, err := m.Trading().GetEndingHoldings(ctx, id)
	if err != nil {
		t.Fatalf("failed to get holdings: %v", err)
	}
	if len(holdings) != 2 {
		t.Fatalf("expected 2 holdings, got %d", len(holdings))
	}
	if holdings[0].Symbol != "AAPL" || holdings[0].Quantity != 7 {
		t.Errorf("unexpected first holding: %+v", holdings[0])
	}

	for i, sym := range []string{"AAPL", "MSFT"} {
		err := m.Trading().CreateAction(ctx, &models.Action{
			TradingDayID: id, Type: models.ActionBuy, Symbol: sym,
			Quantity: i + 1, Price: 100, CreatedAt: time.Now(),
		})
		if err != nil {
			t.Fatalf("failed to create action: %v", err)
		}
	}
	actions, err := m.Trading().ListActions(ctx, id)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(actions) != 2 || actions[0].Symbol != "AAPL" || actions[1].Symbol != "MSFT" {
		t.Errorf("actions out of insertion order: %+v", actions)
	}
}
