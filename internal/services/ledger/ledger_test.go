package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/models"
	"github.com/bobmcallan/replay/internal/storage/sqlite"
)

func newTestLedger(t *testing.T, opens map[string]float64, cash float64, holdings []models.Holding) (*Ledger, *sqlite.Manager, int64) {
	t.Helper()
	m, err := sqlite.NewManager(common.NewSilentLogger(), filepath.Join(t.TempDir(), "ledger_test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { m.Close() })

	ctx := context.Background()
	job := &models.Job{ID: "job-1", Status: models.JobStatusRunning, StartDate: "2025-03-03", EndDate: "2025-03-03", Models: []string{"m1"}, CreatedAt: time.Now()}
	if err := m.Jobs().CreateJob(ctx, job, nil); err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	dayID, err := m.Trading().CreateTradingDay(ctx, &models.TradingDay{
		JobID: "job-1", Model: "m1", Date: "2025-03-03",
		StartingCash: cash, StartingPortfolioValue: cash,
	})
	if err != nil {
		t.Fatalf("failed to create trading day: %v", err)
	}

	session := models.SessionContext{JobID: "job-1", Model: "m1", Date: "2025-03-03", TradingDayID: dayID}
	return New(m.Trading(), session, opens, cash, holdings), m, dayID
}

func TestBuyAndSell(t *testing.T) {
	opens := map[string]float64{"AAPL": 200, "MSFT": 400}
	l, m, dayID := newTestLedger(t, opens, 10000, nil)
	ctx := context.Background()

	snap, err := l.Buy(ctx, "AAPL", 10)
	if err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if snap.Cash != 8000 || snap.Holdings["AAPL"] != 10 {
		t.Errorf("unexpected snapshot after buy: %+v", snap)
	}

	snap, err = l.Sell(ctx, "AAPL", 4)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if snap.Cash != 8800 || snap.Holdings["AAPL"] != 6 {
		t.Errorf("unexpected snapshot after sell: %+v", snap)
	}

	// Trades stay buffered until the session closes.
	actions, err := m.Trading().ListActions(ctx, dayID)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no persisted actions before close, got %d", len(actions))
	}
	if l.TotalActions() != 2 {
		t.Errorf("expected 2 buffered actions, got %d", l.TotalActions())
	}

	if _, _, err := l.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	actions, err = m.Trading().ListActions(ctx, dayID)
	if err != nil {
		t.Fatalf("failed to list actions: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("expected 2 actions after close, got %d", len(actions))
	}
	if actions[0].Type != models.ActionBuy || actions[0].Price != 200 {
		t.Errorf("unexpected first action: %+v", actions[0])
	}
	if actions[1].Type != models.ActionSell || actions[1].Quantity != 4 {
		t.Errorf("unexpected second action: %+v", actions[1])
	}
}

func TestAbandonedSessionPersistsNothing(t *testing.T) {
	opens := map[string]float64{"AAPL": 200}
	l, m, dayID := newTestLedger(t, opens, 10000, nil)
	ctx := context.Background()

	if _, err := l.Buy(ctx, "AAPL", 10); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	// The session dies before Close: no actions, no holdings, and the day row
	// stays unfinished.
	actions, _ := m.Trading().ListActions(ctx, dayID)
	if len(actions) != 0 {
		t.Errorf("expected no actions without close, got %d", len(actions))
	}
	holdings, _ := m.Trading().GetEndingHoldings(ctx, dayID)
	if len(holdings) != 0 {
		t.Errorf("expected no holdings without close, got %v", holdings)
	}
	days, _ := m.Trading().ListTradingDays(ctx, models.ResultFilter{JobID: "job-1"})
	if len(days) != 1 || !days[0].CompletedAt.IsZero() || days[0].TotalActions != 0 {
		t.Errorf("expected one unfinished day with zero actions, got %+v", days)
	}
}

func TestBuyPreconditions(t *testing.T) {
	opens := map[string]float64{"AAPL": 200}
	l, m, dayID := newTestLedger(t, opens, 100, nil)
	ctx := context.Background()

	if _, err := l.Buy(ctx, "AAPL", 1); !errors.Is(err, models.ErrInsufficientCash) {
		t.Errorf("expected insufficient cash, got %v", err)
	}
	if _, err := l.Buy(ctx, "AAPL", 0); err == nil {
		t.Error("expected validation error for zero quantity")
	}

	var mpErr *models.MissingPriceError
	if _, err := l.Buy(ctx, "ZZZZ", 1); !errors.As(err, &mpErr) {
		t.Errorf("expected missing price error, got %v", err)
	}

	// Rejected trades never reach the record, even after close.
	if l.TotalActions() != 0 {
		t.Errorf("expected no buffered actions, got %d", l.TotalActions())
	}
	if _, _, err := l.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	actions, _ := m.Trading().ListActions(ctx, dayID)
	if len(actions) != 0 {
		t.Errorf("expected no actions, got %d", len(actions))
	}
}

func TestSellPreconditions(t *testing.T) {
	opens := map[string]float64{"AAPL": 200}
	l, _, _ := newTestLedger(t, opens, 10000, []models.Holding{{Symbol: "AAPL", Quantity: 3}})
	ctx := context.Background()

	if _, err := l.Sell(ctx, "AAPL", 5); !errors.Is(err, models.ErrInsufficientShares) {
		t.Errorf("expected insufficient shares, got %v", err)
	}
	if _, err := l.Sell(ctx, "MSFT", 1); !errors.Is(err, models.ErrInsufficientShares) {
		t.Errorf("expected insufficient shares for unheld symbol, got %v", err)
	}

	snap, err := l.Sell(ctx, "AAPL", 3)
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}
	if _, held := snap.Holdings["AAPL"]; held {
		t.Error("flat position should be removed, not zeroed")
	}
}

func TestCloseValuesAndPersistsHoldings(t *testing.T) {
	opens := map[string]float64{"AAPL": 200, "MSFT": 400}
	l, m, dayID := newTestLedger(t, opens, 10000, nil)
	ctx := context.Background()

	l.Buy(ctx, "AAPL", 10) // -2000
	l.Buy(ctx, "MSFT", 5)  // -2000

	cash, value, err := l.Close(ctx)
	if err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if cash != 6000 {
		t.Errorf("expected ending cash 6000, got %f", cash)
	}
	if value != 10000 {
		t.Errorf("expected ending value 10000, got %f", value)
	}

	holdings, err := m.Trading().GetEndingHoldings(ctx, dayID)
	if err != nil {
		t.Fatalf("failed to read holdings: %v", err)
	}
	if len(holdings) != 2 {
		t.Errorf("expected 2 persisted holdings, got %v", holdings)
	}
}

func TestCloseFailsOnUnpricedHolding(t *testing.T) {
	// Carried-over position whose symbol has no price today.
	opens := map[string]float64{"AAPL": 200}
	l, _, _ := newTestLedger(t, opens, 5000, []models.Holding{{Symbol: "MSFT", Quantity: 2}})

	var mpErr *models.MissingPriceError
	_, _, err := l.Close(context.Background())
	if !errors.As(err, &mpErr) {
		t.Fatalf("expected missing price error, got %v", err)
	}
	if mpErr.Symbol != "MSFT" {
		t.Errorf("expected MSFT flagged, got %s", mpErr.Symbol)
	}
}

func TestPriceLookup(t *testing.T) {
	opens := map[string]float64{"AAPL": 123.45}
	l, _, _ := newTestLedger(t, opens, 1000, nil)

	price, err := l.Price(context.Background(), "AAPL")
	if err != nil || price != 123.45 {
		t.Errorf("expected 123.45, got %f (%v)", price, err)
	}
	if _, err := l.Price(context.Background(), "NOPE"); err == nil {
		t.Error("expected error for unknown symbol")
	}
}
