// Package ledger keeps one session's portfolio state and its append-only
// trade record. Trades are buffered in memory during the session; the whole
// record and the ending holdings land in one atomic batch at session close,
// so a session that dies mid-way persists nothing.
package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// Ledger implements interfaces.TradingTools for a single (model, date)
// session. All trades execute at the day's open price.
type Ledger struct {
	mu sync.Mutex

	store   interfaces.TradingStore
	session models.SessionContext
	opens   map[string]float64

	cash     float64
	holdings map[string]int
	pending  []models.Action
}

// New seeds a ledger with the session's starting position and the open
// prices for its date.
func New(store interfaces.TradingStore, session models.SessionContext, opens map[string]float64, startingCash float64, startingHoldings []models.Holding) *Ledger {
	holdings := make(map[string]int, len(startingHoldings))
	for _, h := range startingHoldings {
		holdings[h.Symbol] = h.Quantity
	}
	return &Ledger{
		store:    store,
		session:  session,
		opens:    opens,
		cash:     startingCash,
		holdings: holdings,
	}
}

func (l *Ledger) Buy(ctx context.Context, symbol string, quantity int) (*models.PortfolioSnapshot, error) {
	if quantity < 1 {
		return nil, models.Validationf("quantity must be at least 1")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	price, ok := l.opens[symbol]
	if !ok {
		return nil, &models.MissingPriceError{Symbol: symbol, Date: l.session.Date}
	}
	cost := price * float64(quantity)
	if cost > l.cash {
		return nil, fmt.Errorf("%w: need $%.2f, have $%.2f", models.ErrInsufficientCash, cost, l.cash)
	}

	l.record(models.ActionBuy, symbol, quantity, price)
	l.cash -= cost
	l.holdings[symbol] += quantity

	snap := l.snapshotLocked()
	return &snap, nil
}

func (l *Ledger) Sell(ctx context.Context, symbol string, quantity int) (*models.PortfolioSnapshot, error) {
	if quantity < 1 {
		return nil, models.Validationf("quantity must be at least 1")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	held := l.holdings[symbol]
	if held < quantity {
		return nil, fmt.Errorf("%w: hold %d of %s, tried to sell %d", models.ErrInsufficientShares, held, symbol, quantity)
	}
	price, ok := l.opens[symbol]
	if !ok {
		return nil, &models.MissingPriceError{Symbol: symbol, Date: l.session.Date}
	}

	l.record(models.ActionSell, symbol, quantity, price)
	l.cash += price * float64(quantity)
	l.holdings[symbol] -= quantity
	if l.holdings[symbol] == 0 {
		delete(l.holdings, symbol)
	}

	snap := l.snapshotLocked()
	return &snap, nil
}

// record buffers an executed trade; nothing touches storage until Close.
func (l *Ledger) record(actionType, symbol string, quantity int, price float64) {
	l.pending = append(l.pending, models.Action{
		TradingDayID: l.session.TradingDayID,
		Type:         actionType,
		Symbol:       symbol,
		Quantity:     quantity,
		Price:        price,
		CreatedAt:    time.Now(),
	})
}

func (l *Ledger) Price(ctx context.Context, symbol string) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	price, ok := l.opens[symbol]
	if !ok {
		return 0, &models.MissingPriceError{Symbol: symbol, Date: l.session.Date}
	}
	return price, nil
}

func (l *Ledger) Snapshot() models.PortfolioSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

func (l *Ledger) snapshotLocked() models.PortfolioSnapshot {
	holdings := make(map[string]int, len(l.holdings))
	for sym, qty := range l.holdings {
		holdings[sym] = qty
	}
	return models.PortfolioSnapshot{Cash: l.cash, Holdings: holdings}
}

// TotalActions returns the number of executed trades so far.
func (l *Ledger) TotalActions() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Close values the ending portfolio at the day's open prices and persists the
// buffered trade record together with the ending holdings in one transaction.
// A held symbol without a price is fatal for the session, and nothing from
// the session is stored.
func (l *Ledger) Close(ctx context.Context) (endingCash, endingValue float64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	value := l.cash
	for sym, qty := range l.holdings {
		price, ok := l.opens[sym]
		if !ok {
			return 0, 0, &models.MissingPriceError{Symbol: sym, Date: l.session.Date}
		}
		value += price * float64(qty)
	}

	holdings := make([]models.Holding, 0, len(l.holdings))
	for sym, qty := range l.holdings {
		holdings = append(holdings, models.Holding{Symbol: sym, Quantity: qty})
	}
	if err := l.store.PersistSessionEnd(ctx, l.session.TradingDayID, l.pending, holdings); err != nil {
		return 0, 0, fmt.Errorf("persisting session record: %w", err)
	}
	return l.cash, value, nil
}

// Compile-time check
var _ interfaces.TradingTools = (*Ledger)(nil)
