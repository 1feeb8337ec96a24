package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// TradingStore implements interfaces.TradingStore.
type TradingStore struct {
	db     *DB
	logger *common.Logger
}

// NewTradingStore creates a new TradingStore.
func NewTradingStore(db *DB, logger *common.Logger) *TradingStore {
	return &TradingStore{db: db, logger: logger}
}

func (s *TradingStore) CreateTradingDay(ctx context.Context, day *models.TradingDay) (int64, error) {
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO trading_days
		 (job_id, model, date, starting_cash, starting_portfolio_value,
		  daily_profit, daily_return_pct, ending_cash, ending_portfolio_value,
		  reasoning_summary, reasoning_full, total_actions,
		  session_duration_seconds, days_since_last_trading, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', 0, 0, ?, NULL)`,
		day.JobID, day.Model, day.Date, day.StartingCash, day.StartingPortfolioValue,
		day.DailyProfit, day.DailyReturnPct, day.EndingCash, day.EndingPortfolioValue,
		day.DaysSinceLastTrading)
	if err != nil {
		return 0, fmt.Errorf("failed to insert trading day: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read trading day id: %w", err)
	}
	day.ID = id
	return id, nil
}

func (s *TradingStore) CreateHolding(ctx context.Context, tradingDayID int64, symbol string, quantity int) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO holdings (trading_day_id, symbol, quantity) VALUES (?, ?, ?)
		 ON CONFLICT(trading_day_id, symbol) DO UPDATE SET quantity = excluded.quantity`,
		tradingDayID, symbol, quantity)
	if err != nil {
		return fmt.Errorf("failed to insert holding: %w", err)
	}
	return nil
}

func (s *TradingStore) CreateAction(ctx context.Context, action *models.Action) error {
	res, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO actions (trading_day_id, type, symbol, quantity, price, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		action.TradingDayID, action.Type, action.Symbol, action.Quantity, action.Price,
		timeToDB(action.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert action: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		action.ID = id
	}
	return nil
}

func (s *TradingStore) PersistSessionEnd(ctx context.Context, tradingDayID int64, actions []models.Action, holdings []models.Holding) error {
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		for i := range actions {
			a := &actions[i]
			res, err := tx.ExecContext(ctx,
				`INSERT INTO actions (trading_day_id, type, symbol, quantity, price, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				tradingDayID, a.Type, a.Symbol, a.Quantity, a.Price, timeToDB(a.CreatedAt))
			if err != nil {
				return fmt.Errorf("failed to insert action: %w", err)
			}
			if id, err := res.LastInsertId(); err == nil {
				a.ID = id
			}
		}
		for _, h := range holdings {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO holdings (trading_day_id, symbol, quantity) VALUES (?, ?, ?)
				 ON CONFLICT(trading_day_id, symbol) DO UPDATE SET quantity = excluded.quantity`,
				tradingDayID, h.Symbol, h.Quantity); err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", h.Symbol, err)
			}
		}
		return nil
	})
}

func (s *TradingStore) GetPreviousTradingDay(ctx context.Context, model, beforeDate string) (*models.PreviousDay, error) {
	var prev models.PreviousDay
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT id, date, ending_cash, ending_portfolio_value
		 FROM trading_days
		 WHERE model = ? AND date < ? AND completed_at IS NOT NULL
		 ORDER BY date DESC LIMIT 1`,
		model, beforeDate).
		Scan(&prev.TradingDayID, &prev.Date, &prev.EndingCash, &prev.EndingPortfolioValue)
	if err == sql.ErrNoRows {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query previous trading day: %w", err)
	}
	return &prev, nil
}

func (s *TradingStore) GetEndingHoldings(ctx context.Context, tradingDayID int64) ([]models.Holding, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT symbol, quantity FROM holdings WHERE trading_day_id = ? ORDER BY symbol`,
		tradingDayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.Holding
	for rows.Next() {
		var h models.Holding
		if err := rows.Scan(&h.Symbol, &h.Quantity); err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

func (s *TradingStore) UpdateTradingDayFinalState(ctx context.Context, final *models.TradingDayFinal) error {
	fullJSON, err := json.Marshal(final.ReasoningFull)
	if err != nil {
		return fmt.Errorf("failed to encode reasoning: %w", err)
	}

	// Daily P&L is a session-start quantity (prior holdings revalued at
	// today's open); it was written when the row was created.
	res, err := s.db.conn.ExecContext(ctx,
		`UPDATE trading_days SET
		   ending_cash = ?, ending_portfolio_value = ?,
		   reasoning_summary = ?, reasoning_full = ?,
		   total_actions = ?, session_duration_seconds = ?, completed_at = ?
		 WHERE id = ?`,
		final.EndingCash, final.EndingPortfolioValue,
		final.ReasoningSummary, string(fullJSON),
		final.TotalActions, final.SessionDurationSeconds, timeToDB(final.CompletedAt),
		final.TradingDayID)
	if err != nil {
		return fmt.Errorf("failed to finalize trading day: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return models.ErrNotFound
	}
	return nil
}

const tradingDayColumns = `id, job_id, model, date, starting_cash, starting_portfolio_value,
	daily_profit, daily_return_pct, ending_cash, ending_portfolio_value,
	reasoning_summary, reasoning_full, total_actions,
	session_duration_seconds, days_since_last_trading, completed_at`

func (s *TradingStore) ListTradingDays(ctx context.Context, filter models.ResultFilter) ([]*models.TradingDay, error) {
	where, args := buildTradingDayFilter(filter)
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT `+tradingDayColumns+` FROM trading_days`+where+` ORDER BY date, model`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query trading days: %w", err)
	}
	defer rows.Close()

	var days []*models.TradingDay
	for rows.Next() {
		day, err := scanTradingDay(rows)
		if err != nil {
			return nil, err
		}
		days = append(days, day)
	}
	return days, rows.Err()
}

func buildTradingDayFilter(filter models.ResultFilter) (string, []any) {
	var clauses []string
	var args []any
	if filter.JobID != "" {
		clauses = append(clauses, "job_id = ?")
		args = append(args, filter.JobID)
	}
	if filter.Model != "" {
		clauses = append(clauses, "model = ?")
		args = append(args, filter.Model)
	}
	if filter.StartDate != "" {
		clauses = append(clauses, "date >= ?")
		args = append(args, filter.StartDate)
	}
	if filter.EndDate != "" {
		clauses = append(clauses, "date <= ?")
		args = append(args, filter.EndDate)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanTradingDay(rows *sql.Rows) (*models.TradingDay, error) {
	var day models.TradingDay
	var summary, full sql.NullString
	var completedAt sql.NullString
	err := rows.Scan(&day.ID, &day.JobID, &day.Model, &day.Date,
		&day.StartingCash, &day.StartingPortfolioValue,
		&day.DailyProfit, &day.DailyReturnPct,
		&day.EndingCash, &day.EndingPortfolioValue,
		&summary, &full, &day.TotalActions,
		&day.SessionDurationSeconds, &day.DaysSinceLastTrading, &completedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan trading day: %w", err)
	}
	day.ReasoningSummary = summary.String
	if full.Valid && full.String != "" {
		json.Unmarshal([]byte(full.String), &day.ReasoningFull)
	}
	day.CompletedAt = timeFromDB(completedAt)
	return &day, nil
}

func (s *TradingStore) ListActions(ctx context.Context, tradingDayID int64) ([]models.Action, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT id, trading_day_id, type, symbol, quantity, price, created_at
		 FROM actions WHERE trading_day_id = ? ORDER BY id`, tradingDayID)
	if err != nil {
		return nil, fmt.Errorf("failed to query actions: %w", err)
	}
	defer rows.Close()

	var actions []models.Action
	for rows.Next() {
		var a models.Action
		var createdAt sql.NullString
		if err := rows.Scan(&a.ID, &a.TradingDayID, &a.Type, &a.Symbol, &a.Quantity, &a.Price, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan action: %w", err)
		}
		a.CreatedAt = timeFromDB(createdAt)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

func (s *TradingStore) GetDailyPortfolioValues(ctx context.Context, model, startDate, endDate string) ([]models.DailyValue, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT date, ending_portfolio_value FROM trading_days
		 WHERE model = ? AND date >= ? AND date <= ? AND completed_at IS NOT NULL
		 ORDER BY date`,
		model, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio values: %w", err)
	}
	defer rows.Close()

	var values []models.DailyValue
	for rows.Next() {
		var v models.DailyValue
		if err := rows.Scan(&v.Date, &v.PortfolioValue); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

func (s *TradingStore) ListModelsWithResults(ctx context.Context, filter models.ResultFilter) ([]string, error) {
	where, args := buildTradingDayFilter(filter)
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT DISTINCT model FROM trading_days`+where+` ORDER BY model`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query models: %w", err)
	}
	defer rows.Close()

	var models_ []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, fmt.Errorf("failed to scan model: %w", err)
		}
		models_ = append(models_, m)
	}
	return models_, rows.Err()
}

// Compile-time check
var _ interfaces.TradingStore = (*TradingStore)(nil)
