package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// PriceStore implements interfaces.PriceStore.
type PriceStore struct {
	db     *DB
	logger *common.Logger
}

// NewPriceStore creates a new PriceStore.
func NewPriceStore(db *DB, logger *common.Logger) *PriceStore {
	return &PriceStore{db: db, logger: logger}
}

func (s *PriceStore) UpsertPricePoints(ctx context.Context, points []models.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	return s.db.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx,
			`INSERT INTO price_data (symbol, date, open, high, low, close, volume)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(symbol, date) DO UPDATE SET
			   open = excluded.open, high = excluded.high,
			   low = excluded.low, close = excluded.close,
			   volume = excluded.volume`)
		if err != nil {
			return fmt.Errorf("failed to prepare price upsert: %w", err)
		}
		defer stmt.Close()

		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, p.Symbol, p.Date, p.Open, p.High, p.Low, p.Close, p.Volume); err != nil {
				return fmt.Errorf("failed to upsert price (%s, %s): %w", p.Symbol, p.Date, err)
			}
		}
		return nil
	})
}

func (s *PriceStore) GetAvailableDatesForSymbol(ctx context.Context, symbol string) (map[string]bool, error) {
	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT date FROM price_data WHERE symbol = ?`, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to query price dates: %w", err)
	}
	defer rows.Close()

	dates := make(map[string]bool)
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("failed to scan price date: %w", err)
		}
		dates[d] = true
	}
	return dates, rows.Err()
}

func (s *PriceStore) CountSymbolsAtDate(ctx context.Context, date string) (int, error) {
	var count int
	err := s.db.conn.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT symbol) FROM price_data WHERE date = ?`, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count symbols: %w", err)
	}
	return count, nil
}

func (s *PriceStore) GetOpenPrices(ctx context.Context, date string, symbols []string) (map[string]float64, error) {
	prices := make(map[string]float64, len(symbols))
	if len(symbols) == 0 {
		return prices, nil
	}

	placeholders := strings.Repeat("?,", len(symbols))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(symbols)+1)
	args = append(args, date)
	for _, sym := range symbols {
		args = append(args, sym)
	}

	rows, err := s.db.conn.QueryContext(ctx,
		`SELECT symbol, open FROM price_data WHERE date = ? AND symbol IN (`+placeholders+`)`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query open prices: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym string
		var open float64
		if err := rows.Scan(&sym, &open); err != nil {
			return nil, fmt.Errorf("failed to scan open price: %w", err)
		}
		prices[sym] = open
	}
	return prices, rows.Err()
}

func (s *PriceStore) UpsertCoverage(ctx context.Context, span models.CoverageSpan) error {
	_, err := s.db.conn.ExecContext(ctx,
		`INSERT INTO price_data_coverage (symbol, start_date, end_date, source, fetched_at)
		 VALUES (?, ?, ?, ?, ?)`,
		span.Symbol, span.StartDate, span.EndDate, span.Source, timeToDB(span.FetchedAt))
	if err != nil {
		return fmt.Errorf("failed to record coverage: %w", err)
	}
	return nil
}

// Compile-time check
var _ interfaces.PriceStore = (*PriceStore)(nil)
