package sqlite

import (
	"context"
	"fmt"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
)

// Manager implements interfaces.StorageManager on a single SQLite database.
type Manager struct {
	db     *DB
	logger *common.Logger

	jobStore     *JobStore
	tradingStore *TradingStore
	priceStore   *PriceStore
}

// NewManager opens the database at path and wires the per-concern stores.
func NewManager(logger *common.Logger, path string) (*Manager, error) {
	db, err := Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	m := &Manager{
		db:           db,
		logger:       logger,
		jobStore:     NewJobStore(db, logger),
		tradingStore: NewTradingStore(db, logger),
		priceStore:   NewPriceStore(db, logger),
	}

	logger.Info().Str("path", path).Msg("SQLite storage manager initialized")
	return m, nil
}

func (m *Manager) Jobs() interfaces.JobStore         { return m.jobStore }
func (m *Manager) Trading() interfaces.TradingStore  { return m.tradingStore }
func (m *Manager) Prices() interfaces.PriceStore     { return m.priceStore }

func (m *Manager) Ping(ctx context.Context) error { return m.db.Ping(ctx) }

func (m *Manager) Close() error { return m.db.Close() }

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
