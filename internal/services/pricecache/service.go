// Package pricecache acquires and serves the daily OHLCV data a simulation
// needs: it knows which (symbol, date) cells are missing, downloads them with
// backoff, and halts cleanly when the provider rate-limits.
package pricecache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoffBase = time.Second
)

// Service implements interfaces.PriceCache.
type Service struct {
	store    interfaces.PriceStore
	client   interfaces.PriceClient
	universe []string
	logger   *common.Logger

	maxAttempts int
	backoffBase time.Duration
}

// ServiceOption configures the service
type ServiceOption func(*Service)

// WithMaxAttempts sets per-symbol fetch attempts before giving up.
func WithMaxAttempts(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; later delays double it.
func WithBackoffBase(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.backoffBase = d
		}
	}
}

// NewService creates a price cache over the given store and provider client.
func NewService(store interfaces.PriceStore, client interfaces.PriceClient, universe []string, logger *common.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:       store,
		client:      client,
		universe:    universe,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Universe() []string { return s.universe }

func (s *Service) MissingCoverage(ctx context.Context, startDate, endDate string) (map[string][]string, error) {
	requested, err := requestedDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	missing := make(map[string][]string)
	for _, symbol := range s.universe {
		have, err := s.store.GetAvailableDatesForSymbol(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("coverage check for %s: %w", symbol, err)
		}
		var gaps []string
		for _, date := range requested {
			if !have[date] {
				gaps = append(gaps, date)
			}
		}
		if len(gaps) > 0 {
			missing[symbol] = gaps
		}
	}
	return missing, nil
}

func (s *Service) DownloadMissing(ctx context.Context, missing map[string][]string, requested []string) (*models.DownloadResult, error) {
	result := &models.DownloadResult{}

	// Widest gaps first: each download then unblocks the most dates.
	symbols := make([]string, 0, len(missing))
	for sym := range missing {
		symbols = append(symbols, sym)
	}
	sort.Slice(symbols, func(i, j int) bool {
		if len(missing[symbols[i]]) != len(missing[symbols[j]]) {
			return len(missing[symbols[i]]) > len(missing[symbols[j]])
		}
		return symbols[i] < symbols[j]
	})

	for _, symbol := range symbols {
		gaps := missing[symbol]
		from, to := gaps[0], gaps[len(gaps)-1]

		points, err := s.fetchWithRetry(ctx, symbol, from, to)
		if err != nil {
			if errors.Is(err, models.ErrRateLimited) {
				s.logger.Warn().Str("symbol", symbol).Msg("provider rate limited, halting download pass")
				result.RateLimited = true
				break
			}
			s.logger.Error().Err(err).Str("symbol", symbol).Msg("symbol download failed")
			result.Failed = append(result.Failed, symbol)
			continue
		}

		if err := s.store.UpsertPricePoints(ctx, points); err != nil {
			return nil, fmt.Errorf("persisting prices for %s: %w", symbol, err)
		}
		if err := s.store.UpsertCoverage(ctx, models.CoverageSpan{
			Symbol: symbol, StartDate: from, EndDate: to,
			Source: "eodhd", FetchedAt: time.Now(),
		}); err != nil {
			return nil, fmt.Errorf("recording coverage for %s: %w", symbol, err)
		}
		result.Downloaded = append(result.Downloaded, symbol)
	}

	// Classify each requested date by how much of the universe it covers.
	for _, date := range requested {
		count, err := s.store.CountSymbolsAtDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("counting coverage at %s: %w", date, err)
		}
		switch {
		case count >= len(s.universe):
			result.DatesCompleted = append(result.DatesCompleted, date)
		case count > 0:
			result.PartialDates = append(result.PartialDates, date)
		}
	}
	return result, nil
}

func (s *Service) fetchWithRetry(ctx context.Context, symbol, from, to string) ([]models.PricePoint, error) {
	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(s.backoffBase << (attempt - 1)):
			}
		}

		points, err := s.client.FetchSymbol(ctx, symbol, from, to)
		if err == nil {
			return points, nil
		}
		if errors.Is(err, models.ErrRateLimited) {
			// Retrying a quota refusal only burns more quota.
			return nil, err
		}
		lastErr = err
		s.logger.Warn().Err(err).Str("symbol", symbol).Int("attempt", attempt+1).Msg("fetch attempt failed")
	}
	return nil, lastErr
}

func (s *Service) AvailableTradingDates(ctx context.Context, startDate, endDate string) ([]string, error) {
	requested, err := requestedDates(startDate, endDate)
	if err != nil {
		return nil, err
	}

	var available []string
	for _, date := range requested {
		count, err := s.store.CountSymbolsAtDate(ctx, date)
		if err != nil {
			return nil, fmt.Errorf("counting coverage at %s: %w", date, err)
		}
		if count >= len(s.universe) {
			available = append(available, date)
		}
	}
	return available, nil
}

func (s *Service) GetOpen(ctx context.Context, date string, symbols []string) (map[string]float64, error) {
	return s.store.GetOpenPrices(ctx, date, symbols)
}

func requestedDates(startDate, endDate string) ([]string, error) {
	start, err := time.Parse(models.DateFormat, startDate)
	if err != nil {
		return nil, models.Validationf("invalid start date %q", startDate)
	}
	end, err := time.Parse(models.DateFormat, endDate)
	if err != nil {
		return nil, models.Validationf("invalid end date %q", endDate)
	}
	if end.Before(start) {
		return nil, models.Validationf("end date %s precedes start date %s", endDate, startDate)
	}
	return models.TradingDates(start, end), nil
}

// Compile-time check
var _ interfaces.PriceCache = (*Service)(nil)
