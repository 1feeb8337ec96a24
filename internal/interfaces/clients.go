package interfaces

import (
	"context"

	"github.com/bobmcallan/replay/internal/models"
)

// PriceClient is the narrow contract to the upstream price-history provider.
// FetchSymbol returns the daily OHLCV series for a symbol over a date range.
// Rate limiting is reported as an error wrapping models.ErrRateLimited;
// anything else is a transient upstream failure.
type PriceClient interface {
	FetchSymbol(ctx context.Context, symbol, fromDate, toDate string) ([]models.PricePoint, error)
}

// LLMClient generates freeform text. Used for conversation summaries.
type LLMClient interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}
