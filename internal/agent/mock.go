package agent

import (
	"context"
	"fmt"
	"hash/fnv"
	"sort"

	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// MockRuntime is the offline runtime used in DEV deployments: no API calls,
// fully deterministic for a given (model, date) pair so replays reproduce
// exactly.
type MockRuntime struct {
	universe []string
}

// NewMockRuntime creates a mock runtime trading within the given universe.
func NewMockRuntime(universe []string) *MockRuntime {
	return &MockRuntime{universe: universe}
}

func (m *MockRuntime) RunSession(ctx context.Context, session models.SessionContext, tools interfaces.TradingTools) (*models.SessionResult, error) {
	seed := fnv.New64a()
	seed.Write([]byte(session.Model + "|" + session.Date))
	h := seed.Sum64()

	result := &models.SessionResult{
		Transcript: []models.AgentMessage{{Role: "user", Content: sessionPrompt(session, tools.Snapshot())}},
	}

	record := func(tool, args string, payload string) {
		result.ToolCalls++
		result.Transcript = append(result.Transcript, models.AgentMessage{
			Role: "tool", Tool: tool, Args: args, Result: payload,
		})
	}

	var bought, sold []string

	// Sell one existing position every third session.
	snap := tools.Snapshot()
	if len(snap.Holdings) > 0 && h%3 == 0 {
		symbols := make([]string, 0, len(snap.Holdings))
		for sym := range snap.Holdings {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)
		sym := symbols[h%uint64(len(symbols))]
		qty := snap.Holdings[sym]

		if _, err := tools.Sell(ctx, sym, qty); err == nil {
			sold = append(sold, sym)
			record("sell", fmt.Sprintf(`{"symbol":%q,"quantity":%d}`, sym, qty), `{"ok":true}`)
		} else {
			record("sell", fmt.Sprintf(`{"symbol":%q,"quantity":%d}`, sym, qty), fmt.Sprintf(`{"error":%q}`, err.Error()))
		}
		result.Steps++
	}

	// Buy one or two rotating universe picks, spending at most a fifth of
	// cash each.
	if len(m.universe) > 0 {
		buys := 1 + int(h%2)
		for i := 0; i < buys; i++ {
			sym := m.universe[(h+uint64(i*7))%uint64(len(m.universe))]

			price, err := tools.Price(ctx, sym)
			record("get_price", fmt.Sprintf(`{"symbol":%q}`, sym), fmt.Sprintf(`{"open":%f}`, price))
			if err != nil || price <= 0 {
				result.Steps++
				continue
			}

			budget := tools.Snapshot().Cash / 5
			qty := int(budget / price)
			if qty < 1 {
				result.Steps++
				continue
			}

			if _, err := tools.Buy(ctx, sym, qty); err == nil {
				bought = append(bought, sym)
				record("buy", fmt.Sprintf(`{"symbol":%q,"quantity":%d}`, sym, qty), `{"ok":true}`)
			} else {
				record("buy", fmt.Sprintf(`{"symbol":%q,"quantity":%d}`, sym, qty), fmt.Sprintf(`{"error":%q}`, err.Error()))
			}
			result.Steps++
		}
	}

	summary := fmt.Sprintf("Rotated the portfolio: bought %v, sold %v.", bought, sold)
	if len(bought) == 0 && len(sold) == 0 {
		summary = "Held the existing portfolio; no trades today."
	}
	result.Transcript = append(result.Transcript, models.AgentMessage{Role: "model", Content: summary})
	result.Steps++
	return result, nil
}

// Compile-time check
var _ interfaces.AgentRuntime = (*MockRuntime)(nil)
