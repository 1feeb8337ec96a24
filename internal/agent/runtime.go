// Package agent runs one trading session per (model, date): a bounded
// reasoning loop where the model inspects its portfolio, checks prices, and
// places trades through the tool surface.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/bobmcallan/replay/internal/clients/gemini"
	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

const (
	DefaultMaxSteps   = 10
	DefaultMaxRetries = 3
)

// GeminiRuntime drives a live Gemini model through the trading tools.
type GeminiRuntime struct {
	client     *gemini.Client
	logger     *common.Logger
	maxSteps   int
	maxRetries int
}

// RuntimeOption configures the runtime
type RuntimeOption func(*GeminiRuntime)

// WithMaxSteps caps the reasoning loop length per session.
func WithMaxSteps(n int) RuntimeOption {
	return func(r *GeminiRuntime) {
		if n > 0 {
			r.maxSteps = n
		}
	}
}

// WithMaxRetries caps transient generation retries per step.
func WithMaxRetries(n int) RuntimeOption {
	return func(r *GeminiRuntime) {
		if n > 0 {
			r.maxRetries = n
		}
	}
}

// WithRuntimeLogger sets the logger
func WithRuntimeLogger(logger *common.Logger) RuntimeOption {
	return func(r *GeminiRuntime) {
		r.logger = logger
	}
}

// NewGeminiRuntime creates a runtime bound to one Gemini client.
func NewGeminiRuntime(client *gemini.Client, opts ...RuntimeOption) *GeminiRuntime {
	r := &GeminiRuntime{
		client:     client,
		logger:     common.NewSilentLogger(),
		maxSteps:   DefaultMaxSteps,
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// tradingToolDeclarations is the function surface exposed to the model.
func tradingToolDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "buy",
			Description: "Buy a quantity of a stock at today's open price.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"symbol":   {Type: genai.TypeString, Description: "Ticker symbol, e.g. AAPL"},
					"quantity": {Type: genai.TypeInteger, Description: "Whole shares to buy, minimum 1"},
				},
				Required: []string{"symbol", "quantity"},
			},
		},
		{
			Name:        "sell",
			Description: "Sell a quantity of a held stock at today's open price.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"symbol":   {Type: genai.TypeString, Description: "Ticker symbol, e.g. AAPL"},
					"quantity": {Type: genai.TypeInteger, Description: "Whole shares to sell, minimum 1"},
				},
				Required: []string{"symbol", "quantity"},
			},
		},
		{
			Name:        "get_price",
			Description: "Get today's open price for a stock.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"symbol": {Type: genai.TypeString, Description: "Ticker symbol, e.g. AAPL"},
				},
				Required: []string{"symbol"},
			},
		},
		{
			Name:        "get_portfolio",
			Description: "Get current cash balance and holdings.",
		},
	}
}

func sessionPrompt(session models.SessionContext, snapshot models.PortfolioSnapshot) string {
	holdings, _ := json.Marshal(snapshot.Holdings)
	return fmt.Sprintf(
		`You are a stock trading agent. Today is %s. You manage a simulated portfolio.

Current cash: $%.2f
Current holdings (symbol -> shares): %s

All trades execute at today's open price. You may buy or sell whole shares
only. Check prices before trading. When you are done trading for the day,
respond with a short plain-text summary of what you did and why.`,
		session.Date, snapshot.Cash, string(holdings))
}

// RunSession drives the function-calling loop until the model answers with
// text or the step cap is reached.
func (r *GeminiRuntime) RunSession(ctx context.Context, session models.SessionContext, tools interfaces.TradingTools) (*models.SessionResult, error) {
	prompt := sessionPrompt(session, tools.Snapshot())

	result := &models.SessionResult{
		Transcript: []models.AgentMessage{{Role: "user", Content: prompt}},
	}

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}
	config := &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{FunctionDeclarations: tradingToolDeclarations()}},
	}

	for step := 0; step < r.maxSteps; step++ {
		resp, err := r.generateWithRetry(ctx, contents, config)
		if err != nil {
			return result, fmt.Errorf("generation failed on step %d: %w", step+1, err)
		}
		result.Steps++

		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return result, fmt.Errorf("empty response on step %d", step+1)
		}
		contents = append(contents, resp.Candidates[0].Content)

		calls := resp.FunctionCalls()
		if len(calls) == 0 {
			text, err := gemini.ExtractText(resp)
			if err != nil {
				return result, fmt.Errorf("no text and no tool call on step %d: %w", step+1, err)
			}
			result.Transcript = append(result.Transcript, models.AgentMessage{Role: "model", Content: text})
			return result, nil
		}

		var responseParts []*genai.Part
		for _, call := range calls {
			args, _ := json.Marshal(call.Args)
			payload := r.dispatch(ctx, tools, call.Name, call.Args)
			result.ToolCalls++

			encoded, _ := json.Marshal(payload)
			result.Transcript = append(result.Transcript, models.AgentMessage{
				Role: "tool", Tool: call.Name, Args: string(args), Result: string(encoded),
			})

			responseParts = append(responseParts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{Name: call.Name, Response: payload},
			})
		}
		contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: responseParts})
	}

	result.Transcript = append(result.Transcript, models.AgentMessage{
		Role: "model", Content: "Session ended: reached the per-day step limit.",
	})
	return result, nil
}

func (r *GeminiRuntime) generateWithRetry(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	var lastErr error
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(1<<(attempt-1)) * time.Second):
			}
		}
		resp, err := r.client.Raw().Models.GenerateContent(ctx, r.client.Model(), contents, config)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		r.logger.Warn().Err(err).Int("attempt", attempt+1).Msg("generation attempt failed")
	}
	return nil, lastErr
}

// dispatch executes one tool call. Trade precondition violations come back
// as an error payload for the model to react to, never as a session failure.
func (r *GeminiRuntime) dispatch(ctx context.Context, tools interfaces.TradingTools, name string, args map[string]any) map[string]any {
	switch name {
	case "buy", "sell":
		symbol, _ := args["symbol"].(string)
		quantity := intArg(args["quantity"])
		if symbol == "" || quantity < 1 {
			return map[string]any{"error": "symbol and a positive quantity are required"}
		}
		var snap *models.PortfolioSnapshot
		var err error
		if name == "buy" {
			snap, err = tools.Buy(ctx, symbol, quantity)
		} else {
			snap, err = tools.Sell(ctx, symbol, quantity)
		}
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"cash": snap.Cash, "holdings": snap.Holdings}

	case "get_price":
		symbol, _ := args["symbol"].(string)
		if symbol == "" {
			return map[string]any{"error": "symbol is required"}
		}
		price, err := tools.Price(ctx, symbol)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		return map[string]any{"symbol": symbol, "open": price}

	case "get_portfolio":
		snap := tools.Snapshot()
		return map[string]any{"cash": snap.Cash, "holdings": snap.Holdings}

	default:
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", name)}
	}
}

// intArg coerces a JSON number or string to int.
func intArg(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	case string:
		var i int
		fmt.Sscanf(n, "%d", &i)
		return i
	default:
		return 0
	}
}

// Compile-time check
var _ interfaces.AgentRuntime = (*GeminiRuntime)(nil)
