package simulation

import (
	"context"
	"fmt"
	"strings"

	"github.com/bobmcallan/replay/internal/common"
	"github.com/bobmcallan/replay/internal/interfaces"
	"github.com/bobmcallan/replay/internal/models"
)

// Summarizer condenses a session transcript into one short paragraph. It
// asks the LLM first and falls back to a statistical summary when the model
// is unavailable or errors, so a session never fails on summarization.
type Summarizer struct {
	client interfaces.LLMClient // nil in DEV mode
	logger *common.Logger
}

// NewSummarizer creates a summarizer. A nil client always uses the fallback.
func NewSummarizer(client interfaces.LLMClient, logger *common.Logger) *Summarizer {
	return &Summarizer{client: client, logger: logger}
}

func (s *Summarizer) Summarize(ctx context.Context, transcript []models.AgentMessage) (string, error) {
	if s.client != nil {
		prompt := summaryPrompt(transcript)
		summary, err := s.client.GenerateContent(ctx, prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return strings.TrimSpace(summary), nil
		}
		if err != nil {
			s.logger.Warn().Err(err).Msg("LLM summary failed, using statistical fallback")
		}
	}
	return statisticalSummary(transcript), nil
}

func summaryPrompt(transcript []models.AgentMessage) string {
	var sb strings.Builder
	sb.WriteString("Summarize this stock trading session in two or three sentences. ")
	sb.WriteString("Cover what was traded and the stated rationale. Transcript:\n\n")
	for _, msg := range transcript {
		switch msg.Role {
		case "model":
			sb.WriteString("AGENT: " + msg.Content + "\n")
		case "tool":
			sb.WriteString(fmt.Sprintf("TOOL %s(%s) -> %s\n", msg.Tool, msg.Args, msg.Result))
		}
	}
	return sb.String()
}

// statisticalSummary derives a summary from the transcript alone.
func statisticalSummary(transcript []models.AgentMessage) string {
	trades := 0
	toolCalls := 0
	for _, msg := range transcript {
		if msg.Role != "tool" {
			continue
		}
		toolCalls++
		if (msg.Tool == "buy" || msg.Tool == "sell") && !strings.Contains(msg.Result, `"error"`) {
			trades++
		}
	}
	return fmt.Sprintf("Executed %d trades across %d tool calls.", trades, toolCalls)
}

// Compile-time check
var _ interfaces.Summarizer = (*Summarizer)(nil)
