package orchestration

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/model"
)

const summarySystemPrompt = `You are an assistant that summarizes tool outputs into a concise answer.
Focus on clarity and readability.`

// SummarizerConfig holds generation parameters for summary calls.
type SummarizerConfig struct {
	Temperature float32
	MaxTokens   uint32
}

// DefaultSummarizerConfig returns the summary defaults.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{Temperature: 0.3, MaxTokens: 2048}
}

// Summarizer turns tool results into prose.
type Summarizer struct {
	llm    Chatter
	opts   llm.CallOptions
	logger *slog.Logger
}

// NewSummarizer creates a summarizer.
func NewSummarizer(client Chatter, config SummarizerConfig, logger *slog.Logger) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{
		llm: client,
		opts: llm.CallOptions{}.
			WithTemperature(config.Temperature).
			WithMaxTokens(config.MaxTokens).
			WithFormat(llm.NewTextFormat()),
		logger: logger,
	}
}

// Summarize returns the model's answer verbatim. A failed call yields
// {"error": "<cause>"} as the text.
func (s *Summarizer) Summarize(ctx context.Context, question string, plan model.Plan, results []model.StepResult) string {
	messages := []llm.ChatMessage{
		llm.SystemMessage(summarySystemPrompt),
		llm.UserMessage("Question:\n" + question),
		llm.AssistantMessage("Plan:\n" + indentJSON(plan)),
		llm.AssistantMessage("Results:\n" + indentJSON(results)),
	}

	text, usage, err := s.llm.ChatWithUsage(ctx, messages, s.opts)
	if err != nil {
		s.logger.Error("summary call failed", "error", err)
		return errorText(err)
	}
	logUsage(s.logger, "summary", usage)
	return text
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorText(err)
	}
	return string(b)
}

func errorText(err error) string {
	b, _ := json.Marshal(model.ErrorResponse{Error: err.Error()})
	return string(b)
}
