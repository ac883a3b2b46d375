// Plan Generator.
//
// Information Hiding:
// - Planning prompt and rules hidden
// - Reply parsing and shape validation hidden
// - Any malformed or failed response collapses to an empty plan

package orchestration

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	jsonutil "github.com/richinex/flightops/internal/json"
	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/model"
	"github.com/richinex/flightops/tools"
)

// Chatter is the LLM collaborator. *llm.Client implements it. Usage may
// be nil when the provider reports none.
type Chatter interface {
	ChatWithUsage(ctx context.Context, messages []llm.ChatMessage, opts llm.CallOptions) (string, *llm.TokenUsage, error)
}

func logUsage(logger *slog.Logger, call string, usage *llm.TokenUsage) {
	if usage == nil {
		return
	}
	logger.Debug("LLM token usage",
		"call", call,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"total_tokens", usage.TotalTokens)
}

// planSchema constrains the reply shape only; tool names and arguments
// are checked by the executor.
const planSchema = `{
	"type": "object",
	"required": ["plan"],
	"properties": {
		"plan": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"tool": {"type": ["string", "null"]},
					"arguments": {"type": ["object", "null"]}
				}
			}
		}
	}
}`

var compiledPlanSchema = mustCompileSchema(planSchema)

func mustCompileSchema(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("invalid plan schema: %v", err))
	}
	return schema
}

const planSystemPrompt = `You are an assistant that converts flight operations questions into tool calls.
Use only these tools, exactly as defined below:

%s

Rules:
1. Respond with a single valid JSON object and nothing else.
2. The object must have a top-level key "plan" whose value is a list of steps.
3. Each step is an object with the keys "tool" and "arguments"; use "tool", never "name".
4. If the user asks something general like "details of a flight", use get_flight_basic_info.
5. Do not invent tool names.
6. If the carrier or date is not mentioned, omit it instead of writing "unknown".`

// PlannerConfig holds generation parameters for planning calls.
type PlannerConfig struct {
	Temperature float32
	MaxTokens   uint32
}

// DefaultPlannerConfig returns the planning defaults: near-deterministic output.
func DefaultPlannerConfig() PlannerConfig {
	return PlannerConfig{Temperature: 0.1, MaxTokens: 2048}
}

// Planner turns a question into an ordered list of tool steps.
type Planner struct {
	llm          Chatter
	systemPrompt string
	opts         llm.CallOptions
	logger       *slog.Logger
}

// NewPlanner creates a planner prompting with catalog.
func NewPlanner(client Chatter, catalog *tools.Catalog, config PlannerConfig, logger *slog.Logger) *Planner {
	if catalog == nil {
		catalog = tools.DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		llm:          client,
		systemPrompt: fmt.Sprintf(planSystemPrompt, catalog.Render()),
		opts: llm.CallOptions{}.
			WithTemperature(config.Temperature).
			WithMaxTokens(config.MaxTokens).
			WithFormat(llm.NewJSONObjectFormat()),
		logger: logger,
	}
}

// SystemPrompt returns the planning instruction sent with every question.
func (p *Planner) SystemPrompt() string {
	return p.systemPrompt
}

// PlanTools asks the model for a plan. It returns an empty plan, never an
// error, when the model fails or its reply is not a plan document.
func (p *Planner) PlanTools(ctx context.Context, question string) model.Plan {
	messages := []llm.ChatMessage{
		llm.SystemMessage(p.systemPrompt),
		llm.UserMessage(question),
	}

	reply, usage, err := p.llm.ChatWithUsage(ctx, messages, p.opts)
	if err != nil {
		p.logger.Error("planning call failed", "error", err)
		return model.Plan{}
	}
	logUsage(p.logger, "plan", usage)

	plan, err := parsePlan(reply)
	if err != nil {
		p.logger.Warn("could not parse LLM plan output", "error", err)
		return model.Plan{}
	}

	p.logger.Info("plan generated", "steps", len(plan))
	return plan
}

type planDocument struct {
	Plan model.Plan `json:"plan"`
}

// parsePlan extracts and validates the plan document in reply.
func parsePlan(reply string) (model.Plan, error) {
	doc, err := jsonutil.ExtractJSON(reply)
	if err != nil {
		return nil, err
	}

	result, err := compiledPlanSchema.Validate(gojsonschema.NewStringLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("plan does not match schema: %s", strings.Join(msgs, "; "))
	}

	parsed, err := jsonutil.ExtractJSONFromResponse[planDocument](doc)
	if err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if parsed.Plan == nil {
		parsed.Plan = model.Plan{}
	}
	return parsed.Plan, nil
}
