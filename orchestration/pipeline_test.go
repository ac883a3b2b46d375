package orchestration

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/model"
	"github.com/richinex/flightops/tools"
)

type invocation struct {
	name string
	args map[string]any
}

type recordingInvoker struct {
	mu      sync.Mutex
	calls   []invocation
	results map[string]tools.Result
	onCall  func()
}

func (r *recordingInvoker) Invoke(_ context.Context, name string, args map[string]any) tools.Result {
	r.mu.Lock()
	r.calls = append(r.calls, invocation{name: name, args: args})
	r.mu.Unlock()
	if r.onCall != nil {
		r.onCall()
	}
	if res, ok := r.results[name]; ok {
		return res
	}
	return tools.Success(map[string]any{"tool": name})
}

func newTestPipeline(chat *scriptedChatter, inv Invoker) *Pipeline {
	planner := NewPlanner(chat, tools.DefaultCatalog(), DefaultPlannerConfig(), nil)
	summarizer := NewSummarizer(chat, DefaultSummarizerConfig(), nil)
	return NewPipeline(planner, inv, summarizer, nil)
}

func TestRunQueryInvalidPlanCallsNoTools(t *testing.T) {
	chat := &scriptedChatter{replies: []string{"not json at all"}}
	inv := &recordingInvoker{}

	_, err := newTestPipeline(chat, inv).RunQuery(context.Background(), "what?")

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeNoValidPlan, pe.Code)
	assert.Equal(t, MsgNoValidPlan, pe.Message)
	assert.Empty(t, inv.calls)
	assert.Len(t, chat.messages, 1, "summarizer must not run")
}

func TestRunQueryKeepsOrderAndFailures(t *testing.T) {
	chat := &scriptedChatter{replies: []string{
		`{"plan":[
			{"tool":"get_flight_basic_info","arguments":{"flight_number":215}},
			{"tool":"get_delay_summary","arguments":{"flight_number":215}},
			{"tool":"get_fuel_summary","arguments":{"flight_number":215}}
		]}`,
		"Flight 6E 215 departed on time.",
	}}
	inv := &recordingInvoker{results: map[string]tools.Result{
		tools.NameDelaySummary: tools.Failure(tools.CodeNotFound, tools.MsgNotFound),
	}}

	run, err := newTestPipeline(chat, inv).RunQuery(context.Background(), "tell me about 6E 215")
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	assert.Equal(t, tools.NameFlightBasicInfo, run.Results[0].Tool)
	assert.Equal(t, tools.NameDelaySummary, run.Results[1].Tool)
	assert.Equal(t, tools.NameFuelSummary, run.Results[2].Tool)
	assert.True(t, run.Results[0].Result.OK)
	assert.False(t, run.Results[1].Result.OK)
	assert.Equal(t, tools.CodeNotFound, run.Results[1].Result.Code)
	assert.True(t, run.Results[2].Result.OK)
	assert.Equal(t, "Flight 6E 215 departed on time.", run.Summary)

	require.Len(t, run.Calls, 3)
	assert.False(t, run.Calls[1].Success)
	assert.Equal(t, tools.CodeNotFound, run.Calls[1].Code)
}

// flakyLookupStore fails the FindOne call numbered failOn (1-based).
type flakyLookupStore struct {
	*datastore.Memory
	failOn int
	calls  int
}

func (s *flakyLookupStore) FindOne(ctx context.Context, q datastore.Query, projection []string) (datastore.Document, error) {
	s.calls++
	if s.calls == s.failOn {
		return nil, errors.New("disk I/O error")
	}
	return s.Memory.FindOne(ctx, q, projection)
}

func TestRunQueryStoreFailureOnMiddleStep(t *testing.T) {
	leg := datastore.Document{
		"_id": "1",
		"flightLegState": map[string]any{
			"carrier":      "6E",
			"flightNumber": 215,
			"dateOfOrigin": "2024-06-23",
			"startStation": "DEL",
		},
	}
	store := &flakyLookupStore{Memory: datastore.NewMemory(leg), failOn: 2}
	exec := tools.NewExecutor(tools.DefaultCatalog(), store, tools.DefaultToolConfig(), nil)

	args := `{"carrier":"6E","flight_number":"215","date_of_origin":"2024-06-23"}`
	chat := &scriptedChatter{replies: []string{
		`{"plan":[
			{"tool":"get_flight_basic_info","arguments":` + args + `},
			{"tool":"get_delay_summary","arguments":` + args + `},
			{"tool":"get_operation_times","arguments":` + args + `}
		]}`,
		"summary",
	}}

	run, err := newTestPipeline(chat, exec).RunQuery(context.Background(), "what happened to 6E 215 on 2024-06-23?")
	require.NoError(t, err)

	require.Len(t, run.Results, 3)
	assert.Equal(t, tools.NameFlightBasicInfo, run.Results[0].Tool)
	assert.Equal(t, tools.NameDelaySummary, run.Results[1].Tool)
	assert.Equal(t, tools.NameOperationTimes, run.Results[2].Tool)

	assert.True(t, run.Results[0].Result.OK, run.Results[0].Result.Message)
	assert.False(t, run.Results[1].Result.OK)
	assert.Equal(t, tools.CodeStoreFailed, run.Results[1].Result.Code)
	assert.Contains(t, run.Results[1].Result.Message, "disk I/O error")
	assert.True(t, run.Results[2].Result.OK, run.Results[2].Result.Message)
	assert.Equal(t, 3, store.calls)
}

func TestRunQuerySkipsBlankTool(t *testing.T) {
	chat := &scriptedChatter{replies: []string{
		`{"plan":[{"tool":"  ","arguments":{}},{"tool":"health_check","arguments":{}}]}`,
		"ok",
	}}
	inv := &recordingInvoker{}

	run, err := newTestPipeline(chat, inv).RunQuery(context.Background(), "db?")
	require.NoError(t, err)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, tools.NameHealthCheck, inv.calls[0].name)
	assert.Len(t, run.Plan, 2)
	assert.Len(t, run.Results, 1)
}

func TestRunQuerySanitizesArgumentsBeforeInvoke(t *testing.T) {
	chat := &scriptedChatter{replies: []string{
		`{"plan":[{"tool":"get_crew_info","arguments":{"carrier":"Unknown","flight_number":"215","date_of_origin":" "}}]}`,
		"crew listed",
	}}
	inv := &recordingInvoker{}

	run, err := newTestPipeline(chat, inv).RunQuery(context.Background(), "crew of 215")
	require.NoError(t, err)

	require.Len(t, inv.calls, 1)
	assert.Equal(t, map[string]any{"flight_number": "215"}, inv.calls[0].args)
	require.Len(t, run.Calls, 1)
	assert.Equal(t, len(`{"flight_number":"215"}`), run.Calls[0].InputSize)
}

func TestRunQuerySummarizerMessages(t *testing.T) {
	chat := &scriptedChatter{replies: []string{
		`{"plan":[{"tool":"health_check","arguments":{}}]}`,
		"all good",
	}}

	_, err := newTestPipeline(chat, &recordingInvoker{}).RunQuery(context.Background(), "db?")
	require.NoError(t, err)

	require.Len(t, chat.messages, 2)
	msgs := chat.messages[1]
	require.Len(t, msgs, 4)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Equal(t, "Question:\ndb?", msgs[1].Content)
	assert.Equal(t, llm.RoleAssistant, msgs[2].Role)
	assert.Contains(t, msgs[2].Content, "Plan:\n[")
	assert.Equal(t, llm.RoleAssistant, msgs[3].Role)
	assert.Contains(t, msgs[3].Content, `"health_check"`)

	require.NotNil(t, chat.opts[1].Temperature)
	assert.InDelta(t, 0.3, *chat.opts[1].Temperature, 1e-6)
	require.NotNil(t, chat.opts[1].Format)
	assert.Equal(t, llm.ResponseFormatText, chat.opts[1].Format.Type)
}

func TestRunQuerySummaryErrorBecomesText(t *testing.T) {
	chat := &scriptedChatter{replies: []string{`{"plan":[{"tool":"health_check","arguments":{}}]}`}}

	run, err := newTestPipeline(chat, &recordingInvoker{}).RunQuery(context.Background(), "db?")
	require.NoError(t, err)

	var body map[string]string
	require.NoError(t, json.Unmarshal([]byte(run.Summary), &body))
	assert.Contains(t, body["error"], "no scripted reply")
}

func TestRunQueryCancelledBetweenSteps(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chat := &scriptedChatter{replies: []string{
		`{"plan":[{"tool":"health_check"},{"tool":"health_check"}]}`,
	}}
	inv := &recordingInvoker{onCall: cancel}

	_, err := newTestPipeline(chat, inv).RunQuery(ctx, "db?")

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeCancelled, pe.Code)
	assert.Equal(t, StageExecuting, pe.Stage)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Len(t, inv.calls, 1)
}

func TestRunQueryRejectsBlankQuestion(t *testing.T) {
	chat := &scriptedChatter{}
	_, err := newTestPipeline(chat, &recordingInvoker{}).RunQuery(context.Background(), "   ")

	var pe *PipelineError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, ErrCodeValidation, pe.Code)
	assert.Empty(t, chat.messages)
}

func TestRunQueryStageHook(t *testing.T) {
	chat := &scriptedChatter{replies: []string{`{"plan":[{"tool":"health_check"}]}`, "fine"}}
	var stages []Stage

	p := newTestPipeline(chat, &recordingInvoker{}).WithStageHook(func(s Stage) {
		stages = append(stages, s)
	})
	_, err := p.RunQuery(context.Background(), "db?")
	require.NoError(t, err)

	assert.Equal(t, []Stage{StagePlanning, StageExecuting, StageSummarizing, StageDone}, stages)
}

func TestRunResultCallerShape(t *testing.T) {
	chat := &scriptedChatter{replies: []string{`{"plan":[{"tool":"health_check","arguments":{}}]}`, "fine"}}
	inv := &recordingInvoker{results: map[string]tools.Result{
		tools.NameHealthCheck: tools.Success(map[string]any{"db_connected": true}),
	}}

	run, err := newTestPipeline(chat, inv).RunQuery(context.Background(), "db?")
	require.NoError(t, err)

	b, err := json.Marshal(run)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"plan":[{"tool":"health_check","arguments":{}}],
		"results":[{"health_check":{"ok":true,"data":{"db_connected":true}}}],
		"summary":{"summary":"fine"}
	}`, string(b))

	var decoded model.RunResult
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, "fine", decoded.Summary)
}

func TestPipelineErrorFormat(t *testing.T) {
	err := newNoValidPlanError()
	assert.Equal(t, "[planning:NO_VALID_PLAN] "+MsgNoValidPlan, err.Error())

	wrapped := newCancelledError(StageSummarizing, context.Canceled)
	assert.ErrorIs(t, wrapped, context.Canceled)
	assert.Contains(t, wrapped.Error(), "summarizing")
}
