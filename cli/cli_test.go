package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/flightops/config"
	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/mcp"
	"github.com/richinex/flightops/storage"
	"github.com/richinex/flightops/tools"
)

type cannedChatter struct {
	replies []string
}

func (c *cannedChatter) ChatWithUsage(_ context.Context, _ []llm.ChatMessage, _ llm.CallOptions) (string, *llm.TokenUsage, error) {
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil, nil
}

const legJSON = `[{
	"_id": "1",
	"_class": "FlightLeg",
	"flightLegState": {
		"carrier": "6E",
		"flightNumber": 215,
		"dateOfOrigin": "2024-06-23",
		"startStation": "DEL",
		"endStation": "BOM",
		"flightStatus": "ARRIVED",
		"delays": {"total": "00:15"}
	}
}]`

func newTestApp(t *testing.T, replies ...string) (*App, *bytes.Buffer) {
	t.Helper()
	docs, err := datastore.DecodeDocuments([]byte(legJSON))
	require.NoError(t, err)

	var out bytes.Buffer
	settings := config.Defaults()
	settings.Store.Backend = config.BackendMemory
	return &App{
		Settings: settings,
		Out:      &out,
		LLM:      &cannedChatter{replies: replies},
		Store:    datastore.NewMemory(docs...),
		History:  storage.NewInMemoryStorage(),
	}, &out
}

func TestAskPrintsSummary(t *testing.T) {
	app, out := newTestApp(t,
		`{"plan":[{"tool":"get_delay_summary","arguments":{"carrier":"6E","flight_number":"215","date_of_origin":"2024-06-23"}}]}`,
		"6E 215 was delayed 15 minutes.",
	)

	require.NoError(t, app.Ask(context.Background(), "Why was 6E 215 late?", AskOptions{}))
	assert.Equal(t, "6E 215 was delayed 15 minutes.\n", out.String())
}

func TestAskJSONAndSave(t *testing.T) {
	app, out := newTestApp(t,
		`{"plan":[{"tool":"get_delay_summary","arguments":{"flight_number":215}}]}`,
		"late",
	)

	require.NoError(t, app.Ask(context.Background(), "delay?", AskOptions{JSON: true, Save: true}))

	var body struct {
		Plan    []map[string]any            `json:"plan"`
		Results []map[string]map[string]any `json:"results"`
		Summary map[string]string           `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	require.Len(t, body.Results, 1)
	assert.Equal(t, true, body.Results[0][tools.NameDelaySummary]["ok"])
	assert.Equal(t, "late", body.Summary["summary"])

	runs, err := app.History.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "delay?", runs[0].Question)
}

// stubProvider answers from a fixed list of replies.
type stubProvider struct {
	replies []string
}

func (p *stubProvider) Name() string  { return "stub" }
func (p *stubProvider) Model() string { return "stub-model-1" }

func (p *stubProvider) Chat(_ context.Context, _ []llm.ChatMessage, _ llm.CallOptions) (llm.LLMResponse, error) {
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return llm.LLMResponse{Content: reply, Usage: &llm.TokenUsage{TotalTokens: 10}}, nil
}

func TestAskSaveRecordsResolvedModel(t *testing.T) {
	app, _ := newTestApp(t)
	app.LLM = llm.NewClient(&stubProvider{replies: []string{
		`{"plan":[{"tool":"health_check","arguments":{}}]}`,
		"healthy",
	}})

	require.NoError(t, app.Ask(context.Background(), "db?", AskOptions{Save: true}))

	runs, err := app.History.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "stub", runs[0].Provider)
	assert.Equal(t, "stub-model-1", runs[0].Model)
}

func TestAskNoPlan(t *testing.T) {
	app, out := newTestApp(t, "sorry")

	err := app.Ask(context.Background(), "hello", AskOptions{JSON: true, Save: true})
	require.EqualError(t, err, "LLM did not produce a valid tool plan.")
	assert.JSONEq(t, `{"error":"LLM did not produce a valid tool plan."}`, out.String())

	runs, err := app.History.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "LLM did not produce a valid tool plan.", runs[0].Error)
}

func TestAskRemote(t *testing.T) {
	server, _ := newTestApp(t)
	ts := httptest.NewServer(mcp.NewServer(server.executorFor(server.Store), "test", nil).Handler())
	defer ts.Close()

	app, out := newTestApp(t,
		`{"plan":[{"tool":"get_flight_basic_info","arguments":{"flight_number":"215"}},{"tool":"get_crew_info","arguments":{"flight_number":"999"}}]}`,
		"done",
	)
	app.Store = nil

	err := app.Ask(context.Background(), "basic info", AskOptions{
		JSON:   true,
		Remote: RemoteOptions{Enabled: true, URL: ts.URL + "/mcp"},
	})
	require.NoError(t, err)

	var body struct {
		Results []map[string]map[string]any `json:"results"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, true, body.Results[0][tools.NameFlightBasicInfo]["ok"])
	assert.Equal(t, false, body.Results[1][tools.NameCrewInfo]["ok"])
}

func TestCallTool(t *testing.T) {
	app, out := newTestApp(t)

	err := app.CallTool(context.Background(), tools.NameFlightBasicInfo, `{"carrier":"6e","flight_number":"0215"}`, RemoteOptions{})
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"startStation": "DEL"`)
	assert.NotContains(t, out.String(), `"_class"`)

	out.Reset()
	err = app.CallTool(context.Background(), tools.NameFlightBasicInfo, `{"date_of_origin":"not a date"}`, RemoteOptions{})
	require.Error(t, err)
	assert.Contains(t, out.String(), `"code": 400`)

	err = app.CallTool(context.Background(), tools.NameHealthCheck, `[1]`, RemoteOptions{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	app, out := newTestApp(t)

	require.NoError(t, app.Health(context.Background(), RemoteOptions{}))
	assert.Contains(t, out.String(), `"db_connected": true`)
}

func TestSeed(t *testing.T) {
	app, out := newTestApp(t)
	app.Store = datastore.NewMemory()

	path := filepath.Join(t.TempDir(), "docs.json")
	require.NoError(t, os.WriteFile(path, []byte(legJSON), 0o644))

	require.NoError(t, app.Seed(context.Background(), path))
	assert.Equal(t, "Inserted 1 documents\n", out.String())

	ok, err := app.Store.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestListTools(t *testing.T) {
	app, out := newTestApp(t)

	require.NoError(t, app.ListTools(context.Background(), RemoteOptions{}, true))
	for _, name := range tools.DefaultCatalog().Names() {
		assert.Contains(t, out.String(), name)
	}
	assert.Contains(t, out.String(), "query_json*: string")
}

func TestHistoryCommands(t *testing.T) {
	app, out := newTestApp(t)
	ctx := context.Background()

	require.NoError(t, app.HistoryList(ctx, 10))
	assert.Equal(t, "No saved runs.\n", out.String())

	run := &storage.RunRecord{Question: "what happened to 6E 215 on the 23rd?"}
	require.NoError(t, app.History.Save(ctx, run))

	out.Reset()
	require.NoError(t, app.HistoryList(ctx, 10))
	assert.Contains(t, out.String(), run.ID)

	out.Reset()
	require.NoError(t, app.HistoryShow(ctx, run.ID))
	assert.Contains(t, out.String(), run.Question)

	require.NoError(t, app.HistoryDelete(ctx, run.ID))
	assert.ErrorIs(t, app.HistoryShow(ctx, run.ID), storage.ErrRunNotFound)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
}
