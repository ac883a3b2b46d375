package tools

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/flight"
)

// recordingStore captures the calls the executor makes.
type recordingStore struct {
	mu        sync.Mutex
	err       error
	errs      []error
	doc       datastore.Document
	docs      []datastore.Document
	probe     bool
	queries   []datastore.Query
	findOpts  []datastore.FindOptions
	projected [][]string
	calls     int
}

func (s *recordingStore) nextErr() error {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return err
	}
	return s.err
}

func (s *recordingStore) FindOne(ctx context.Context, q datastore.Query, projection []string) (datastore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	s.projected = append(s.projected, projection)
	if err := s.nextErr(); err != nil {
		return nil, err
	}
	if s.doc == nil {
		return nil, datastore.ErrNotFound
	}
	return s.doc, nil
}

func (s *recordingStore) Find(ctx context.Context, q datastore.Query, opts datastore.FindOptions) ([]datastore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)
	s.findOpts = append(s.findOpts, opts)
	if err := s.nextErr(); err != nil {
		return nil, err
	}
	return s.docs, nil
}

func (s *recordingStore) Probe(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.nextErr(); err != nil {
		return false, err
	}
	return s.probe, nil
}

func (s *recordingStore) Close(ctx context.Context) error { return nil }

func sampleLeg() datastore.Document {
	return datastore.Document{
		"_id":    "64f0c2",
		"_class": "com.example.FlightLeg",
		"flightLegState": map[string]any{
			"carrier":          "6E",
			"flightNumber":     int64(215),
			"dateOfOrigin":     "2024-06-23",
			"startStation":     "DEL",
			"endStation":       "BOM",
			"flightStatus":     "ARRIVED",
			"crewConnections":  []any{"C1"},
			"equipment":        map[string]any{"aircraftRegistration": "VT-IFM"},
			"scheduledEndTime": "2024-06-23T08:10:00Z",
		},
	}
}

func newExec(store datastore.Store) *Executor {
	return NewExecutor(DefaultCatalog(), store, DefaultToolConfig(), nil)
}

func TestInvokeBasicInfoReturnsProjection(t *testing.T) {
	store := datastore.NewMemory(sampleLeg())
	res := newExec(store).Invoke(context.Background(), NameFlightBasicInfo, map[string]any{
		ArgCarrier:      "6E",
		ArgFlightNumber: "215",
		ArgDateOfOrigin: "2024-06-23",
	})

	require.True(t, res.OK, res.Message)
	doc := res.Data.(map[string]any)
	assert.NotContains(t, doc, "_id")
	assert.NotContains(t, doc, "_class")

	state := doc["flightLegState"].(map[string]any)
	assert.Equal(t, "ARRIVED", state["flightStatus"])
	assert.Equal(t, "DEL", state["startStation"])
	assert.NotContains(t, state, "crewConnections")
	assert.NotContains(t, state, "equipment")
}

func TestInvokeBuildsTypedQuery(t *testing.T) {
	store := &recordingStore{doc: datastore.Document{"flightLegState": map[string]any{}}}
	res := newExec(store).Invoke(context.Background(), NameEquipmentInfo, map[string]any{
		ArgCarrier:      " 6e",
		ArgFlightNumber: float64(215),
		ArgDateOfOrigin: "23 Jun 2024",
	})
	require.True(t, res.OK)

	require.Len(t, store.queries, 1)
	assert.Equal(t, datastore.Query{
		flight.FieldCarrier:      "6E",
		flight.FieldFlightNumber: 215,
		flight.FieldDateOfOrigin: "2024-06-23",
	}, store.queries[0])

	spec, _ := DefaultCatalog().Get(NameEquipmentInfo)
	assert.Equal(t, spec.Projection, store.projected[0])
}

func TestInvokeDropsUnknownArguments(t *testing.T) {
	store := &recordingStore{doc: datastore.Document{}}
	res := newExec(store).Invoke(context.Background(), NameFlightBasicInfo, map[string]any{
		ArgCarrier:      "unknown",
		ArgFlightNumber: "215",
		ArgDateOfOrigin: "Unknown",
	})
	require.True(t, res.OK)
	assert.Equal(t, datastore.Query{flight.FieldFlightNumber: 215}, store.queries[0])
}

func TestInvokeNotFound(t *testing.T) {
	store := datastore.NewMemory()
	res := newExec(store).Invoke(context.Background(), NameFlightBasicInfo, map[string]any{
		ArgCarrier:      "6E",
		ArgFlightNumber: "215",
		ArgDateOfOrigin: "2024-06-23",
	})
	assert.False(t, res.OK)
	assert.Equal(t, CodeNotFound, res.Code)
	assert.Equal(t, MsgNotFound, res.Message)
}

func TestInvokeStoreFailure(t *testing.T) {
	store := &recordingStore{err: errors.New("boom")}
	res := newExec(store).Invoke(context.Background(), NameDelaySummary, map[string]any{ArgCarrier: "6E"})
	assert.Equal(t, CodeStoreFailed, res.Code)
	assert.Equal(t, "DB query failed: boom", res.Message)
	assert.Equal(t, 1, store.calls)
}

func TestInvokeValidationErrors(t *testing.T) {
	store := &recordingStore{}
	exec := newExec(store)

	res := exec.Invoke(context.Background(), NameFuelSummary, map[string]any{ArgDateOfOrigin: "next tuesday"})
	assert.Equal(t, CodeBadRequest, res.Code)
	assert.Equal(t, MsgInvalidDate, res.Message)

	res = exec.Invoke(context.Background(), NameFuelSummary, map[string]any{ArgFlightNumber: "six"})
	assert.Equal(t, CodeBadRequest, res.Code)

	assert.Zero(t, store.calls, "invalid input must not reach the store")
}

func TestInvokeUnknownTool(t *testing.T) {
	store := &recordingStore{}
	res := newExec(store).Invoke(context.Background(), "get_weather", nil)
	assert.False(t, res.OK)
	assert.Equal(t, CodeBadRequest, res.Code)
	assert.True(t, strings.HasPrefix(res.Message, "Unknown tool 'get_weather'"))
	assert.Zero(t, store.calls)

	res = newExec(store).Invoke(context.Background(), " ", nil)
	assert.Equal(t, CodeBadRequest, res.Code)
}

func TestRawQueryLimitClamp(t *testing.T) {
	tests := []struct {
		name  string
		limit any
		want  int
	}{
		{"too large", 1000, 50},
		{"zero", 0, 1},
		{"negative", -3, 1},
		{"float", float64(7), 7},
		{"string", "12", 12},
		{"default", nil, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &recordingStore{docs: []datastore.Document{{"a": 1}}}
			args := map[string]any{ArgQueryJSON: `{"flightLegState.carrier": "6E"}`}
			if tt.limit != nil {
				args[ArgLimit] = tt.limit
			}

			res := newExec(store).Invoke(context.Background(), NameRawQuery, args)
			require.True(t, res.OK, res.Message)
			require.Len(t, store.findOpts, 1)
			assert.Equal(t, tt.want, store.findOpts[0].Limit)
			assert.Equal(t, flight.FieldDateOfOrigin, store.findOpts[0].SortField)
			assert.True(t, store.findOpts[0].Descending)
		})
	}
}

func TestRawQueryResults(t *testing.T) {
	store := datastore.NewMemory(
		datastore.Document{"_id": 1, "flightLegState": map[string]any{"carrier": "6E", "dateOfOrigin": "2024-06-22"}},
		datastore.Document{"_id": 2, "flightLegState": map[string]any{"carrier": "6E", "dateOfOrigin": "2024-06-24"}},
		datastore.Document{"_id": 3, "flightLegState": map[string]any{"carrier": "AI", "dateOfOrigin": "2024-06-25"}},
	)
	exec := newExec(store)

	res := exec.Invoke(context.Background(), NameRawQuery, map[string]any{
		ArgQueryJSON: map[string]any{"flightLegState.carrier": "6E"},
	})
	require.True(t, res.OK, res.Message)
	data := res.Data.(map[string]any)
	assert.Equal(t, 2, data["count"])
	docs := data["documents"].([]map[string]any)
	assert.Equal(t, "2024-06-24", docs[0]["flightLegState"].(map[string]any)["dateOfOrigin"])
	assert.NotContains(t, docs[0], "_id")

	res = exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `{"flightLegState.carrier": "UK"}`})
	assert.Equal(t, CodeNotFound, res.Code)
	assert.Equal(t, MsgNoDocuments, res.Message)
}

func TestRawQueryBadInput(t *testing.T) {
	store := &recordingStore{}
	exec := newExec(store)

	res := exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `{carrier: 6E`})
	assert.Equal(t, CodeBadRequest, res.Code)
	assert.Contains(t, res.Message, "Invalid JSON query")
	assert.Contains(t, res.Message, `Example: '{"flightLegState.carrier": "6E"}'`)

	res = exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `["6E"]`})
	assert.Equal(t, CodeBadRequest, res.Code)

	res = exec.Invoke(context.Background(), NameRawQuery, nil)
	assert.Equal(t, CodeBadRequest, res.Code)

	res = exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `{}`, ArgLimit: 2.5})
	assert.Equal(t, CodeBadRequest, res.Code)

	res = exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `{}`, ArgLimit: 1e20})
	assert.Equal(t, CodeBadRequest, res.Code)

	res = exec.Invoke(context.Background(), NameFlightBasicInfo, map[string]any{ArgFlightNumber: 1e20})
	assert.Equal(t, CodeBadRequest, res.Code)

	assert.Zero(t, store.calls)
}

func TestHealthCheck(t *testing.T) {
	res := newExec(&recordingStore{probe: true}).Invoke(context.Background(), NameHealthCheck, nil)
	require.True(t, res.OK)
	assert.Equal(t, map[string]any{"status": "ok", "db_connected": true}, res.Data)

	res = newExec(&recordingStore{err: errors.New("dial tcp: connection refused")}).Invoke(context.Background(), NameHealthCheck, nil)
	assert.Equal(t, CodeUnavailable, res.Code)
	assert.Equal(t, MsgDBUnreachable, res.Message)
}

// pingingStore reports connectivity separately from document reads.
type pingingStore struct {
	recordingStore
	pingErr error
	pinged  int
}

func (s *pingingStore) Ping(ctx context.Context) error {
	s.pinged++
	return s.pingErr
}

func TestHealthCheckPingsFirst(t *testing.T) {
	store := &pingingStore{recordingStore: recordingStore{probe: true}}
	res := newExec(store).Invoke(context.Background(), NameHealthCheck, nil)
	require.True(t, res.OK)
	assert.Equal(t, 1, store.pinged)

	store = &pingingStore{pingErr: errors.New("server selection timeout")}
	res = newExec(store).Invoke(context.Background(), NameHealthCheck, nil)
	assert.Equal(t, CodeUnavailable, res.Code)
	assert.Equal(t, MsgDBUnreachable, res.Message)
	assert.Zero(t, store.calls, "probe must not run after a failed ping")
}

// blockingStore never answers a probe until its context ends.
type blockingStore struct{ recordingStore }

func (s *blockingStore) Probe(ctx context.Context) (bool, error) {
	<-ctx.Done()
	return false, ctx.Err()
}

func TestHealthCheckIsBounded(t *testing.T) {
	cfg := DefaultToolConfig()
	cfg.HealthTimeout = 20 * time.Millisecond
	exec := NewExecutor(nil, &blockingStore{}, cfg, nil)

	res := exec.Invoke(context.Background(), NameHealthCheck, nil)
	assert.Equal(t, CodeUnavailable, res.Code)
}

func TestRetryTransientFailures(t *testing.T) {
	store := &recordingStore{
		errs: []error{errors.New("connection reset by peer")},
		doc:  datastore.Document{"ok": true},
	}
	cfg := DefaultToolConfig()
	cfg.MaxAttempts = 3
	exec := NewExecutor(nil, store, cfg, nil)

	res := exec.Invoke(context.Background(), NameCrewInfo, map[string]any{ArgCarrier: "6E"})
	require.True(t, res.OK, res.Message)
	assert.Equal(t, 2, store.calls)
}

func TestRetrySkipsPermanentFailures(t *testing.T) {
	store := &recordingStore{err: errors.New("bad projection")}
	cfg := DefaultToolConfig()
	cfg.MaxAttempts = 3
	exec := NewExecutor(nil, store, cfg, nil)

	res := exec.Invoke(context.Background(), NameCrewInfo, nil)
	assert.Equal(t, CodeStoreFailed, res.Code)
	assert.Equal(t, 1, store.calls)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, shouldRetry(errors.New("i/o timeout")))
	assert.True(t, shouldRetry(errors.New("server selection error")))
	assert.False(t, shouldRetry(datastore.ErrNotFound))
	assert.False(t, shouldRetry(context.Canceled))
	assert.False(t, shouldRetry(errors.New("invalid operator")))
}

func TestToolConfigDefaults(t *testing.T) {
	var cfg *ToolConfig
	assert.Equal(t, uint32(1), cfg.Attempts())
	def, upper := cfg.limits()
	assert.Equal(t, 10, def)
	assert.Equal(t, 50, upper)

	cfg = &ToolConfig{DefaultLimit: 80, MaxLimit: 500}
	def, upper = cfg.limits()
	assert.Equal(t, 50, def)
	assert.Equal(t, 50, upper)

	cfg = &ToolConfig{MaxLimit: 20}
	_, upper = cfg.limits()
	assert.Equal(t, 20, upper)
}

func TestRawQueryLimitCappedAboveConfig(t *testing.T) {
	store := &recordingStore{docs: []datastore.Document{{"a": 1}}}
	exec := NewExecutor(nil, store, ToolConfig{MaxLimit: 500}, nil)

	res := exec.Invoke(context.Background(), NameRawQuery, map[string]any{ArgQueryJSON: `{}`, ArgLimit: 1000})
	require.True(t, res.OK, res.Message)
	require.Len(t, store.findOpts, 1)
	assert.Equal(t, 50, store.findOpts[0].Limit)
}
