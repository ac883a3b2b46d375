// Tool Executor with Retry Logic.
//
// Information Hiding:
// - Argument normalization and filter construction hidden
// - Retry strategy and backoff algorithm hidden
// - Store errors classified into result codes

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/flight"
)

// ToolConfig holds tool execution configuration.
// The zero value is safe: one attempt, 5s health probe, raw query limit 10 of at most 50.
type ToolConfig struct {
	MaxAttempts   uint32
	HealthTimeout time.Duration
	DefaultLimit  int
	MaxLimit      int
}

// Attempts returns the configured store attempts, defaulting to 1 if zero.
func (c *ToolConfig) Attempts() uint32 {
	if c == nil || c.MaxAttempts == 0 {
		return 1
	}
	return c.MaxAttempts
}

// ProbeTimeout returns the health probe bound, defaulting to 5 seconds.
func (c *ToolConfig) ProbeTimeout() time.Duration {
	if c == nil || c.HealthTimeout <= 0 {
		return 5 * time.Second
	}
	return c.HealthTimeout
}

// maxRawLimit bounds raw query results whatever MaxLimit says.
const maxRawLimit = 50

func (c *ToolConfig) limits() (def, upper int) {
	def, upper = 10, maxRawLimit
	if c != nil && c.MaxLimit > 0 && c.MaxLimit < maxRawLimit {
		upper = c.MaxLimit
	}
	if c != nil && c.DefaultLimit > 0 {
		def = c.DefaultLimit
	}
	return clamp(def, 1, upper), upper
}

// DefaultToolConfig returns the default tool configuration.
// Note: The zero value of ToolConfig is also safe and provides the same defaults.
func DefaultToolConfig() ToolConfig {
	return ToolConfig{
		MaxAttempts:   1,
		HealthTimeout: 5 * time.Second,
		DefaultLimit:  10,
		MaxLimit:      50,
	}
}

// Result messages shared with callers and tests.
const (
	MsgNotFound         = "No matching document found."
	MsgNoDocuments      = "No documents found for given query."
	MsgDBUnreachable    = "DB unreachable"
	MsgInvalidDate      = "Invalid date_of_origin format. Expected YYYY-MM-DD or common date formats"
	rawQueryExampleJSON = `{"flightLegState.carrier": "6E"}`
)

// Executor runs a single {tool, arguments} step against the store. It
// never returns an error: every outcome is a Result.
type Executor struct {
	catalog *Catalog
	store   datastore.Store
	config  ToolConfig
	logger  *slog.Logger
}

// NewExecutor creates a new tool executor.
func NewExecutor(catalog *Catalog, store datastore.Store, config ToolConfig, logger *slog.Logger) *Executor {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{catalog: catalog, store: store, config: config, logger: logger}
}

// Catalog returns the tools this executor serves.
func (e *Executor) Catalog() *Catalog {
	return e.catalog
}

// Invoke runs the named tool with args.
func (e *Executor) Invoke(ctx context.Context, name string, args map[string]any) Result {
	args = SanitizeArgs(args)

	spec, ok := e.catalog.Get(name)
	if !ok {
		if strings.TrimSpace(name) == "" {
			return Failure(CodeBadRequest, "Tool name is required.")
		}
		e.logger.Warn("unknown tool requested", "tool", name)
		return Failuref(CodeBadRequest, "Unknown tool '%s'. Available tools: %s",
			name, strings.Join(e.catalog.Names(), ", "))
	}

	e.logger.Info("invoking tool", "tool", spec.Name, "args", args)

	switch spec.Kind {
	case KindHealthCheck:
		return e.healthCheck(ctx)
	case KindRawQuery:
		return e.rawQuery(ctx, args)
	default:
		return e.lookup(ctx, spec, args)
	}
}

func (e *Executor) lookup(ctx context.Context, spec ToolSpec, args map[string]any) Result {
	carrier := flight.NormalizeCarrier(stringArg(args, ArgCarrier))

	var flightNumber *int
	if raw, ok := args[ArgFlightNumber]; ok {
		n, ok := flight.NormalizeFlightNumber(raw)
		if !ok {
			return Failuref(CodeBadRequest, "Invalid flight_number '%v'. Expected digits such as \"215\"", raw)
		}
		flightNumber = &n
	}

	date, err := flight.NormalizeDate(stringArg(args, ArgDateOfOrigin))
	if err != nil {
		return Failure(CodeBadRequest, MsgInvalidDate)
	}

	query := flight.BuildFilter(carrier, flightNumber, date).Query()
	e.logger.Info("executing query", "tool", spec.Name, "query", query)

	var doc datastore.Document
	err = e.withRetry(ctx, func(ctx context.Context) error {
		var err error
		doc, err = e.store.FindOne(ctx, query, spec.Projection)
		return err
	})
	if errors.Is(err, datastore.ErrNotFound) {
		e.logger.Warn("no document found", "tool", spec.Name, "query", query)
		return Failure(CodeNotFound, MsgNotFound)
	}
	if err != nil {
		e.logger.Error("DB query failed", "tool", spec.Name, "error", err)
		return Failuref(CodeStoreFailed, "DB query failed: %v", err)
	}

	e.logger.Info("query successful", "tool", spec.Name)
	return Success(map[string]any(doc))
}

func (e *Executor) rawQuery(ctx context.Context, args map[string]any) Result {
	query, err := e.parseRawQuery(args[ArgQueryJSON])
	if err != nil {
		return Failuref(CodeBadRequest, "Invalid JSON query: %v. Example: '%s'", err, rawQueryExampleJSON)
	}

	def, upper := e.config.limits()
	limit, present, err := intArg(args, ArgLimit)
	if err != nil {
		return Failure(CodeBadRequest, err.Error())
	}
	if !present {
		limit = def
	}
	limit = clamp(limit, 1, upper)

	e.logger.Info("executing raw query", "query", query, "limit", limit)

	var docs []datastore.Document
	err = e.withRetry(ctx, func(ctx context.Context) error {
		var err error
		docs, err = e.store.Find(ctx, query, datastore.FindOptions{
			SortField:  flight.FieldDateOfOrigin,
			Descending: true,
			Limit:      limit,
		})
		return err
	})
	if err != nil {
		e.logger.Error("raw query failed", "error", err)
		return Failuref(CodeStoreFailed, "raw query failed: %v", err)
	}
	if len(docs) == 0 {
		return Failure(CodeNotFound, MsgNoDocuments)
	}

	out := make([]map[string]any, len(docs))
	for i, d := range docs {
		out[i] = d
	}
	return Success(map[string]any{"count": len(out), "documents": out})
}

// parseRawQuery accepts the filter as JSON text, or as an object when the
// model already decoded it.
func (e *Executor) parseRawQuery(raw any) (datastore.Query, error) {
	var text string
	switch v := raw.(type) {
	case nil:
		return nil, errors.New("query_json is required")
	case string:
		text = v
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		text = string(b)
	default:
		return nil, fmt.Errorf("query_json must be a JSON object, got %T", raw)
	}

	if p, ok := e.store.(datastore.QueryParser); ok {
		return p.ParseQuery(text)
	}
	return datastore.ParseQuery(text)
}

func (e *Executor) healthCheck(ctx context.Context) Result {
	ctx, cancel := context.WithTimeout(ctx, e.config.ProbeTimeout())
	defer cancel()

	if p, ok := e.store.(datastore.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			e.logger.Error("health check DB ping failed", "error", err)
			return Failure(CodeUnavailable, MsgDBUnreachable)
		}
	}

	found, err := e.store.Probe(ctx)
	if err != nil {
		e.logger.Error("health check DB probe failed", "error", err)
		return Failure(CodeUnavailable, MsgDBUnreachable)
	}
	return Success(map[string]any{"status": "ok", "db_connected": found})
}

// withRetry runs op up to the configured number of attempts, backing off
// between transient failures.
func (e *Executor) withRetry(ctx context.Context, op func(context.Context) error) error {
	attempts := e.config.Attempts()

	var err error
	for attempt := uint32(0); attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(calculateBackoff(attempt)):
			}
			e.logger.Warn("retrying store call", "attempt", attempt+1, "error", err)
		}

		err = op(ctx)
		if err == nil || !shouldRetry(err) {
			return err
		}
	}
	return err
}

// calculateBackoff returns the backoff duration for the given attempt.
func calculateBackoff(attempt uint32) time.Duration {
	const (
		baseDelay = 100 * time.Millisecond
		maxDelay  = 5 * time.Second
	)

	delay := baseDelay * time.Duration(1<<attempt)
	if delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// shouldRetry reports whether a store error looks transient.
func shouldRetry(err error) bool {
	if errors.Is(err, datastore.ErrNotFound) || errors.Is(err, datastore.ErrUnsupportedQuery) ||
		errors.Is(err, context.Canceled) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errLower := strings.ToLower(err.Error())
	for _, s := range []string{"timeout", "connection", "network", "server selection"} {
		if strings.Contains(errLower, s) {
			return true
		}
	}
	return false
}
