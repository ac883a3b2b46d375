// Command execution for CLI commands.
//
// Information Hiding:
// - Store, executor, LLM and pipeline construction hidden
// - Local versus remote tool execution hidden behind one Invoker
// - Output formatting hidden

package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/richinex/flightops/config"
	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/mcp"
	"github.com/richinex/flightops/orchestration"
	"github.com/richinex/flightops/storage"
	"github.com/richinex/flightops/tools"
)

// App carries the process-wide settings and collaborators. Zero-valued
// collaborators are built from Settings on first use.
type App struct {
	Settings config.Settings
	Logger   *slog.Logger
	Out      io.Writer
	Version  string

	// LLM overrides the provider built from Settings.
	LLM orchestration.Chatter
	// Store overrides the backend opened from Settings.
	Store datastore.Store
	// History overrides the run store opened from Settings.
	History storage.RunStore
}

func (a *App) out() io.Writer {
	if a.Out == nil {
		return os.Stdout
	}
	return a.Out
}

func (a *App) logger() *slog.Logger {
	if a.Logger == nil {
		return slog.Default()
	}
	return a.Logger
}

// RemoteOptions selects a remote tool server. Command spawns a stdio
// server; otherwise URL (or the configured server URL) is used.
type RemoteOptions struct {
	Enabled bool
	URL     string
	Command string
}

// openStore returns the configured store and a cleanup func.
func (a *App) openStore() (datastore.Store, func(), error) {
	if a.Store != nil {
		return a.Store, func() {}, nil
	}

	s := a.Settings.Store
	store, err := datastore.Open(datastore.Options{
		Backend: s.Backend,
		Mongo: datastore.MongoConfig{
			URI:            s.MongoURI,
			Database:       s.MongoDB,
			Collection:     s.MongoCollection,
			ConnectTimeout: time.Duration(s.ConnectTimeoutSec) * time.Second,
		},
		SQLitePath: s.SQLitePath,
	}, a.logger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Close(ctx); err != nil {
			a.logger().Warn("failed to close store", "error", err)
		}
	}
	return store, cleanup, nil
}

func (a *App) toolConfig() tools.ToolConfig {
	t := a.Settings.Tools
	return tools.ToolConfig{
		MaxAttempts:   t.Retries,
		HealthTimeout: time.Duration(t.HealthTimeoutSec) * time.Second,
		DefaultLimit:  t.DefaultLimit,
		MaxLimit:      t.MaxLimit,
	}
}

// newExecutor opens the store and wraps it in an executor.
func (a *App) newExecutor() (*tools.Executor, func(), error) {
	store, cleanup, err := a.openStore()
	if err != nil {
		return nil, nil, err
	}
	return a.executorFor(store), cleanup, nil
}

func (a *App) executorFor(store datastore.Store) *tools.Executor {
	return tools.NewExecutor(tools.DefaultCatalog(), store, a.toolConfig(), a.logger())
}

// connectRemote connects to a remote tool server.
func (a *App) connectRemote(ctx context.Context, opts RemoteOptions) (*mcp.Client, error) {
	if opts.Command != "" {
		fields := strings.Fields(opts.Command)
		client, err := mcp.NewStdioClient(ctx, fields[0], fields[1:]...)
		if err != nil {
			return nil, fmt.Errorf("failed to start tool server %q: %w", opts.Command, err)
		}
		return client, nil
	}

	url := opts.URL
	if url == "" {
		url = a.Settings.Client.ServerURL
	}
	client, err := mcp.NewHTTPClient(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to tool server %s: %w", url, err)
	}
	return client, nil
}

// invoker returns a local executor or a remote client and a cleanup func.
func (a *App) invoker(ctx context.Context, remote RemoteOptions) (orchestration.Invoker, func(), error) {
	if !remote.Enabled && remote.Command == "" {
		exec, cleanup, err := a.newExecutor()
		if err != nil {
			return nil, nil, err
		}
		return exec, cleanup, nil
	}

	client, err := a.connectRemote(ctx, remote)
	if err != nil {
		return nil, nil, err
	}
	return client, func() {
		if err := client.Close(); err != nil {
			a.logger().Warn("failed to close tool client", "error", err)
		}
	}, nil
}

// chatter returns the configured LLM client.
func (a *App) chatter() (orchestration.Chatter, error) {
	if a.LLM != nil {
		return a.LLM, nil
	}

	s := a.Settings.LLM
	providerType, err := llm.ParseProviderType(s.Provider)
	if err != nil {
		return nil, err
	}
	apiKey, err := a.Settings.RequireAPIKey()
	if err != nil {
		return nil, err
	}

	provider, err := providerType.
		Model(s.Model).
		MaxTokens(s.MaxTokens).
		APIKey(apiKey)
	if err != nil {
		return nil, err
	}
	client := llm.NewClient(provider)
	a.logger().Debug("LLM client ready", "provider", client.Describe())
	return client, nil
}

func (a *App) newPipeline(chat orchestration.Chatter, inv orchestration.Invoker) *orchestration.Pipeline {
	s := a.Settings.LLM
	planner := orchestration.NewPlanner(chat, tools.DefaultCatalog(), orchestration.PlannerConfig{
		Temperature: s.PlanTemperature,
		MaxTokens:   s.MaxTokens,
	}, a.logger())
	summarizer := orchestration.NewSummarizer(chat, orchestration.SummarizerConfig{
		Temperature: s.SummaryTemperature,
		MaxTokens:   s.MaxTokens,
	}, a.logger())
	return orchestration.NewPipeline(planner, inv, summarizer, a.logger())
}

// openHistory returns the run store and a cleanup func.
func (a *App) openHistory() (storage.RunStore, func(), error) {
	if a.History != nil {
		return a.History, func() {}, nil
	}
	store, err := storage.OpenSqlite(a.Settings.History.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open history: %w", err)
	}
	return store, func() { store.Close() }, nil
}
