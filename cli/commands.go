package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/richinex/flightops/config"
	"github.com/richinex/flightops/datastore"
	"github.com/richinex/flightops/llm"
	"github.com/richinex/flightops/mcp"
	"github.com/richinex/flightops/model"
	"github.com/richinex/flightops/orchestration"
	"github.com/richinex/flightops/storage"
	"github.com/richinex/flightops/tools"
)

// AskOptions controls the ask command.
type AskOptions struct {
	Remote  RemoteOptions
	Save    bool
	JSON    bool
	Verbose bool
}

// Ask answers one question and prints the summary, or the full result
// with JSON set.
func (a *App) Ask(ctx context.Context, question string, opts AskOptions) error {
	chat, err := a.chatter()
	if err != nil {
		return err
	}

	inv, cleanup, err := a.invoker(ctx, opts.Remote)
	if err != nil {
		return err
	}
	defer cleanup()

	pipeline := a.newPipeline(chat, inv)
	if opts.Verbose {
		pipeline.WithStageHook(func(s orchestration.Stage) {
			fmt.Fprintf(os.Stderr, "[%s]\n", s)
		})
	}

	run, runErr := pipeline.RunQuery(ctx, question)

	if opts.Save {
		if err := a.saveRun(ctx, chat, question, run, runErr); err != nil {
			a.logger().Warn("failed to save run", "error", err)
		}
	}

	if runErr != nil {
		msg := runErr.Error()
		var pe *orchestration.PipelineError
		if errors.As(runErr, &pe) {
			msg = pe.Message
		}
		if opts.JSON {
			_ = a.printJSON(model.ErrorResponse{Error: msg})
		}
		return errors.New(msg)
	}

	if opts.JSON {
		return a.printJSON(run)
	}
	if opts.Verbose {
		printResults(a, run)
	}
	fmt.Fprintln(a.out(), run.Summary)
	return nil
}

func (a *App) saveRun(ctx context.Context, chat orchestration.Chatter, question string, run model.RunResult, runErr error) error {
	history, cleanup, err := a.openHistory()
	if err != nil {
		return err
	}
	defer cleanup()

	record := &storage.RunRecord{
		Question: question,
		Provider: a.Settings.LLM.Provider,
		Model:    a.Settings.LLM.Model,
		Result:   run,
	}
	if client, ok := chat.(*llm.Client); ok && client.Provider() != nil {
		record.Provider = client.Provider().Name()
		record.Model = client.Provider().Model()
	}
	if runErr != nil {
		record.Error = runErr.Error()
		var pe *orchestration.PipelineError
		if errors.As(runErr, &pe) {
			record.Error = pe.Message
		}
	}
	if err := history.Save(ctx, record); err != nil {
		return err
	}
	a.logger().Info("run saved", "id", record.ID)
	return nil
}

func printResults(a *App, run model.RunResult) {
	w := a.out()
	fmt.Fprintln(w, "--- Plan ---")
	for i, step := range run.Plan {
		args, _ := json.Marshal(step.Arguments)
		fmt.Fprintf(w, "[%d] %s %s\n", i+1, step.Tool, args)
	}
	fmt.Fprintln(w, "--- Results ---")
	for i, r := range run.Results {
		status := "ok"
		if !r.Result.OK {
			status = fmt.Sprintf("error %d: %s", r.Result.Code, r.Result.Message)
		}
		dur := uint64(0)
		if i < len(run.Calls) {
			dur = run.Calls[i].DurationMs
		}
		fmt.Fprintf(w, "%s: %s (%dms)\n", r.Tool, status, dur)
	}
	fmt.Fprintln(w)
}

// Serve runs the tool server on the configured transport until ctx ends.
// docsPath optionally preloads documents into the store.
func (a *App) Serve(ctx context.Context, docsPath string) error {
	store, cleanup, err := a.openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	if docsPath != "" {
		n, err := seedStore(ctx, store, docsPath)
		if err != nil {
			return err
		}
		a.logger().Info("documents loaded", "count", n, "path", docsPath)
	}

	server := mcp.NewServer(a.executorFor(store), a.Version, a.logger())
	switch a.Settings.Server.Transport {
	case config.TransportStdio:
		a.logger().Info("MCP server on stdio")
		return server.ServeStdio(ctx, os.Stdin, os.Stdout)
	default:
		return server.ListenAndServe(ctx, a.Settings.Server.Addr())
	}
}

// ListTools prints the local catalog, or the remote server's tools.
func (a *App) ListTools(ctx context.Context, remote RemoteOptions, verbose bool) error {
	w := a.out()
	if remote.Enabled || remote.Command != "" {
		client, err := a.connectRemote(ctx, remote)
		if err != nil {
			return err
		}
		defer client.Close()

		infos, err := client.ListTools(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Tools on %s %s:\n\n", client.Server().Name, client.Server().Version)
		for _, info := range infos {
			printTool(a, info.Name, info.Description, info.Parameters(), verbose)
		}
		return nil
	}

	fmt.Fprintln(w, "Available tools:")
	fmt.Fprintln(w)
	for _, spec := range tools.DefaultCatalog().Specs() {
		printTool(a, spec.Name, spec.Description, spec.Parameters, verbose)
	}
	return nil
}

func printTool(a *App, name, description string, params []tools.ToolParameter, verbose bool) {
	w := a.out()
	fmt.Fprintf(w, "  %s\n", name)
	fmt.Fprintf(w, "    %s\n", description)

	if verbose && len(params) > 0 {
		fmt.Fprintln(w, "    Parameters:")
		for _, param := range params {
			req := ""
			if param.Required {
				req = "*"
			}
			fmt.Fprintf(w, "      %s%s: %s - %s\n", param.Name, req, param.ParamType, param.Description)
		}
	}
	fmt.Fprintln(w)
}

// CallTool runs one tool with JSON arguments and prints the result
// envelope. A failed result is printed and returned as an error.
func (a *App) CallTool(ctx context.Context, name, argsJSON string, remote RemoteOptions) error {
	args := map[string]any{}
	if strings.TrimSpace(argsJSON) != "" {
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return fmt.Errorf("arguments must be a JSON object: %w", err)
		}
	}

	inv, cleanup, err := a.invoker(ctx, remote)
	if err != nil {
		return err
	}
	defer cleanup()

	result := inv.Invoke(ctx, name, args)
	if err := a.printJSON(result); err != nil {
		return err
	}
	if !result.OK {
		return fmt.Errorf("%s failed with code %d", name, result.Code)
	}
	return nil
}

// Health runs the health_check tool.
func (a *App) Health(ctx context.Context, remote RemoteOptions) error {
	return a.CallTool(ctx, tools.NameHealthCheck, "", remote)
}

// Seed loads a JSON array of documents from path into the configured
// store.
func (a *App) Seed(ctx context.Context, path string) error {
	store, cleanup, err := a.openStore()
	if err != nil {
		return err
	}
	defer cleanup()

	if a.Settings.Store.Backend == config.BackendMemory && a.Store == nil {
		a.logger().Warn("seeding the memory backend only lasts for this process")
	}

	n, err := seedStore(ctx, store, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out(), "Inserted %d documents\n", n)
	return nil
}

func seedStore(ctx context.Context, store datastore.Store, path string) (int, error) {
	seeder, ok := store.(datastore.Seeder)
	if !ok {
		return 0, fmt.Errorf("store does not support inserts")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read documents: %w", err)
	}
	docs, err := datastore.DecodeDocuments(data)
	if err != nil {
		return 0, fmt.Errorf("failed to decode documents: %w", err)
	}
	return seeder.Insert(ctx, docs...)
}

// HistoryList prints saved runs, newest first.
func (a *App) HistoryList(ctx context.Context, limit int) error {
	history, cleanup, err := a.openHistory()
	if err != nil {
		return err
	}
	defer cleanup()

	runs, err := history.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(a.out(), "No saved runs.")
		return nil
	}
	for _, run := range runs {
		status := "ok"
		if run.Error != "" {
			status = "failed"
		}
		fmt.Fprintf(a.out(), "%s  %s  %-6s  %s\n",
			run.ID, run.CreatedAt.Local().Format("2006-01-02 15:04:05"), status, truncateString(run.Question, 60))
	}
	return nil
}

// HistoryShow prints one saved run as JSON.
func (a *App) HistoryShow(ctx context.Context, id string) error {
	history, cleanup, err := a.openHistory()
	if err != nil {
		return err
	}
	defer cleanup()

	run, err := history.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("run %s: %w", id, err)
	}
	return a.printJSON(run)
}

// HistoryDelete removes one saved run.
func (a *App) HistoryDelete(ctx context.Context, id string) error {
	history, cleanup, err := a.openHistory()
	if err != nil {
		return err
	}
	defer cleanup()

	return history.Delete(ctx, id)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}
