// Package main provides the flightops CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/richinex/flightops/cli"
	"github.com/richinex/flightops/config"
	"github.com/richinex/flightops/internal/logging"
)

var version = "dev"

var (
	// Global flags
	configPath string
	provider   string
	backend    string
	logLevel   string
	verbose    bool
)

func main() {
	// Load .env file if present (ignore "file not found" errors)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "Warning: failed to load .env file: %v\n", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "flightops",
		Short: "Answer flight operations questions with LLM-planned tool calls",
		Long: `Ask natural-language questions about flight legs.

An LLM turns the question into a plan of tool calls, the tools read
flight documents from MongoDB (or SQLite / memory), and a second LLM
call summarizes the results.

The tools can also be served over MCP (HTTP or stdio) and used remotely.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to flightops.toml (default: discovered from the working directory)")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "LLM provider (groq, openai, anthropic, deepseek, gemini)")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "Document store backend (mongo, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show verbose output")

	rootCmd.AddCommand(askCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(toolsCmd())
	rootCmd.AddCommand(callCmd())
	rootCmd.AddCommand(healthCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(historyCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// newApp loads settings, applies global flags and configures logging.
func newApp() (*cli.App, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		settings.LLM.Provider = provider
		settings.LLM.Model = ""
		if err := settings.ResolveLLM(); err != nil {
			return nil, err
		}
	}
	if backend != "" {
		settings.Store.Backend = backend
	}
	if logLevel != "" {
		settings.Log.Level = logLevel
	}
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.Setup(settings.Log)
	if err != nil {
		return nil, err
	}
	return &cli.App{Settings: settings, Logger: logger, Version: version}, nil
}

func addRemoteFlags(cmd *cobra.Command, opts *cli.RemoteOptions) {
	cmd.Flags().BoolVarP(&opts.Enabled, "remote", "r", false, "Run tools on a remote MCP server")
	cmd.Flags().StringVar(&opts.URL, "server-url", "", "MCP server URL (default: MCP_SERVER_URL)")
	cmd.Flags().StringVar(&opts.Command, "server-cmd", "", "Spawn an MCP server over stdio, e.g. \"flightops serve --transport stdio\"")
}

func askCmd() *cobra.Command {
	var opts cli.AskOptions

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a flight operations question",
		Long: `Plan tool calls for the question, run them, and print a summary.

Examples:
  flightops ask "What is the status of 6E 215 on 23 June 2024?"
  flightops ask --json "Fuel summary for flight 215"
  flightops ask --remote --save "Why was 6E 215 delayed?"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			opts.Verbose = verbose
			return app.Ask(cmd.Context(), args[0], opts)
		},
	}

	addRemoteFlags(cmd, &opts.Remote)
	cmd.Flags().BoolVar(&opts.Save, "save", false, "Save the run to history")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "Print the full result as JSON")

	return cmd
}

func serveCmd() *cobra.Command {
	var transport, host, docs string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the flight tools over MCP",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			if transport != "" {
				app.Settings.Server.Transport = transport
			}
			if host != "" {
				app.Settings.Server.Host = host
			}
			if port != 0 {
				app.Settings.Server.Port = port
			}
			if err := app.Settings.Validate(); err != nil {
				return err
			}
			return app.Serve(cmd.Context(), docs)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "Transport (http, stdio)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP listen host")
	cmd.Flags().IntVar(&port, "port", 0, "HTTP listen port")
	cmd.Flags().StringVar(&docs, "docs", "", "JSON array of documents to load before serving")

	return cmd
}

func toolsCmd() *cobra.Command {
	var remote cli.RemoteOptions
	var verboseTools bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "List available tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.ListTools(cmd.Context(), remote, verboseTools)
		},
	}

	addRemoteFlags(cmd, &remote)
	cmd.Flags().BoolVarP(&verboseTools, "params", "V", false, "Show tool parameters")

	return cmd
}

func callCmd() *cobra.Command {
	var remote cli.RemoteOptions

	cmd := &cobra.Command{
		Use:   "call [tool] [arguments-json]",
		Short: "Run one tool directly",
		Long: `Run one tool without the LLM and print its result envelope.

Example:
  flightops call get_delay_summary '{"carrier":"6E","flight_number":"215","date_of_origin":"2024-06-23"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			argsJSON := ""
			if len(args) == 2 {
				argsJSON = args[1]
			}
			return app.CallTool(cmd.Context(), args[0], argsJSON, remote)
		},
	}

	addRemoteFlags(cmd, &remote)
	return cmd
}

func healthCmd() *cobra.Command {
	var remote cli.RemoteOptions

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the document store (or a remote tool server)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.Health(cmd.Context(), remote)
		},
	}

	addRemoteFlags(cmd, &remote)
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed [documents.json]",
		Short: "Load a JSON array of flight documents into the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.Seed(cmd.Context(), args[0])
		},
	}
}

func historyCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List saved runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.HistoryList(cmd.Context(), limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "show [id]",
		Short: "Print a saved run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.HistoryShow(cmd.Context(), args[0])
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete [id]",
		Short: "Delete a saved run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			return app.HistoryDelete(cmd.Context(), args[0])
		},
	})

	return cmd
}
