// Package config provides application settings loaded from an optional
// flightops.toml and environment variables.
//
// Settings are created via Load() which handles:
// - Config file discovery up to the project root
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific model and key lookup

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/richinex/flightops/llm"
)

// FileName is the config file looked up by Load.
const FileName = "flightops.toml"

// Store backends.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// MCP server transports.
const (
	TransportHTTP  = "http"
	TransportStdio = "stdio"
)

// Settings holds all application configuration.
type Settings struct {
	LLM     LLMConfig     `toml:"llm"`
	Store   StoreConfig   `toml:"store"`
	Server  ServerConfig  `toml:"server"`
	Client  ClientConfig  `toml:"client"`
	History HistoryConfig `toml:"history"`
	Log     LogConfig     `toml:"log"`
	Tools   ToolsConfig   `toml:"tools"`

	// Path of the config file that was read, if any.
	Path string `toml:"-"`
}

// LLMConfig holds LLM provider configuration. APIKey only comes from the
// environment.
type LLMConfig struct {
	Provider           string  `toml:"provider"`
	Model              string  `toml:"model"`
	APIKey             string  `toml:"-"`
	MaxTokens          uint32  `toml:"max_tokens"`
	PlanTemperature    float32 `toml:"plan_temperature"`
	SummaryTemperature float32 `toml:"summary_temperature"`
}

// StoreConfig selects and addresses the document store.
type StoreConfig struct {
	Backend           string `toml:"backend"`
	MongoURI          string `toml:"mongo_uri"`
	MongoDB           string `toml:"mongo_db"`
	MongoCollection   string `toml:"mongo_collection"`
	SQLitePath        string `toml:"sqlite_path"`
	ConnectTimeoutSec int    `toml:"connect_timeout_sec"`
}

// ServerConfig configures the MCP tool server.
type ServerConfig struct {
	Host      string `toml:"host"`
	Port      int    `toml:"port"`
	Transport string `toml:"transport"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ClientConfig configures the remote tool client.
type ClientConfig struct {
	ServerURL string `toml:"server_url"`
}

// HistoryConfig configures run history storage.
type HistoryConfig struct {
	Path string `toml:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	Retries          uint32 `toml:"retries"`
	DefaultLimit     int    `toml:"default_limit"`
	MaxLimit         int    `toml:"max_limit"`
	HealthTimeoutSec int    `toml:"health_timeout_sec"`
}

// Defaults returns the settings used when neither file nor environment
// says otherwise.
func Defaults() Settings {
	return Settings{
		LLM: LLMConfig{
			Provider:           llm.ProviderGroq.String(),
			MaxTokens:          2048,
			PlanTemperature:    0.1,
			SummaryTemperature: 0.3,
		},
		Store: StoreConfig{
			Backend:           BackendMongo,
			MongoURI:          "mongodb://localhost:27017",
			MongoDB:           "flightops",
			MongoCollection:   "flights",
			SQLitePath:        "flightops.db",
			ConnectTimeoutSec: 10,
		},
		Server: ServerConfig{
			Host:      "127.0.0.1",
			Port:      8000,
			Transport: TransportHTTP,
		},
		Client: ClientConfig{
			ServerURL: "http://127.0.0.1:8000/mcp",
		},
		History: HistoryConfig{
			Path: "flightops-history.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Tools: ToolsConfig{
			Retries:          1,
			DefaultLimit:     10,
			MaxLimit:         50,
			HealthTimeoutSec: 5,
		},
	}
}

// Load builds settings from defaults, the config file at path (or the one
// discovered from the working directory when path is empty), and the
// environment, in increasing precedence.
func Load(path string) (Settings, error) {
	s := Defaults()

	if path == "" {
		dir, err := os.Getwd()
		if err != nil {
			return Settings{}, err
		}
		path = FindConfigFile(dir)
	}
	if path != "" {
		if err := s.readFile(path); err != nil {
			return Settings{}, err
		}
	}

	if err := s.applyEnv(); err != nil {
		return Settings{}, err
	}
	if err := s.ResolveLLM(); err != nil {
		return Settings{}, err
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// FindConfigFile walks up from dir looking for flightops.toml, stopping at
// the project root. It returns "" when none is found.
func FindConfigFile(dir string) string {
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		if isProjectRoot(dir) {
			return ""
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// isProjectRoot checks if the directory is a project root based on common markers
func isProjectRoot(dir string) bool {
	for _, marker := range []string{".git", "go.mod"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

func (s *Settings) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := toml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	s.Path = path
	return nil
}

func (s *Settings) applyEnv() error {
	setString(&s.LLM.Provider, "LLM_PROVIDER")
	setString(&s.Store.Backend, "STORE_BACKEND")
	setString(&s.Store.MongoURI, "MONGO_URI")
	setString(&s.Store.MongoDB, "MONGO_DB")
	setString(&s.Store.MongoCollection, "MONGO_COLLECTION")
	setString(&s.Store.SQLitePath, "SQLITE_PATH")
	setString(&s.Server.Host, "MCP_HOST")
	setString(&s.Server.Transport, "MCP_TRANSPORT")
	setString(&s.Client.ServerURL, "MCP_SERVER_URL")
	setString(&s.History.Path, "HISTORY_DB")
	setString(&s.Log.Level, "LOG_LEVEL")
	setString(&s.Log.Format, "LOG_FORMAT")

	var err error
	if s.LLM.MaxTokens, err = getEnvUint32("LLM_MAX_TOKENS", s.LLM.MaxTokens); err != nil {
		return err
	}
	if s.LLM.PlanTemperature, err = getEnvFloat32("PLAN_TEMPERATURE", s.LLM.PlanTemperature); err != nil {
		return err
	}
	if s.LLM.SummaryTemperature, err = getEnvFloat32("SUMMARY_TEMPERATURE", s.LLM.SummaryTemperature); err != nil {
		return err
	}
	if s.Server.Port, err = getEnvInt("MCP_PORT", s.Server.Port); err != nil {
		return err
	}
	if s.Tools.Retries, err = getEnvUint32("TOOL_RETRIES", s.Tools.Retries); err != nil {
		return err
	}
	return nil
}

// ResolveLLM normalizes the provider name and fills model and key from
// the provider-specific environment variables.
func (s *Settings) ResolveLLM() error {
	pt, err := llm.ParseProviderType(s.LLM.Provider)
	if err != nil {
		return err
	}
	s.LLM.Provider = pt.String()

	if model := os.Getenv(pt.ModelEnvVar()); model != "" {
		s.LLM.Model = model
	}
	if s.LLM.Model == "" {
		s.LLM.Model = pt.DefaultModel()
	}
	s.LLM.APIKey = os.Getenv(pt.EnvVar())
	return nil
}

// Validate checks value ranges and enumerations.
func (s Settings) Validate() error {
	switch s.Store.Backend {
	case BackendMongo, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("unknown store backend: %q", s.Store.Backend)
	}
	switch s.Server.Transport {
	case TransportHTTP, TransportStdio:
	default:
		return fmt.Errorf("unknown MCP transport: %q", s.Server.Transport)
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		return fmt.Errorf("invalid MCP port: %d", s.Server.Port)
	}
	if s.Tools.MaxLimit < 0 || s.Tools.MaxLimit > 50 {
		return fmt.Errorf("tools max_limit must be between 0 and 50, got %d", s.Tools.MaxLimit)
	}
	if s.LLM.PlanTemperature < 0 || s.LLM.SummaryTemperature < 0 {
		return fmt.Errorf("temperatures must not be negative")
	}
	if _, err := ParseLevel(s.Log.Level); err != nil {
		return err
	}
	switch s.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format: %q", s.Log.Format)
	}
	return nil
}

// RequireAPIKey returns the API key, or an error naming the variable to set.
func (s Settings) RequireAPIKey() (string, error) {
	if s.LLM.APIKey != "" {
		return s.LLM.APIKey, nil
	}
	pt, err := llm.ParseProviderType(s.LLM.Provider)
	if err != nil {
		return "", err
	}
	return "", fmt.Errorf("%s environment variable not set", pt.EnvVar())
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", level)
	}
}

// Environment variable helpers with proper error handling

func setString(dst *string, key string) {
	if val := os.Getenv(key); val != "" {
		*dst = val
	}
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat32(key string, defaultVal float32) (float32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return float32(f), nil
}
