package datastore

import (
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by Open.
const (
	BackendMongo  = "mongo"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Options selects and configures a backend.
type Options struct {
	Backend    string
	Mongo      MongoConfig
	SQLitePath string
}

// Open creates the Store named by opts.Backend. MongoDB connects lazily;
// SQLite opens its file immediately.
func Open(opts Options, logger *slog.Logger) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", BackendMongo:
		return NewMongo(opts.Mongo, logger), nil
	case BackendSQLite:
		if opts.SQLitePath == "" {
			return nil, fmt.Errorf("sqlite backend requires a path")
		}
		return OpenSQLite(opts.SQLitePath)
	case BackendMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.Backend)
	}
}
