// Package datastore provides the flight-leg document store.
//
// Information Hiding:
// - Backend connection handling (MongoDB, SQLite, in-memory)
// - Query encoding for each backend
// - Storage-internal fields removed before documents leave the package

package datastore

import (
	"context"
	"errors"
)

// ErrNotFound is returned by FindOne when no document matches.
var ErrNotFound = errors.New("no matching document")

// ErrUnsupportedQuery is returned by backends that only evaluate equality
// predicates when a query uses an operator.
var ErrUnsupportedQuery = errors.New("unsupported query")

// Query is an equality predicate keyed by dotted document paths. The
// MongoDB backend additionally accepts operator documents.
type Query map[string]any

// Document is a decoded flight-leg document.
type Document map[string]any

// FindOptions controls multi-document fetches.
type FindOptions struct {
	// SortField is a dotted path; empty keeps natural order.
	SortField string
	// Descending reverses the sort.
	Descending bool
	// Limit caps the number of documents; zero means no cap.
	Limit int
	// Projection restricts the returned fields; empty returns whole documents.
	Projection []string
}

// Store is the read contract used by the tool executor. A single Store is
// created at startup and shared by all requests.
type Store interface {
	// FindOne returns the first document matching query, restricted to
	// projection. It returns ErrNotFound when nothing matches.
	FindOne(ctx context.Context, query Query, projection []string) (Document, error)

	// Find returns the documents matching query.
	Find(ctx context.Context, query Query, opts FindOptions) ([]Document, error)

	// Probe performs a minimal existence check. It reports whether at
	// least one document exists; an error means the store is unreachable.
	Probe(ctx context.Context) (bool, error)

	// Close releases the underlying connection.
	Close(ctx context.Context) error
}

// Seeder is implemented by stores that accept bulk inserts.
type Seeder interface {
	Insert(ctx context.Context, docs ...Document) (int, error)
}

// Pinger is implemented by stores that can check server connectivity
// without reading documents.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QueryParser is implemented by stores with their own filter syntax.
// Stores without it use ParseQuery.
type QueryParser interface {
	ParseQuery(s string) (Query, error)
}

// Internal field names removed from every returned document.
const (
	fieldID    = "_id"
	fieldClass = "_class"
)

// StripInternal removes storage identity and type-tag fields in place and
// returns doc.
func StripInternal(doc Document) Document {
	delete(doc, fieldID)
	delete(doc, fieldClass)
	return doc
}
