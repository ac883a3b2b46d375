// Package storage provides run history storage.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory and SQLite without API changes
// - Each storage implementation encapsulates its own data structures

package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/richinex/flightops/model"
)

// ErrRunNotFound is returned when no run has the requested id.
var ErrRunNotFound = errors.New("run not found")

// RunRecord is one answered (or failed) question.
type RunRecord struct {
	ID        string          `json:"id"`
	Question  string          `json:"question"`
	CreatedAt time.Time       `json:"created_at"`
	Provider  string          `json:"provider,omitempty"`
	Model     string          `json:"model,omitempty"`
	Result    model.RunResult `json:"result"`
	Error     string          `json:"error,omitempty"`
}

// RunStore defines the interface for storing run history.
type RunStore interface {
	// Save stores a run, assigning ID and CreatedAt when unset.
	Save(ctx context.Context, run *RunRecord) error

	// Load returns the run with id, or ErrRunNotFound.
	Load(ctx context.Context, id string) (RunRecord, error)

	// List returns up to limit runs, newest first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]RunRecord, error)

	// Delete removes a run. Deleting a missing run is not an error.
	Delete(ctx context.Context, id string) error

	// Close releases resources.
	Close() error
}

func prepare(run *RunRecord) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
}
