// Package report models conformance run results and their storage.
package report

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPass Status = "pass"
	StatusFail Status = "fail"
	// StatusError marks a case that aborted on a fatal assertion.
	StatusError Status = "error"
)

// Run identifies one execution of the suite against one device.
type Run struct {
	ID         string
	StartedAt  time.Time
	Library    string
	TokenLabel string
}

func NewRun(library, tokenLabel string) Run {
	return Run{
		ID:         uuid.New().String(),
		StartedAt:  time.Now().UTC(),
		Library:    library,
		TokenLabel: tokenLabel,
	}
}

// Result is the outcome of a single case within a run.
type Result struct {
	Case    string
	Status  Status
	Detail  string
	Elapsed time.Duration
}

// Store persists runs and their results.
type Store interface {

	// Executes the logic necessary to initialize the storage.
	InitStorage() error

	// Saves a run into the storage, or returns an error.
	SaveRun(Run) error

	// Saves one case result belonging to a run.
	SaveResult(runID string, result Result) error

	// Retrieves the results of a run in insertion order.
	Results(runID string) ([]Result, error)

	// Finalizes the use of the storage. The storage is not usable
	// if this method is called.
	CloseStorage() error
}

// NopStore discards everything; used when no report database is
// configured.
type NopStore struct{}

func (NopStore) InitStorage() error               { return nil }
func (NopStore) SaveRun(Run) error                { return nil }
func (NopStore) SaveResult(string, Result) error  { return nil }
func (NopStore) Results(string) ([]Result, error) { return nil, nil }
func (NopStore) CloseStorage() error              { return nil }
