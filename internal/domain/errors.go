package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the pipeline failure taxonomy. Callers classify with
// errors.Is; messages attached by the failing component carry the detail.
var (
	// ErrSchema marks a structural dataset problem, such as a required
	// column missing from the input entirely. Fatal to a build run.
	ErrSchema = errors.New("dataset schema error")

	// ErrEmbedding marks an embedding model failure: unreachable service
	// or a vector of unexpected dimensionality.
	ErrEmbedding = errors.New("embedding error")

	// ErrIndexWrite marks a failure to persist the vector index.
	ErrIndexWrite = errors.New("index write error")

	// ErrIndexNotFound means no index exists at the configured location.
	// The remedy is to run the build step.
	ErrIndexNotFound = errors.New("vector index not found")

	// ErrGeneration marks a text-generation call failure (auth, rate
	// limit, network, timeout).
	ErrGeneration = errors.New("generation error")

	// ErrValidation marks a rejected input, such as an empty query.
	// Raised before any I/O is attempted.
	ErrValidation = errors.New("validation error")
)

// Pipeline stages used to tag errors propagated out of the recommender.
const (
	StageRetrieval  = "retrieval"
	StageGeneration = "generation"
)

// StageError tags an error with the pipeline stage it came from so the
// caller can render a useful message.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
