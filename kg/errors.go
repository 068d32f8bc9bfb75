package kg

import "errors"

// Error taxonomy for the ingestion and retrieval core. Provider outages are
// deliberately absent: they degrade to local fallbacks and surface only as
// flags on the result, never as errors.
var (
	// ErrConfiguration marks invalid wiring such as overlap >= chunk size or
	// missing storage settings. Fatal, never retried.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks invalid caller input (empty content, top_k <= 0).
	ErrValidation = errors.New("validation error")

	// ErrNotFound marks a lookup of a document id that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a durable-store failure. The current operation aborts
	// with no partial commit.
	ErrStorage = errors.New("storage error")
)

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsValidation reports whether err wraps ErrValidation.
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
