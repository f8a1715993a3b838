package prompt

import "errors"

var (
	// ErrPromptNotFound indicates the prompt doesn't exist.
	ErrPromptNotFound = errors.New("prompt not found")
	// ErrInvalidInput indicates invalid prompt input.
	ErrInvalidInput = errors.New("invalid prompt input")
	// ErrMalformedSnapshot indicates an import document could not be parsed.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
	// ErrConflict indicates concurrent writers kept winning until retries ran out.
	ErrConflict = errors.New("collection modified concurrently")
	// ErrStoreUnavailable indicates the store failed or timed out.
	ErrStoreUnavailable = errors.New("prompt store unavailable")
	// ErrCorruptCollection indicates the stored value is not a prompt collection.
	ErrCorruptCollection = errors.New("stored collection is corrupt")
)

// errNoChange aborts a mutation without writing.
var errNoChange = errors.New("no change")
