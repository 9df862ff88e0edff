package violation

import "errors"

// Error kinds returned by the service. Callers match them with errors.Is;
// the wrapped message carries the detail shown to clients.
var (
	// ErrValidation means a required report field was empty or absent
	ErrValidation = errors.New("validation error")

	// ErrUnknownStatute means the statute has no registry entry
	ErrUnknownStatute = errors.New("unknown statute")

	// ErrNotFound means no violation exists for the requested id
	ErrNotFound = errors.New("violation not found")

	// ErrStore means the backing key/value collaborator failed. Its wrapped
	// detail must not be shown to clients.
	ErrStore = errors.New("storage unavailable")
)
