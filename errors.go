package domwire

import "errors"

// Sentinel errors for invalid input shapes at public entry points.
// These are construction errors in the package's taxonomy: raised
// immediately, never swallowed, fatal to the single call that caused
// them.
var (
	ErrNotForm         = errors.New("domwire: node is not a form element")
	ErrInvalidPayload  = errors.New("domwire: payload must be url.Values, a string map, a form node, or nil")
	ErrInvalidChain    = errors.New("domwire: chain must be a JSON array of steps")
	ErrMissingDispatch = errors.New("domwire: step carries neither a method nor a function field")
	ErrInvalidMarker   = errors.New("domwire: origin marker rejected")
)

// IsConstructionError checks whether err reports an invalid input shape
// rather than a runtime failure.
func IsConstructionError(err error) bool {
	return errors.Is(err, ErrNotForm) ||
		errors.Is(err, ErrInvalidPayload) ||
		errors.Is(err, ErrInvalidChain)
}
