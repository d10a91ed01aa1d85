package mix

import "errors"

// Error kinds shared by the codec, registry and transport layers. Callers
// test for them with errors.Is.
var (
	// ErrMalformedInput indicates a structural violation while decoding.
	ErrMalformedInput = errors.New("malformed input")

	// ErrInvalidCriteria indicates a mix exceeding the criteria limit or
	// carrying an ill-formed field selector, mix type or route flag.
	ErrInvalidCriteria = errors.New("invalid criteria")

	// ErrCapacityExceeded indicates the registry already holds its maximum.
	ErrCapacityExceeded = errors.New("mix capacity exceeded")

	// ErrDuplicateRegistration indicates the registration id is already used.
	ErrDuplicateRegistration = errors.New("duplicate registration")

	// ErrNotFound indicates no mix has the requested registration id.
	ErrNotFound = errors.New("mix not found")

	// ErrPermissionDenied indicates the caller token does not own the mix.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrAmbiguousMatch is advisory: several mixes matched one stream and the
	// first registered one was chosen.
	ErrAmbiguousMatch = errors.New("ambiguous mix match")
)
