package membrane

import "errors"

// Sentinel errors for the membrane's own validation stages, checked with
// errors.Is, so a caller can distinguish "which stage rejected this
// commit" without parsing messages. The ASC and pact stages return the
// asc and pact packages' own sentinel errors instead.
var (
	ErrMalformedCommit    = errors.New("membrane: malformed commit")
	ErrAtomHashMismatch   = errors.New("membrane: atom_hash does not match the submitted atom")
	ErrInvalidSignature   = errors.New("membrane: author signature does not verify")
	ErrSequenceMismatch   = errors.New("membrane: expected_sequence does not match the container's next sequence")
	ErrPreviousHashMismatch = errors.New("membrane: previous_hash does not match the container's current head")
	ErrPactRequired       = errors.New("membrane: this commit requires a valid pact proof")
)
