package pact

import "errors"

// Sentinel errors for pact validation failures, checked with errors.Is.
var (
	ErrUnknownPact          = errors.New("pact: unknown or out-of-scope pact")
	ErrPactExpired          = errors.New("pact: outside its validity window")
	ErrIntentClassMismatch  = errors.New("pact: intent class not authorized by this pact")
	ErrDuplicateSignature   = errors.New("pact: duplicate signer in proof")
	ErrUnauthorizedSigner   = errors.New("pact: signer is not an authorized party of this pact")
	ErrInvalidSignature     = errors.New("pact: signature verification failed")
	ErrInsufficientSignatures = errors.New("pact: fewer valid signatures than the pact threshold")
	ErrUnsupportedScheme    = errors.New("pact: unsupported signature scheme")
)
