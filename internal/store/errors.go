package store

import "errors"

var (
	ErrEntryNotFound = errors.New("store: ledger entry not found")
	ErrPactNotFound  = errors.New("store: pact not found")
	ErrASCNotFound   = errors.New("store: asc certificate not found")
)
