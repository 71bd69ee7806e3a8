package domain

import "errors"

// Domain errors
var (
	ErrValidation        = errors.New("invalid election")
	ErrUnknownCandidate  = errors.New("candidate not found")
	ErrAlreadyClosed     = errors.New("election already closed")
	ErrDuplicateVote     = errors.New("vote already submitted")
	ErrMissingVoterToken = errors.New("voter token required")
	ErrNotFound          = errors.New("election not found")
	ErrDuplicateID       = errors.New("election id already exists")
)
