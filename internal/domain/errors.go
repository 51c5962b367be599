package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotActive     = errors.New("negotiation not active")
	ErrAgentDisabled = errors.New("agent disabled")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")
	ErrStepBudget    = errors.New("reasoning step budget exceeded")
	ErrContextDone   = errors.New("context cancelled")
)
