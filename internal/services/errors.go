package services

import "errors"

var (
	ErrAccessDenied         = errors.New("access denied")
	ErrInvalidTransition    = errors.New("invalid status transition")
	ErrInvalidState         = errors.New("order is in invalid state for this operation")
	ErrAlreadyApplied       = errors.New("editor already applied to this order")
	ErrTooManyActiveJobs    = errors.New("editor has too many active jobs")
	ErrRevisionLimitReached = errors.New("revision limit reached")
	ErrAlreadyProcessed     = errors.New("withdrawal request already processed")
	ErrAlreadyReleased      = errors.New("payment already released")
	ErrInvalidSignature     = errors.New("invalid gateway signature")
	ErrValidation           = errors.New("validation failed")
	ErrNotAnEditor          = errors.New("target user is not an editor")
)
