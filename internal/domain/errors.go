package domain

import "errors"

// Failure taxonomy surfaced by the core services. Handlers map these onto HTTP
// statuses with errors.Is; nothing here is retried internally.
var (
	ErrNotFound            = errors.New("booking not found")
	ErrInvalidState        = errors.New("operation not legal for current booking status")
	ErrUnauthorized        = errors.New("caller is not the entitled actor")
	ErrWindowClosed        = errors.New("acceptance window has closed")
	ErrAlreadyAssigned     = errors.New("job already assigned")
	ErrNotNotified         = errors.New("valeter was not notified about this job")
	ErrNoEligibleValeters  = errors.New("no eligible valeters for this booking")
	ErrNotAwaitingApproval = errors.New("booking not awaiting approval")
)
