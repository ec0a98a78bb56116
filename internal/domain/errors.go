package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDuplicateName       = errors.New("project name already exists")
	ErrProjectClosed       = errors.New("closed project cannot be edited")
	ErrProjectInvested     = errors.New("project already received funds")
	ErrAmountBelowInvested = errors.New("full amount is below invested amount")
	ErrAmountDecrease      = errors.New("full amount cannot decrease")
	ErrInvariantViolation  = errors.New("invariant violation")
)
