package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by workflow operations. Validation failures never
// mutate state.
var (
	// ErrInvalidCredentials is returned when no user matches the supplied
	// username and password exactly.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession is returned when an operation requires a signed-in user.
	ErrNoSession = errors.New("sign in required")
	// ErrEmptyLines is returned when a request submission has no valid lines.
	ErrEmptyLines = errors.New("request needs at least one valid line")
	// ErrForbidden is returned when the session role does not permit the
	// operation.
	ErrForbidden = errors.New("forbidden")
)

// NotFoundError is returned when an operation references a missing record.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// TransitionError is returned when a request status transition is not part of
// the forward-only workflow.
type TransitionError struct {
	ID   string
	From RequestStatus
	To   RequestStatus
}

func (e TransitionError) Error() string {
	return fmt.Sprintf("purchase request %s cannot move from %s to %s", e.ID, e.From, e.To)
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
