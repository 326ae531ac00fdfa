package services

import (
	"errors"
	"fmt"
)

// Errors surfaced by session mutations. Generation failures are not here:
// they are absorbed inside the store and replaced with fallback content.
var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrCounterpartNotFound = errors.New("counterpart not found")
	ErrAlreadyCompleted    = errors.New("session already completed")
	ErrNotCompleted        = errors.New("session not completed")
	ErrRoundLimit          = errors.New("round limit reached")
	ErrDuplicateVote       = errors.New("participant already voted")
	ErrNotOwner            = errors.New("session belongs to another participant")
)

// ValidationError reports malformed or out-of-range input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func Validationf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}
