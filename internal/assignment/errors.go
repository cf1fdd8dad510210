package assignment

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("assignment not found")
	ErrInvalidCode = errors.New("invalid invitation code")

	// ErrInvalidState covers every operation the current status disallows.
	ErrInvalidState     = errors.New("invalid assignment state")
	ErrAlreadyCompleted = fmt.Errorf("%w: assignment already completed", ErrInvalidState)
	ErrExpired          = fmt.Errorf("%w: invitation expired", ErrInvalidState)
	ErrNotStarted       = fmt.Errorf("%w: exam not started", ErrInvalidState)

	// ErrConflict marks a conditional update that matched no row.
	ErrConflict = fmt.Errorf("%w: assignment changed concurrently", ErrInvalidState)

	ErrDeadlineNotFuture = errors.New("deadline must be in the future")
)

// StateError maps a non-pending assignment to the error callers report.
func StateError(a Assignment) error {
	switch a.Status() {
	case StatusCompleted:
		return ErrAlreadyCompleted
	case StatusExpired:
		return ErrExpired
	}
	return nil
}

// TransitionLost re-reads an assignment after a conditional update affected
// no rows and explains why. The result always matches ErrConflict.
func TransitionLost(ctx context.Context, s Store, id string) error {
	cur, err := s.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return errors.Join(ErrConflict, ErrNotFound)
		}
		return errors.Join(ErrConflict, err)
	}
	if se := StateError(cur); se != nil {
		return errors.Join(ErrConflict, se)
	}
	return ErrConflict
}
