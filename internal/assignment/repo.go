package assignment

import (
	"context"
	"encoding/json"
	"time"
)

type ListOpts struct {
	ApplicationID string
	AssignedBy    string
	Status        Status
	Limit         int
	Offset        int
}

// Store persists assignments. Every state-changing method is a conditional
// update keyed on status=PENDING and reports whether it applied; a false
// result means another writer got there first.
type Store interface {
	Create(ctx context.Context, a Assignment) error
	Get(ctx context.Context, id string) (Assignment, error)
	GetByCode(ctx context.Context, code string) (Assignment, error)
	List(ctx context.Context, opts ListOpts) ([]Assignment, error)

	// MarkStarted sets start_time only while it is still null.
	MarkStarted(ctx context.Context, id string, at time.Time) (bool, error)
	// SaveProgress overwrites the autosave of a started, pending assignment.
	SaveProgress(ctx context.Context, id string, progress json.RawMessage, at time.Time) (bool, error)
	// Complete records the graded submission.
	Complete(ctx context.Context, id string, c Completed, answers json.RawMessage) (bool, error)
	// Expire moves an overdue pending assignment to EXPIRED with end_time=deadline.
	Expire(ctx context.Context, id string, now time.Time) (bool, error)
	// Extend moves the deadline of a pending, not yet overdue assignment.
	Extend(ctx context.Context, id string, deadline, now time.Time) (bool, error)
	// Delete removes a pending assignment, invalidating its code.
	Delete(ctx context.Context, id string) (bool, error)

	// ListOverdue returns ids of pending assignments whose deadline is before now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]string, error)
}
