package exam

import (
	"context"
	"errors"
)

var (
	ErrPaperNotFound = errors.New("exam paper not found")
	ErrPaperExists   = errors.New("exam paper already exists")
	ErrInvalidPaper  = errors.New("invalid exam paper")
	ErrForbidden     = errors.New("not allowed to use exam paper")
)

// Store is the question pool: papers with their answer keys.
// Papers are insert-only; nothing updates a stored paper.
type Store interface {
	PutPaper(ctx context.Context, p Paper) error
	GetPaper(ctx context.Context, id string) (Paper, error)
}

// Actor identifies the caller for authorization checks.
type Actor struct {
	ID   string
	Role string
}

// Authorizer decides whether an actor may build on a paper.
type Authorizer interface {
	CanUse(ctx context.Context, actor Actor, p Paper) error
}

// OwnerAuthorizer lets owners (and admins) use their own papers.
type OwnerAuthorizer struct{}

func (OwnerAuthorizer) CanUse(_ context.Context, actor Actor, p Paper) error {
	if actor.Role == "admin" || (actor.ID != "" && actor.ID == p.OwnerID) {
		return nil
	}
	return ErrForbidden
}
