package invitation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/notify"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

var ErrInvalidRequest = errors.New("invalid invitation request")

// MaxDurationHours bounds an invitation window (one year).
const MaxDurationHours = 24 * 365

type IssueRequest struct {
	ApplicationID string
	ExamID        string
	Note          string
	DurationHours int // 0 means the service default
}

// Service issues, verifies, extends and cancels invitation codes.
type Service struct {
	Assignments     assignment.Store
	Papers          exam.Store
	Auth            exam.Authorizer
	Notifier        notify.Notifier
	Events          syncx.Recorder
	Log             logrus.FieldLogger
	Now             func() time.Time
	NewCode         func() string
	DefaultDuration time.Duration
	LinkBase        string // candidate front-end base URL
}

func New(assignments assignment.Store, papers exam.Store, n notify.Notifier, events syncx.Recorder, log logrus.FieldLogger) *Service {
	if events == nil {
		events = syncx.Nop{}
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Service{
		Assignments:     assignments,
		Papers:          papers,
		Auth:            exam.OwnerAuthorizer{},
		Notifier:        n,
		Events:          events,
		Log:             log,
		Now:             time.Now,
		NewCode:         newCode,
		DefaultDuration: 72 * time.Hour,
	}
}

// newCode returns 32 uppercase hex characters.
func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Issue creates a PENDING assignment bound to a fresh invitation code.
func (s *Service) Issue(ctx context.Context, actor exam.Actor, req IssueRequest) (assignment.Assignment, error) {
	req.ApplicationID = strings.TrimSpace(req.ApplicationID)
	req.ExamID = strings.TrimSpace(req.ExamID)
	if req.ApplicationID == "" || req.ExamID == "" {
		return assignment.Assignment{}, fmt.Errorf("%w: applicationId and examId required", ErrInvalidRequest)
	}
	if req.DurationHours < 0 || req.DurationHours > MaxDurationHours {
		return assignment.Assignment{}, fmt.Errorf("%w: duration must be between 1 and %d hours", ErrInvalidRequest, MaxDurationHours)
	}
	dur := s.DefaultDuration
	if req.DurationHours > 0 {
		dur = time.Duration(req.DurationHours) * time.Hour
	}

	paper, err := s.Papers.GetPaper(ctx, req.ExamID)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if paper.Private {
		if err := s.Auth.CanUse(ctx, actor, paper); err != nil {
			return assignment.Assignment{}, err
		}
	}

	now := s.Now()
	a := assignment.Assignment{
		ID:            uuid.NewString(),
		ApplicationID: req.ApplicationID,
		ExamID:        paper.ID,
		Note:          req.Note,
		AssignedBy:    actor.ID,
		Code:          s.NewCode(),
		Deadline:      time.Unix(now.Add(dur).Unix(), 0),
		State:         assignment.Pending{},
		CreatedAt:     time.Unix(now.Unix(), 0),
		UpdatedAt:     time.Unix(now.Unix(), 0),
	}
	if err := s.Assignments.Create(ctx, a); err != nil {
		return assignment.Assignment{}, err
	}
	s.record(ctx, syncx.AssignmentIssued, a.ID, map[string]any{
		"applicationId": a.ApplicationID, "examId": a.ExamID, "deadline": a.Deadline.Unix(),
	})
	s.logFor(a).WithField("deadline", a.Deadline.Format(time.RFC3339)).Info("invitation issued")
	s.notify(ctx, notify.KindIssued, a)
	return a, nil
}

// Verify resolves a code to its assignment without changing it, except that
// an overdue PENDING assignment is expired on detection.
func (s *Service) Verify(ctx context.Context, code string) (assignment.Assignment, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return assignment.Assignment{}, assignment.ErrInvalidCode
	}
	a, err := s.Assignments.GetByCode(ctx, code)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if err := s.ensureOpen(ctx, a); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

// ensureOpen fails unless a is PENDING and within its deadline.
func (s *Service) ensureOpen(ctx context.Context, a assignment.Assignment) error {
	if err := assignment.StateError(a); err != nil {
		return err
	}
	now := s.Now()
	if !assignment.ShouldExpire(a, now) {
		return nil
	}
	ok, err := s.Assignments.Expire(ctx, a.ID, now)
	if err != nil {
		return err
	}
	if !ok {
		return assignment.TransitionLost(ctx, s.Assignments, a.ID)
	}
	s.record(ctx, syncx.AssignmentExpired, a.ID, map[string]any{"by": "verify", "endTime": a.Deadline.Unix()})
	s.logFor(a).Info("invitation expired on access")
	return assignment.ErrExpired
}

// Extend moves the deadline of a PENDING assignment further out.
func (s *Service) Extend(ctx context.Context, actor exam.Actor, id string, deadline time.Time) (assignment.Assignment, error) {
	now := s.Now()
	if !deadline.After(now) {
		return assignment.Assignment{}, assignment.ErrDeadlineNotFuture
	}
	if deadline.Sub(now) > MaxDurationHours*time.Hour {
		return assignment.Assignment{}, fmt.Errorf("%w: deadline more than %d hours away", ErrInvalidRequest, MaxDurationHours)
	}
	a, err := s.owned(ctx, actor, id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if err := s.ensureOpen(ctx, a); err != nil {
		return assignment.Assignment{}, err
	}
	deadline = time.Unix(deadline.Unix(), 0)
	ok, err := s.Assignments.Extend(ctx, a.ID, deadline, now)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if !ok {
		return assignment.Assignment{}, assignment.TransitionLost(ctx, s.Assignments, a.ID)
	}
	s.record(ctx, syncx.AssignmentExtended, a.ID, map[string]any{"from": a.Deadline.Unix(), "to": deadline.Unix()})
	s.logFor(a).WithField("deadline", deadline.Format(time.RFC3339)).Info("invitation extended")
	return s.Assignments.Get(ctx, a.ID)
}

// Cancel withdraws a PENDING assignment; its code stops resolving. An overdue
// assignment is expired instead of deleted.
func (s *Service) Cancel(ctx context.Context, actor exam.Actor, id string) error {
	a, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.ensureOpen(ctx, a); err != nil {
		return err
	}
	ok, err := s.Assignments.Delete(ctx, a.ID)
	if err != nil {
		return err
	}
	if !ok {
		return assignment.TransitionLost(ctx, s.Assignments, a.ID)
	}
	s.record(ctx, syncx.AssignmentCancelled, a.ID, map[string]any{"by": actor.ID})
	s.logFor(a).Info("invitation cancelled")
	s.notify(ctx, notify.KindCancelled, a)
	return nil
}

// Remind re-sends the invitation of an open assignment.
func (s *Service) Remind(ctx context.Context, actor exam.Actor, id string) error {
	a, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.ensureOpen(ctx, a); err != nil {
		return err
	}
	if err := s.Notifier.Notify(ctx, s.message(notify.KindReminder, a)); err != nil {
		return fmt.Errorf("send reminder: %w", err)
	}
	s.record(ctx, syncx.ReminderSent, a.ID, nil)
	return nil
}

// List returns assignments visible to actor; non-admins only see their own.
func (s *Service) List(ctx context.Context, actor exam.Actor, opts assignment.ListOpts) ([]assignment.Assignment, error) {
	if actor.Role != "admin" {
		opts.AssignedBy = actor.ID
	}
	return s.Assignments.List(ctx, opts)
}

func (s *Service) owned(ctx context.Context, actor exam.Actor, id string) (assignment.Assignment, error) {
	a, err := s.Assignments.Get(ctx, id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if actor.Role != "admin" && a.AssignedBy != actor.ID {
		return assignment.Assignment{}, exam.ErrForbidden
	}
	return a, nil
}

func (s *Service) message(kind notify.Kind, a assignment.Assignment) notify.Message {
	m := notify.Message{
		Kind:          kind,
		AssignmentID:  a.ID,
		ApplicationID: a.ApplicationID,
		ExamID:        a.ExamID,
		Deadline:      a.Deadline,
		SentAt:        s.Now(),
	}
	if kind != notify.KindCancelled {
		m.InvitationCode = a.Code
		if s.LinkBase != "" {
			m.Link = s.LinkBase + "/online-exam/" + a.Code
		}
	}
	return m
}

// notify is best effort: the assignment exists whether or not mail goes out.
func (s *Service) notify(ctx context.Context, kind notify.Kind, a assignment.Assignment) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, s.message(kind, a)); err != nil {
		s.logFor(a).WithError(err).WithField("kind", kind).Warn("notification failed")
	}
}

func (s *Service) record(ctx context.Context, typ, key string, data any) {
	if err := s.Events.Record(ctx, typ, key, data); err != nil {
		s.Log.WithError(err).WithField("type", typ).Warn("event log append failed")
	}
}

func (s *Service) logFor(a assignment.Assignment) logrus.FieldLogger {
	return s.Log.WithFields(logrus.Fields{"assignment_id": a.ID, "application_id": a.ApplicationID})
}
