package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/grading"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

// Verifier resolves an invitation code to an open assignment.
type Verifier interface {
	Verify(ctx context.Context, code string) (assignment.Assignment, error)
}

// Session is what a candidate sees after starting: the assignment, the paper
// without answer keys and the last autosave.
type Session struct {
	Assignment assignment.Assignment `json:"assignment"`
	Paper      exam.Paper            `json:"paper"`
	Progress   json.RawMessage       `json:"progress,omitempty"`
}

type Submission struct {
	Assignment assignment.Assignment `json:"assignment"`
	Report     grading.Report        `json:"report"`
}

// Controller drives the candidate side of an assignment.
type Controller struct {
	Verifier    Verifier
	Assignments assignment.Store
	Papers      exam.Store
	Grader      *grading.Engine
	Events      syncx.Recorder
	Log         logrus.FieldLogger
	Now         func() time.Time
}

func NewController(v Verifier, assignments assignment.Store, papers exam.Store, grader *grading.Engine, events syncx.Recorder, log logrus.FieldLogger) *Controller {
	if events == nil {
		events = syncx.Nop{}
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &Controller{
		Verifier:    v,
		Assignments: assignments,
		Papers:      papers,
		Grader:      grader,
		Events:      events,
		Log:         log,
		Now:         time.Now,
	}
}

// Start opens the exam. The first call stamps startTime; later calls return
// the same session unchanged.
func (c *Controller) Start(ctx context.Context, code string) (Session, error) {
	a, err := c.Verifier.Verify(ctx, code)
	if err != nil {
		return Session{}, err
	}
	if !a.Started() {
		now := c.Now()
		ok, err := c.Assignments.MarkStarted(ctx, a.ID, now)
		if err != nil {
			return Session{}, err
		}
		if ok {
			c.record(ctx, syncx.AssignmentStarted, a.ID, map[string]any{"startTime": now.Unix()})
			c.logFor(a).Info("exam started")
		}
		// a concurrent start may have won; either way the stored row is authoritative
		if a, err = c.Assignments.Get(ctx, a.ID); err != nil {
			return Session{}, err
		}
		if err := assignment.StateError(a); err != nil {
			return Session{}, err
		}
	}

	paper, err := c.Papers.GetPaper(ctx, a.ExamID)
	if err != nil {
		return Session{}, fmt.Errorf("load paper %s: %w", a.ExamID, err)
	}
	return Session{Assignment: a, Paper: paper.Redacted(), Progress: a.Progress}, nil
}

// SaveProgress overwrites the autosave of a started exam.
func (c *Controller) SaveProgress(ctx context.Context, code string, answers grading.Answers) error {
	a, err := c.Verifier.Verify(ctx, code)
	if err != nil {
		return err
	}
	if !a.Started() {
		return assignment.ErrNotStarted
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	ok, err := c.Assignments.SaveProgress(ctx, a.ID, raw, c.Now())
	if err != nil {
		return err
	}
	if !ok {
		return assignment.TransitionLost(ctx, c.Assignments, a.ID)
	}
	return nil
}

// Submit grades the answers and completes the assignment. Exactly one of a
// racing submit or expiry wins; the loser gets a conflict error.
func (c *Controller) Submit(ctx context.Context, code string, answers grading.Answers) (Submission, error) {
	a, err := c.Verifier.Verify(ctx, code)
	if err != nil {
		return Submission{}, err
	}
	paper, err := c.Papers.GetPaper(ctx, a.ExamID)
	if err != nil {
		return Submission{}, fmt.Errorf("load paper %s: %w", a.ExamID, err)
	}
	rep := c.Grader.Grade(ctx, paper, answers)

	raw, err := json.Marshal(answers)
	if err != nil {
		return Submission{}, fmt.Errorf("encode answers: %w", err)
	}
	done := assignment.Completed{
		Score:       rep.Score,
		EndTime:     time.Unix(c.Now().Unix(), 0),
		NeedsReview: len(rep.NeedsReview) > 0,
	}
	ok, err := c.Assignments.Complete(ctx, a.ID, done, raw)
	if err != nil {
		return Submission{}, err
	}
	if !ok {
		return Submission{}, assignment.TransitionLost(ctx, c.Assignments, a.ID)
	}

	a.State = done
	a.Answers = raw
	c.record(ctx, syncx.AssignmentSubmitted, a.ID, map[string]any{
		"score": rep.Score, "maxScore": rep.MaxScore, "needsReview": rep.NeedsReview,
	})
	c.logFor(a).WithFields(logrus.Fields{"score": rep.Score, "max_score": rep.MaxScore}).Info("exam submitted")
	return Submission{Assignment: a, Report: rep}, nil
}

func (c *Controller) record(ctx context.Context, typ, key string, data any) {
	if err := c.Events.Record(ctx, typ, key, data); err != nil {
		c.Log.WithError(err).WithField("type", typ).Warn("event log append failed")
	}
}

func (c *Controller) logFor(a assignment.Assignment) logrus.FieldLogger {
	return c.Log.WithFields(logrus.Fields{"assignment_id": a.ID, "application_id": a.ApplicationID})
}
