package invitation_test

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	"github.com/mind-engage/mindengage-hiring/internal/db"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
	"github.com/mind-engage/mindengage-hiring/internal/notify"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

var (
	t0        = time.Unix(1_750_000_000, 0)
	recruiter = exam.Actor{ID: "rec-1", Role: "recruiter"}
	other     = exam.Actor{ID: "rec-2", Role: "recruiter"}
)

type sentBox struct {
	mu   sync.Mutex
	msgs []notify.Message
	err  error
}

func (b *sentBox) Notify(_ context.Context, m notify.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.msgs = append(b.msgs, m)
	return nil
}

type fixture struct {
	svc    *invitation.Service
	store  *assignment.SQLStore
	events *syncx.EventRepo
	sent   *sentBox
	hook   *test.Hook
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	h, err := db.Open(ctx, db.DriverSQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })

	papers := exam.NewSQLStore(h)
	for _, p := range []exam.Paper{
		{ID: "public", Name: "Go basics", OwnerID: "rec-9", CreatedAt: t0,
			Questions: []exam.Question{{ID: "1", Type: exam.Boolean, AnswerKey: []string{"true"}, Points: 1}}},
		{ID: "private", Name: "Mine", OwnerID: "rec-9", Private: true, CreatedAt: t0,
			Questions: []exam.Question{{ID: "1", Type: exam.Boolean, AnswerKey: []string{"true"}, Points: 1}}},
	} {
		if err := papers.PutPaper(ctx, p); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	f := &fixture{
		store:  assignment.NewSQLStore(h),
		events: syncx.NewEventRepo(h, "test"),
		sent:   &sentBox{},
		now:    t0,
	}
	log, hook := test.NewNullLogger()
	f.hook = hook
	f.svc = invitation.New(f.store, papers, f.sent, f.events, log)
	f.svc.Now = func() time.Time { return f.now }
	f.svc.LinkBase = "https://jobs.example.com"
	return f
}

func (f *fixture) issue(t *testing.T, hours int) assignment.Assignment {
	t.Helper()
	a, err := f.svc.Issue(context.Background(), recruiter, invitation.IssueRequest{
		ApplicationID: "app-1", ExamID: "public", DurationHours: hours,
	})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return a
}

func TestIssue_CreatesPendingAssignment(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t, 24)

	if a.Status() != assignment.StatusPending || a.StartTime != nil || a.Score() != nil {
		t.Fatalf("bad fresh assignment: %+v", a)
	}
	if !a.Deadline.Equal(t0.Add(24 * time.Hour)) {
		t.Fatalf("deadline = %v", a.Deadline)
	}
	if !regexp.MustCompile(`^[0-9A-F]{32}$`).MatchString(a.Code) {
		t.Fatalf("code %q is not 32 upper hex chars", a.Code)
	}
	if a.AssignedBy != recruiter.ID {
		t.Fatalf("assignedBy = %q", a.AssignedBy)
	}
	if len(f.sent.msgs) != 1 || f.sent.msgs[0].Kind != notify.KindIssued {
		t.Fatalf("notifications = %+v", f.sent.msgs)
	}
	if got := f.sent.msgs[0].Link; got != "https://jobs.example.com/online-exam/"+a.Code {
		t.Fatalf("link = %q", got)
	}
	evs, _ := f.events.List(context.Background(), a.ID)
	if len(evs) != 1 || evs[0].Type != syncx.AssignmentIssued {
		t.Fatalf("events = %+v", evs)
	}
	if e := f.hook.LastEntry(); e == nil || e.Message != "invitation issued" {
		t.Fatalf("last log entry = %+v", e)
	}
}

func TestIssue_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.issue(t, 0)
	if !a.Deadline.Equal(t0.Add(72 * time.Hour)) {
		t.Fatalf("default deadline = %v", a.Deadline)
	}
	b := f.issue(t, 0)
	if a.Code == b.Code {
		t.Fatal("codes must be unique")
	}

	cases := []struct {
		name string
		req  invitation.IssueRequest
		want error
	}{
		{"missing application", invitation.IssueRequest{ExamID: "public"}, invitation.ErrInvalidRequest},
		{"negative duration", invitation.IssueRequest{ApplicationID: "x", ExamID: "public", DurationHours: -1}, invitation.ErrInvalidRequest},
		{"duration past one year", invitation.IssueRequest{ApplicationID: "x", ExamID: "public", DurationHours: invitation.MaxDurationHours + 1}, invitation.ErrInvalidRequest},
		{"duration that overflows", invitation.IssueRequest{ApplicationID: "x", ExamID: "public", DurationHours: 3_000_000}, invitation.ErrInvalidRequest},
		{"unknown paper", invitation.IssueRequest{ApplicationID: "x", ExamID: "nope"}, exam.ErrPaperNotFound},
		{"foreign private paper", invitation.IssueRequest{ApplicationID: "x", ExamID: "private"}, exam.ErrForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Issue(ctx, recruiter, tc.req); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestIssue_LongestDurationIsAccepted(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t, invitation.MaxDurationHours)
	if !a.Deadline.Equal(t0.Add(invitation.MaxDurationHours * time.Hour)) {
		t.Fatalf("deadline = %v", a.Deadline)
	}
	all, err := f.store.List(context.Background(), assignment.ListOpts{})
	if err != nil || len(all) != 1 {
		t.Fatalf("assignments = %+v %v", all, err)
	}
}

func TestIssue_NotificationFailureIsLoggedNotFatal(t *testing.T) {
	f := newFixture(t)
	f.sent.err = errors.New("broker down")
	f.issue(t, 1)

	var warned bool
	for _, e := range f.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "notification failed" {
			warned = true
		}
	}
	if !warned {
		t.Fatal("expected a warning for the failed notification")
	}
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)

	got, err := f.svc.Verify(ctx, a.Code)
	if err != nil || got.ID != a.ID {
		t.Fatalf("verify: %+v %v", got, err)
	}
	if got.StartTime != nil {
		t.Fatal("verify must not start the exam")
	}
	if _, err := f.svc.Verify(ctx, "0000"); !errors.Is(err, assignment.ErrInvalidCode) {
		t.Fatalf("unknown code: %v", err)
	}
	if _, err := f.svc.Verify(ctx, "  "); !errors.Is(err, assignment.ErrInvalidCode) {
		t.Fatalf("blank code: %v", err)
	}
}

func TestVerify_ExactlyAtDeadlineIsStillOpen(t *testing.T) {
	f := newFixture(t)
	a := f.issue(t, 1)
	f.now = a.Deadline
	if _, err := f.svc.Verify(context.Background(), a.Code); err != nil {
		t.Fatalf("at deadline: %v", err)
	}
}

func TestVerify_ExpiresOverdueAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)
	f.now = a.Deadline.Add(time.Second)

	if _, err := f.svc.Verify(ctx, a.Code); !errors.Is(err, assignment.ErrExpired) {
		t.Fatalf("overdue verify: %v", err)
	}
	stored, err := f.store.Get(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status() != assignment.StatusExpired || !stored.EndTime().Equal(a.Deadline) || stored.Score() != nil {
		t.Fatalf("stored = %+v", stored)
	}
	// repeated access keeps reporting expiry without another transition
	if _, err := f.svc.Verify(ctx, a.Code); !errors.Is(err, assignment.ErrExpired) {
		t.Fatalf("second verify: %v", err)
	}
	evs, _ := f.events.List(ctx, a.ID)
	if len(evs) != 2 || evs[1].Type != syncx.AssignmentExpired {
		t.Fatalf("events = %+v", evs)
	}
}

func TestVerify_CompletedReportsAlreadyCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)
	if ok, err := f.store.Complete(ctx, a.ID, assignment.Completed{Score: 1, EndTime: t0}, nil); !ok || err != nil {
		t.Fatalf("complete: %v %v", ok, err)
	}
	f.now = a.Deadline.Add(time.Hour)
	if _, err := f.svc.Verify(ctx, a.Code); !errors.Is(err, assignment.ErrAlreadyCompleted) {
		t.Fatalf("err = %v", err)
	}
}

func TestExtend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)

	if _, err := f.svc.Extend(ctx, recruiter, a.ID, t0.Add(-time.Minute)); !errors.Is(err, assignment.ErrDeadlineNotFuture) {
		t.Fatalf("past deadline: %v", err)
	}
	if _, err := f.svc.Extend(ctx, other, a.ID, t0.Add(48*time.Hour)); !errors.Is(err, exam.ErrForbidden) {
		t.Fatalf("foreign recruiter: %v", err)
	}
	if _, err := f.svc.Extend(ctx, recruiter, "nope", t0.Add(48*time.Hour)); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("unknown id: %v", err)
	}
	tooFar := t0.Add((invitation.MaxDurationHours + 1) * time.Hour)
	if _, err := f.svc.Extend(ctx, recruiter, a.ID, tooFar); !errors.Is(err, invitation.ErrInvalidRequest) {
		t.Fatalf("deadline past one year: %v", err)
	}

	got, err := f.svc.Extend(ctx, recruiter, a.ID, t0.Add(48*time.Hour))
	if err != nil {
		t.Fatalf("extend: %v", err)
	}
	if !got.Deadline.Equal(t0.Add(48 * time.Hour)) {
		t.Fatalf("deadline = %v", got.Deadline)
	}
	admin := exam.Actor{ID: "root", Role: "admin"}
	if _, err := f.svc.Extend(ctx, admin, a.ID, t0.Add(72*time.Hour)); err != nil {
		t.Fatalf("admin extend: %v", err)
	}
}

func TestExtend_RejectsTerminalAndOverdue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	done := f.issue(t, 1)
	_, _ = f.store.Complete(ctx, done.ID, assignment.Completed{Score: 1, EndTime: t0}, nil)
	if _, err := f.svc.Extend(ctx, recruiter, done.ID, t0.Add(48*time.Hour)); !errors.Is(err, assignment.ErrAlreadyCompleted) {
		t.Fatalf("completed: %v", err)
	}

	late := f.issue(t, 1)
	f.now = late.Deadline.Add(time.Minute)
	if _, err := f.svc.Extend(ctx, recruiter, late.ID, f.now.Add(48*time.Hour)); !errors.Is(err, assignment.ErrExpired) {
		t.Fatalf("overdue: %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)

	if err := f.svc.Cancel(ctx, other, a.ID); !errors.Is(err, exam.ErrForbidden) {
		t.Fatalf("foreign cancel: %v", err)
	}
	if err := f.svc.Cancel(ctx, recruiter, a.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.Verify(ctx, a.Code); !errors.Is(err, assignment.ErrInvalidCode) {
		t.Fatalf("cancelled code still resolves: %v", err)
	}
	if err := f.svc.Cancel(ctx, recruiter, a.ID); !errors.Is(err, assignment.ErrNotFound) {
		t.Fatalf("second cancel: %v", err)
	}
	last := f.sent.msgs[len(f.sent.msgs)-1]
	if last.Kind != notify.KindCancelled || last.InvitationCode != "" {
		t.Fatalf("cancel notification = %+v", last)
	}

	done := f.issue(t, 1)
	_, _ = f.store.Complete(ctx, done.ID, assignment.Completed{Score: 1, EndTime: t0}, nil)
	if err := f.svc.Cancel(ctx, recruiter, done.ID); !errors.Is(err, assignment.ErrAlreadyCompleted) {
		t.Fatalf("cancel completed: %v", err)
	}
}

func TestCancel_OverdueAssignmentExpiresInstead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)
	f.now = a.Deadline.Add(time.Second)

	if err := f.svc.Cancel(ctx, recruiter, a.ID); !errors.Is(err, assignment.ErrExpired) {
		t.Fatalf("overdue cancel: %v", err)
	}
	stored, err := f.store.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("overdue assignment was removed: %v", err)
	}
	if stored.Status() != assignment.StatusExpired || !stored.EndTime().Equal(a.Deadline) {
		t.Fatalf("stored = %+v", stored)
	}
	if last := f.sent.msgs[len(f.sent.msgs)-1]; last.Kind == notify.KindCancelled {
		t.Fatal("expired assignment must not send a cancellation")
	}
	evs, _ := f.events.List(ctx, a.ID)
	if evs[len(evs)-1].Type != syncx.AssignmentExpired {
		t.Fatalf("events = %+v", evs)
	}
}

func TestRemind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.issue(t, 1)

	if err := f.svc.Remind(ctx, recruiter, a.ID); err != nil {
		t.Fatalf("remind: %v", err)
	}
	if got := f.sent.msgs[len(f.sent.msgs)-1]; got.Kind != notify.KindReminder || got.InvitationCode != a.Code {
		t.Fatalf("reminder = %+v", got)
	}

	f.sent.err = errors.New("smtp down")
	if err := f.svc.Remind(ctx, recruiter, a.ID); err == nil {
		t.Fatal("reminder failure must surface")
	}

	f.sent.err = nil
	f.now = a.Deadline.Add(time.Second)
	if err := f.svc.Remind(ctx, recruiter, a.ID); !errors.Is(err, assignment.ErrExpired) {
		t.Fatalf("overdue reminder: %v", err)
	}
}

func TestList_ScopesToRecruiter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.issue(t, 1)
	f.issue(t, 1)

	mine, err := f.svc.List(ctx, recruiter, assignment.ListOpts{})
	if err != nil || len(mine) != 2 {
		t.Fatalf("mine: %d %v", len(mine), err)
	}
	theirs, err := f.svc.List(ctx, other, assignment.ListOpts{AssignedBy: recruiter.ID})
	if err != nil || len(theirs) != 0 {
		t.Fatalf("other recruiter sees %d", len(theirs))
	}
	all, _ := f.svc.List(ctx, exam.Actor{ID: "root", Role: "admin"}, assignment.ListOpts{})
	if len(all) != 2 {
		t.Fatalf("admin sees %d", len(all))
	}
}
