package http

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

type issueBody struct {
	ApplicationID string `json:"applicationId"`
	ExamID        string `json:"examId"`
	Note          string `json:"note"`
	DurationHours int    `json:"durationHours"`
	Duration      int    `json:"duration"` // hours; alias used by the invitation generator
}

// POST /online-exam/assign and POST /exam/invitation/generate
func IssueInvitationHandler(svc *invitation.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req issueBody
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := required(map[string]string{"applicationId": req.ApplicationID, "examId": req.ExamID}); err != nil {
			writeError(w, log, err)
			return
		}
		hours := req.DurationHours
		if hours == 0 {
			hours = req.Duration
		}
		if hours < 0 || hours > invitation.MaxDurationHours {
			writeError(w, log, invalid("duration", fmt.Sprintf("must be between 1 and %d hours", invitation.MaxDurationHours)))
			return
		}
		a, err := svc.Issue(r.Context(), actorFrom(r), invitation.IssueRequest{
			ApplicationID: req.ApplicationID,
			ExamID:        req.ExamID,
			Note:          req.Note,
			DurationHours: hours,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		out := map[string]any{"assignment": a, "invitationCode": a.Code, "deadline": a.Deadline}
		if svc.LinkBase != "" {
			out["link"] = svc.LinkBase + "/online-exam/" + a.Code
		}
		writeJSON(w, http.StatusCreated, out)
	}
}

// POST /interviewer/exams/extend-deadline  {assignmentId, deadline (RFC3339) | extraHours}
func ExtendDeadlineHandler(svc *invitation.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssignmentID string     `json:"assignmentId"`
			Deadline     *time.Time `json:"deadline"`
			ExtraHours   int        `json:"extraHours"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := required(map[string]string{"assignmentId": req.AssignmentID}); err != nil {
			writeError(w, log, err)
			return
		}
		var deadline time.Time
		switch {
		case req.Deadline != nil:
			deadline = *req.Deadline
		case req.ExtraHours > invitation.MaxDurationHours:
			writeError(w, log, invalid("extraHours", fmt.Sprintf("must be at most %d", invitation.MaxDurationHours)))
			return
		case req.ExtraHours > 0:
			cur, err := svc.Assignments.Get(r.Context(), req.AssignmentID)
			if err != nil {
				writeError(w, log, err)
				return
			}
			deadline = cur.Deadline.Add(time.Duration(req.ExtraHours) * time.Hour)
		default:
			writeError(w, log, invalid("deadline", "deadline or extraHours required"))
			return
		}
		a, err := svc.Extend(r.Context(), actorFrom(r), req.AssignmentID, deadline)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// POST /interviewer/exams/cancel  {assignmentId}
func CancelAssignmentHandler(svc *invitation.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssignmentID string `json:"assignmentId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := required(map[string]string{"assignmentId": req.AssignmentID}); err != nil {
			writeError(w, log, err)
			return
		}
		if err := svc.Cancel(r.Context(), actorFrom(r), req.AssignmentID); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /interviewer/exams/send-reminder  {assignmentId}
func SendReminderHandler(svc *invitation.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AssignmentID string `json:"assignmentId"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		if err := required(map[string]string{"assignmentId": req.AssignmentID}); err != nil {
			writeError(w, log, err)
			return
		}
		if err := svc.Remind(r.Context(), actorFrom(r), req.AssignmentID); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	}
}

// GET /interviewer/exams?applicationId=...&status=...&limit=50&offset=0
// Non-admins only see assignments they issued.
func ListAssignmentsHandler(svc *invitation.Service, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		status := assignment.Status(strings.ToUpper(strings.TrimSpace(q.Get("status"))))
		switch status {
		case "", assignment.StatusPending, assignment.StatusCompleted, assignment.StatusExpired:
		default:
			writeError(w, log, invalid("status", "must be PENDING, COMPLETED or EXPIRED"))
			return
		}
		list, err := svc.List(r.Context(), actorFrom(r), assignment.ListOpts{
			ApplicationID: strings.TrimSpace(q.Get("applicationId")),
			AssignedBy:    strings.TrimSpace(q.Get("assignedBy")),
			Status:        status,
			Limit:         parseIntDefault(q.Get("limit"), 50),
			Offset:        parseIntDefault(q.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		if list == nil {
			list = []assignment.Assignment{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /interviewer/exams/{assignmentID}/events
func AssignmentEventsHandler(svc *invitation.Service, events *syncx.EventRepo, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "assignmentID")
		actor := actorFrom(r)
		// cancelled assignments no longer exist; their history is admin-only
		if a, err := svc.Assignments.Get(r.Context(), id); err == nil {
			if actor.Role != "admin" && a.AssignedBy != actor.ID {
				writeError(w, log, exam.ErrForbidden)
				return
			}
		} else if actor.Role != "admin" {
			writeError(w, log, err)
			return
		}
		list, err := events.List(r.Context(), id)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if list == nil {
			list = []syncx.Event{}
		}
		writeJSON(w, http.StatusOK, list)
	}
}
