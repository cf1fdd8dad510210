package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/grading"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
	"github.com/mind-engage/mindengage-hiring/internal/session"
)

// Candidate routes carry no bearer token; the invitation code is the credential.

type codeBody struct {
	InvitationCode string          `json:"invitationCode"`
	Answers        grading.Answers `json:"answers"`
}

func decodeCode(r *http.Request) (codeBody, error) {
	var req codeBody
	if err := decodeJSON(r, &req); err != nil {
		return req, err
	}
	req.InvitationCode = strings.TrimSpace(req.InvitationCode)
	if req.InvitationCode == "" {
		return req, invalid("invitationCode", "required")
	}
	return req, nil
}

// POST /invitation/verify  {invitationCode}
func VerifyInvitationHandler(svc *invitation.Service, papers exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCode(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		a, err := svc.Verify(r.Context(), req.InvitationCode)
		if err != nil {
			writeError(w, log, err)
			return
		}
		p, err := papers.GetPaper(r.Context(), a.ExamID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"assignment": a, "paper": p.Redacted()})
	}
}

// GET /online-exam/start/{invitationCode}
func StartExamHandler(ctl *session.Controller, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := ctl.Start(r.Context(), chi.URLParam(r, "invitationCode"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// POST /online-exam/save-progress  {invitationCode, answers}
func SaveProgressHandler(ctl *session.Controller, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCode(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if err := ctl.SaveProgress(r.Context(), req.InvitationCode, req.Answers); err != nil {
			writeError(w, log, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// POST /exam/submit and POST /online-exam/submit  {invitationCode, answers}
func SubmitExamHandler(ctl *session.Controller, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := decodeCode(r)
		if err != nil {
			writeError(w, log, err)
			return
		}
		sub, err := ctl.Submit(r.Context(), req.InvitationCode, req.Answers)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"score":       sub.Report.Score,
			"maxScore":    sub.Report.MaxScore,
			"needsReview": len(sub.Report.NeedsReview) > 0,
		})
	}
}
