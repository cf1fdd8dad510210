package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-hiring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/rbac"
)

// actorFrom reads the caller set by the JWT middleware.
func actorFrom(r *http.Request) exam.Actor {
	return exam.Actor{
		ID:   authmw.SubjectFromContext(r.Context()),
		Role: rbac.RoleFromContext(r.Context()),
	}
}

// POST /exams
func UploadPaperHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var p exam.Paper
		if err := decodeJSON(r, &p); err != nil {
			writeError(w, log, err)
			return
		}
		actor := actorFrom(r)
		if strings.TrimSpace(p.ID) == "" {
			p.ID = uuid.NewString()
		}
		p.OwnerID = actor.ID
		p.CreatedAt = time.Now()
		if err := p.Validate(); err != nil {
			writeError(w, log, err)
			return
		}
		if err := store.PutPaper(r.Context(), p); err != nil {
			writeError(w, log, err)
			return
		}
		log.WithFields(logrus.Fields{"paper_id": p.ID, "owner": p.OwnerID, "questions": len(p.Questions)}).Info("paper uploaded")
		writeJSON(w, http.StatusCreated, map[string]any{"id": p.ID, "maxScore": p.MaxScore()})
	}
}

// GET /exams/{examID}
// Owners and admins see answer keys; private papers are hidden from everyone else.
func GetPaperHandler(store exam.Store, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := store.GetPaper(r.Context(), chi.URLParam(r, "examID"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		actor := actorFrom(r)
		if err := (exam.OwnerAuthorizer{}).CanUse(r.Context(), actor, p); err != nil {
			if p.Private {
				writeError(w, log, err)
				return
			}
			p = p.Redacted()
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// POST /exam/private
func ComposePrivateHandler(c *exam.Composer, log logrus.FieldLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name             string `json:"name"`
			Description      string `json:"description"`
			CategoryID       int64  `json:"categoryId"`
			SubCategoryID    *int64 `json:"subCategoryId"`
			FavoriteExamIDs  idList `json:"favoriteExamIds"`
			QuestionsPerExam *int   `json:"questionsPerExam"`
		}
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, log, err)
			return
		}
		ve := &ValidationError{Fields: map[string]string{}}
		if strings.TrimSpace(req.Name) == "" {
			ve.Fields["name"] = "required"
		}
		if len(req.FavoriteExamIDs) == 0 {
			ve.Fields["favoriteExamIds"] = "must not be empty"
		}
		for _, id := range req.FavoriteExamIDs {
			if id == "" {
				ve.Fields["favoriteExamIds"] = "ids must not be blank"
			}
		}
		per := 0
		if req.QuestionsPerExam != nil {
			if *req.QuestionsPerExam < 1 {
				ve.Fields["questionsPerExam"] = "must be a positive integer"
			}
			per = *req.QuestionsPerExam
		}
		if len(ve.Fields) > 0 {
			writeError(w, log, ve)
			return
		}

		p, err := c.Compose(r.Context(), actorFrom(r), exam.ComposeRequest{
			Name:             req.Name,
			Description:      req.Description,
			CategoryID:       req.CategoryID,
			SubCategoryID:    req.SubCategoryID,
			SourcePaperIDs:   req.FavoriteExamIDs,
			QuestionsPerExam: per,
		})
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)
	}
}
