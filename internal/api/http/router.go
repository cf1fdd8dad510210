package http

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	authmw "github.com/mind-engage/mindengage-hiring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
	"github.com/mind-engage/mindengage-hiring/internal/rbac"
	"github.com/mind-engage/mindengage-hiring/internal/session"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

type Deps struct {
	DB          *sql.DB
	Papers      exam.Store
	Composer    *exam.Composer
	Invitations *invitation.Service
	Sessions    *session.Controller
	Events      *syncx.EventRepo
	Auth        *authmw.AuthService
	Credentials *authmw.Credentials // nil disables /auth/login
	CORSOrigins []string
	AccessLog   bool
	Log         logrus.FieldLogger
}

func NewRouter(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.Credentials != nil {
		r.Post("/auth/login", authmw.LoginHandler(d.Auth, d.Credentials))
	}

	// Candidate flow: the invitation code authenticates.
	r.Post("/invitation/verify", VerifyInvitationHandler(d.Invitations, d.Papers, d.Log))
	r.Post("/exam/submit", SubmitExamHandler(d.Sessions, d.Log))
	r.Get("/online-exam/start/{invitationCode}", StartExamHandler(d.Sessions, d.Log))
	r.Post("/online-exam/save-progress", SaveProgressHandler(d.Sessions, d.Log))
	r.Post("/online-exam/submit", SubmitExamHandler(d.Sessions, d.Log))

	// Recruiter API (JWT -> role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(authmw.JWTMiddleware(d.Auth))

		pr.With(rbac.Require(rbac.PermPaperCreate)).
			Post("/exams", UploadPaperHandler(d.Papers, d.Log))
		pr.With(rbac.Require(rbac.PermPaperView)).
			Get("/exams/{examID}", GetPaperHandler(d.Papers, d.Log))
		pr.With(rbac.Require(rbac.PermPaperCompose)).
			Post("/exam/private", ComposePrivateHandler(d.Composer, d.Log))

		pr.With(rbac.Require(rbac.PermAssignmentIssue)).
			Post("/online-exam/assign", IssueInvitationHandler(d.Invitations, d.Log))
		pr.With(rbac.Require(rbac.PermAssignmentIssue)).
			Post("/exam/invitation/generate", IssueInvitationHandler(d.Invitations, d.Log))

		pr.Route("/interviewer/exams", func(ir chi.Router) {
			ir.With(rbac.Require(rbac.PermAssignmentView)).
				Get("/", ListAssignmentsHandler(d.Invitations, d.Log))
			ir.With(rbac.Require(rbac.PermAssignmentView)).
				Get("/{assignmentID}/events", AssignmentEventsHandler(d.Invitations, d.Events, d.Log))
			ir.With(rbac.Require(rbac.PermAssignmentManage)).
				Post("/extend-deadline", ExtendDeadlineHandler(d.Invitations, d.Log))
			ir.With(rbac.Require(rbac.PermAssignmentManage)).
				Post("/cancel", CancelAssignmentHandler(d.Invitations, d.Log))
			ir.With(rbac.Require(rbac.PermAssignmentManage)).
				Post("/send-reminder", SendReminderHandler(d.Invitations, d.Log))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", ReadyHandler(d.DB))
	return r
}

// ReadyHandler reports 503 until the database answers a ping.
func ReadyHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db == nil || db.PingContext(r.Context()) != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "db unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
