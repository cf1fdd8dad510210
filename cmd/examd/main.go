package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	api "github.com/mind-engage/mindengage-hiring/internal/api/http"
	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	auth "github.com/mind-engage/mindengage-hiring/internal/auth/middleware"
	"github.com/mind-engage/mindengage-hiring/internal/config"
	"github.com/mind-engage/mindengage-hiring/internal/db"
	"github.com/mind-engage/mindengage-hiring/internal/exam"
	"github.com/mind-engage/mindengage-hiring/internal/grading"
	"github.com/mind-engage/mindengage-hiring/internal/invitation"
	"github.com/mind-engage/mindengage-hiring/internal/notify"
	"github.com/mind-engage/mindengage-hiring/internal/session"
	"github.com/mind-engage/mindengage-hiring/internal/sweeper"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

func main() {
	cfg, notice := config.FromEnv()
	log := config.NewLogger(cfg.LogLevel)
	if notice != "" {
		log.Info(notice)
	}

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("db open failed")
	}
	defer dbh.Close()

	papers := exam.NewSQLStore(dbh)
	assignments := assignment.NewSQLStore(dbh)
	events := syncx.NewEventRepo(dbh, string(cfg.Mode))

	// --- Notifications ---
	var notifier notify.Notifier = notify.LogNotifier{Log: log}
	if cfg.AMQPURL != "" {
		amqpN, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, notifications will only be logged")
		} else {
			defer amqpN.Close()
			notifier = amqpN
		}
	}

	// --- Services ---
	composer := exam.NewComposer(papers, nil, cfg.ComposeDefaultPerExam, log)
	inv := invitation.New(assignments, papers, notifier, events, log)
	inv.DefaultDuration = time.Duration(cfg.InviteDefaultHours) * time.Hour
	inv.LinkBase = cfg.CandidateBaseURL
	ctl := session.NewController(inv, assignments, papers, grading.NewEngine(), events, log)

	sw := sweeper.New(assignments, events, log, cfg.SweepInterval, cfg.SweepBatch)
	runCtx, stop := context.WithCancel(context.Background())
	sw.Start(runCtx)

	// --- Router ---
	var creds *auth.Credentials
	if cfg.EnableLocalAuth {
		creds = auth.NewCredentials(cfg.AdminUser, cfg.AdminPassHash, cfg.Recruiters)
	}
	r := api.NewRouter(api.Deps{
		DB:          dbh,
		Papers:      papers,
		Composer:    composer,
		Invitations: inv,
		Sessions:    ctl,
		Events:      events,
		Auth:        auth.NewAuthService(cfg.AuthSecret),
		Credentials: creds,
		CORSOrigins: cfg.CORSOrigins,
		AccessLog:   true,
		Log:         log,
	})

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-quit
		log.Info("shutting down")
		stop()
		sw.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Warn("server forced to shutdown")
		}
	}()

	log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "mode": cfg.Mode, "db": cfg.DBDriver}).Info("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Fatal("server failed")
	}
	<-done
}
