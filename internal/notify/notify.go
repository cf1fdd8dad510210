package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindIssued    Kind = "invitation.issued"
	KindReminder  Kind = "invitation.reminder"
	KindCancelled Kind = "invitation.cancelled"
)

// Message is what the external mailer consumes. Recipient lookup by
// application id happens on the consumer side.
type Message struct {
	Kind           Kind      `json:"kind"`
	AssignmentID   string    `json:"assignmentId"`
	ApplicationID  string    `json:"applicationId"`
	ExamID         string    `json:"examId"`
	InvitationCode string    `json:"invitationCode,omitempty"`
	Link           string    `json:"link,omitempty"`
	Deadline       time.Time `json:"deadline"`
	SentAt         time.Time `json:"sentAt"`
}

type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// LogNotifier only logs; used when no broker is configured.
type LogNotifier struct {
	Log logrus.FieldLogger
}

func (n LogNotifier) Notify(_ context.Context, m Message) error {
	n.Log.WithFields(logrus.Fields{
		"kind":           m.Kind,
		"assignment_id":  m.AssignmentID,
		"application_id": m.ApplicationID,
		"deadline":       m.Deadline.Format(time.RFC3339),
	}).Info("notification not delivered: broker not configured")
	return nil
}
