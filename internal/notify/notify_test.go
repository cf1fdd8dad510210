package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func sampleMessage() Message {
	return Message{
		Kind:           KindReminder,
		AssignmentID:   "a1",
		ApplicationID:  "app-1",
		ExamID:         "p1",
		InvitationCode: "ABC",
		Deadline:       time.Unix(1_750_000_000, 0).UTC(),
		SentAt:         time.Unix(1_749_990_000, 0).UTC(),
	}
}

func TestPublishingCarriesJSONBody(t *testing.T) {
	pub, err := publishing(sampleMessage())
	if err != nil {
		t.Fatalf("publishing: %v", err)
	}
	if pub.ContentType != "application/json" || pub.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected headers: %+v", pub)
	}
	if pub.Type != string(KindReminder) {
		t.Fatalf("type = %q", pub.Type)
	}
	var back Message
	if err := json.Unmarshal(pub.Body, &back); err != nil {
		t.Fatalf("body: %v", err)
	}
	if back.InvitationCode != "ABC" || !back.Deadline.Equal(sampleMessage().Deadline) {
		t.Fatalf("body lost fields: %+v", back)
	}
}

func TestLogNotifierLogs(t *testing.T) {
	log, hook := test.NewNullLogger()
	if err := (LogNotifier{Log: log}).Notify(context.Background(), sampleMessage()); err != nil {
		t.Fatalf("notify: %v", err)
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.InfoLevel {
		t.Fatalf("expected one info entry, got %+v", hook.AllEntries())
	}
	if entry.Data["assignment_id"] != "a1" {
		t.Fatalf("fields = %v", entry.Data)
	}
}
