package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Assignment lifecycle event types.
const (
	AssignmentIssued    = "AssignmentIssued"
	AssignmentStarted   = "AssignmentStarted"
	AssignmentSubmitted = "AssignmentSubmitted"
	AssignmentExpired   = "AssignmentExpired"
	AssignmentExtended  = "AssignmentExtended"
	AssignmentCancelled = "AssignmentCancelled"
	ReminderSent        = "ReminderSent"
)

type Event struct {
	Offset    int64           `json:"offset"`
	SiteID    string          `json:"siteId"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

// Recorder appends lifecycle events keyed by assignment id.
type Recorder interface {
	Record(ctx context.Context, typ, key string, data any) error
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(context.Context, string, string, any) error { return nil }

type EventRepo struct {
	db     *sql.DB
	siteID string
	now    func() time.Time
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID, now: time.Now}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, string(e.Data), r.now().Unix())
	return err
}

func (r *EventRepo) Record(ctx context.Context, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return r.Append(ctx, Event{Type: typ, Key: key, Data: buf})
}

// List returns the events for key in append order.
func (r *EventRepo) List(ctx context.Context, key string) ([]Event, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at FROM event_log WHERE key=$1 ORDER BY "offset"`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}
