package assignment

import (
	"encoding/json"
	"time"
)

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusExpired   Status = "EXPIRED"
)

// State is where an assignment sits in its lifecycle. Only Completed carries
// a score, and only the terminal states carry an end time.
type State interface {
	Status() Status
	isState()
}

type Pending struct{}

type Completed struct {
	Score       float64
	EndTime     time.Time
	NeedsReview bool // free-text answers await a reviewer
}

// Expired records the nominal deadline as its end time.
type Expired struct {
	EndTime time.Time
}

func (Pending) Status() Status   { return StatusPending }
func (Completed) Status() Status { return StatusCompleted }
func (Expired) Status() Status   { return StatusExpired }

func (Pending) isState()   {}
func (Completed) isState() {}
func (Expired) isState()   {}

// Assignment binds a job application to an exam paper, an invitation code
// and an absolute deadline.
type Assignment struct {
	ID            string
	ApplicationID string
	ExamID        string
	Note          string
	AssignedBy    string
	Code          string
	Deadline      time.Time
	StartTime     *time.Time
	State         State
	Progress      json.RawMessage // last autosave
	Answers       json.RawMessage // submitted answers
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (a Assignment) Status() Status {
	if a.State == nil {
		return StatusPending
	}
	return a.State.Status()
}

func (a Assignment) Score() *float64 {
	if c, ok := a.State.(Completed); ok {
		s := c.Score
		return &s
	}
	return nil
}

func (a Assignment) EndTime() *time.Time {
	switch s := a.State.(type) {
	case Completed:
		return &s.EndTime
	case Expired:
		return &s.EndTime
	}
	return nil
}

func (a Assignment) Started() bool { return a.StartTime != nil }

// ShouldExpire reports whether a still-pending assignment is past its
// deadline. Comparison is at second precision, matching storage.
func ShouldExpire(a Assignment, now time.Time) bool {
	return a.Status() == StatusPending && now.Unix() > a.Deadline.Unix()
}

type assignmentJSON struct {
	ID             string          `json:"id"`
	ApplicationID  string          `json:"applicationId"`
	ExamID         string          `json:"examId"`
	Note           string          `json:"note,omitempty"`
	AssignedBy     string          `json:"assignedBy"`
	InvitationCode string          `json:"invitationCode,omitempty"`
	Deadline       time.Time       `json:"deadline"`
	Status         Status          `json:"status"`
	Score          *float64        `json:"score"`
	NeedsReview    bool            `json:"needsReview,omitempty"`
	StartTime      *time.Time      `json:"startTime"`
	EndTime        *time.Time      `json:"endTime"`
	Answers        json.RawMessage `json:"answers,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// MarshalJSON flattens the state into status/score/endTime fields.
func (a Assignment) MarshalJSON() ([]byte, error) {
	out := assignmentJSON{
		ID:             a.ID,
		ApplicationID:  a.ApplicationID,
		ExamID:         a.ExamID,
		Note:           a.Note,
		AssignedBy:     a.AssignedBy,
		InvitationCode: a.Code,
		Deadline:       a.Deadline,
		Status:         a.Status(),
		Score:          a.Score(),
		StartTime:      a.StartTime,
		EndTime:        a.EndTime(),
		Answers:        a.Answers,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
	if c, ok := a.State.(Completed); ok {
		out.NeedsReview = c.NeedsReview
	}
	return json.Marshal(out)
}
