package exam

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type QuestionType string

const (
	SingleChoice QuestionType = "SINGLE_CHOICE"
	MultiChoice  QuestionType = "MULTI_CHOICE"
	Boolean      QuestionType = "BOOLEAN"
	Text         QuestionType = "TEXT"
)

func (t QuestionType) Valid() bool {
	switch t {
	case SingleChoice, MultiChoice, Boolean, Text:
		return true
	}
	return false
}

type Choice struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// Question is a question-bank entry. IDs are unique within a paper; composed
// papers qualify them with the source paper id.
//
// AnswerKey holds the correct answer in string form:
//
//	SINGLE_CHOICE  ["A"]
//	MULTI_CHOICE   ["B", "C"]   (set, order ignored)
//	BOOLEAN        ["true"] or ["false"]
//	TEXT           optional reference answers for the reviewer
type Question struct {
	ID        string       `json:"id"`
	Type      QuestionType `json:"type"`
	Prompt    string       `json:"prompt,omitempty"`
	Choices   []Choice     `json:"choices,omitempty"`
	AnswerKey []string     `json:"correctAnswer,omitempty"`
	Points    float64      `json:"score"`
}

// Paper is an ordered, immutable sequence of questions.
type Paper struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	CategoryID    int64      `json:"categoryId"`
	SubCategoryID *int64     `json:"subCategoryId,omitempty"`
	OwnerID       string     `json:"ownerId"`
	Private       bool       `json:"private"`
	Questions     []Question `json:"questions"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// MaxScore is the sum of all question weights.
func (p Paper) MaxScore() float64 {
	total := 0.0
	for _, q := range p.Questions {
		total += q.Points
	}
	return total
}

// Redacted returns a copy safe to hand to a candidate (no answer keys).
func (p Paper) Redacted() Paper {
	out := p
	out.Questions = make([]Question, len(p.Questions))
	for i, q := range p.Questions {
		q.AnswerKey = nil
		out.Questions[i] = q
	}
	return out
}

// Validate checks the shape of an uploaded paper.
func (p Paper) Validate() error {
	var errs []error
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, errors.New("name required"))
	}
	if len(p.Questions) == 0 {
		errs = append(errs, errors.New("at least one question required"))
	}
	seen := make(map[string]struct{}, len(p.Questions))
	for i, q := range p.Questions {
		if q.ID == "" {
			errs = append(errs, fmt.Errorf("questions[%d]: id required", i))
			continue
		}
		if _, dup := seen[q.ID]; dup {
			errs = append(errs, fmt.Errorf("questions[%d]: duplicate id %q", i, q.ID))
		}
		seen[q.ID] = struct{}{}
		if q.Points < 0 {
			errs = append(errs, fmt.Errorf("questions[%d]: negative score", i))
		}
		switch q.Type {
		case SingleChoice:
			if len(q.AnswerKey) != 1 {
				errs = append(errs, fmt.Errorf("questions[%d]: single choice needs exactly one correct answer", i))
			}
		case Boolean:
			if len(q.AnswerKey) != 1 || (q.AnswerKey[0] != "true" && q.AnswerKey[0] != "false") {
				errs = append(errs, fmt.Errorf("questions[%d]: boolean answer must be \"true\" or \"false\"", i))
			}
		case MultiChoice:
			if len(q.AnswerKey) == 0 {
				errs = append(errs, fmt.Errorf("questions[%d]: multi choice needs at least one correct answer", i))
			}
		case Text:
		default:
			errs = append(errs, fmt.Errorf("questions[%d]: unknown type %q", i, q.Type))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidPaper, errors.Join(errs...))
	}
	return nil
}
