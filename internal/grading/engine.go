package grading

import (
	"context"
	"errors"
	"strconv"

	"github.com/mind-engage/mindengage-hiring/internal/exam"
)

// Answers maps question id to the candidate's response. Responses arrive as
// decoded JSON: string, bool or []any of strings.
type Answers map[string]any

// Result is the outcome of grading a single question response.
type Result struct {
	AutoPoints  float64  // points awarded automatically
	MaxPoints   float64  // the question's max points
	NeedsManual bool     // true if a reviewer has to look at it
	Feedback    []string // optional notes
}

// Strategy grades a single question.
type Strategy interface {
	Grade(ctx context.Context, q exam.Question, response any) (Result, error)
}

type Option func(*Engine)

// WithStrategy installs or replaces the strategy for a question type.
func WithStrategy(t exam.QuestionType, s Strategy) Option {
	return func(e *Engine) { e.strategies[t] = s }
}

// Engine routes by question type to the correct Strategy.
type Engine struct {
	strategies map[exam.QuestionType]Strategy
}

// NewEngine installs the built-in all-or-nothing strategies.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		strategies: map[exam.QuestionType]Strategy{
			exam.SingleChoice: exactStrategy{},
			exam.Boolean:      booleanStrategy{},
			exam.MultiChoice:  setStrategy{},
			exam.Text:         manualStrategy{},
		},
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Report is the graded outcome of a whole submission.
type Report struct {
	Score       float64           `json:"score"`
	MaxScore    float64           `json:"maxScore"`
	NeedsReview []string          `json:"needsReview,omitempty"` // question ids
	Items       map[string]Result `json:"-"`
}

// Grade scores answers against the paper's answer key. It never fails:
// missing or malformed responses earn nothing. Identical inputs always
// produce an identical report.
func (e *Engine) Grade(ctx context.Context, paper exam.Paper, answers Answers) Report {
	rep := Report{Items: make(map[string]Result, len(paper.Questions))}
	for _, q := range paper.Questions {
		rep.MaxScore += q.Points
		resp, has := answers[q.ID]
		if !has || resp == nil {
			rep.Items[q.ID] = Result{MaxPoints: q.Points, Feedback: []string{"unanswered"}}
			continue
		}
		res := e.gradeOne(ctx, q, resp)
		rep.Items[q.ID] = res
		rep.Score += res.AutoPoints
		if res.NeedsManual {
			rep.NeedsReview = append(rep.NeedsReview, q.ID)
		}
	}
	return rep
}

func (e *Engine) gradeOne(ctx context.Context, q exam.Question, resp any) Result {
	s, ok := e.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"no strategy available"}}
	}
	res, err := s.Grade(ctx, q, resp)
	if err != nil {
		return Result{MaxPoints: q.Points, Feedback: []string{err.Error()}}
	}
	return res
}

// --- Strategies ---

type exactStrategy struct{}

func (exactStrategy) Grade(_ context.Context, q exam.Question, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	resp, ok := response.(string)
	if !ok {
		return res, errors.New("response must be string")
	}
	if len(q.AnswerKey) > 0 && resp == q.AnswerKey[0] {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type booleanStrategy struct{}

func (booleanStrategy) Grade(_ context.Context, q exam.Question, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	var resp string
	switch v := response.(type) {
	case bool:
		resp = strconv.FormatBool(v)
	case string:
		resp = v
	default:
		return res, errors.New("response must be boolean")
	}
	if len(q.AnswerKey) > 0 && resp == q.AnswerKey[0] {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type setStrategy struct{}

func (setStrategy) Grade(_ context.Context, q exam.Question, response any) (Result, error) {
	res := Result{MaxPoints: q.Points}
	respSlice, ok := toStringSlice(response)
	if !ok {
		return res, errors.New("response must be a list of strings")
	}
	if setEqual(toSet(q.AnswerKey), toSet(respSlice)) {
		res.AutoPoints = q.Points
	}
	return res, nil
}

type manualStrategy struct{}

func (manualStrategy) Grade(_ context.Context, q exam.Question, _ any) (Result, error) {
	return Result{MaxPoints: q.Points, NeedsManual: true, Feedback: []string{"manual grading required"}}, nil
}

// helpers

func toStringSlice(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		m[s] = struct{}{}
	}
	return m
}

func setEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
