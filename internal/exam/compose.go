package exam

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Picker yields a random permutation of [0,n). *rand.Rand satisfies it.
type Picker interface {
	Perm(n int) []int
}

// globalPicker uses the goroutine-safe top-level generator.
type globalPicker struct{}

func (globalPicker) Perm(n int) []int { return rand.Perm(n) }

type ComposeRequest struct {
	Name             string
	Description      string
	CategoryID       int64
	SubCategoryID    *int64
	SourcePaperIDs   []string
	QuestionsPerExam int // 0 means the composer default
}

// Composer builds private papers by sampling questions from favorite papers.
type Composer struct {
	Store          Store
	Auth           Authorizer
	Rand           Picker
	Now            func() time.Time
	DefaultPerExam int
	Log            logrus.FieldLogger
}

func NewComposer(store Store, auth Authorizer, defaultPerExam int, log logrus.FieldLogger) *Composer {
	if auth == nil {
		auth = OwnerAuthorizer{}
	}
	if defaultPerExam <= 0 {
		defaultPerExam = 10
	}
	return &Composer{
		Store:          store,
		Auth:           auth,
		Rand:           globalPicker{},
		Now:            time.Now,
		DefaultPerExam: defaultPerExam,
		Log:            log,
	}
}

// Compose draws up to QuestionsPerExam questions from each source paper, in
// source order, and persists the result as a new private paper owned by actor.
// A source with fewer candidates than requested contributes all of them.
// Composed question ids are qualified with the source paper id, so papers that
// number their questions the same way never collide. A source listed twice
// contributes no question a second time.
func (c *Composer) Compose(ctx context.Context, actor Actor, req ComposeRequest) (Paper, error) {
	if strings.TrimSpace(req.Name) == "" {
		return Paper{}, fmt.Errorf("%w: name required", ErrInvalidPaper)
	}
	if len(req.SourcePaperIDs) == 0 {
		return Paper{}, fmt.Errorf("%w: at least one source paper required", ErrInvalidPaper)
	}
	per := req.QuestionsPerExam
	if per == 0 {
		per = c.DefaultPerExam
	}
	if per < 1 {
		return Paper{}, fmt.Errorf("%w: questionsPerExam must be >= 1", ErrInvalidPaper)
	}

	sources := make([]Paper, 0, len(req.SourcePaperIDs))
	for _, id := range req.SourcePaperIDs {
		p, err := c.Store.GetPaper(ctx, id)
		if err != nil {
			if errors.Is(err, ErrPaperNotFound) {
				return Paper{}, fmt.Errorf("source %s: %w", id, ErrPaperNotFound)
			}
			return Paper{}, err
		}
		if err := c.Auth.CanUse(ctx, actor, p); err != nil {
			return Paper{}, fmt.Errorf("source %s: %w", id, err)
		}
		sources = append(sources, p)
	}

	drawn := make(map[string]struct{})
	questions := make([]Question, 0, per*len(sources))
	for _, src := range sources {
		for _, q := range c.draw(qualify(src), drawn, per) {
			drawn[q.ID] = struct{}{}
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return Paper{}, fmt.Errorf("%w: source papers have no questions", ErrInvalidPaper)
	}

	out := Paper{
		ID:            uuid.NewString(),
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
		OwnerID:       actor.ID,
		Private:       true,
		Questions:     questions,
		CreatedAt:     c.Now(),
	}
	if err := c.Store.PutPaper(ctx, out); err != nil {
		return Paper{}, err
	}
	if c.Log != nil {
		c.Log.WithFields(logrus.Fields{
			"paper_id":  out.ID,
			"sources":   len(sources),
			"questions": len(questions),
		}).Info("private exam composed")
	}
	return out, nil
}

// qualify copies the source's questions with ids prefixed by the source id.
func qualify(src Paper) []Question {
	out := make([]Question, len(src.Questions))
	for i, q := range src.Questions {
		q.ID = src.ID + ":" + q.ID
		out[i] = q
	}
	return out
}

// draw samples k questions without replacement, skipping ones already taken.
func (c *Composer) draw(pool []Question, taken map[string]struct{}, k int) []Question {
	cands := make([]Question, 0, len(pool))
	for _, q := range pool {
		if _, dup := taken[q.ID]; !dup {
			cands = append(cands, q)
		}
	}
	if len(cands) <= k {
		return cands
	}
	perm := c.Rand.Perm(len(cands))
	out := make([]Question, 0, k)
	for _, i := range perm[:k] {
		out = append(out, cands[i])
	}
	return out
}
