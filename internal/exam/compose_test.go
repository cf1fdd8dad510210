package exam_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/mind-engage/mindengage-hiring/internal/exam"
)

type fakeStore struct {
	papers map[string]exam.Paper
	puts   []exam.Paper
}

func newFakeStore(papers ...exam.Paper) *fakeStore {
	s := &fakeStore{papers: map[string]exam.Paper{}}
	for _, p := range papers {
		s.papers[p.ID] = p
	}
	return s
}

func (s *fakeStore) PutPaper(_ context.Context, p exam.Paper) error {
	if _, ok := s.papers[p.ID]; ok {
		return exam.ErrPaperExists
	}
	s.papers[p.ID] = p
	s.puts = append(s.puts, p)
	return nil
}

func (s *fakeStore) GetPaper(_ context.Context, id string) (exam.Paper, error) {
	p, ok := s.papers[id]
	if !ok {
		return exam.Paper{}, exam.ErrPaperNotFound
	}
	return p, nil
}

func paperWith(id, owner string, n int) exam.Paper {
	qs := make([]exam.Question, n)
	for i := range qs {
		qs[i] = exam.Question{
			ID:        fmt.Sprintf("%s-q%d", id, i+1),
			Type:      exam.SingleChoice,
			AnswerKey: []string{"A"},
			Points:    1,
		}
	}
	return exam.Paper{ID: id, Name: "Paper " + id, OwnerID: owner, Questions: qs}
}

func newComposer(st exam.Store) *exam.Composer {
	c := exam.NewComposer(st, nil, 10, nil)
	c.Rand = rand.New(rand.NewSource(7))
	c.Now = func() time.Time { return time.Unix(1_700_000_000, 0) }
	return c
}

var recruiter = exam.Actor{ID: "rec-1", Role: "recruiter"}

func TestCompose_ShortDrawTakesWholeSource(t *testing.T) {
	st := newFakeStore(paperWith("A", "rec-1", 3), paperWith("B", "rec-1", 20))
	c := newComposer(st)

	p, err := c.Compose(context.Background(), recruiter, exam.ComposeRequest{
		Name:             "Backend screening",
		SourcePaperIDs:   []string{"A", "B"},
		QuestionsPerExam: 5,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(p.Questions) != 8 {
		t.Fatalf("expected 3+5=8 questions, got %d", len(p.Questions))
	}
	// per-source grouping: first three come from A, the rest from B
	for i, q := range p.Questions {
		want := "A:"
		if i >= 3 {
			want = "B:"
		}
		if q.ID[:2] != want {
			t.Fatalf("question %d = %s, expected prefix %s", i, q.ID, want)
		}
	}
	if !p.Private || p.OwnerID != "rec-1" {
		t.Fatalf("composed paper should be private and owned by caller: %+v", p)
	}
	if len(st.puts) != 1 {
		t.Fatalf("expected one persisted paper, got %d", len(st.puts))
	}
	if len(st.papers["B"].Questions) != 20 {
		t.Fatal("source paper must not be mutated")
	}
}

func TestCompose_DrawsWithoutReplacement(t *testing.T) {
	st := newFakeStore(paperWith("B", "rec-1", 20))
	c := newComposer(st)

	p, err := c.Compose(context.Background(), recruiter, exam.ComposeRequest{
		Name: "x", SourcePaperIDs: []string{"B"}, QuestionsPerExam: 12,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	seen := map[string]bool{}
	for _, q := range p.Questions {
		if seen[q.ID] {
			t.Fatalf("question %s drawn twice", q.ID)
		}
		seen[q.ID] = true
	}
	if len(seen) != 12 {
		t.Fatalf("expected 12 distinct questions, got %d", len(seen))
	}
}

func TestCompose_DefaultPerExam(t *testing.T) {
	st := newFakeStore(paperWith("B", "rec-1", 30))
	c := newComposer(st)

	p, err := c.Compose(context.Background(), recruiter, exam.ComposeRequest{
		Name: "x", SourcePaperIDs: []string{"B"},
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(p.Questions) != 10 {
		t.Fatalf("expected default of 10, got %d", len(p.Questions))
	}
}

func TestCompose_SeededRandIsReproducible(t *testing.T) {
	ids := func() []string {
		st := newFakeStore(paperWith("B", "rec-1", 20))
		p, err := newComposer(st).Compose(context.Background(), recruiter, exam.ComposeRequest{
			Name: "x", SourcePaperIDs: []string{"B"}, QuestionsPerExam: 5,
		})
		if err != nil {
			t.Fatalf("compose: %v", err)
		}
		out := make([]string, len(p.Questions))
		for i, q := range p.Questions {
			out[i] = q.ID
		}
		return out
	}
	a, b := ids(), ids()
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("draws differ with same seed: %v vs %v", a, b)
		}
	}
}

// numbered returns a paper whose question ids are "1".."n".
func numbered(id string, n int) exam.Paper {
	p := paperWith(id, "rec-1", n)
	for i := range p.Questions {
		p.Questions[i].ID = fmt.Sprint(i + 1)
	}
	return p
}

func TestCompose_SourcesWithSameLocalIDs(t *testing.T) {
	st := newFakeStore(numbered("A", 3), numbered("B", 5))

	p, err := newComposer(st).Compose(context.Background(), recruiter, exam.ComposeRequest{
		Name: "x", SourcePaperIDs: []string{"A", "B"}, QuestionsPerExam: 5,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(p.Questions) != 8 {
		t.Fatalf("expected 3+5=8 questions, got %d", len(p.Questions))
	}
	fromB := 0
	for _, q := range p.Questions {
		if strings.HasPrefix(q.ID, "B:") {
			fromB++
		}
	}
	if fromB != 5 {
		t.Fatalf("expected all 5 questions of B, got %d", fromB)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("composed paper invalid: %v", err)
	}
}

func TestCompose_RepeatedSourceContributesOnce(t *testing.T) {
	st := newFakeStore(paperWith("A", "rec-1", 2))

	p, err := newComposer(st).Compose(context.Background(), recruiter, exam.ComposeRequest{
		Name: "x", SourcePaperIDs: []string{"A", "A"}, QuestionsPerExam: 5,
	})
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if len(p.Questions) != 2 {
		t.Fatalf("expected 2 unique questions, got %d", len(p.Questions))
	}
}

func TestCompose_Errors(t *testing.T) {
	st := newFakeStore(paperWith("A", "rec-1", 3), paperWith("OTHER", "rec-2", 3))
	c := newComposer(st)
	ctx := context.Background()

	cases := []struct {
		name string
		req  exam.ComposeRequest
		want error
	}{
		{"unknown source", exam.ComposeRequest{Name: "x", SourcePaperIDs: []string{"A", "nope"}}, exam.ErrPaperNotFound},
		{"foreign source", exam.ComposeRequest{Name: "x", SourcePaperIDs: []string{"OTHER"}}, exam.ErrForbidden},
		{"no sources", exam.ComposeRequest{Name: "x"}, exam.ErrInvalidPaper},
		{"negative per exam", exam.ComposeRequest{Name: "x", SourcePaperIDs: []string{"A"}, QuestionsPerExam: -1}, exam.ErrInvalidPaper},
		{"missing name", exam.ComposeRequest{SourcePaperIDs: []string{"A"}}, exam.ErrInvalidPaper},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Compose(ctx, recruiter, tc.req)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
	if len(st.puts) != 0 {
		t.Fatalf("failed compositions must not persist, got %d", len(st.puts))
	}
}

func TestCompose_AdminMayUseAnyPaper(t *testing.T) {
	st := newFakeStore(paperWith("OTHER", "rec-2", 3))
	_, err := newComposer(st).Compose(context.Background(), exam.Actor{ID: "root", Role: "admin"}, exam.ComposeRequest{
		Name: "x", SourcePaperIDs: []string{"OTHER"},
	})
	if err != nil {
		t.Fatalf("admin compose: %v", err)
	}
}
