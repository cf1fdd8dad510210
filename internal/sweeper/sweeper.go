package sweeper

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mind-engage/mindengage-hiring/internal/assignment"
	syncx "github.com/mind-engage/mindengage-hiring/internal/sync"
)

// Sweeper periodically expires PENDING assignments whose deadline has passed.
type Sweeper struct {
	store    assignment.Store
	events   syncx.Recorder
	log      logrus.FieldLogger
	interval time.Duration
	batch    int

	Now func() time.Time

	once     sync.Once
	wg       sync.WaitGroup
	stopChan chan struct{}
}

func New(store assignment.Store, events syncx.Recorder, log logrus.FieldLogger, interval time.Duration, batch int) *Sweeper {
	if events == nil {
		events = syncx.Nop{}
	}
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if batch <= 0 {
		batch = 100
	}
	return &Sweeper{
		store:    store,
		events:   events,
		log:      log.WithField("component", "sweeper"),
		interval: interval,
		batch:    batch,
		Now:      time.Now,
		stopChan: make(chan struct{}),
	}
}

// RunOnce expires every overdue assignment it can find and returns how many
// transitions it applied. Assignments completed or extended concurrently are
// skipped.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	now := s.Now()
	total := 0
	for {
		ids, err := s.store.ListOverdue(ctx, now, s.batch)
		if err != nil {
			return total, err
		}
		applied := 0
		for _, id := range ids {
			ok, err := s.store.Expire(ctx, id, now)
			if err != nil {
				return total, err
			}
			if !ok {
				s.log.WithField("assignment_id", id).Debug("expiry lost to a concurrent update")
				continue
			}
			applied++
			if err := s.events.Record(ctx, syncx.AssignmentExpired, id, map[string]any{"by": "sweeper"}); err != nil {
				s.log.WithError(err).Warn("event log append failed")
			}
		}
		total += applied
		if len(ids) < s.batch || applied == 0 {
			return total, nil
		}
	}
}

// Start runs a sweep immediately and then on every tick until Stop or ctx ends.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.WithField("interval", s.interval.String()).Info("sweeper started")
}

// Stop signals the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.once.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	s.log.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sweep(ctx)
	for {
		select {
		case <-s.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.RunOnce(ctx)
	if err != nil {
		s.log.WithError(err).Warn("sweep failed")
	}
	if n > 0 {
		s.log.WithField("expired", n).Info("expired overdue assignments")
	}
}
