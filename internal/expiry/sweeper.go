// Package expiry runs the background sweep that enforces time-based
// deletion and view-limit exhaustion. It is deliberately independent of
// the engine's native TTL indexes: on MongoDB both mechanisms run and
// the sweep mostly finds nothing, on engines without native TTL the
// sweep is the only mechanism. Either way it stays off the request
// path.
package expiry

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/legacykeep/chat-store/internal/store"
)

// Sweeper periodically removes self-destructed messages and expired
// sessions, and flips view-exhausted messages to deleted.
type Sweeper struct {
	messages *store.MessagesStore
	sessions *store.SessionsStore
	interval time.Duration
	log      *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New returns a Sweeper. interval bounds the grace period between an
// expiry instant and physical removal.
func New(messages *store.MessagesStore, sessions *store.SessionsStore, interval time.Duration, log *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		messages: messages,
		sessions: sessions,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. One immediate
// sweep runs at startup so a restart does not extend the grace period
// by a full interval.
func (s *Sweeper) Start() {
	go s.run()
}

func (s *Sweeper) run() {
	defer close(s.doneCh)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stopCh:
			return
		}
	}
}

// sweep runs one pass. Each sub-sweep gets its own timeout; a slow or
// failing pass is logged and retried on the next tick, never escalated.
func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	if n, err := s.messages.SweepExpired(ctx); err != nil {
		s.log.Error("self-destruct sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("self-destructed messages removed", zap.Int64("count", n))
	}

	if n, err := s.messages.SweepExhausted(ctx); err != nil {
		s.log.Error("view-limit sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("view-exhausted messages deleted", zap.Int64("count", n))
	}

	if n, err := s.sessions.SweepExpiredSessions(ctx); err != nil {
		s.log.Error("session sweep failed", zap.Error(err))
	} else if n > 0 {
		s.log.Info("expired sessions removed", zap.Int64("count", n))
	}
}

// Stop shuts the sweep loop down and waits for an in-flight pass to
// finish. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}
