// Package sweeper deletes expired capability tokens in the background.
// Assignments survive a sweep unfinished, so an overseer whose token aged
// out can be handed a fresh one for the same round.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"fieldkey/internal/platform/metrics"
)

// TokenStore is the slice of the token store the sweeper needs.
type TokenStore interface {
	ExpiredKeys(ctx context.Context, now time.Time) ([]string, error)
	DeleteByKeys(ctx context.Context, keys []string) (int, error)
}

// AssignmentStore clears scope-binding references to deleted tokens.
type AssignmentStore interface {
	DetachTokenKeys(ctx context.Context, keys []string) error
}

// Tx runs a callback inside one atomic transaction.
type Tx interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Sweeper periodically removes tokens whose expiration has passed.
type Sweeper struct {
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tokens      TokenStore
	assignments AssignmentStore
	tx          Tx
	interval    time.Duration
}

// New constructs a sweeper. metrics may be nil.
func New(logger *slog.Logger, m *metrics.Metrics, tokens TokenStore, assignments AssignmentStore, tx Tx, interval time.Duration) *Sweeper {
	return &Sweeper{
		logger:      logger,
		metrics:     m,
		tokens:      tokens,
		assignments: assignments,
		tx:          tx,
		interval:    interval,
	}
}

// Run sweeps on the configured interval until ctx is canceled. One failed
// sweep is logged and retried on the next tick.
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("token sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("token sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.SweepAt(ctx, time.Now()); err != nil {
				s.logger.Error("token sweep failed", "error", err)
			}
		}
	}
}

// SweepAt deletes every token expired as of now and detaches its scope
// references in the same transaction. Returns the number of tokens deleted.
// Safe to call repeatedly; a sweep with nothing to do is a no-op.
func (s *Sweeper) SweepAt(ctx context.Context, now time.Time) (int, error) {
	var deleted int
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		keys, err := s.tokens.ExpiredKeys(ctx, now)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return nil
		}
		// Binding tables reference token rows; clear them first.
		if err := s.assignments.DetachTokenKeys(ctx, keys); err != nil {
			return err
		}
		deleted, err = s.tokens.DeleteByKeys(ctx, keys)
		return err
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		if s.metrics != nil {
			s.metrics.TokensSwept.Add(float64(deleted))
		}
		s.logger.Info("expired tokens swept", "deleted", deleted)
	}
	return deleted, nil
}
