package projection

import (
	"context"
	"log"
	"time"
)

// OrphanSweeper periodically resets cursors stuck "in_progress" after a
// crash mid-dispatch, the same time.Ticker-driven background-loop shape
// the teacher uses for its batch scheduler.
type OrphanSweeper struct {
	Store      interface {
		SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error)
	}
	Interval   time.Duration
	OrphanAfter time.Duration
	Logger     *log.Logger

	stop chan struct{}
}

// NewOrphanSweeper builds a sweeper with a default logger.
func NewOrphanSweeper(s interface {
	SweepOrphans(ctx context.Context, olderThan time.Duration) (int64, error)
}, interval, orphanAfter time.Duration) *OrphanSweeper {
	return &OrphanSweeper{
		Store:       s,
		Interval:    interval,
		OrphanAfter: orphanAfter,
		Logger:      log.New(log.Writer(), "[ProjectionSweeper] ", log.LstdFlags),
		stop:        make(chan struct{}),
	}
}

// Run blocks, sweeping on every tick until ctx is cancelled or Stop is
// called.
func (s *OrphanSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			n, err := s.Store.SweepOrphans(ctx, s.OrphanAfter)
			if err != nil {
				s.Logger.Printf("sweep failed: %v", err)
				continue
			}
			if n > 0 {
				s.Logger.Printf("reset %d orphaned cursor(s)", n)
			}
		}
	}
}

// Stop signals Run to return.
func (s *OrphanSweeper) Stop() {
	close(s.stop)
}
