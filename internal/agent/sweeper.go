package agent

import (
	"context"
	"log"
	"time"
)

// Sweeper settles reviews that nobody answered in time.
type Sweeper struct {
	Manager  *Manager
	Interval time.Duration
}

func NewSweeper(manager *Manager) *Sweeper {
	return &Sweeper{Manager: manager, Interval: 30 * time.Second}
}

func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Review sweeper started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.Manager.SweepExpiredReviews(ctx, s.Manager.Now())
	if err != nil {
		log.Printf("Error sweeping reviews: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Settled %d timed out review(s) with policy %s", n, s.Manager.TimeoutPolicy)
	}
}
