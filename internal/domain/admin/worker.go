package admin

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper deletes expired redeem codes in the background
type Sweeper struct {
	service  *Service
	interval time.Duration
	wakeCh   chan struct{}
	stopCh   chan struct{}
	done     sync.WaitGroup
}

// NewSweeper creates a new expired-code sweeper
func NewSweeper(service *Service, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		service:  service,
		interval: interval,
		wakeCh:   make(chan struct{}, 1),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background sweeper
func (s *Sweeper) Start() {
	log.Info().Dur("interval", s.interval).Msg("Starting code sweeper...")
	s.done.Add(1)
	go s.loop()
}

// Stop stops the sweeper and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	log.Info().Msg("Stopping code sweeper...")
	close(s.stopCh)
	s.done.Wait()
}

// Wake requests a sweep ahead of the next tick. It never blocks.
func (s *Sweeper) Wake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Sweeper) loop() {
	defer s.done.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	s.RunOnce()

	for {
		select {
		case <-ticker.C:
			s.RunOnce()
		case <-s.wakeCh:
			s.RunOnce()
		case <-s.stopCh:
			return
		}
	}
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce() *SweepResult {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	log.Debug().Msg("Starting expired code sweep...")

	res, err := s.service.DeleteAllExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to sweep expired codes")
		return nil
	}
	if len(res.Failed) > 0 {
		log.Warn().Strs("codes", res.Failed).Msg("Some expired codes could not be deleted")
	}

	log.Debug().Int("deleted", len(res.Deleted)).Msg("Finished expired code sweep")
	return res
}
