// Package scheduler runs periodic renumbering passes so rows edited outside
// the service converge back to their derived order ids.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"order-crm/internal/logger"
	"order-crm/internal/models"
	"order-crm/internal/order"

	"github.com/robfig/cron/v3"
)

// Renumberer runs one renumbering pass.
type Renumberer interface {
	Renumber(ctx context.Context, actor models.Principal, trigger string) (models.RenumberResult, error)
}

type Scheduler struct {
	cron       *cron.Cron
	renumberer Renumberer
	logger     *logger.Logger
	timeout    time.Duration

	mu      sync.Mutex
	running bool
}

// New parses spec (standard five-field cron or a descriptor such as
// "@every 15m") and prepares the job without starting it.
func New(spec string, renumberer Renumberer, timeout time.Duration, l *logger.Logger) (*Scheduler, error) {
	if timeout <= 0 {
		timeout = time.Minute
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s := &Scheduler{
		cron:       cron.New(cron.WithParser(parser)),
		renumberer: renumberer,
		logger:     l,
		timeout:    timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.RunOnce); err != nil {
		return nil, fmt.Errorf("invalid renumber schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.cron.Start()
	s.logger.Info("SCHEDULER", "Renumber schedule started")
}

// Stop halts the schedule and waits for a running pass, up to ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("SCHEDULER", "Renumber schedule stopped")
	case <-ctx.Done():
		s.logger.Warn("SCHEDULER", "Stopped without waiting for the running pass")
	}
}

// RunOnce performs a single scheduled pass.
func (s *Scheduler) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	result, err := s.renumberer.Renumber(ctx, models.Principal{}, order.TriggerScheduled)
	if err != nil {
		s.logger.Error("SCHEDULER", fmt.Sprintf("Scheduled renumber failed: %v", err))
		return
	}
	if result.Updated > 0 || result.Failed > 0 {
		s.logger.Warn("SCHEDULER", fmt.Sprintf("Scheduled renumber repaired %d order(s), %d failed", result.Updated, result.Failed))
	}
}
