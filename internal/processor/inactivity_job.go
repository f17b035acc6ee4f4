package processor

import (
	"log/slog"
	"time"
)

// SweepScheduler enqueues sweep events on fixed tickers. It never runs sweep
// logic itself; the processor worker does, which keeps sweeps serialized
// with interaction handling.
type SweepScheduler struct {
	log       *slog.Logger
	processor *Processor

	warnInterval    time.Duration
	penaltyInterval time.Duration
	stopChan        chan bool
}

func NewSweepScheduler(log *slog.Logger, p *Processor, warnInterval, penaltyInterval time.Duration) *SweepScheduler {
	if warnInterval <= 0 {
		warnInterval = time.Hour
	}
	if penaltyInterval <= 0 {
		penaltyInterval = 30 * time.Minute
	}
	return &SweepScheduler{
		log:             log,
		processor:       p,
		warnInterval:    warnInterval,
		penaltyInterval: penaltyInterval,
		stopChan:        make(chan bool, 1),
	}
}

func (s *SweepScheduler) Start() {
	s.log.Info("sweep_scheduler_started",
		"warn_interval", s.warnInterval.String(),
		"penalty_interval", s.penaltyInterval.String(),
	)

	warnTicker := time.NewTicker(s.warnInterval)
	defer warnTicker.Stop()
	penaltyTicker := time.NewTicker(s.penaltyInterval)
	defer penaltyTicker.Stop()

	for {
		select {
		case <-warnTicker.C:
			s.processor.enqueueSweep(EventWarnSweep)
		case <-penaltyTicker.C:
			s.processor.enqueueSweep(EventPenaltySweep)
		case <-s.stopChan:
			s.log.Info("sweep_scheduler_stopped")
			return
		}
	}
}

func (s *SweepScheduler) Stop() {
	select {
	case s.stopChan <- true:
	default:
	}
}
