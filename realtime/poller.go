package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Refresher re-fetches the view-model's data from the REST API. It runs
// whenever the push channel is down so staleness stays bounded.
type Refresher func(ctx context.Context)

// Poller drives a Refresher at a fixed interval. Start and Stop are
// idempotent; a tick that races Stop is a no-op because the loop owns
// its own context.
type Poller struct {
	interval time.Duration
	refresh  Refresher
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
}

func NewPoller(interval time.Duration, refresh Refresher, log zerolog.Logger) *Poller {
	return &Poller{
		interval: interval,
		refresh:  refresh,
		log:      log.With().Str("component", "poller").Logger(),
	}
}

func (p *Poller) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.log.Info().Dur("interval", p.interval).Msg("polling mode started")

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.refresh(ctx)
			}
		}
	}()
}

func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
	p.log.Info().Msg("polling mode stopped")
}

func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}
