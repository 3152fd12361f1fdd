package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PaymentLinkRetrier resends links for orders saved without one.
type PaymentLinkRetrier interface {
	RetryMissingPaymentLinks(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentLinkJob periodically texts payment links to customers whose order
// was saved while the payment provider was unavailable.
type PaymentLinkJob struct {
	retrier   PaymentLinkRetrier
	interval  time.Duration
	olderThan time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewPaymentLinkJob(retrier PaymentLinkRetrier, interval, olderThan time.Duration) *PaymentLinkJob {
	return &PaymentLinkJob{
		retrier:   retrier,
		interval:  interval,
		olderThan: olderThan,
	}
}

// Start runs the sweep every interval until Stop or ctx is done. A
// non-positive interval disables the job.
func (p *PaymentLinkJob) Start(ctx context.Context) {
	if p.interval <= 0 {
		log.Warn().Msg("Payment link retries disabled")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)

	log.Info().Dur("interval", p.interval).Msg("Starting payment link retries")
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.run(ctx)
			}
		}
	}()
}

func (p *PaymentLinkJob) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
}

func (p *PaymentLinkJob) run(ctx context.Context) {
	if _, err := p.retrier.RetryMissingPaymentLinks(ctx, p.olderThan); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("Payment link retry sweep failed")
	}
}
