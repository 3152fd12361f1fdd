package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Ananth-NQI/eatcaterly-backend/internal/services"
)

// dormancyCheckHour is when the daily dormancy sweep runs (local time).
const dormancyCheckHour = 3

// Broadcaster is the work the scheduler triggers.
type Broadcaster interface {
	SendDailyMenu(ctx context.Context) (*services.BroadcastReport, error)
	MarkDormantCustomers(ctx context.Context, inactiveFor time.Duration) (int64, error)
}

// NotificationJob handles scheduled notifications
type NotificationJob struct {
	broadcaster  Broadcaster
	location     *time.Location
	hour, minute int
	dormantAfter time.Duration

	now    func() time.Time
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewNotificationJob creates a scheduler that sends the daily menu at
// hour:minute in location and sweeps dormant customers once a day.
func NewNotificationJob(broadcaster Broadcaster, location *time.Location, hour, minute int, dormantAfter time.Duration) *NotificationJob {
	if location == nil {
		location = time.UTC
	}
	return &NotificationJob{
		broadcaster:  broadcaster,
		location:     location,
		hour:         hour,
		minute:       minute,
		dormantAfter: dormantAfter,
		now:          time.Now,
	}
}

// Start begins all scheduled notification jobs
func (n *NotificationJob) Start(ctx context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cancel != nil {
		log.Warn().Msg("Notification jobs already running")
		return
	}

	ctx, n.cancel = context.WithCancel(ctx)
	log.Info().Int("hour", n.hour).Int("minute", n.minute).Str("tz", n.location.String()).Msg("Starting scheduled notification jobs")

	n.wg.Add(2)
	go n.scheduleDaily(ctx, "daily menu broadcast", n.hour, n.minute, n.sendDailyMenu)
	go n.scheduleDaily(ctx, "dormancy check", dormancyCheckHour, 0, n.checkDormantCustomers)
}

// Stop halts all scheduled jobs and waits for a running one to finish
func (n *NotificationJob) Stop() {
	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()

	if cancel == nil {
		return
	}
	log.Info().Msg("Stopping scheduled notification jobs...")
	cancel()
	n.wg.Wait()
}

func (n *NotificationJob) scheduleDaily(ctx context.Context, name string, hour, minute int, run func(context.Context)) {
	defer n.wg.Done()
	for {
		now := n.now().In(n.location)
		wait := nextDailyRun(now, hour, minute).Sub(now)
		log.Debug().Str("job", name).Dur("in", wait).Msg("Next run scheduled")

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		run(ctx)
	}
}

// nextDailyRun returns the next hour:minute strictly after now, in now's
// location. Days are added on the calendar so DST changes keep the wall time.
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month(), now.Day()+1, hour, minute, 0, 0, now.Location())
	}
	return next
}

func (n *NotificationJob) sendDailyMenu(ctx context.Context) {
	report, err := n.broadcaster.SendDailyMenu(ctx)
	if err != nil {
		if services.KindOf(err) == services.KindNotFound {
			log.Info().Msg("No active menu today, broadcast skipped")
			return
		}
		if !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Daily menu broadcast failed")
		}
		return
	}
	log.Info().Int("sent", report.Sent).Int("failed", report.Failed).Msg("Daily menu broadcast done")
}

func (n *NotificationJob) checkDormantCustomers(ctx context.Context) {
	if n.dormantAfter <= 0 {
		return
	}
	if _, err := n.broadcaster.MarkDormantCustomers(ctx, n.dormantAfter); err != nil {
		log.Error().Err(err).Msg("Dormancy check failed")
	}
}
