// workers/checkin_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"race-registration-system/services"
)

// CheckinWorkerPool consumes "check-in completed" events and runs the
// achievement evaluation plus notification dispatch off the scan path.
// The scan operator gets their response the moment the attendance row is
// written; everything here is best-effort with bounded retries.
type CheckinWorkerPool struct {
	achievements *services.AchievementService
	notifier     *Notifier
	jobs         chan services.CheckinEvent
	workers      int
	maxAttempts  int
}

func NewCheckinWorkerPool(achievements *services.AchievementService, notifier *Notifier, workers, queueSize int) *CheckinWorkerPool {
	if workers <= 0 {
		workers = 2
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &CheckinWorkerPool{
		achievements: achievements,
		notifier:     notifier,
		jobs:         make(chan services.CheckinEvent, queueSize),
		workers:      workers,
		maxAttempts:  3,
	}
}

// Enqueue hands a check-in event to the pool without blocking the caller.
// Returns false when the queue is full; the caller logs and moves on
// (evaluation re-runs on the user's next check-in anyway).
func (p *CheckinWorkerPool) Enqueue(ev services.CheckinEvent) bool {
	select {
	case p.jobs <- ev:
		return true
	default:
		return false
	}
}

func (p *CheckinWorkerPool) Start(ctx context.Context) {
	log.Printf("🔁 Starting Check-in Worker Pool (%d workers)…", p.workers)
	for i := 0; i < p.workers; i++ {
		go p.run(ctx, i)
	}
}

func (p *CheckinWorkerPool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Printf("⏹️ Check-in worker %d stopped", id)
			return
		case ev := <-p.jobs:
			p.process(ctx, ev)
		}
	}
}

func (p *CheckinWorkerPool) process(ctx context.Context, ev services.CheckinEvent) {
	var awards []services.Award
	var err error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		awards, err = p.achievements.EvaluateUser(ev.ExternalUserID)
		if err == nil {
			break
		}
		log.Printf("⚠️ [WORKER] achievement evaluation attempt %d/%d failed for user %s: %v",
			attempt, p.maxAttempts, ev.ExternalUserID, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(attempt) * time.Second):
		}
	}
	if err != nil {
		log.Printf("❌ [WORKER] giving up on achievement evaluation for user %s", ev.ExternalUserID)
		return
	}

	if p.notifier == nil {
		return
	}
	for _, award := range awards {
		p.notifier.NotifyAward(ctx, award)
	}
}
