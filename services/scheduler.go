// services/scheduler.go
package services

import (
	"log"
	"time"

	"race-registration-system/models"

	"github.com/go-co-op/gocron/v2"
)

// CompleteExpiredEvents moves published events past their end time to
// completed. Returns how many were flipped.
func (s *EventService) CompleteExpiredEvents(now time.Time) int {
	var events []models.Event
	// end_time > epoch filters out events created without one
	err := s.DB.Where("status = ? AND end_time <= ? AND end_time > ?",
		models.EventStatusPublished, now, time.Unix(0, 0)).
		Find(&events).Error
	if err != nil {
		log.Printf("[Scheduler] DB error: %v", err)
		return 0
	}

	done := 0
	for _, ev := range events {
		ev.Status = models.EventStatusCompleted
		ev.CompletedAt = &now
		if err := s.DB.Save(&ev).Error; err != nil {
			log.Printf("[Scheduler] Failed to complete event %s: %v", ev.ID, err)
		} else {
			log.Printf("✅ Auto-completed event: %s", ev.Name)
			done++
		}
	}
	return done
}

// StartCompletionScheduler runs the completion pass once a minute.
func (s *EventService) StartCompletionScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(1*time.Minute),
		gocron.NewTask(func() {
			s.CompleteExpiredEvents(time.Now())
		}),
	)
}
