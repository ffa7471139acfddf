// Package ingest schedules periodic rescans of the data directory so
// new or changed documents get picked up without operator action.
package ingest

import (
	"time"

	"github.com/go-co-op/gocron"

	"knowledge-assistant/internal/logger"
)

// Scheduler manages the periodic data directory rescan job.
type Scheduler struct {
	scheduler *gocron.Scheduler
}

func NewScheduler() *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.TagsUnique()
	return &Scheduler{scheduler: s}
}

func (s *Scheduler) Start() {
	s.scheduler.StartAsync()
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// ScheduleRescan runs job every interval. The first run fires after one
// full interval; the initial ingest happens at startup, not here.
func (s *Scheduler) ScheduleRescan(interval time.Duration, job func() error) error {
	_, err := s.scheduler.Every(interval).Tag("data-rescan").WaitForSchedule().Do(func() {
		if err := job(); err != nil {
			logger.Error("Scheduled rescan failed", "error", err.Error())
		}
	})
	return err
}
