package jobs

import (
	"fmt"
	"log"

	"github.com/robfig/cron/v3"
)

// Scheduler runs named background jobs on cron schedules with seconds
// precision.
type Scheduler struct {
	cron *cron.Cron
	jobs map[string]cron.EntryID
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(cron.Recover(cron.DefaultLogger))),
		jobs: make(map[string]cron.EntryID),
	}
}

// Add schedules fn under name. Format: "0 */30 * * * *" = every 30 minutes.
func (s *Scheduler) Add(name, schedule string, fn func()) error {
	id, err := s.cron.AddFunc(schedule, func() {
		log.Printf("⏰ Running job %s", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("error scheduling job %s: %w", name, err)
	}
	s.jobs[name] = id
	return nil
}

// Start begins running scheduled jobs
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Printf("🚀 Job scheduler started with %d jobs", len(s.jobs))
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("🛑 Job scheduler stopped")
}
