// Package scheduler fires the proactive refresh jobs on cron schedules.
// A fire only submits the job to the work pool; job bodies never run on the
// cron goroutine.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/aristath/aurum/internal/events"
	"github.com/aristath/aurum/internal/metrics"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job represents a scheduled job
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// JobInfo describes a registered job for status output
type JobInfo struct {
	Name     string    `json:"name"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next"`
	Prev     time.Time `json:"prev,omitempty"`
}

type registration struct {
	job      Job
	schedule string
	id       cron.EntryID
}

// Scheduler manages background jobs
type Scheduler struct {
	cron    *cron.Cron
	pool    Submitter
	metrics *metrics.Metrics
	bus     *events.Bus
	log     zerolog.Logger

	mu   sync.RWMutex
	jobs map[string]registration
}

// New creates a new scheduler evaluating schedules in loc
func New(pool Submitter, loc *time.Location, m *metrics.Metrics, bus *events.Bus, log zerolog.Logger) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		pool:    pool,
		metrics: m,
		bus:     bus,
		log:     log.With().Str("component", "scheduler").Logger(),
		jobs:    make(map[string]registration),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop stops firing jobs. Jobs already submitted keep running on the pool.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers a new job with cron schedule
// Schedule examples:
//   - "30 6 * * *"              - 06:30 every day
//   - "0 0,2,4,6,8,10 * * *"    - every other hour until 10:00
//   - "@hourly"                 - every hour
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	id, err := s.cron.AddFunc(schedule, func() { s.submit(job) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s with %q: %w", job.Name(), schedule, err)
	}
	s.jobs[job.Name()] = registration{job: job, schedule: schedule, id: id}

	s.log.Info().
		Str("schedule", schedule).
		Str("job", job.Name()).
		Msg("Job registered")

	return nil
}

// RunNow submits a registered job immediately (outside schedule)
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	reg, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job: %s", name)
	}

	s.log.Info().Str("job", name).Msg("Running job immediately")
	if !s.submit(reg.job) {
		return fmt.Errorf("job %s not submitted: work queue full", name)
	}
	return nil
}

func (s *Scheduler) submit(job Job) bool {
	if s.pool.Submit("job:"+job.Name(), job.Run) {
		s.log.Debug().Str("job", job.Name()).Msg("Job submitted")
		return true
	}

	s.metrics.Skipped(job.Name())
	s.bus.Emit("scheduler", &events.JobSkippedData{Job: job.Name(), Reason: "work queue full"})
	s.log.Warn().Str("job", job.Name()).Msg("Job skipped, work queue full")
	return false
}

// Jobs lists registered jobs with their next and previous fire times
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, reg := range s.jobs {
		e := s.cron.Entry(reg.id)
		out = append(out, JobInfo{Name: name, Schedule: reg.schedule, Next: e.Next, Prev: e.Prev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
