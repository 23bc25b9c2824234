package worker

import (
	"context"
	"log"
	"time"

	"storage-service/internal/metrics"
)

// DefaultSchedulerInterval replaces a non-positive interval.
const DefaultSchedulerInterval = time.Hour

type namedJob struct {
	name string
	run  Job
}

type JobScheduler struct {
	Name     string
	Interval time.Duration
	Pool     *WorkingPool
	jobs     []namedJob
	metrics  *metrics.Metrics
}

// NewJobScheduler creates a new scheduler.
func NewJobScheduler(name string, interval time.Duration, pool *WorkingPool, m *metrics.Metrics) *JobScheduler {
	if interval <= 0 {
		log.Printf("[Scheduler %s] Interval %v is not positive, using %v\n", name, interval, DefaultSchedulerInterval)
		interval = DefaultSchedulerInterval
	}
	return &JobScheduler{
		Name:     name,
		Interval: interval,
		Pool:     pool,
		jobs:     make([]namedJob, 0),
		metrics:  m,
	}
}

// example: AddJob("expiry-sweep", sweeps.ExpirySweep)
func (s *JobScheduler) AddJob(name string, job Job) {
	s.jobs = append(s.jobs, namedJob{name: name, run: job})
}

// Run submits every job once immediately and then on each tick until ctx is
// canceled.
func (s *JobScheduler) Run(ctx context.Context) {
	log.Printf("[Scheduler %s] Running every %v with %d jobs\n", s.Name, s.Interval, len(s.jobs))
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.submitAll(ctx)
	for {
		select {
		case <-ticker.C:
			s.submitAll(ctx)
		case <-ctx.Done():
			log.Printf("[Scheduler %s] Shutting down.\n", s.Name)
			return
		}
	}
}

func (s *JobScheduler) submitAll(ctx context.Context) {
	for _, job := range s.jobs {
		if err := s.Pool.SubmitJob(ctx, s.instrument(job)); err != nil {
			log.Printf("[Scheduler %s] Failed to submit job %s: %v\n", s.Name, job.name, err)
			return
		}
	}
}

func (s *JobScheduler) instrument(job namedJob) Job {
	return func(ctx context.Context) error {
		started := time.Now()
		err := job.run(ctx)
		s.metrics.JobRun(job.name, err)
		log.Printf("[Scheduler %s] Job %s finished in %v (error: %v)\n", s.Name, job.name, time.Since(started), err)
		return err
	}
}
