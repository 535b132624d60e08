package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"otc-signal-bot/internal/events"
	"otc-signal-bot/internal/logging"
)

// Job is a named unit of periodic work
type Job struct {
	Name     string
	Schedule string
	Timeout  time.Duration
	Run      func(ctx context.Context) error
}

// JobStatus reports the last run of a job
type JobStatus struct {
	Name      string    `json:"name"`
	Schedule  string    `json:"schedule"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      int       `json:"runs"`
	Failures  int       `json:"failures"`
	NextRun   time.Time `json:"next_run,omitempty"`
}

// Scheduler runs the background jobs on cron schedules
type Scheduler struct {
	cron   *cron.Cron
	bus    *events.EventBus
	logger *logging.Logger

	mu      sync.RWMutex
	jobs    map[string]*Job
	entries map[string]cron.EntryID
	status  map[string]*JobStatus
}

// NewScheduler creates a scheduler. bus may be nil.
func NewScheduler(bus *events.EventBus) *Scheduler {
	logger := logging.WithComponent("scheduler")
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		bus:     bus,
		logger:  logger,
		jobs:    make(map[string]*Job),
		entries: make(map[string]cron.EntryID),
		status:  make(map[string]*JobStatus),
	}
}

// Add registers a job. An empty schedule leaves the job runnable only through RunNow.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" || job.Run == nil {
		return fmt.Errorf("job needs a name and a run function")
	}
	if job.Timeout <= 0 {
		job.Timeout = 5 * time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.Name]; exists {
		return fmt.Errorf("job %q already registered", job.Name)
	}

	if job.Schedule != "" {
		name := job.Name
		id, err := s.cron.AddFunc(job.Schedule, func() { s.execute(name) })
		if err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", job.Schedule, job.Name, err)
		}
		s.entries[job.Name] = id
	}

	j := job
	s.jobs[job.Name] = &j
	s.status[job.Name] = &JobStatus{Name: job.Name, Schedule: job.Schedule}
	return nil
}

// Start begins the cron loop
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", "jobs", len(s.jobs))
}

// Stop stops the cron loop and waits for running jobs
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("job scheduler stopped")
}

// RunNow executes a job synchronously
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	_, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	return s.execute(name)
}

func (s *Scheduler) execute(name string) error {
	s.mu.RLock()
	job := s.jobs[name]
	s.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), job.Timeout)
	defer cancel()

	start := time.Now()
	err := job.Run(ctx)

	s.mu.Lock()
	st := s.status[name]
	st.LastRun = start
	st.Runs++
	if err != nil {
		st.Failures++
		st.LastError = err.Error()
	} else {
		st.LastError = ""
	}
	s.mu.Unlock()

	log := s.logger.WithField("job", name).WithDuration(time.Since(start))
	if err != nil {
		log.Error("job failed", "error", err)
		if s.bus != nil {
			s.bus.PublishError(name, "scheduled job failed", err)
		}
		return err
	}
	log.Debug("job finished")
	return nil
}

// Status returns the state of every job, sorted by name
func (s *Scheduler) Status() []JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobStatus, 0, len(s.status))
	for name, st := range s.status {
		cp := *st
		if id, ok := s.entries[name]; ok {
			cp.NextRun = s.cron.Entry(id).Next
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// cronLogger adapts the service logger to cron.Logger
type cronLogger struct {
	l *logging.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}

// Job names
const (
	JobOutcomes  = "evaluate_outcomes"
	JobRetention = "retention"
	JobPrune     = "prune_candle_cache"
)

// Schedules are the cron specs of the standard jobs
type Schedules struct {
	Outcome   string `json:"outcome"`
	Retention string `json:"retention"`
	Prune     string `json:"prune"`
}

// DefaultSchedules settles every minute, cleans up daily and prunes every five minutes
func DefaultSchedules() Schedules {
	return Schedules{
		Outcome:   "@every 1m",
		Retention: "0 3 * * *",
		Prune:     "@every 5m",
	}
}

// AddStandardJobs registers outcome evaluation, retention and cache pruning.
// Nil components are skipped.
func (s *Scheduler) AddStandardJobs(sched Schedules, outcome *OutcomeEvaluator, retention *RetentionJob, prune func() int) error {
	if outcome != nil {
		err := s.Add(Job{Name: JobOutcomes, Schedule: sched.Outcome, Timeout: 50 * time.Second, Run: func(ctx context.Context) error {
			res, err := outcome.Run(ctx)
			if res != nil && res.Settled > 0 {
				s.logger.Info("outcomes evaluated", "settled", res.Settled, "wins", res.Wins, "losses", res.Losses, "draws", res.Draws)
			}
			return err
		}})
		if err != nil {
			return err
		}
	}
	if retention != nil {
		err := s.Add(Job{Name: JobRetention, Schedule: sched.Retention, Run: func(ctx context.Context) error {
			_, err := retention.Run(ctx)
			return err
		}})
		if err != nil {
			return err
		}
	}
	if prune != nil {
		err := s.Add(Job{Name: JobPrune, Schedule: sched.Prune, Timeout: time.Minute, Run: func(context.Context) error {
			if n := prune(); n > 0 {
				s.logger.Debug("candle cache pruned", "removed", n)
			}
			return nil
		}})
		if err != nil {
			return err
		}
	}
	return nil
}
