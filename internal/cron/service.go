// Package cron schedules agent jobs with JSON-file persistence. Jobs fire a
// callback that injects the job's message as an agent turn; one-shot jobs are
// disabled or removed after they run.
package cron

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// OnJobFunc is invoked when a job fires.
type OnJobFunc func(job *Job) (string, error)

// Service manages scheduled jobs with a single timer armed for the earliest
// next run.
type Service struct {
	OnJob OnJobFunc

	storePath string

	mu      sync.Mutex
	store   *Store
	running bool
	rearm   chan struct{}
	stop    chan struct{}
	done    chan struct{}
}

// NewService creates a cron service persisting to storePath.
func NewService(storePath string, onJob OnJobFunc) *Service {
	return &Service{
		OnJob:     onJob,
		storePath: storePath,
	}
}

// Start loads the store, recomputes next runs and arms the timer loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.loadLocked()

	now := time.Now()
	for _, job := range s.store.Jobs {
		if job.Enabled {
			s.recomputeLocked(job, now)
		}
	}
	s.saveLocked()

	s.rearm = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	count := len(s.store.Jobs)
	s.mu.Unlock()

	go s.run()
	log.Printf("[Cron] Service started with %d jobs", count)
}

// Stop halts the timer loop. Jobs stay on disk.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	done := s.done
	s.mu.Unlock()

	<-done
	log.Printf("[Cron] Service stopped")
}

// AddJob creates and schedules a job.
func (s *Service) AddJob(name string, sched Schedule, message string, deliver bool, channel, chatID string, deleteAfterRun bool) *Job {
	now := time.Now()
	job := &Job{
		ID:       newJobID(),
		Name:     name,
		Enabled:  true,
		Schedule: sched,
		Payload: Payload{
			Message: message,
			Channel: channel,
			ChatID:  chatID,
			Deliver: deliver,
		},
		CreatedAtMs:    now.UnixMilli(),
		UpdatedAtMs:    now.UnixMilli(),
		DeleteAfterRun: deleteAfterRun,
	}

	s.mu.Lock()
	s.loadLocked()
	s.recomputeLocked(job, now)
	s.store.Jobs = append(s.store.Jobs, job)
	s.saveLocked()
	s.mu.Unlock()

	s.requestRearm()
	log.Printf("[Cron] Added job '%s' (%s)", name, job.ID)
	return job
}

// ListJobs returns jobs sorted by next run time.
func (s *Service) ListJobs(includeDisabled bool) []*Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	jobs := make([]*Job, 0, len(s.store.Jobs))
	for _, job := range s.store.Jobs {
		if includeDisabled || job.Enabled {
			jobs = append(jobs, job)
		}
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		a, b := jobs[i].State.NextRunAtMs, jobs[j].State.NextRunAtMs
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})
	return jobs
}

// RemoveJob deletes a job by ID.
func (s *Service) RemoveJob(jobID string) bool {
	s.mu.Lock()
	s.loadLocked()
	before := len(s.store.Jobs)
	kept := s.store.Jobs[:0]
	for _, job := range s.store.Jobs {
		if job.ID != jobID {
			kept = append(kept, job)
		}
	}
	s.store.Jobs = kept
	removed := len(kept) < before
	if removed {
		s.saveLocked()
	}
	s.mu.Unlock()

	if removed {
		s.requestRearm()
		log.Printf("[Cron] Removed job %s", jobID)
	}
	return removed
}

// EnableJob toggles a job. Returns nil when the job does not exist.
func (s *Service) EnableJob(jobID string, enabled bool) *Job {
	s.mu.Lock()
	s.loadLocked()
	var found *Job
	for _, job := range s.store.Jobs {
		if job.ID == jobID {
			found = job
			break
		}
	}
	if found != nil {
		found.Enabled = enabled
		found.UpdatedAtMs = time.Now().UnixMilli()
		if enabled {
			s.recomputeLocked(found, time.Now())
		} else {
			found.State.NextRunAtMs = 0
		}
		s.saveLocked()
	}
	s.mu.Unlock()

	if found != nil {
		s.requestRearm()
	}
	return found
}

// RunJob fires a job immediately. Disabled jobs require force.
func (s *Service) RunJob(jobID string, force bool) bool {
	s.mu.Lock()
	s.loadLocked()
	var target *Job
	for _, job := range s.store.Jobs {
		if job.ID == jobID && (force || job.Enabled) {
			target = job
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return false
	}
	s.executeJob(target)
	s.requestRearm()
	return true
}

// Status reports the service state.
func (s *Service) Status() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadLocked()

	status := map[string]any{
		"enabled": s.running,
		"jobs":    len(s.store.Jobs),
	}
	if wake, ok := s.nextWakeLocked(); ok {
		status["nextWakeAtMs"] = wake.UnixMilli()
	}
	return status
}

func (s *Service) run() {
	defer close(s.done)
	for {
		var timerC <-chan time.Time
		var timer *time.Timer

		s.mu.Lock()
		wake, ok := s.nextWakeLocked()
		s.mu.Unlock()
		if ok {
			d := time.Until(wake)
			if d < 0 {
				d = 0
			}
			timer = time.NewTimer(d)
			timerC = timer.C
		}

		select {
		case <-s.stop:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-s.rearm:
			if timer != nil {
				timer.Stop()
			}
		case <-timerC:
			s.runDue()
		}
	}
}

// runDue executes every job whose next run is in the past.
func (s *Service) runDue() {
	now := time.Now().UnixMilli()

	s.mu.Lock()
	var due []*Job
	for _, job := range s.store.Jobs {
		if job.Enabled && job.State.NextRunAtMs > 0 && now >= job.State.NextRunAtMs {
			due = append(due, job)
		}
	}
	s.mu.Unlock()

	for _, job := range due {
		s.executeJob(job)
	}
}

// executeJob runs the callback and advances or retires the job.
func (s *Service) executeJob(job *Job) {
	log.Printf("[Cron] Executing job '%s' (%s)", job.Name, job.ID)
	start := time.Now()

	var execErr error
	if s.OnJob != nil {
		_, execErr = s.OnJob(job)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	job.State.LastRunAtMs = start.UnixMilli()
	job.UpdatedAtMs = time.Now().UnixMilli()
	if execErr != nil {
		job.State.LastStatus = "error"
		job.State.LastError = execErr.Error()
		log.Printf("[Cron] Job '%s' failed: %v", job.Name, execErr)
	} else {
		job.State.LastStatus = "ok"
		job.State.LastError = ""
	}

	if job.Schedule.Kind == KindAt {
		if job.DeleteAfterRun {
			kept := s.store.Jobs[:0]
			for _, j := range s.store.Jobs {
				if j.ID != job.ID {
					kept = append(kept, j)
				}
			}
			s.store.Jobs = kept
		} else {
			job.Enabled = false
			job.State.NextRunAtMs = 0
		}
	} else {
		s.recomputeLocked(job, time.Now())
	}
	s.saveLocked()
}

func (s *Service) recomputeLocked(job *Job, now time.Time) {
	if next, ok := job.Schedule.NextRun(now); ok {
		job.State.NextRunAtMs = next.UnixMilli()
	} else {
		job.State.NextRunAtMs = 0
	}
}

func (s *Service) nextWakeLocked() (time.Time, bool) {
	if s.store == nil {
		return time.Time{}, false
	}
	var earliest int64
	for _, job := range s.store.Jobs {
		if !job.Enabled || job.State.NextRunAtMs == 0 {
			continue
		}
		if earliest == 0 || job.State.NextRunAtMs < earliest {
			earliest = job.State.NextRunAtMs
		}
	}
	if earliest == 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(earliest), true
}

func (s *Service) requestRearm() {
	s.mu.Lock()
	running := s.running
	rearm := s.rearm
	s.mu.Unlock()
	if !running {
		return
	}
	select {
	case rearm <- struct{}{}:
	default:
	}
}

func (s *Service) loadLocked() {
	if s.store != nil {
		return
	}
	s.store = &Store{Version: 1}
	data, err := os.ReadFile(s.storePath)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("[Cron] Failed to read store: %v", err)
		}
		return
	}
	if err := json.Unmarshal(data, s.store); err != nil {
		log.Printf("[Cron] Failed to parse store: %v", err)
		s.store = &Store{Version: 1}
	}
}

func (s *Service) saveLocked() {
	if s.store == nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(s.storePath), 0755); err != nil {
		log.Printf("[Cron] Failed to create store dir: %v", err)
		return
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		log.Printf("[Cron] Failed to serialize store: %v", err)
		return
	}
	if err := os.WriteFile(s.storePath, data, 0644); err != nil {
		log.Printf("[Cron] Failed to save store: %v", err)
	}
}

func newJobID() string {
	return fmt.Sprintf("job-%s", uuid.NewString()[:8])
}
