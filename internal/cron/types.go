package cron

import (
	"log"
	"time"

	cronv3 "github.com/robfig/cron/v3"
)

// Schedule kinds.
const (
	KindAt    = "at"    // one-shot at a timestamp
	KindEvery = "every" // fixed interval
	KindCron  = "cron"  // standard 5-field cron expression
)

// Schedule describes when a job runs.
type Schedule struct {
	Kind    string `json:"kind"`
	AtMs    int64  `json:"atMs,omitempty"`
	EveryMs int64  `json:"everyMs,omitempty"`
	Expr    string `json:"expr,omitempty"`
}

// At returns a one-shot schedule.
func At(atMs int64) Schedule { return Schedule{Kind: KindAt, AtMs: atMs} }

// Every returns a fixed-interval schedule.
func Every(everyMs int64) Schedule { return Schedule{Kind: KindEvery, EveryMs: everyMs} }

// Expr returns a cron-expression schedule.
func Expr(expr string) Schedule { return Schedule{Kind: KindCron, Expr: expr} }

// NextRun computes the next run time after now. Returns false when the
// schedule has no future run (expired one-shot, bad expression).
func (s Schedule) NextRun(now time.Time) (time.Time, bool) {
	switch s.Kind {
	case KindAt:
		at := time.UnixMilli(s.AtMs)
		if at.After(now) {
			return at, true
		}
		return time.Time{}, false
	case KindEvery:
		if s.EveryMs <= 0 {
			return time.Time{}, false
		}
		return now.Add(time.Duration(s.EveryMs) * time.Millisecond), true
	case KindCron:
		sched, err := cronv3.ParseStandard(s.Expr)
		if err != nil {
			log.Printf("[Cron] Invalid cron expression %q: %v", s.Expr, err)
			return time.Time{}, false
		}
		return sched.Next(now), true
	}
	return time.Time{}, false
}

// Payload is what a job delivers to the agent when it fires.
type Payload struct {
	Message string `json:"message"`
	Channel string `json:"channel,omitempty"`
	ChatID  string `json:"chatId,omitempty"`
	Deliver bool   `json:"deliver,omitempty"`
}

// JobState is the mutable runtime state of a job.
type JobState struct {
	NextRunAtMs int64  `json:"nextRunAtMs,omitempty"`
	LastRunAtMs int64  `json:"lastRunAtMs,omitempty"`
	LastStatus  string `json:"lastStatus,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

// Job is a scheduled task.
type Job struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	Enabled        bool     `json:"enabled"`
	Schedule       Schedule `json:"schedule"`
	Payload        Payload  `json:"payload"`
	State          JobState `json:"state"`
	CreatedAtMs    int64    `json:"createdAtMs"`
	UpdatedAtMs    int64    `json:"updatedAtMs"`
	DeleteAfterRun bool     `json:"deleteAfterRun,omitempty"`
}

// Store is the on-disk job collection.
type Store struct {
	Version int    `json:"version"`
	Jobs    []*Job `json:"jobs"`
}
