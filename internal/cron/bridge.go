package cron

import (
	"fmt"
	"strings"
	"time"

	cronv3 "github.com/robfig/cron/v3"
)

// Bridge adapts the Service to the string-in/string-out contract the agent's
// cron tool expects.
type Bridge struct {
	Service *Service
}

// AddJob schedules a job from tool arguments. Exactly one of everySeconds,
// cronExpr or at must be set.
func (b *Bridge) AddJob(name, message, channel, chatID string, everySeconds int, cronExpr string, at string) (string, error) {
	var sched Schedule
	switch {
	case everySeconds > 0:
		sched = Every(int64(everySeconds) * 1000)
	case cronExpr != "":
		if _, err := cronv3.ParseStandard(cronExpr); err != nil {
			return fmt.Sprintf("Error: invalid cron expression %q: %v", cronExpr, err), nil
		}
		sched = Expr(cronExpr)
	case at != "":
		ts, err := parseAt(at)
		if err != nil {
			return fmt.Sprintf("Error: invalid 'at' time %q: %v", at, err), nil
		}
		sched = At(ts.UnixMilli())
	default:
		return "Error: one of every_seconds, cron_expr or at is required", nil
	}

	oneShot := sched.Kind == KindAt
	job := b.Service.AddJob(name, sched, message, true, channel, chatID, oneShot)
	if job.State.NextRunAtMs == 0 {
		return fmt.Sprintf("Error: job '%s' has no future run (time already passed?)", name), nil
	}
	next := time.UnixMilli(job.State.NextRunAtMs).Format("2006-01-02 15:04:05")
	return fmt.Sprintf("Scheduled job '%s' (id: %s), next run: %s", name, job.ID, next), nil
}

// ListJobs renders active jobs for the model.
func (b *Bridge) ListJobs() (string, error) {
	jobs := b.Service.ListJobs(false)
	if len(jobs) == 0 {
		return "No scheduled jobs.", nil
	}
	var sb strings.Builder
	sb.WriteString("Scheduled jobs:\n")
	for _, job := range jobs {
		next := "-"
		if job.State.NextRunAtMs > 0 {
			next = time.UnixMilli(job.State.NextRunAtMs).Format("2006-01-02 15:04:05")
		}
		fmt.Fprintf(&sb, "- %s [%s] %s (next: %s)\n", job.ID, describeSchedule(job.Schedule), job.Name, next)
	}
	return strings.TrimRight(sb.String(), "\n"), nil
}

// RemoveJob deletes a job by ID.
func (b *Bridge) RemoveJob(jobID string) (string, error) {
	if b.Service.RemoveJob(jobID) {
		return fmt.Sprintf("Removed job %s", jobID), nil
	}
	return fmt.Sprintf("Error: job %s not found", jobID), nil
}

func describeSchedule(s Schedule) string {
	switch s.Kind {
	case KindAt:
		return "once " + time.UnixMilli(s.AtMs).Format("2006-01-02 15:04")
	case KindEvery:
		return fmt.Sprintf("every %s", time.Duration(s.EveryMs)*time.Millisecond)
	case KindCron:
		return "cron " + s.Expr
	}
	return s.Kind
}

// parseAt accepts RFC3339 or a bare local "2006-01-02 15:04" timestamp.
func parseAt(at string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, at); err == nil {
		return ts, nil
	}
	return time.ParseInLocation("2006-01-02 15:04", at, time.Local)
}
