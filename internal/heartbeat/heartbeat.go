// Package heartbeat periodically wakes the agent to work through HEARTBEAT.md
// in its workspace. Ticks are skipped while the file has no actionable content.
package heartbeat

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultInterval between heartbeats.
const DefaultInterval = 30 * time.Minute

// OKToken is the reply that means no action was needed.
const OKToken = "HEARTBEAT_OK"

// Prompt is injected as the agent turn on each heartbeat.
const Prompt = `Read HEARTBEAT.md in your workspace (if it exists).
Follow any instructions or tasks listed there.
If nothing needs attention, reply with just: HEARTBEAT_OK`

// BeatFunc runs one heartbeat turn and returns the agent's reply.
type BeatFunc func(prompt string) (string, error)

// Service drives the periodic heartbeat.
type Service struct {
	Workspace string
	Interval  time.Duration
	OnBeat    BeatFunc

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewService creates a heartbeat service. interval <= 0 uses DefaultInterval.
func NewService(workspace string, interval time.Duration, onBeat BeatFunc) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		Workspace: workspace,
		Interval:  interval,
		OnBeat:    onBeat,
	}
}

// Start launches the tick loop.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
	log.Printf("[Heartbeat] Started (every %s)", s.Interval)
}

// Stop halts the tick loop.
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
}

// IsRunning reports whether the loop is active.
func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerNow fires one heartbeat immediately, regardless of file content.
func (s *Service) TriggerNow() (string, error) {
	if s.OnBeat == nil {
		return "", nil
	}
	return s.OnBeat(Prompt)
}

// Status reports the service state.
func (s *Service) Status() map[string]any {
	_, err := os.Stat(s.heartbeatFile())
	return map[string]any{
		"running":     s.IsRunning(),
		"intervalS":   int(s.Interval.Seconds()),
		"hasCallback": s.OnBeat != nil,
		"fileExists":  err == nil,
	}
}

func (s *Service) run(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *Service) tick() {
	content, _ := os.ReadFile(s.heartbeatFile())
	if IsEmpty(string(content)) {
		return
	}

	log.Printf("[Heartbeat] Checking for tasks...")
	if s.OnBeat == nil {
		return
	}
	response, err := s.OnBeat(Prompt)
	if err != nil {
		log.Printf("[Heartbeat] Error: %v", err)
		return
	}
	if containsOKToken(response) {
		log.Printf("[Heartbeat] OK (no action needed)")
	} else {
		log.Printf("[Heartbeat] Completed task")
	}
}

func (s *Service) heartbeatFile() string {
	return filepath.Join(s.Workspace, "HEARTBEAT.md")
}

// IsEmpty reports whether HEARTBEAT.md content has nothing actionable.
// Headers, HTML comments and bare checkboxes do not count as tasks.
func IsEmpty(content string) bool {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "", strings.HasPrefix(line, "#"), strings.HasPrefix(line, "<!--"):
			continue
		case line == "- [ ]", line == "* [ ]", line == "- [x]", line == "* [x]":
			continue
		}
		return false
	}
	return true
}

// containsOKToken matches HEARTBEAT_OK case-insensitively, ignoring underscores.
func containsOKToken(response string) bool {
	normalize := func(s string) string {
		return strings.ReplaceAll(strings.ToUpper(s), "_", "")
	}
	return strings.Contains(normalize(response), normalize(OKToken))
}
