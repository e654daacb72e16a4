package agent

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Profile is a named agent persona loaded from agents.yaml. A profile can
// override the model, system prompt, and the always-loaded skills.
type Profile struct {
	Name        string   `yaml:"name"`
	Model       string   `yaml:"model,omitempty"`
	Prompt      string   `yaml:"prompt,omitempty"`
	Skills      []string `yaml:"skills,omitempty"`
	Temperature *float64 `yaml:"temperature,omitempty"`
	Default     bool     `yaml:"default,omitempty"`
}

// profilesFile mirrors the agents.yaml document layout.
type profilesFile struct {
	Agents []Profile `yaml:"agents"`
}

// ProfileStore loads and resolves agent profiles.
type ProfileStore struct {
	mu       sync.RWMutex
	path     string
	profiles map[string]Profile
	fallback Profile
}

// NewProfileStore loads profiles from path. A missing file is not an error;
// the store then only serves the built-in default profile.
func NewProfileStore(path string) (*ProfileStore, error) {
	s := &ProfileStore{
		path:     path,
		profiles: map[string]Profile{},
		fallback: Profile{Name: "default"},
	}
	if path == "" {
		return s, nil
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads agents.yaml from disk.
func (s *ProfileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var doc profilesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse %s: %w", s.path, err)
	}

	profiles := map[string]Profile{}
	fallback := Profile{Name: "default"}
	for _, p := range doc.Agents {
		if p.Name == "" {
			continue
		}
		profiles[p.Name] = p
		if p.Default {
			fallback = p
		}
	}

	s.mu.Lock()
	s.profiles = profiles
	s.fallback = fallback
	s.mu.Unlock()
	return nil
}

// Get resolves a profile by name, falling back to the default profile.
func (s *ProfileStore) Get(name string) Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.profiles[name]; ok {
		return p
	}
	return s.fallback
}

// Default returns the default profile.
func (s *ProfileStore) Default() Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fallback
}

// Names lists all loaded profile names, sorted.
func (s *ProfileStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.profiles))
	for n := range s.profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
