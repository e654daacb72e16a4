package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilesYAML = `agents:
  - name: default
    default: true
    prompt: You are the house assistant.
  - name: reviewer
    model: gpt-4o
    prompt: You review code.
    skills: [lint, style]
    temperature: 0.2
`

func TestProfileStore_LoadAndGet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0644))

	s, err := NewProfileStore(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"default", "reviewer"}, s.Names())

	r := s.Get("reviewer")
	assert.Equal(t, "gpt-4o", r.Model)
	assert.Equal(t, []string{"lint", "style"}, r.Skills)
	require.NotNil(t, r.Temperature)
	assert.Equal(t, 0.2, *r.Temperature)

	// Unknown names fall back to the default profile.
	d := s.Get("nope")
	assert.Equal(t, "default", d.Name)
	assert.Equal(t, "You are the house assistant.", d.Prompt)
}

func TestProfileStore_MissingFile(t *testing.T) {
	s, err := NewProfileStore(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Empty(t, s.Names())
	assert.Equal(t, "default", s.Default().Name)
}

func TestProfileStore_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents: [unclosed"), 0644))

	_, err := NewProfileStore(path)
	assert.Error(t, err)
}

func TestProfileStore_Reload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profilesYAML), 0644))

	s, err := NewProfileStore(path)
	require.NoError(t, err)
	require.Len(t, s.Names(), 2)

	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: solo\n"), 0644))
	require.NoError(t, s.Reload())
	assert.Equal(t, []string{"solo"}, s.Names())
}
