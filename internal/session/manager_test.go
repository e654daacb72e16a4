package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSession_AddMessageAndHistory(t *testing.T) {
	s := &Session{Key: "cli:direct"}
	s.AddMessage("user", "hello")
	s.AddMessage("assistant", "hi there")

	history := s.GetHistory(10)
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0]["role"])
	assert.Equal(t, "hello", history[0]["content"])
	assert.Equal(t, "assistant", history[1]["role"])
}

func TestSession_GetHistoryLimitsToRecent(t *testing.T) {
	s := &Session{Key: "k"}
	for i := 0; i < 10; i++ {
		s.AddMessage("user", strings.Repeat("x", i+1))
	}
	history := s.GetHistory(3)
	require.Len(t, history, 3)
	assert.Equal(t, strings.Repeat("x", 8), history[0]["content"])
}

func TestManager_GetOrCreate(t *testing.T) {
	m := NewManager(t.TempDir())

	s1 := m.GetOrCreate("telegram:42")
	assert.Equal(t, "telegram:42", s1.Key)
	assert.Empty(t, s1.Messages)

	// Same instance from cache.
	s2 := m.GetOrCreate("telegram:42")
	assert.Same(t, s1, s2)
}

func TestManager_SaveAndReload(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	s := m.GetOrCreate("telegram:42")
	s.AddMessage("user", "what's the weather")
	s.AddMessage("assistant", "sunny")
	require.NoError(t, m.Save(s))

	// Fresh manager reads from disk.
	m2 := NewManager(dir)
	loaded := m2.GetOrCreate("telegram:42")
	require.Len(t, loaded.Messages, 2)
	assert.Equal(t, "what's the weather", loaded.Messages[0].Content)
	assert.Equal(t, "sunny", loaded.Messages[1].Content)
	assert.False(t, loaded.CreatedAt.IsZero())
}

func TestManager_SaveWritesJSONL(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(dir)

	s := m.GetOrCreate("cli:direct")
	s.AddMessage("user", "ping")
	require.NoError(t, m.Save(s))

	data, err := os.ReadFile(filepath.Join(dir, "sessions", "cli_direct.jsonl"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"_type":"metadata"`)
	assert.Contains(t, lines[1], `"ping"`)
}

func TestManager_Invalidate(t *testing.T) {
	m := NewManager(t.TempDir())
	s := m.GetOrCreate("a:b")
	s.AddMessage("user", "x")

	m.Invalidate("a:b")
	// Unsaved messages are gone after invalidation.
	fresh := m.GetOrCreate("a:b")
	assert.NotSame(t, s, fresh)
	assert.Empty(t, fresh.Messages)
}

func TestManager_ListSessions(t *testing.T) {
	m := NewManager(t.TempDir())
	assert.Empty(t, m.ListSessions())

	for _, key := range []string{"telegram:1", "discord:2"} {
		s := m.GetOrCreate(key)
		s.AddMessage("user", "hi")
		require.NoError(t, m.Save(s))
	}

	infos := m.ListSessions()
	require.Len(t, infos, 2)
	keys := []string{infos[0]["key"], infos[1]["key"]}
	assert.Contains(t, keys, "telegram:1")
	assert.Contains(t, keys, "discord:2")
}

func TestSession_Clear(t *testing.T) {
	s := &Session{Key: "k"}
	s.AddMessage("user", "x")
	s.Clear()
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.GetHistory(10))
}
