package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSkill(t *testing.T, root, name, content string) {
	t.Helper()
	dir := filepath.Join(root, "skills", name)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SKILL.md"), []byte(content), 0644))
}

func TestSkillsLoader_ListAndLoad(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "weather", "# Weather\nCheck the forecast.")

	s := NewSkillsLoader(ws, "")
	skills := s.ListSkills()
	require.Len(t, skills, 1)
	assert.Equal(t, "weather", skills[0].Name)
	assert.Equal(t, "workspace", skills[0].Source)

	assert.Contains(t, s.LoadSkill("weather"), "Check the forecast.")
	assert.Empty(t, s.LoadSkill("missing"))
}

func TestSkillsLoader_WorkspaceOverridesBuiltin(t *testing.T) {
	ws := t.TempDir()
	builtin := t.TempDir()
	writeSkill(t, ws, "greet", "workspace version")

	bDir := filepath.Join(builtin, "greet")
	require.NoError(t, os.MkdirAll(bDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(bDir, "SKILL.md"), []byte("builtin version"), 0644))

	// Builtin skills live directly under the builtin dir, not under skills/.
	s := NewSkillsLoader(ws, builtin)
	skills := s.ListSkills()
	require.Len(t, skills, 1)
	assert.Equal(t, "workspace", skills[0].Source)
	assert.Contains(t, s.LoadSkill("greet"), "workspace version")
}

func TestSkillsLoader_Frontmatter(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "deploy", `---
name: deploy
description: Ship code to production
version: 2
---
# Deploy

Run the pipeline.`)

	s := NewSkillsLoader(ws, "")
	meta := s.GetSkillMetadata("deploy")
	require.NotNil(t, meta)
	assert.Equal(t, "Ship code to production", meta["description"])
	assert.Equal(t, "2", meta["version"])

	// Frontmatter stripped from context rendering.
	rendered := s.LoadSkillsForContext([]string{"deploy"})
	assert.Contains(t, rendered, "### Skill: deploy")
	assert.Contains(t, rendered, "Run the pipeline.")
	assert.NotContains(t, rendered, "version: 2")
}

func TestSkillsLoader_NoFrontmatter(t *testing.T) {
	ws := t.TempDir()
	writeSkill(t, ws, "plain", "# Plain\nNo header here.")

	s := NewSkillsLoader(ws, "")
	assert.Nil(t, s.GetSkillMetadata("plain"))
	assert.Contains(t, s.LoadSkillsForContext([]string{"plain"}), "No header here.")
}

func TestBuildSkillsSummary(t *testing.T) {
	ws := t.TempDir()
	s := NewSkillsLoader(ws, "")
	assert.Empty(t, s.BuildSkillsSummary())

	writeSkill(t, ws, "search", `---
description: Find things <fast>
---
body`)
	summary := s.BuildSkillsSummary()
	assert.Contains(t, summary, "<skills>")
	assert.Contains(t, summary, "<name>search</name>")
	// XML-escaped description.
	assert.Contains(t, summary, "Find things &lt;fast&gt;")
}
