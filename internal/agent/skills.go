package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// SkillInfo describes a discovered skill.
type SkillInfo struct {
	Name   string `json:"name"`
	Path   string `json:"path"`
	Source string `json:"source"` // "workspace" or "builtin"
}

// SkillsLoader discovers and loads agent skills from workspace and builtin dirs.
// A skill is a directory containing SKILL.md with optional YAML frontmatter.
type SkillsLoader struct {
	Workspace       string
	WorkspaceSkills string
	BuiltinSkills   string
}

// NewSkillsLoader creates a SkillsLoader.
func NewSkillsLoader(workspace string, builtinSkillsDir string) *SkillsLoader {
	return &SkillsLoader{
		Workspace:       workspace,
		WorkspaceSkills: filepath.Join(workspace, "skills"),
		BuiltinSkills:   builtinSkillsDir,
	}
}

// ListSkills returns all available skills. Workspace skills override builtins.
func (s *SkillsLoader) ListSkills() []SkillInfo {
	var skills []SkillInfo
	seen := map[string]bool{}

	if entries, err := os.ReadDir(s.WorkspaceSkills); err == nil {
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			skillFile := filepath.Join(s.WorkspaceSkills, e.Name(), "SKILL.md")
			if _, err := os.Stat(skillFile); err == nil {
				skills = append(skills, SkillInfo{Name: e.Name(), Path: skillFile, Source: "workspace"})
				seen[e.Name()] = true
			}
		}
	}

	if s.BuiltinSkills != "" {
		if entries, err := os.ReadDir(s.BuiltinSkills); err == nil {
			for _, e := range entries {
				if !e.IsDir() || seen[e.Name()] {
					continue
				}
				skillFile := filepath.Join(s.BuiltinSkills, e.Name(), "SKILL.md")
				if _, err := os.Stat(skillFile); err == nil {
					skills = append(skills, SkillInfo{Name: e.Name(), Path: skillFile, Source: "builtin"})
				}
			}
		}
	}
	return skills
}

// LoadSkill loads a skill's content by name. Returns "" if not found.
func (s *SkillsLoader) LoadSkill(name string) string {
	wPath := filepath.Join(s.WorkspaceSkills, name, "SKILL.md")
	if data, err := os.ReadFile(wPath); err == nil {
		return string(data)
	}
	if s.BuiltinSkills != "" {
		bPath := filepath.Join(s.BuiltinSkills, name, "SKILL.md")
		if data, err := os.ReadFile(bPath); err == nil {
			return string(data)
		}
	}
	return ""
}

// LoadSkillsForContext loads and formats specific skills for agent context.
func (s *SkillsLoader) LoadSkillsForContext(names []string) string {
	var parts []string
	for _, name := range names {
		content := s.LoadSkill(name)
		if content != "" {
			_, body := splitFrontmatter(content)
			parts = append(parts, "### Skill: "+name+"\n\n"+body)
		}
	}
	return strings.Join(parts, "\n\n---\n\n")
}

// BuildSkillsSummary returns an XML summary of all skills for progressive loading.
func (s *SkillsLoader) BuildSkillsSummary() string {
	skills := s.ListSkills()
	if len(skills) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, "<skills>")
	for _, sk := range skills {
		desc := s.getSkillDescription(sk.Name)
		lines = append(lines, "  <skill available=\"true\">")
		lines = append(lines, "    <name>"+escapeXML(sk.Name)+"</name>")
		lines = append(lines, "    <description>"+escapeXML(desc)+"</description>")
		lines = append(lines, "    <location>"+sk.Path+"</location>")
		lines = append(lines, "  </skill>")
	}
	lines = append(lines, "</skills>")
	return strings.Join(lines, "\n")
}

// GetSkillMetadata parses YAML frontmatter from a skill. Returns nil when
// the skill is missing or carries no frontmatter.
func (s *SkillsLoader) GetSkillMetadata(name string) map[string]string {
	content := s.LoadSkill(name)
	front, _ := splitFrontmatter(content)
	if front == "" {
		return nil
	}

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return nil
	}
	meta := map[string]string{}
	for k, v := range raw {
		meta[k] = fmt.Sprintf("%v", v)
	}
	return meta
}

func (s *SkillsLoader) getSkillDescription(name string) string {
	if meta := s.GetSkillMetadata(name); meta != nil {
		if desc, ok := meta["description"]; ok && desc != "" {
			return desc
		}
	}
	return name
}

// splitFrontmatter separates the "---" delimited YAML header from the body.
func splitFrontmatter(content string) (front, body string) {
	if !strings.HasPrefix(content, "---\n") {
		return "", content
	}
	rest := content[4:]
	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return "", content
	}
	front = rest[:idx]
	body = strings.TrimPrefix(rest[idx+4:], "\n")
	return front, strings.TrimSpace(body)
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
