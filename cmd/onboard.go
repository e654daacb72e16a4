package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/internal/config"
	"github.com/ternlabs/tern/internal/utils"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize tern configuration and workspace",
	RunE:  runOnboard,
}

func init() {
	rootCmd.AddCommand(onboardCmd)
}

func runOnboard(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
	} else {
		os.MkdirAll(filepath.Dir(configPath), 0755)
		if err := config.Save(config.DefaultConfig(), ""); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}
		fmt.Printf("Created config at %s\n", configPath)
	}

	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	workspace := utils.GetWorkspacePath(cfg.Agent.Workspace)
	fmt.Printf("Workspace at %s\n", workspace)

	// Default bootstrap files
	templates := map[string]string{
		"AGENTS.md":    "# Agent Instructions\n\nYou are a helpful AI assistant. Be concise, accurate, and friendly.\n\n## Guidelines\n\n- Always explain what you're doing before taking actions\n- Ask for clarification when the request is ambiguous\n- Use tools to help accomplish tasks\n- Remember important information in memory/MEMORY.md\n",
		"SOUL.md":      "# Soul\n\nI am tern, a lightweight AI agent.\n\n## Personality\n\n- Helpful and friendly\n- Concise and to the point\n- Curious and eager to learn\n",
		"USER.md":      "# User\n\nInformation about the user goes here.\n\n## Preferences\n\n- Communication style: (casual/formal)\n- Timezone: (your timezone)\n- Language: (your preferred language)\n",
		"HEARTBEAT.md": "# Heartbeat Tasks\n\n<!-- Lines that are not headers, comments or empty checkboxes run on each heartbeat -->\n",
	}

	for filename, content := range templates {
		path := filepath.Join(workspace, filename)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			os.WriteFile(path, []byte(content), 0644)
			fmt.Printf("  Created %s\n", filename)
		}
	}

	// Memory files
	memDir := filepath.Join(workspace, "memory")
	os.MkdirAll(memDir, 0755)
	memFile := filepath.Join(memDir, "MEMORY.md")
	if _, err := os.Stat(memFile); os.IsNotExist(err) {
		os.WriteFile(memFile, []byte("# Long-term Memory\n\n"), 0644)
		fmt.Println("  Created memory/MEMORY.md")
	}
	histFile := filepath.Join(memDir, "HISTORY.md")
	if _, err := os.Stat(histFile); os.IsNotExist(err) {
		os.WriteFile(histFile, []byte(""), 0644)
		fmt.Println("  Created memory/HISTORY.md")
	}

	os.MkdirAll(filepath.Join(workspace, "skills"), 0755)

	// Example agent profiles
	profilesPath := filepath.Join(utils.GetDataPath(), "agents.yaml")
	if _, err := os.Stat(profilesPath); os.IsNotExist(err) {
		example := "agents:\n  - name: default\n    default: true\n    prompt: |\n      You are a general-purpose personal assistant.\n"
		os.WriteFile(profilesPath, []byte(example), 0644)
		fmt.Println("  Created agents.yaml")
	}

	fmt.Println("\ntern is ready!")
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your API key to ~/.tern/config.json")
	fmt.Println("  2. Chat: tern agent -m \"Hello!\"")

	return nil
}
