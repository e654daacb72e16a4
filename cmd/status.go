package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ternlabs/tern/internal/agent"
	"github.com/ternlabs/tern/internal/config"
	"github.com/ternlabs/tern/internal/providers"
	"github.com/ternlabs/tern/internal/utils"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show tern status",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	configPath := config.GetConfigPath()
	cfg, err := config.Load("")
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Println("tern status")
	fmt.Println()
	fmt.Printf("Config: %s\n", configPath)
	fmt.Printf("Workspace: %s\n", utils.GetWorkspacePath(cfg.Agent.Workspace))
	fmt.Printf("Model: %s\n", cfg.Agent.Model)

	if spec := providers.FindByModel(cfg.Agent.Model); spec != nil {
		keyState := "missing"
		if cfg.Providers.APIKey != "" || os.Getenv(spec.EnvKey) != "" {
			keyState = "set"
		}
		fmt.Printf("Provider: %s (API key %s)\n", spec.Label(), keyState)
	}

	profilesPath := cfg.Agent.ProfilesPath
	if profilesPath == "" {
		profilesPath = filepath.Join(utils.GetDataPath(), "agents.yaml")
	}
	if store, err := agent.NewProfileStore(profilesPath); err == nil {
		if names := store.Names(); len(names) > 0 {
			fmt.Printf("Profiles: %v\n", names)
		}
	}

	fmt.Println("\nChannels:")
	if cli := cfg.Channels.CLI; cli != nil && cli.Enabled {
		fmt.Println("  CLI: enabled")
	} else {
		fmt.Println("  (none)")
	}

	fmt.Println("\nServices:")
	if cfg.Heartbeat.Enabled {
		fmt.Printf("  Heartbeat: every %ds\n", cfg.Heartbeat.Interval)
	} else {
		fmt.Println("  Heartbeat: off")
	}
	if cfg.ConfigHub.URL != "" || cfg.ConfigHub.WSURL != "" {
		fmt.Println("  ConfigHub: configured")
	}
	if cfg.Redis.URL != "" {
		fmt.Println("  Redis: configured")
	}

	return nil
}
