package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternlabs/tern/internal/agent"
	"github.com/ternlabs/tern/internal/config"
	"github.com/ternlabs/tern/internal/lane"
	"github.com/ternlabs/tern/internal/providers"
	"github.com/ternlabs/tern/internal/utils"
)

// makeProvider creates a hot-swappable provider from the loaded config.
// It tries to detect the correct provider and API key from environment variables.
func makeProvider(cfg config.Config) *providers.DynamicProvider {
	model := cfg.Agent.Model
	if model == "" {
		model = "anthropic/claude-sonnet-4-5"
	}

	apiKey := cfg.Providers.APIKey
	apiBase := cfg.Providers.APIBase
	providerName := cfg.Providers.Provider

	if apiKey == "" {
		if spec := providers.FindByModel(model); spec != nil {
			apiKey = os.Getenv(spec.EnvKey)
			if apiBase == "" && spec.DefaultAPIBase != "" {
				apiBase = spec.DefaultAPIBase
			}
		}
	}

	// Fallback: try common env vars
	if apiKey == "" {
		for _, envKey := range []string{"OPENROUTER_API_KEY", "OPENAI_API_KEY", "ANTHROPIC_API_KEY"} {
			if v := os.Getenv(envKey); v != "" {
				apiKey = v
				break
			}
		}
	}

	// Detect gateway from API key
	if providerName == "" && strings.HasPrefix(apiKey, "sk-or-") {
		apiBase = "https://openrouter.ai/api/v1"
		providerName = "openrouter"
	}

	return providers.NewDynamicProvider(providers.NewProvider(apiKey, apiBase, model, providerName))
}

// makeLoopConfig builds an agent loop config from the loaded config.
func makeLoopConfig(cfg config.Config) agent.Config {
	braveKey := cfg.WebSearch.APIKey
	if braveKey == "" {
		braveKey = os.Getenv("BRAVE_API_KEY")
	}

	return agent.Config{
		Workspace:           utils.GetWorkspacePath(cfg.Agent.Workspace),
		Model:               cfg.Agent.Model,
		MaxIterations:       cfg.Agent.MaxIterations,
		Temperature:         cfg.Agent.Temperature,
		MaxTokens:           cfg.Agent.MaxTokens,
		AlwaysSkills:        cfg.Agent.AlwaysSkills,
		BraveAPIKey:         braveKey,
		LaneMode:            lane.Mode(cfg.Gateway.LaneMode),
		CollectWindow:       time.Duration(cfg.Gateway.CollectWindow) * time.Second,
		RestrictToWorkspace: cfg.Tools.RestrictToWorkspace,
		ExecTimeout:         time.Duration(cfg.Tools.Exec.Timeout) * time.Second,
	}
}

// applyProfile overlays an agent profile onto a loop config and returns the
// persona prompt to inject.
func applyProfile(cfg config.Config, loopCfg *agent.Config, name string) (prompt string, err error) {
	path := cfg.Agent.ProfilesPath
	if path == "" {
		path = filepath.Join(utils.GetDataPath(), "agents.yaml")
	}
	store, err := agent.NewProfileStore(path)
	if err != nil {
		return "", err
	}

	p := store.Get(name)
	if p.Model != "" {
		loopCfg.Model = p.Model
	}
	if p.Temperature != nil {
		loopCfg.Temperature = *p.Temperature
	}
	if len(p.Skills) > 0 {
		loopCfg.AlwaysSkills = append(loopCfg.AlwaysSkills, p.Skills...)
	}
	return p.Prompt, nil
}
