// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level tern configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Agent     AgentConfig     `json:"agent"`
	Providers ProvidersConfig `json:"providers"`
	Channels  ChannelsConfig  `json:"channels"`
	Tools     ToolsConfig     `json:"tools"`
	Gateway   GatewayConfig   `json:"gateway"`
	Heartbeat HeartbeatConfig `json:"heartbeat"`
	ConfigHub ConfigHubConfig `json:"configHub"`
	Redis     RedisConfig     `json:"redis"`
	WebSearch WebSearchConfig `json:"webSearch"`
}

// AgentConfig holds agent behavior settings.
type AgentConfig struct {
	Model         string   `json:"model,omitempty"`
	MaxTokens     int      `json:"maxTokens,omitempty"`
	Temperature   float64  `json:"temperature,omitempty"`
	MaxIterations int      `json:"maxIterations,omitempty"`
	Workspace     string   `json:"workspace,omitempty"`
	AlwaysSkills  []string `json:"alwaysSkills,omitempty"`
	ProfilesPath  string   `json:"profilesPath,omitempty"` // agents.yaml location
}

// ProvidersConfig holds LLM backend credentials. Provider selects an explicit
// gateway by registry name; otherwise detection runs on key prefix and base URL.
type ProvidersConfig struct {
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
	APIBase  string `json:"apiBase,omitempty"`
}

// ChannelsConfig holds per-channel settings.
type ChannelsConfig struct {
	CLI *CLIConfig `json:"cli,omitempty"`
}

// CLIConfig holds the loopback CLI channel settings.
type CLIConfig struct {
	Enabled   bool     `json:"enabled"`
	AllowFrom []string `json:"allowFrom,omitempty"`
}

// ToolsConfig holds tool-related settings.
type ToolsConfig struct {
	RestrictToWorkspace bool       `json:"restrictToWorkspace,omitempty"`
	Exec                ExecConfig `json:"exec,omitempty"`
}

// ExecConfig holds shell execution settings.
type ExecConfig struct {
	DenyPatterns  []string `json:"denyPatterns,omitempty"`
	AllowPatterns []string `json:"allowPatterns,omitempty"`
	Timeout       int      `json:"timeout,omitempty"` // seconds
}

// GatewayConfig holds long-running gateway settings.
type GatewayConfig struct {
	LaneMode      string `json:"laneMode,omitempty"`      // followup, collect, interrupt
	CollectWindow int    `json:"collectWindow,omitempty"` // seconds, Collect mode only
}

// HeartbeatConfig holds periodic wake-up settings.
type HeartbeatConfig struct {
	Enabled  bool `json:"enabled,omitempty"`
	Interval int  `json:"interval,omitempty"` // seconds
}

// ConfigHubConfig points at a remote hub that can push provider credentials.
type ConfigHubConfig struct {
	URL    string `json:"url,omitempty"`    // http(s) endpoint for fetch
	WSURL  string `json:"wsUrl,omitempty"`  // websocket endpoint for push
	APIKey string `json:"apiKey,omitempty"`
}

// RedisConfig holds optional Redis cache settings.
type RedisConfig struct {
	URL      string `json:"url,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// WebSearchConfig holds web search settings.
type WebSearchConfig struct {
	Provider string `json:"provider,omitempty"`
	APIKey   string `json:"apiKey,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Model:         "anthropic/claude-sonnet-4-5",
			MaxTokens:     4096,
			Temperature:   0.7,
			MaxIterations: 25,
		},
		Tools: ToolsConfig{
			RestrictToWorkspace: true,
			Exec: ExecConfig{
				Timeout: 30,
			},
		},
		Gateway: GatewayConfig{
			LaneMode: "followup",
		},
		Heartbeat: HeartbeatConfig{
			Interval: 1800,
		},
	}
}
