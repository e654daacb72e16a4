// Provider registry: single source of truth for model backend metadata.
// Lookup is read-only and side-effect free; specs are immutable after
// construction. Registry order is a deliberate priority: first match wins.
package providers

import "strings"

// ProviderSpec is a declarative descriptor of one model backend.
type ProviderSpec struct {
	Name              string          // config field name, e.g. "deepseek"
	APIFamily         string          // wire protocol family, e.g. "openai"
	Keywords          []string        // model-name keywords for matching (lowercase)
	EnvKey            string          // env var holding the API key
	DisplayName       string          // shown in status output
	DefaultModel      string          // model used when none is configured
	RoutePrefix       string          // prefix added for gateway model routing
	SkipPrefixes      []string        // don't add prefix if model already starts with these
	IsGateway         bool            // aggregator able to route any model
	IsLocal           bool            // self-hosted endpoint (vLLM, Ollama)
	DetectByKeyPrefix string          // match api_key prefix
	DetectByBaseKW    string          // match substring in api_base URL
	DefaultAPIBase    string          // fallback base URL
	StripModelPrefix  bool            // strip "provider/" before re-prefixing
	ModelOverrides    []ModelOverride // per-model parameter overrides
}

// ModelOverride applies parameter overrides when a model name matches a pattern.
type ModelOverride struct {
	Pattern   string         // substring to match in model name (lowercase)
	Overrides map[string]any // params to override
}

// Label returns a display label.
func (s *ProviderSpec) Label() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return strings.Title(s.Name) //nolint:staticcheck
}

// Providers is the registry. Order = priority. Gateways first.
var Providers = []*ProviderSpec{
	// Custom (user-provided OpenAI-compatible endpoint)
	{
		Name: "custom", APIFamily: "openai", EnvKey: "OPENAI_API_KEY",
		DisplayName: "Custom", RoutePrefix: "openai",
		SkipPrefixes: []string{"openai/"},
		IsGateway:    true, StripModelPrefix: true,
	},
	// OpenRouter
	{
		Name: "openrouter", APIFamily: "openai", Keywords: []string{"openrouter"},
		EnvKey: "OPENROUTER_API_KEY", DisplayName: "OpenRouter",
		RoutePrefix: "openrouter", IsGateway: true,
		DetectByKeyPrefix: "sk-or-", DetectByBaseKW: "openrouter",
		DefaultAPIBase:    "https://openrouter.ai/api/v1",
		DefaultModel:      "anthropic/claude-sonnet-4-5",
	},
	// Anthropic
	{
		Name: "anthropic", APIFamily: "openai", Keywords: []string{"anthropic", "claude"},
		EnvKey: "ANTHROPIC_API_KEY", DisplayName: "Anthropic",
		DefaultModel: "claude-sonnet-4-5",
	},
	// OpenAI
	{
		Name: "openai", APIFamily: "openai", Keywords: []string{"openai", "gpt"},
		EnvKey: "OPENAI_API_KEY", DisplayName: "OpenAI",
		DefaultModel: "gpt-4o",
	},
	// DeepSeek
	{
		Name: "deepseek", APIFamily: "openai", Keywords: []string{"deepseek"},
		EnvKey: "DEEPSEEK_API_KEY", DisplayName: "DeepSeek",
		RoutePrefix: "deepseek", SkipPrefixes: []string{"deepseek/"},
		DefaultAPIBase: "https://api.deepseek.com/v1",
		DefaultModel:   "deepseek-chat",
	},
	// Gemini
	{
		Name: "gemini", APIFamily: "openai", Keywords: []string{"gemini"},
		EnvKey: "GEMINI_API_KEY", DisplayName: "Gemini",
		RoutePrefix: "gemini", SkipPrefixes: []string{"gemini/"},
	},
	// Moonshot
	{
		Name: "moonshot", APIFamily: "openai", Keywords: []string{"moonshot", "kimi"},
		EnvKey: "MOONSHOT_API_KEY", DisplayName: "Moonshot",
		RoutePrefix:  "moonshot",
		SkipPrefixes: []string{"moonshot/", "openrouter/"},
		DefaultAPIBase: "https://api.moonshot.ai/v1",
		ModelOverrides: []ModelOverride{
			{Pattern: "kimi-k2.5", Overrides: map[string]any{"temperature": 1.0}},
		},
	},
	// Groq
	{
		Name: "groq", APIFamily: "openai", Keywords: []string{"groq"},
		EnvKey: "GROQ_API_KEY", DisplayName: "Groq",
		RoutePrefix: "groq", SkipPrefixes: []string{"groq/"},
	},
	// vLLM / Local
	{
		Name: "vllm", APIFamily: "openai", Keywords: []string{"vllm"},
		EnvKey: "HOSTED_VLLM_API_KEY", DisplayName: "vLLM/Local",
		RoutePrefix: "hosted_vllm", IsLocal: true,
	},
}

// FindByModel returns the first standard provider spec whose keyword list
// matches a case-insensitive substring of the model name.
// Gateways and local providers are skipped.
func FindByModel(model string) *ProviderSpec {
	lower := strings.ToLower(model)
	for _, spec := range Providers {
		if spec.IsGateway || spec.IsLocal {
			continue
		}
		for _, kw := range spec.Keywords {
			if strings.Contains(lower, kw) {
				return spec
			}
		}
	}
	return nil
}

// FindGateway detects a gateway/local provider.
// Priority: 1) explicit provider name  2) api_key prefix  3) api_base keyword.
func FindGateway(providerName, apiKey, apiBase string) *ProviderSpec {
	if providerName != "" {
		spec := FindByName(providerName)
		if spec != nil && (spec.IsGateway || spec.IsLocal) {
			return spec
		}
	}
	for _, spec := range Providers {
		if spec.DetectByKeyPrefix != "" && apiKey != "" &&
			strings.HasPrefix(apiKey, spec.DetectByKeyPrefix) {
			return spec
		}
		if spec.DetectByBaseKW != "" && apiBase != "" &&
			strings.Contains(apiBase, spec.DetectByBaseKW) {
			return spec
		}
	}
	return nil
}

// FindByName finds a provider spec by config field name.
func FindByName(name string) *ProviderSpec {
	for _, spec := range Providers {
		if spec.Name == name {
			return spec
		}
	}
	return nil
}
