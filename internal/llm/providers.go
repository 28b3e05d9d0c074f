// CLAUDE:SUMMARY Factory that builds the judge's LLM provider from config (fails with ErrNoAPIKey when no key is set)
package llm

import "github.com/hazyhaar/proofmine/internal/config"

// NewFromConfig creates the provider backing the live judge.
func NewFromConfig(cfg config.JudgeConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, &ProviderError{Provider: "anthropic", Model: cfg.Model, Err: ErrNoAPIKey}
	}
	p := NewAnthropicProvider(cfg.APIKey)
	if cfg.BaseURL != "" {
		p.baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		p.models = append([]string{cfg.Model}, p.models...)
	}
	return p, nil
}
