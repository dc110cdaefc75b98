package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists the LLM provider names the server can construct.
var ValidProviderNames = []string{
	"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Provider.Name == "" {
		errs = append(errs, errors.New("provider.name is required"))
	} else if !slices.Contains(ValidProviderNames, cfg.Provider.Name) {
		slog.Warn("unrecognised provider name; the any-llm gateway may still accept it",
			"name", cfg.Provider.Name)
	}
	if cfg.Provider.Model == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if cfg.Provider.Timeout < 0 {
		errs = append(errs, fmt.Errorf("provider.timeout %s is negative", cfg.Provider.Timeout))
	}
	for i, fb := range cfg.Provider.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("provider.fallbacks[%d].name is required", i))
		}
		if fb.Model == "" {
			errs = append(errs, fmt.Errorf("provider.fallbacks[%d].model is required", i))
		}
	}

	if cfg.Memory.PostgresDSN == "" {
		slog.Warn("memory.postgres_dsn is empty; using the in-memory store, session state will not survive a restart")
	}

	s := cfg.Summarize
	if s.AutoThreshold < 0 {
		errs = append(errs, fmt.Errorf("summarize.auto_threshold %d is negative", s.AutoThreshold))
	}
	if s.ManualMinimum < 0 {
		errs = append(errs, fmt.Errorf("summarize.manual_minimum %d is negative", s.ManualMinimum))
	}
	if s.AutoThreshold > 0 && s.ManualMinimum > s.AutoThreshold {
		errs = append(errs, fmt.Errorf("summarize.manual_minimum %d exceeds auto_threshold %d", s.ManualMinimum, s.AutoThreshold))
	}
	if s.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("summarize.max_attempts %d is negative", s.MaxAttempts))
	}
	if s.AttemptTimeout < 0 {
		errs = append(errs, fmt.Errorf("summarize.attempt_timeout %s is negative", s.AttemptTimeout))
	}
	if s.Backoff < 0 {
		errs = append(errs, fmt.Errorf("summarize.backoff %s is negative", s.Backoff))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %w", errors.Join(errs...))
	}
	return nil
}
