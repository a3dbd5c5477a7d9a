// Package config holds the per-action attempt budgets.
//
// Defaults cover every action; a YAML file and environment variables may override
// them per deployment:
//
//	policies:
//	  login:
//	    max_attempts: 40
//	    window: 5m
//	  register:
//	    max_attempts: 15
//	    window: 15m
//
// Environment overrides use RATE_LIMIT_<ACTION>_MAX_ATTEMPTS and
// RATE_LIMIT_<ACTION>_WINDOW (a Go duration).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"authguard/internal/ratelimit/models"
	"authguard/pkg/domain"
)

// Config maps each action to its policy.
type Config struct {
	Policies map[domain.Action]models.Policy
}

type fileConfig struct {
	Policies map[domain.Action]filePolicy `yaml:"policies"`
}

type filePolicy struct {
	MaxAttempts *int           `yaml:"max_attempts"`
	Window      *time.Duration `yaml:"window"`
}

// DefaultConfig returns the production policy table.
func DefaultConfig() *Config {
	return &Config{Policies: map[domain.Action]models.Policy{
		domain.ActionLogin:    {MaxAttempts: 40, Window: 5 * time.Minute},
		domain.ActionRegister: {MaxAttempts: 15, Window: 15 * time.Minute},
	}}
}

// Load starts from DefaultConfig, overlays the YAML file at path (if non-empty),
// then environment overrides, and validates the result.
func Load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		if err := cfg.applyYAML(raw); err != nil {
			return nil, err
		}
	}
	if lookup != nil {
		if err := cfg.applyEnv(lookup); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyYAML(raw []byte) error {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return fmt.Errorf("parse policy file: %w", err)
	}
	for action, fp := range fc.Policies {
		if _, err := domain.ParseAction(string(action)); err != nil {
			return fmt.Errorf("policy file: unknown action %q", action)
		}
		p := c.Policies[action]
		if fp.MaxAttempts != nil {
			p.MaxAttempts = *fp.MaxAttempts
		}
		if fp.Window != nil {
			p.Window = *fp.Window
		}
		c.Policies[action] = p
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for _, action := range domain.Actions() {
		prefix := "RATE_LIMIT_" + strings.ToUpper(string(action)) + "_"
		p := c.Policies[action]
		if v, ok := lookup(prefix + "MAX_ATTEMPTS"); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%sMAX_ATTEMPTS: %w", prefix, err)
			}
			p.MaxAttempts = n
		}
		if v, ok := lookup(prefix + "WINDOW"); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%sWINDOW: %w", prefix, err)
			}
			p.Window = d
		}
		c.Policies[action] = p
	}
	return nil
}

// Validate requires a positive budget and window for every action.
func (c *Config) Validate() error {
	for _, action := range domain.Actions() {
		p, ok := c.Policies[action]
		if !ok {
			return fmt.Errorf("no rate limit policy for %s", action)
		}
		if p.MaxAttempts <= 0 {
			return fmt.Errorf("%s: max attempts must be positive", action)
		}
		if p.Window <= 0 {
			return fmt.Errorf("%s: window must be positive", action)
		}
	}
	return nil
}

// Policy returns the policy for action.
func (c *Config) Policy(action domain.Action) (models.Policy, bool) {
	p, ok := c.Policies[action]
	return p, ok
}

// MaxWindow returns the longest window across all policies.
func (c *Config) MaxWindow() time.Duration {
	var longest time.Duration
	for _, p := range c.Policies {
		longest = max(longest, p.Window)
	}
	return longest
}

// CheckRetention rejects a purge retention shorter than the longest window, which
// would delete attempts that still count.
func (c *Config) CheckRetention(retention time.Duration) error {
	if w := c.MaxWindow(); retention < w {
		return fmt.Errorf("cleanup retention %s is shorter than the longest policy window %s", retention, w)
	}
	return nil
}
