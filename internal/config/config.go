// Package config loads and validates the daemon's YAML configuration.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root of the daemon configuration file.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
	Agents      []AgentConfig     `yaml:"agents"`
}

// CoordinatorConfig describes the link to the coordinator.
type CoordinatorConfig struct {
	URL            string `yaml:"url"`
	TokenFile      string `yaml:"token_file"`
	KeyringService string `yaml:"keyring_service"`

	PingIntervalMs int     `yaml:"ping_interval_ms"`
	PongTimeoutMs  int     `yaml:"pong_timeout_ms"`
	BackoffBaseMs  int     `yaml:"backoff_base_ms"`
	BackoffMaxMs   int     `yaml:"backoff_max_ms"`
	MaxAttempts    int     `yaml:"max_attempts"`
	QueueCap       int     `yaml:"queue_cap"`
	SendRate       float64 `yaml:"send_rate"` // frames/sec, 0 disables pacing
	SendBurst      int     `yaml:"send_burst"`
}

// SchedulerConfig tunes per-agent queueing.
type SchedulerConfig struct {
	QueueCap          int `yaml:"queue_cap"`
	DispatchTimeoutMs int `yaml:"dispatch_timeout_ms"` // 0 = adapter's responsibility
	DedupeTTLMin      int `yaml:"dedupe_ttl_min"`
	DedupeSize        int `yaml:"dedupe_size"`
}

// AgentConfig declares one agent the daemon registers at startup.
type AgentConfig struct {
	ID          string `yaml:"id"`
	DisplayName string `yaml:"display_name"`
}

// Defaults applied by Normalize.
const (
	DefaultKeyringService = "agentim"
	DefaultTokenFile      = "~/.agentim/token"

	defaultPingIntervalMs = 30_000
	defaultPongTimeoutMs  = 10_000
	defaultBackoffBaseMs  = 1_000
	defaultBackoffMaxMs   = 30_000
	defaultMaxAttempts    = 50
	defaultOutboundCap    = 500
	defaultAgentQueueCap  = 50
	defaultDedupeTTLMin   = 20
	defaultDedupeSize     = 5000
)

// Load reads, normalizes, and validates the config at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize fills defaults and canonicalizes agent IDs.
func (c *Config) Normalize() {
	co := &c.Coordinator
	if co.KeyringService == "" {
		co.KeyringService = DefaultKeyringService
	}
	if co.TokenFile == "" {
		co.TokenFile = DefaultTokenFile
	}
	if co.TokenFile != "" && strings.HasPrefix(co.TokenFile, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			co.TokenFile = home + co.TokenFile[1:]
		}
	}
	if co.PingIntervalMs <= 0 {
		co.PingIntervalMs = defaultPingIntervalMs
	}
	if co.PongTimeoutMs <= 0 {
		co.PongTimeoutMs = defaultPongTimeoutMs
	}
	if co.BackoffBaseMs <= 0 {
		co.BackoffBaseMs = defaultBackoffBaseMs
	}
	if co.BackoffMaxMs <= 0 {
		co.BackoffMaxMs = defaultBackoffMaxMs
	}
	if co.MaxAttempts <= 0 {
		co.MaxAttempts = defaultMaxAttempts
	}
	if co.QueueCap <= 0 {
		co.QueueCap = defaultOutboundCap
	}

	s := &c.Scheduler
	if s.QueueCap <= 0 {
		s.QueueCap = defaultAgentQueueCap
	}
	if s.DedupeTTLMin <= 0 {
		s.DedupeTTLMin = defaultDedupeTTLMin
	}
	if s.DedupeSize <= 0 {
		s.DedupeSize = defaultDedupeSize
	}

	for i := range c.Agents {
		c.Agents[i].ID = NormalizeAgentID(c.Agents[i].ID)
	}
}

// Validate rejects configs the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Coordinator.URL == "" {
		return fmt.Errorf("coordinator.url is required")
	}
	if !strings.HasPrefix(c.Coordinator.URL, "ws://") && !strings.HasPrefix(c.Coordinator.URL, "wss://") {
		return fmt.Errorf("coordinator.url must be a ws:// or wss:// endpoint, got %q", c.Coordinator.URL)
	}
	seen := make(map[string]bool, len(c.Agents))
	for _, a := range c.Agents {
		if seen[a.ID] {
			return fmt.Errorf("duplicate agent id %q", a.ID)
		}
		seen[a.ID] = true
	}
	return nil
}

var (
	validIDRe    = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)
	invalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
	edgeDashes   = regexp.MustCompile(`^-+|-+$`)
)

// NormalizeAgentID canonicalizes a configured agent name: lowercase, max
// 64 chars, only [a-z0-9_-], invalid runs collapsed to "-", edge dashes
// stripped. An empty result becomes "default".
func NormalizeAgentID(name string) string {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "default"
	}
	lower := strings.ToLower(trimmed)
	if validIDRe.MatchString(lower) {
		return lower
	}
	result := invalidChars.ReplaceAllString(lower, "-")
	result = edgeDashes.ReplaceAllString(result, "")
	if len(result) > 64 {
		result = result[:64]
	}
	if result == "" {
		return "default"
	}
	return result
}
