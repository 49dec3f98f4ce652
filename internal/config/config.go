package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete agentwatch configuration
type Config struct {
	Watch      WatchConfig      `mapstructure:"watch"`
	Detection  DetectionConfig  `mapstructure:"detection"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Extraction ExtractionConfig `mapstructure:"extraction"`
	Dedup      DedupConfig      `mapstructure:"dedup"`
	AI         AIConfig         `mapstructure:"ai"`
	Hooks      HooksConfig      `mapstructure:"hooks"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"`
	Agents     []AgentConfig    `mapstructure:"agents"`
}

// WatchConfig controls the orchestration loop
type WatchConfig struct {
	// IntervalSeconds is the time between ticks (default: 10)
	IntervalSeconds int `mapstructure:"interval_seconds"`
	// ClearLockOnProcessing drops an agent's notification lock when it is seen
	// processing again, so the next question notifies immediately (default: true)
	ClearLockOnProcessing bool `mapstructure:"clear_lock_on_processing"`
	// FallbackLines is how many lines of raw terminal tail are sent when
	// extraction is exhausted (default: 30)
	FallbackLines int `mapstructure:"fallback_lines"`
}

// DetectionConfig controls the detection strategy selector
type DetectionConfig struct {
	// HookFreshnessSeconds is how recent a hook must be for HookOnly agents to
	// skip polling (default: 300)
	HookFreshnessSeconds int `mapstructure:"hook_freshness_seconds"`
}

// ClassifierConfig controls the status classifier
type ClassifierConfig struct {
	// LowConfidence is the threshold below which a quality warning is emitted (default: 0.5)
	LowConfidence float64 `mapstructure:"low_confidence"`
	// TimeoutSeconds is the hard timeout of one classification call (default: 12)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// ExtractionConfig controls the ReAct extraction loop
type ExtractionConfig struct {
	// ContextSizes are the escalating window sizes in lines (default: [80,150,300,500,800])
	ContextSizes []int `mapstructure:"context_sizes"`
	// MaxIterations bounds the number of AI calls per tick (default: 5)
	MaxIterations int `mapstructure:"max_iterations"`
	// TimeoutSeconds is the hard timeout of one extraction call (default: 12)
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

// DedupConfig controls notification deduplication
type DedupConfig struct {
	// StorePath is the JSON lock store shared by all agentwatch processes.
	// Empty means {StateDir}/notification_locks.json.
	StorePath string `mapstructure:"store_path"`
	// LockMinutes suppresses repeats of the same question (default: 30)
	LockMinutes int `mapstructure:"lock_minutes"`
	// ReminderDelayMinutes is the wait after the lock before one reminder (default: 30)
	ReminderDelayMinutes int `mapstructure:"reminder_delay_minutes"`
	// MaxDurationMinutes stops all notifications for one question (default: 120)
	MaxDurationMinutes int `mapstructure:"max_duration_minutes"`
	// EvictAfterHours drops other agents' stale locks on write (default: 24)
	EvictAfterHours int `mapstructure:"evict_after_hours"`
}

// AIConfig controls the AI provider client
type AIConfig struct {
	// Model is the Anthropic model used for classification and extraction
	Model string `mapstructure:"model"`
	// APIKeyEnv names the environment variable holding the API key (default: ANTHROPIC_API_KEY)
	APIKeyEnv string `mapstructure:"api_key_env"`
	// BaseURL overrides the Messages API endpoint (empty uses the public API)
	BaseURL string `mapstructure:"base_url"`
	// MaxTokens caps the response size of one call (default: 512)
	MaxTokens int `mapstructure:"max_tokens"`
}

// HooksConfig controls hook event intake
type HooksConfig struct {
	// SpoolDir is where `agentwatch hook` drops payloads. Empty means {StateDir}/hooks.
	SpoolDir string `mapstructure:"spool_dir"`
	// ListenAddr enables the HTTP hook receiver when non-empty (e.g. "127.0.0.1:7717")
	ListenAddr string `mapstructure:"listen_addr"`
}

// LoggingConfig controls daemon logging behavior
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// ToFile writes logs to {StateDir}/agentwatch.log instead of stderr (default: true)
	ToFile bool `mapstructure:"to_file"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// DiscoveryConfig controls automatic agent discovery from tmux sessions
type DiscoveryConfig struct {
	// Enabled lists tmux sessions and tracks those matching SessionPrefix (default: false)
	Enabled bool `mapstructure:"enabled"`
	// Socket is the tmux socket to list (empty uses the default server)
	Socket string `mapstructure:"socket"`
	// SessionPrefix selects which sessions are agents (default: "agent-")
	SessionPrefix string `mapstructure:"session_prefix"`
	// DefaultType is the agent type assumed for discovered sessions (default: "claude")
	DefaultType string `mapstructure:"default_type"`
}

// AgentConfig describes one explicitly tracked agent
type AgentConfig struct {
	// ID is the stable agent identifier used for locks and notifications
	ID string `mapstructure:"id"`
	// Type selects the adapter: claude, codex, opencode, generic
	Type string `mapstructure:"type"`
	// Session is the tmux target (session, session:window or pane id)
	Session string `mapstructure:"session"`
	// Socket is the tmux socket name (empty uses the default server)
	Socket string `mapstructure:"socket"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Watch: WatchConfig{
			IntervalSeconds:       10,
			ClearLockOnProcessing: true,
			FallbackLines:         30,
		},
		Detection: DetectionConfig{
			HookFreshnessSeconds: 300,
		},
		Classifier: ClassifierConfig{
			LowConfidence:  0.5,
			TimeoutSeconds: 12,
		},
		Extraction: ExtractionConfig{
			ContextSizes:   []int{80, 150, 300, 500, 800},
			MaxIterations:  5,
			TimeoutSeconds: 12,
		},
		Dedup: DedupConfig{
			StorePath:            "",
			LockMinutes:          30,
			ReminderDelayMinutes: 30,
			MaxDurationMinutes:   120,
			EvictAfterHours:      24,
		},
		AI: AIConfig{
			Model:     "claude-3-5-haiku-20241022",
			APIKeyEnv: "ANTHROPIC_API_KEY",
			BaseURL:   "",
			MaxTokens: 512,
		},
		Hooks: HooksConfig{
			SpoolDir:   "",
			ListenAddr: "",
		},
		Logging: LoggingConfig{
			Level:      "info",
			ToFile:     true,
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Discovery: DiscoveryConfig{
			Enabled:       false,
			Socket:        "",
			SessionPrefix: "agent-",
			DefaultType:   "claude",
		},
		Agents: []AgentConfig{},
	}
}

// Interval returns the tick interval as a time.Duration
func (c *WatchConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// HookFreshness returns the hook freshness threshold as a time.Duration
func (c *DetectionConfig) HookFreshness() time.Duration {
	return time.Duration(c.HookFreshnessSeconds) * time.Second
}

// Timeout returns the per-call classification timeout
func (c *ClassifierConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Timeout returns the per-call extraction timeout
func (c *ExtractionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LockDuration returns the lock window as a time.Duration
func (c *DedupConfig) LockDuration() time.Duration {
	return time.Duration(c.LockMinutes) * time.Minute
}

// ReminderDelay returns the reminder delay as a time.Duration
func (c *DedupConfig) ReminderDelay() time.Duration {
	return time.Duration(c.ReminderDelayMinutes) * time.Minute
}

// MaxDuration returns the maximum notification duration as a time.Duration
func (c *DedupConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationMinutes) * time.Minute
}

// EvictAfter returns the stale lock eviction age as a time.Duration
func (c *DedupConfig) EvictAfter() time.Duration {
	return time.Duration(c.EvictAfterHours) * time.Hour
}

// ResolveStorePath returns StorePath, defaulting into the state directory.
func (c *DedupConfig) ResolveStorePath() string {
	if c.StorePath != "" {
		return expandHome(c.StorePath)
	}
	return filepath.Join(StateDir(), "notification_locks.json")
}

// ResolveSpoolDir returns SpoolDir, defaulting into the state directory.
func (c *HooksConfig) ResolveSpoolDir() string {
	if c.SpoolDir != "" {
		return expandHome(c.SpoolDir)
	}
	return filepath.Join(StateDir(), "hooks")
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Watch defaults
	viper.SetDefault("watch.interval_seconds", defaults.Watch.IntervalSeconds)
	viper.SetDefault("watch.clear_lock_on_processing", defaults.Watch.ClearLockOnProcessing)
	viper.SetDefault("watch.fallback_lines", defaults.Watch.FallbackLines)

	// Detection defaults
	viper.SetDefault("detection.hook_freshness_seconds", defaults.Detection.HookFreshnessSeconds)

	// Classifier defaults
	viper.SetDefault("classifier.low_confidence", defaults.Classifier.LowConfidence)
	viper.SetDefault("classifier.timeout_seconds", defaults.Classifier.TimeoutSeconds)

	// Extraction defaults
	viper.SetDefault("extraction.context_sizes", defaults.Extraction.ContextSizes)
	viper.SetDefault("extraction.max_iterations", defaults.Extraction.MaxIterations)
	viper.SetDefault("extraction.timeout_seconds", defaults.Extraction.TimeoutSeconds)

	// Dedup defaults
	viper.SetDefault("dedup.store_path", defaults.Dedup.StorePath)
	viper.SetDefault("dedup.lock_minutes", defaults.Dedup.LockMinutes)
	viper.SetDefault("dedup.reminder_delay_minutes", defaults.Dedup.ReminderDelayMinutes)
	viper.SetDefault("dedup.max_duration_minutes", defaults.Dedup.MaxDurationMinutes)
	viper.SetDefault("dedup.evict_after_hours", defaults.Dedup.EvictAfterHours)

	// AI defaults
	viper.SetDefault("ai.model", defaults.AI.Model)
	viper.SetDefault("ai.api_key_env", defaults.AI.APIKeyEnv)
	viper.SetDefault("ai.base_url", defaults.AI.BaseURL)
	viper.SetDefault("ai.max_tokens", defaults.AI.MaxTokens)

	// Hooks defaults
	viper.SetDefault("hooks.spool_dir", defaults.Hooks.SpoolDir)
	viper.SetDefault("hooks.listen_addr", defaults.Hooks.ListenAddr)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.to_file", defaults.Logging.ToFile)
	viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)

	// Discovery defaults
	viper.SetDefault("discovery.enabled", defaults.Discovery.Enabled)
	viper.SetDefault("discovery.socket", defaults.Discovery.Socket)
	viper.SetDefault("discovery.session_prefix", defaults.Discovery.SessionPrefix)
	viper.SetDefault("discovery.default_type", defaults.Discovery.DefaultType)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentwatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentwatch"
	}
	return filepath.Join(home, ".config", "agentwatch")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory holding the lock store, hook spool and logs
func StateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "agentwatch")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".agentwatch"
	}
	return filepath.Join(home, ".local", "state", "agentwatch")
}

// expandHome expands a leading ~/ to the user's home directory.
func expandHome(path string) string {
	if path == "~" || len(path) > 1 && path[:2] == "~/" {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
