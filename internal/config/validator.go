package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dedup.lock_minutes")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidAgentTypes returns the list of agent types with an adapter
func ValidAgentTypes() []string {
	return []string{"claude", "codex", "opencode", "generic"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWatch()...)
	errors = append(errors, c.validateClassifier()...)
	errors = append(errors, c.validateExtraction()...)
	errors = append(errors, c.validateDedup()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateDiscovery()...)
	errors = append(errors, c.validateAgents()...)

	return errors
}

func positive(field string, value int) []ValidationError {
	if value > 0 {
		return nil
	}
	return []ValidationError{{Field: field, Value: value, Message: "must be positive"}}
}

// validateWatch validates the WatchConfig and DetectionConfig
func (c *Config) validateWatch() []ValidationError {
	var errors []ValidationError
	errors = append(errors, positive("watch.interval_seconds", c.Watch.IntervalSeconds)...)
	errors = append(errors, positive("watch.fallback_lines", c.Watch.FallbackLines)...)

	if c.Detection.HookFreshnessSeconds < 0 {
		errors = append(errors, ValidationError{
			Field:   "detection.hook_freshness_seconds",
			Value:   c.Detection.HookFreshnessSeconds,
			Message: "must be non-negative",
		})
	}
	return errors
}

// validateClassifier validates the ClassifierConfig
func (c *Config) validateClassifier() []ValidationError {
	var errors []ValidationError

	if c.Classifier.LowConfidence < 0 || c.Classifier.LowConfidence > 1 {
		errors = append(errors, ValidationError{
			Field:   "classifier.low_confidence",
			Value:   c.Classifier.LowConfidence,
			Message: "must be between 0 and 1",
		})
	}
	errors = append(errors, positive("classifier.timeout_seconds", c.Classifier.TimeoutSeconds)...)
	return errors
}

// validateExtraction validates the ExtractionConfig
func (c *Config) validateExtraction() []ValidationError {
	var errors []ValidationError

	if len(c.Extraction.ContextSizes) == 0 {
		errors = append(errors, ValidationError{
			Field:   "extraction.context_sizes",
			Value:   c.Extraction.ContextSizes,
			Message: "must contain at least one size",
		})
	}
	for _, size := range c.Extraction.ContextSizes {
		if size <= 0 {
			errors = append(errors, ValidationError{
				Field:   "extraction.context_sizes",
				Value:   c.Extraction.ContextSizes,
				Message: "sizes must be positive",
			})
			break
		}
	}
	if !slices.IsSorted(c.Extraction.ContextSizes) {
		errors = append(errors, ValidationError{
			Field:   "extraction.context_sizes",
			Value:   c.Extraction.ContextSizes,
			Message: "sizes must be in increasing order",
		})
	}
	errors = append(errors, positive("extraction.max_iterations", c.Extraction.MaxIterations)...)
	errors = append(errors, positive("extraction.timeout_seconds", c.Extraction.TimeoutSeconds)...)
	return errors
}

// validateDedup validates the DedupConfig
func (c *Config) validateDedup() []ValidationError {
	var errors []ValidationError
	errors = append(errors, positive("dedup.lock_minutes", c.Dedup.LockMinutes)...)
	errors = append(errors, positive("dedup.reminder_delay_minutes", c.Dedup.ReminderDelayMinutes)...)
	errors = append(errors, positive("dedup.max_duration_minutes", c.Dedup.MaxDurationMinutes)...)
	errors = append(errors, positive("dedup.evict_after_hours", c.Dedup.EvictAfterHours)...)

	if c.Dedup.MaxDurationMinutes > 0 && c.Dedup.MaxDurationMinutes < c.Dedup.LockMinutes {
		errors = append(errors, ValidationError{
			Field:   "dedup.max_duration_minutes",
			Value:   c.Dedup.MaxDurationMinutes,
			Message: "must not be shorter than dedup.lock_minutes",
		})
	}
	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}
	return errors
}

// validateDiscovery validates the DiscoveryConfig
func (c *Config) validateDiscovery() []ValidationError {
	if !c.Discovery.Enabled {
		return nil
	}
	var errors []ValidationError
	if c.Discovery.SessionPrefix == "" {
		errors = append(errors, ValidationError{
			Field:   "discovery.session_prefix",
			Value:   c.Discovery.SessionPrefix,
			Message: "must not be empty when discovery is enabled",
		})
	}
	if !slices.Contains(ValidAgentTypes(), strings.ToLower(c.Discovery.DefaultType)) {
		errors = append(errors, ValidationError{
			Field:   "discovery.default_type",
			Value:   c.Discovery.DefaultType,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAgentTypes(), ", ")),
		})
	}
	return errors
}

// validateAgents validates the explicitly configured agents
func (c *Config) validateAgents() []ValidationError {
	var errors []ValidationError
	seen := make(map[string]bool)

	for i, agent := range c.Agents {
		prefix := fmt.Sprintf("agents[%d]", i)
		if agent.ID == "" {
			errors = append(errors, ValidationError{Field: prefix + ".id", Value: agent.ID, Message: "must not be empty"})
		} else if seen[agent.ID] {
			errors = append(errors, ValidationError{Field: prefix + ".id", Value: agent.ID, Message: "must be unique"})
		}
		seen[agent.ID] = true

		if agent.Session == "" {
			errors = append(errors, ValidationError{Field: prefix + ".session", Value: agent.Session, Message: "must not be empty"})
		}
		if !slices.Contains(ValidAgentTypes(), strings.ToLower(agent.Type)) {
			errors = append(errors, ValidationError{
				Field:   prefix + ".type",
				Value:   agent.Type,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidAgentTypes(), ", ")),
			})
		}
	}
	return errors
}
