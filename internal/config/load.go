package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load configuration from environment variables and optionally a config file.
// Environment variables (prefix CONCIERGE_, dots replaced by underscores)
// take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Optional config file in the working directory.
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("CONCIERGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about, so the
	// secret settings (which deliberately have no defaults) are bound
	// explicitly.
	for _, key := range []string{
		"database.url",
		"auth.jwt_secret",
		"auth.api_key_hash",
		"llm.gemini_api_key",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers defaults for every setting that has a sensible one.
// Secrets (database URL, JWT secret, API keys) deliberately have none.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.embedding_model", "text-embedding-004")

	v.SetDefault("router.confidence_threshold", 0.75)
	v.SetDefault("router.lexical_weight", 0.4)
	v.SetDefault("router.semantic_weight", 0.6)
	v.SetDefault("router.tie_epsilon", 0.01)

	v.SetDefault("scheduler.poll_interval", 30*time.Second)
	v.SetDefault("scheduler.batch_size", 5)
	v.SetDefault("scheduler.concurrency", 3)
	v.SetDefault("scheduler.max_attempts", 3)
	v.SetDefault("scheduler.retry_backoff", 30*time.Second)
	v.SetDefault("scheduler.retry_backoff_max", 10*time.Minute)
	v.SetDefault("scheduler.stuck_task_age", 30*time.Minute)

	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.embedding_ttl", time.Hour)
	v.SetDefault("cache.decision_ttl", 5*time.Minute)
	v.SetDefault("cache.handler_metadata_ttl", time.Hour)

	v.SetDefault("registry.max_delegation_depth", 5)
	v.SetDefault("registry.invoke_timeout", 2*time.Minute)
}
