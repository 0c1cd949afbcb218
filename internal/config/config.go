package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	LLM       LLMConfig       `mapstructure:"llm"       validate:"required"`
	Router    RouterConfig    `mapstructure:"router"    validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Registry  RegistryConfig  `mapstructure:"registry"  validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// AuthConfig contains authentication settings for the HTTP surface.
// APIKeyHash is a bcrypt hash of the shared dashboard credential; clients
// exchange the plain key for a short-lived JWT at /auth/token.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret"             validate:"required,min=32"`
	APIKeyHash           string `mapstructure:"api_key_hash"           validate:"required"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
}

// LLMConfig contains Gemini integration settings used for both the
// full-reasoning handler and Tier-2 query embeddings.
type LLMConfig struct {
	GeminiAPIKey   string `mapstructure:"gemini_api_key"  validate:"required"`
	ModelName      string `mapstructure:"model_name"      validate:"required"`
	EmbeddingModel string `mapstructure:"embedding_model" validate:"required"`
}

// RouterConfig contains the tunable parameters of the tiered router.
type RouterConfig struct {
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold" validate:"gt=0,lte=1"`
	LexicalWeight       float64 `mapstructure:"lexical_weight"       validate:"gte=0,lte=1"`
	SemanticWeight      float64 `mapstructure:"semantic_weight"      validate:"gte=0,lte=1"`
	TieEpsilon          float64 `mapstructure:"tie_epsilon"          validate:"gte=0"`
}

// SchedulerConfig contains the background executor settings.
type SchedulerConfig struct {
	PollInterval    time.Duration `mapstructure:"poll_interval"     validate:"required,gt=0"`
	BatchSize       int           `mapstructure:"batch_size"        validate:"required,gt=0"`
	Concurrency     int           `mapstructure:"concurrency"       validate:"required,gt=0"`
	MaxAttempts     int           `mapstructure:"max_attempts"      validate:"required,gt=0"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff"     validate:"required,gt=0"`
	RetryBackoffMax time.Duration `mapstructure:"retry_backoff_max" validate:"required,gt=0"`
	StuckTaskAge    time.Duration `mapstructure:"stuck_task_age"    validate:"required,gt=0"`
}

// CacheConfig contains decision cache settings. An empty RedisAddr means
// the in-memory cache is used instead of a Redis backend.
type CacheConfig struct {
	RedisAddr          string        `mapstructure:"redis_addr"`
	EmbeddingTTL       time.Duration `mapstructure:"embedding_ttl"        validate:"required,gt=0"`
	DecisionTTL        time.Duration `mapstructure:"decision_ttl"         validate:"required,gt=0"`
	HandlerMetadataTTL time.Duration `mapstructure:"handler_metadata_ttl" validate:"required,gt=0"`
}

// RegistryConfig contains handler registry settings.
type RegistryConfig struct {
	MaxDelegationDepth int           `mapstructure:"max_delegation_depth" validate:"required,gt=0"`
	InvokeTimeout      time.Duration `mapstructure:"invoke_timeout"       validate:"required,gt=0"`
}
