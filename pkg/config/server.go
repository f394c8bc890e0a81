package config

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host            string   `yaml:"host,omitempty"`
	Port            int      `yaml:"port,omitempty"`
	ReadTimeout     Duration `yaml:"read_timeout,omitempty"`
	WriteTimeout    Duration `yaml:"write_timeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout,omitempty"`
	// MaxConcurrentSessions caps deliberations running at once; further
	// submissions are rejected with 429. Zero disables the cap.
	MaxConcurrentSessions int `yaml:"max_concurrent_sessions,omitempty"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	// Backend is "memory" or "postgres".
	Backend string `yaml:"backend,omitempty"`
	// DSN is the Postgres connection string. Supports {{.ENV_VAR}} expansion.
	DSN string `yaml:"dsn,omitempty"`
	// MaxOpenConns caps the connection pool for the postgres backend.
	MaxOpenConns int `yaml:"max_open_conns,omitempty"`
	// MaxIdleConns sets the idle pool size for the postgres backend.
	MaxIdleConns int `yaml:"max_idle_conns,omitempty"`
}

// SlackConfig controls session lifecycle notifications.
type SlackConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// BotTokenEnv names the environment variable holding the bot token.
	BotTokenEnv string `yaml:"bot_token_env,omitempty"`
	Channel     string `yaml:"channel,omitempty"`
	// BaseURL is prepended to session links in messages.
	BaseURL string `yaml:"base_url,omitempty"`
}

// RetentionConfig controls cleanup of finished sessions.
type RetentionConfig struct {
	Enabled bool `yaml:"enabled,omitempty"`
	// MaxAge is how long terminal sessions are kept.
	MaxAge Duration `yaml:"max_age,omitempty"`
	// CheckInterval is how often the sweeper runs.
	CheckInterval Duration `yaml:"check_interval,omitempty"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level,omitempty"`
	// Format is "json" or "text".
	Format string `yaml:"format,omitempty"`
}
