package config

import "time"

// Config holds configuration for both the syntaxchat client commands and
// the development server.
type Config struct {
	// Server settings.
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	DatabasePath      string        `mapstructure:"database_path" yaml:"database_path"`
	JWTSecret         string        `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer         string        `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	SessionTTL        time.Duration `mapstructure:"session_ttl" yaml:"session_ttl"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	// Client settings.
	ServerURL       string        `mapstructure:"server_url" yaml:"server_url"`
	RefreshDebounce time.Duration `mapstructure:"refresh_debounce" yaml:"refresh_debounce"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8000",
		DatabasePath:      "syntax-chat.db",
		JWTSecret:         "dev-only-secret",
		JWTIssuer:         "syntax-chat",
		SessionTTL:        24 * time.Hour,
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		ServerURL:         "http://localhost:8000",
		RefreshDebounce:   100 * time.Millisecond,
		LogLevel:          "info",
	}
}
