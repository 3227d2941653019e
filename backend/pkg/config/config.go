package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	apperrors "cogbot/backend/pkg/errors"
)

// Config holds all application configuration
type Config struct {
	// App
	Port          string
	Env           string
	Debug         bool
	CommandPrefix string
	CogsFile      string

	// Discord
	DiscordBotToken string

	// Settings store (Neo4j); empty URI keeps settings in memory
	Neo4jURI      string
	Neo4jUser     string
	Neo4jPassword string

	// Perplexity chat relay
	PerplexityAPIKey  string
	PerplexityBaseURL string
	ChatTimeout       time.Duration

	// xrel.to / srrDB
	XrelClientID     string
	XrelClientSecret string
	XrelBaseURL      string
	SrrdbBaseURL     string
	HTTPTimeout      time.Duration

	// Minecraft RCON
	RconAddress  string
	RconPassword string

	// Cogs holds the per-cog settings loaded from CogsFile
	Cogs *CogsConfig
}

// Load reads configuration from environment variables and the cog file
func Load() (*Config, error) {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		Debug:             getEnvBool("DEBUG_LOGGING", false),
		CommandPrefix:     getEnv("COMMAND_PREFIX", "!"),
		CogsFile:          getEnv("COGS_FILE", "cogs.yaml"),
		DiscordBotToken:   getEnv("DISCORD_BOT_TOKEN", ""),
		Neo4jURI:          getEnv("NEO4J_URI", ""),
		Neo4jUser:         getEnv("NEO4J_USER", "neo4j"),
		Neo4jPassword:     getEnv("NEO4J_PASSWORD", ""),
		PerplexityAPIKey:  getEnv("PPLX_API_KEY", ""),
		PerplexityBaseURL: getEnv("PPLX_BASE_URL", "https://api.perplexity.ai"),
		ChatTimeout:       getEnvDuration("CHAT_TIMEOUT", 60*time.Second),
		XrelClientID:      getEnv("CLIENT_ID", ""),
		XrelClientSecret:  getEnv("CLIENT_SECRET", ""),
		XrelBaseURL:       getEnv("XREL_BASE_URL", "https://api.xrel.to/v2"),
		SrrdbBaseURL:      getEnv("SRRDB_BASE_URL", "https://api.srrdb.com/v1"),
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		RconAddress:       getEnv("RCON_ADDRESS", "192.168.178.167:25575"),
		RconPassword:      getEnv("SERVER_PASSWORD", ""),
	}

	cogs, err := LoadCogs(cfg.CogsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load cog config: %w", err)
	}
	cfg.Cogs = cogs

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are usable
func (c *Config) Validate() error {
	if c.CommandPrefix == "" {
		return apperrors.NewConfigMissingRequired("COMMAND_PREFIX")
	}
	if c.Neo4jURI != "" && c.Neo4jPassword == "" {
		return apperrors.NewConfigValidationFailed("NEO4J_PASSWORD", "required when NEO4J_URI is set")
	}
	if (c.XrelClientID == "") != (c.XrelClientSecret == "") {
		return apperrors.NewConfigValidationFailed("CLIENT_ID/CLIENT_SECRET", "both or neither must be set")
	}
	if c.HTTPTimeout <= 0 {
		return apperrors.NewConfigValidationFailed("HTTP_TIMEOUT", "must be positive")
	}
	// Discord token, API keys and RCON password are optional; the cogs that need them
	// answer with a setup hint instead.
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// HasXrelCredentials reports whether the xrel.to OAuth client is configured
func (c *Config) HasXrelCredentials() bool {
	return c.XrelClientID != "" && c.XrelClientSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
