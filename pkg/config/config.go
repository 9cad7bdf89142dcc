// Package config handles SOWGraph configuration via environment variables.
//
// All settings are read from SOWGRAPH_-prefixed environment variables with
// sensible defaults, so the server can start with nothing set. Configuration
// is loaded with LoadFromEnv() and checked with Validate() before use.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
//	fmt.Printf("HTTP server: %s:%d\n",
//		cfg.Server.HTTPAddress, cfg.Server.HTTPPort)
//
// Environment Variables:
//
//   - SOWGRAPH_AUTH="username/password" or "none"
//   - SOWGRAPH_HTTP_PORT=8474
//   - SOWGRAPH_DATA_DIR="./data"
//   - SOWGRAPH_SEED_DIR="./seed"
//   - SOWGRAPH_CROSS_DOMAIN_LIMIT=5
//
// For a complete list, see the Config struct field documentation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all SOWGraph configuration loaded from environment variables.
//
// Configuration is organized into logical sections:
//   - Auth: HTTP basic authentication
//   - Database: storage backend and seeding
//   - Server: HTTP server settings
//   - Inference: discovery engine tuning
//   - Bridge: centrality analysis tuning
//   - Logging: logging configuration
//
// Use LoadFromEnv() to create a Config from environment variables.
type Config struct {
	// Authentication (SOWGRAPH_AUTH format: "username/password" or "none")
	Auth AuthConfig

	// Database settings
	Database DatabaseConfig

	// Server settings
	Server ServerConfig

	// Inference engine settings
	Inference InferenceConfig

	// Bridge/centrality settings
	Bridge BridgeConfig

	// Logging
	Logging LoggingConfig
}

// AuthConfig holds authentication settings.
type AuthConfig struct {
	// Enabled controls whether HTTP basic auth is required
	Enabled bool
	// Username accepted by the server
	Username string
	// Password accepted by the server
	Password string
	// MinPasswordLength for the configured credential
	MinPasswordLength int
}

// DatabaseConfig holds storage settings.
type DatabaseConfig struct {
	// DataDir is the directory for BadgerDB data files
	DataDir string
	// InMemory runs storage in memory only (testing, demos)
	InMemory bool
	// SyncWrites forces fsync on every write
	SyncWrites bool
	// MemTableSize for BadgerDB, in bytes (0 = default)
	MemTableSize int64
	// MemTableSizeStr is the human-readable form (e.g. "16MB")
	MemTableSizeStr string
	// SeedDir holds YAML seed files imported at startup ("" = no seeding)
	SeedDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// HTTPEnabled controls the HTTP API server
	HTTPEnabled bool
	// HTTPPort for HTTP connections (default 8474)
	HTTPPort int
	// HTTPAddress to bind to
	HTTPAddress string
	// ShutdownTimeout for graceful shutdown
	ShutdownTimeout time.Duration
}

// InferenceConfig holds discovery engine tuning.
//
// These map onto the inference package defaults; only the knobs that are
// safe to vary per deployment are exposed here. Scoring formulas themselves
// are not configurable.
type InferenceConfig struct {
	// MinSuccessRate below which catalog rules are ignored
	MinSuccessRate float64
	// PhraseMultiplier applied to exact phrase matches
	PhraseMultiplier float64
	// TokenMultiplier applied to token-level matches
	TokenMultiplier float64
	// CrossDomainLimit caps cross-domain opportunities per discovery
	CrossDomainLimit int
	// CrossDomainConfidence assigned to cross-domain opportunities
	CrossDomainConfidence float64
}

// BridgeConfig holds centrality analysis tuning.
type BridgeConfig struct {
	// BetweennessWeight in the combined score
	BetweennessWeight float64
	// DegreeWeight in the combined score
	DegreeWeight float64
	// ClosenessWeight in the combined score
	ClosenessWeight float64
	// MaxDepth for neighborhood export
	MaxDepth int
	// PathCutoff is the maximum edges per simple path
	PathCutoff int
	// MaxNodes caps exported subgraph size
	MaxNodes int
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level (DEBUG, INFO, WARN, ERROR)
	Level string
	// AccessLogEnabled for per-request HTTP logging
	AccessLogEnabled bool
}

// LoadFromEnv loads configuration from environment variables.
//
// All values have defaults, so LoadFromEnv() can be called without any
// environment variables set. Always call Validate() on the result before
// using it.
//
// Example:
//
//	// Minimal setup - uses all defaults
//	cfg := config.LoadFromEnv()
//
//	// Auth disabled by default (SOWGRAPH_AUTH=none)
//	fmt.Printf("Auth enabled: %v\n", cfg.Auth.Enabled) // false
//
//	// HTTP server on default port
//	fmt.Printf("HTTP: %s:%d\n",
//		cfg.Server.HTTPAddress, cfg.Server.HTTPPort) // 0.0.0.0:8474
//
// Example - Production with Authentication:
//
//	os.Setenv("SOWGRAPH_AUTH", "admin/SecurePassword123!")
//	os.Setenv("SOWGRAPH_DATA_DIR", "/data")
//	os.Setenv("SOWGRAPH_SEED_DIR", "/seed")
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatal("Invalid config:", err)
//	}
func LoadFromEnv() *Config {
	cfg := &Config{}

	// Authentication - SOWGRAPH_AUTH format: "username/password" or "none"
	// Default: disabled for easy development
	authStr := getEnv("SOWGRAPH_AUTH", "none")
	if authStr == "none" {
		cfg.Auth.Enabled = false
		cfg.Auth.Username = "admin"
		cfg.Auth.Password = "admin"
	} else {
		cfg.Auth.Enabled = true
		parts := strings.SplitN(authStr, "/", 2)
		if len(parts) == 2 {
			cfg.Auth.Username = parts[0]
			cfg.Auth.Password = parts[1]
		} else {
			cfg.Auth.Username = "admin"
			cfg.Auth.Password = authStr
		}
	}
	cfg.Auth.MinPasswordLength = getEnvInt("SOWGRAPH_AUTH_MIN_PASSWORD_LENGTH", 8)

	// Database settings
	cfg.Database.DataDir = getEnv("SOWGRAPH_DATA_DIR", "./data")
	cfg.Database.InMemory = getEnvBool("SOWGRAPH_IN_MEMORY", false)
	cfg.Database.SyncWrites = getEnvBool("SOWGRAPH_SYNC_WRITES", false)
	cfg.Database.MemTableSizeStr = getEnv("SOWGRAPH_MEMTABLE_SIZE", "0")
	cfg.Database.MemTableSize = parseMemorySize(cfg.Database.MemTableSizeStr)
	cfg.Database.SeedDir = getEnv("SOWGRAPH_SEED_DIR", "")

	// Server settings
	cfg.Server.HTTPEnabled = getEnvBool("SOWGRAPH_HTTP_ENABLED", true)
	cfg.Server.HTTPPort = getEnvInt("SOWGRAPH_HTTP_PORT", 8474)
	cfg.Server.HTTPAddress = getEnv("SOWGRAPH_HTTP_ADDRESS", "0.0.0.0")
	cfg.Server.ShutdownTimeout = getEnvDuration("SOWGRAPH_SHUTDOWN_TIMEOUT", 10*time.Second)

	// Inference settings
	cfg.Inference.MinSuccessRate = getEnvFloat("SOWGRAPH_MIN_SUCCESS_RATE", 0.6)
	cfg.Inference.PhraseMultiplier = getEnvFloat("SOWGRAPH_PHRASE_MULTIPLIER", 1.0)
	cfg.Inference.TokenMultiplier = getEnvFloat("SOWGRAPH_TOKEN_MULTIPLIER", 0.7)
	cfg.Inference.CrossDomainLimit = getEnvInt("SOWGRAPH_CROSS_DOMAIN_LIMIT", 5)
	cfg.Inference.CrossDomainConfidence = getEnvFloat("SOWGRAPH_CROSS_DOMAIN_CONFIDENCE", 0.7)

	// Bridge settings
	cfg.Bridge.BetweennessWeight = getEnvFloat("SOWGRAPH_BETWEENNESS_WEIGHT", 0.4)
	cfg.Bridge.DegreeWeight = getEnvFloat("SOWGRAPH_DEGREE_WEIGHT", 0.3)
	cfg.Bridge.ClosenessWeight = getEnvFloat("SOWGRAPH_CLOSENESS_WEIGHT", 0.3)
	cfg.Bridge.MaxDepth = getEnvInt("SOWGRAPH_BRIDGE_MAX_DEPTH", 4)
	cfg.Bridge.PathCutoff = getEnvInt("SOWGRAPH_BRIDGE_PATH_CUTOFF", 4)
	cfg.Bridge.MaxNodes = getEnvInt("SOWGRAPH_BRIDGE_MAX_NODES", 1000)

	// Logging settings
	cfg.Logging.Level = getEnv("SOWGRAPH_LOG_LEVEL", "INFO")
	cfg.Logging.AccessLogEnabled = getEnvBool("SOWGRAPH_ACCESS_LOG_ENABLED", true)

	return cfg
}

// Validate checks the configuration for logical errors and invalid values.
//
// This method checks:
//   - Authentication is properly configured if enabled
//   - Password meets minimum length requirements
//   - Port numbers are valid (> 0)
//   - Inference and bridge tuning values are in range
//
// Call Validate() after LoadFromEnv() and before using the Config.
//
// Returns nil if configuration is valid, or an error describing the problem.
func (c *Config) Validate() error {
	if c.Auth.Enabled {
		if c.Auth.Username == "" {
			return fmt.Errorf("authentication enabled but no username provided")
		}
		if len(c.Auth.Password) < c.Auth.MinPasswordLength {
			return fmt.Errorf("password must be at least %d characters", c.Auth.MinPasswordLength)
		}
	}

	if c.Server.HTTPEnabled && c.Server.HTTPPort <= 0 {
		return fmt.Errorf("invalid http port: %d", c.Server.HTTPPort)
	}

	if !c.Database.InMemory && c.Database.DataDir == "" {
		return fmt.Errorf("data directory required unless in-memory mode is set")
	}

	if c.Inference.MinSuccessRate < 0 || c.Inference.MinSuccessRate > 1 {
		return fmt.Errorf("invalid min success rate: %v", c.Inference.MinSuccessRate)
	}
	if c.Inference.CrossDomainConfidence < 0 || c.Inference.CrossDomainConfidence > 1 {
		return fmt.Errorf("invalid cross-domain confidence: %v", c.Inference.CrossDomainConfidence)
	}
	if c.Inference.CrossDomainLimit < 0 {
		return fmt.Errorf("invalid cross-domain limit: %d", c.Inference.CrossDomainLimit)
	}
	if c.Inference.PhraseMultiplier < 0 || c.Inference.TokenMultiplier < 0 {
		return fmt.Errorf("match multipliers must be non-negative")
	}

	weightSum := c.Bridge.BetweennessWeight + c.Bridge.DegreeWeight + c.Bridge.ClosenessWeight
	if weightSum <= 0 {
		return fmt.Errorf("centrality weights must sum to a positive value")
	}
	if c.Bridge.MaxDepth <= 0 || c.Bridge.PathCutoff <= 0 || c.Bridge.MaxNodes <= 0 {
		return fmt.Errorf("bridge depth, cutoff, and node cap must be positive")
	}

	return nil
}

// String returns a safe string representation of the Config.
//
// The password is NOT included in the output, making this safe for logging.
//
// Example:
//
//	cfg := config.LoadFromEnv()
//	log.Printf("Starting with config: %s", cfg)
//	// Output: Config{Auth: false, HTTP: 0.0.0.0:8474, DataDir: ./data}
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Auth: %v, HTTP: %s:%d, DataDir: %s}",
		c.Auth.Enabled,
		c.Server.HTTPAddress, c.Server.HTTPPort,
		c.Database.DataDir,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as a human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
