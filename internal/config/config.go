// Package config loads service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds every setting the api and its collaborators read at startup.
type Config struct {
	MongoURI          string `envconfig:"MONGODB_URI" required:"true"`
	MongoDatabase     string `envconfig:"MONGODB_DATABASE" default:"chat_db"`
	MongoTransactions bool   `envconfig:"MONGODB_TRANSACTIONS" default:"false"`

	// JWTKeys has the form kid:secret,kid2:secret2 and enables key rotation.
	JWTSecret    string        `envconfig:"JWT_SECRET"`
	JWTKeys      string        `envconfig:"JWT_KEYS"`
	JWTActiveKid string        `envconfig:"JWT_ACTIVE_KID"`
	TokenTTL     time.Duration `envconfig:"TOKEN_TTL" default:"72h"`

	GRPCPort     string   `envconfig:"GRPC_PORT" default:"50051"`
	HTTPPort     string   `envconfig:"PORT" default:"3000"`
	RateLimitRPM int      `envconfig:"RATE_LIMIT_RPM" default:"10"`
	TLSCert      string   `envconfig:"TLS_CERT"`
	TLSKey       string   `envconfig:"TLS_KEY"`
	RequireTLS   bool     `envconfig:"REQUIRE_TLS" default:"false"`
	CORSOrigins  []string `envconfig:"CORS_ORIGINS" default:"http://localhost:5173"`
	CookieSecure bool     `envconfig:"COOKIE_SECURE" default:"false"`

	RedisURL     string   `envconfig:"REDIS_URL"`
	RedisChannel string   `envconfig:"REDIS_CHANNEL" default:"messages.created"`
	KafkaBrokers []string `envconfig:"KAFKA_BROKERS"`
	KafkaTopic   string   `envconfig:"KAFKA_TOPIC" default:"messages.created"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// a missing .env is fine; real deployments set variables directly
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI must be set")
	}
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.JWTKeys != "" {
		keys, err := c.SigningKeys()
		if err != nil {
			return err
		}
		if _, ok := keys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q not present in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if c.RequireTLS && (c.TLSCert == "" || c.TLSKey == "") {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	return nil
}

// SigningKeys parses JWT_KEYS into a kid -> secret map.
func (c *Config) SigningKeys() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWTKeys, ",") {
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[parts[0]] = parts[1]
	}
	return keys, nil
}
