package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the fully resolved configuration for the relay. Values come from
// defaults, then the optional YAML file, then environment variables, with
// later sources winning. Secrets are env-only.
type Config struct {
	// Secrets and external identifiers (env only)

	// Secret is the symmetric signing secret shared between token issuance
	// and validation
	Secret string
	// JWTIssuer and JWTAudience are the expected token issuer and audience
	JWTIssuer   string
	JWTAudience string
	// SteamWebAPIKey enables the liveness check. An empty key disables the
	// check entirely; authentication then proceeds with a warning.
	SteamWebAPIKey string
	// DatabaseDSN is the MySQL DSN. Empty selects in-memory storage.
	DatabaseDSN string
	// RedisURL selects the Redis verdict cache. Empty selects the in-memory
	// cache.
	RedisURL string
	// AdminSecretHash is a bcrypt hash guarding the admin endpoints. Empty
	// disables them.
	AdminSecretHash string

	// Server tuning (file or env)

	Host             string
	Port             int
	TrustedProxy     bool
	GameDir          string
	LivenessCacheTTL time.Duration
	LivenessTimeout  time.Duration
	StorageTimeout   time.Duration
	SweepInterval    time.Duration
	CredentialLeeway time.Duration
	GameRetention    time.Duration
	RefreshInterval  time.Duration
}

// envConfig holds raw environment values before merging
type envConfig struct {
	Secret          string `env:"GSPROXY_SECRET"`
	JWTIssuer       string `env:"GSPROXY_JWT_ISSUER"`
	JWTAudience     string `env:"GSPROXY_JWT_AUDIENCE"`
	SteamWebAPIKey  string `env:"STEAM_WEB_API_KEY"`
	DatabaseDSN     string `env:"DATABASE_DSN"`
	RedisURL        string `env:"REDIS_URL"`
	AdminSecretHash string `env:"GSPROXY_ADMIN_SECRET_HASH"`

	Host             string         `env:"GSPROXY_HOST"`
	Port             *int           `env:"GSPROXY_PORT"`
	TrustedProxy     *bool          `env:"GSPROXY_TRUSTED_PROXY"`
	GameDir          string         `env:"GSPROXY_GAME_DIR"`
	LivenessCacheTTL *time.Duration `env:"GSPROXY_LIVENESS_CACHE_TTL"`
	LivenessTimeout  *time.Duration `env:"GSPROXY_LIVENESS_TIMEOUT"`
	StorageTimeout   *time.Duration `env:"GSPROXY_STORAGE_TIMEOUT"`

	ConfigFile string `env:"GSPROXY_CONFIG_FILE"`
}

// fileConfig holds the YAML config file contents. Only non-secret server
// tuning lives here.
type fileConfig struct {
	Host             string   `yaml:"host"`
	Port             *int     `yaml:"port"`
	TrustedProxy     *bool    `yaml:"trusted_proxy"`
	GameDir          string   `yaml:"game_dir"`
	LivenessCacheTTL Duration `yaml:"liveness_cache_ttl"`
	LivenessTimeout  Duration `yaml:"liveness_timeout"`
	StorageTimeout   Duration `yaml:"storage_timeout"`
	SweepInterval    Duration `yaml:"sweep_interval"`
	CredentialLeeway Duration `yaml:"credential_leeway"`
	GameRetention    Duration `yaml:"game_retention"`
	RefreshInterval  Duration `yaml:"refresh_interval"`
}

// Duration wraps time.Duration so YAML values can use Go duration strings
// like "60m"
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Default returns the built-in defaults
func Default() Config {
	return Config{
		JWTIssuer:        "GSProxy",
		JWTAudience:      "GSProxy",
		Host:             "",
		Port:             8080,
		GameDir:          "rs2",
		LivenessCacheTTL: 60 * time.Minute,
		LivenessTimeout:  30 * time.Second,
		StorageTimeout:   5 * time.Second,
		SweepInterval:    10 * time.Minute,
		CredentialLeeway: 5 * time.Minute,
		GameRetention:    24 * time.Hour,
		RefreshInterval:  30 * time.Minute,
	}
}

// Load resolves configuration from defaults, the optional config file, and
// the environment
func Load() (Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Default()

	if raw.ConfigFile != "" {
		if err := applyFile(&cfg, raw.ConfigFile); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg, raw)

	if cfg.Secret == "" {
		return Config{}, fmt.Errorf("GSPROXY_SECRET is required")
	}
	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	if fc.Host != "" {
		cfg.Host = fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.TrustedProxy != nil {
		cfg.TrustedProxy = *fc.TrustedProxy
	}
	if fc.GameDir != "" {
		cfg.GameDir = fc.GameDir
	}
	if fc.LivenessCacheTTL != 0 {
		cfg.LivenessCacheTTL = time.Duration(fc.LivenessCacheTTL)
	}
	if fc.LivenessTimeout != 0 {
		cfg.LivenessTimeout = time.Duration(fc.LivenessTimeout)
	}
	if fc.StorageTimeout != 0 {
		cfg.StorageTimeout = time.Duration(fc.StorageTimeout)
	}
	if fc.SweepInterval != 0 {
		cfg.SweepInterval = time.Duration(fc.SweepInterval)
	}
	if fc.CredentialLeeway != 0 {
		cfg.CredentialLeeway = time.Duration(fc.CredentialLeeway)
	}
	if fc.GameRetention != 0 {
		cfg.GameRetention = time.Duration(fc.GameRetention)
	}
	if fc.RefreshInterval != 0 {
		cfg.RefreshInterval = time.Duration(fc.RefreshInterval)
	}
	return nil
}

func applyEnv(cfg *Config, raw envConfig) {
	cfg.Secret = raw.Secret
	if raw.JWTIssuer != "" {
		cfg.JWTIssuer = raw.JWTIssuer
	}
	if raw.JWTAudience != "" {
		cfg.JWTAudience = raw.JWTAudience
	}
	cfg.SteamWebAPIKey = raw.SteamWebAPIKey
	cfg.DatabaseDSN = raw.DatabaseDSN
	cfg.RedisURL = raw.RedisURL
	cfg.AdminSecretHash = raw.AdminSecretHash

	if raw.Host != "" {
		cfg.Host = raw.Host
	}
	if raw.Port != nil {
		cfg.Port = *raw.Port
	}
	if raw.TrustedProxy != nil {
		cfg.TrustedProxy = *raw.TrustedProxy
	}
	if raw.GameDir != "" {
		cfg.GameDir = raw.GameDir
	}
	if raw.LivenessCacheTTL != nil {
		cfg.LivenessCacheTTL = *raw.LivenessCacheTTL
	}
	if raw.LivenessTimeout != nil {
		cfg.LivenessTimeout = *raw.LivenessTimeout
	}
	if raw.StorageTimeout != nil {
		cfg.StorageTimeout = *raw.StorageTimeout
	}
}
