package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	S3       S3Config       `mapstructure:"s3"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Persist  PersistConfig  `mapstructure:"persist"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig holds the secret tokens are verified with. Tokens are issued
// by the account service.
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

// EngineConfig tunes every session the server runs.
type EngineConfig struct {
	WarmupSeconds   int           `mapstructure:"warmup_seconds"`
	RestSeconds     int           `mapstructure:"rest_seconds"` // Used when an assignment has no parseable rest
	TickInterval    time.Duration `mapstructure:"tick_interval"`
	TrackSetElapsed bool          `mapstructure:"track_set_elapsed"`
	ResumePolicy    string        `mapstructure:"resume_policy"` // elapsed | frozen
}

// PersistConfig controls snapshot writes and the finished-session archive.
type PersistConfig struct {
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	Archive          bool          `mapstructure:"archive"`
	ArchiveURLExpiry time.Duration `mapstructure:"archive_url_expiry"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// LoadConfig reads configuration from file or environment variables.
// Nested keys map to env vars with dots replaced, e.g. engine.rest_seconds
// is ENGINE_REST_SECONDS.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Handling ---
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	// --- Defaults ---
	v.SetDefault("server.address", ":8080")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "workout_sessions")
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.bucket_name", "workout-sessions")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("engine.warmup_seconds", 300)
	v.SetDefault("engine.rest_seconds", 90)
	v.SetDefault("engine.tick_interval", "1s")
	v.SetDefault("engine.track_set_elapsed", true)
	v.SetDefault("engine.resume_policy", "elapsed")
	v.SetDefault("persist.write_timeout", "5s")
	v.SetDefault("persist.archive", true)
	v.SetDefault("persist.archive_url_expiry", "15m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// --- Read Config File ---
	// A missing file is fine; env vars and defaults still apply.
	err = v.ReadInConfig()
	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		err = nil
	} else if err != nil {
		return config, fmt.Errorf("reading config: %w", err)
	}

	// Duration strings ("1s", "15m") decode straight into time.Duration.
	if err = v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("decoding config: %w", err)
	}
	if err = config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// Validate rejects settings the server cannot run with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("config: jwt.secret is required")
	}
	if c.Engine.WarmupSeconds < 0 || c.Engine.RestSeconds < 0 {
		return errors.New("config: engine durations must not be negative")
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("config: engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	}
	switch c.Engine.ResumePolicy {
	case "elapsed", "frozen":
	default:
		return fmt.Errorf("config: unknown engine.resume_policy %q", c.Engine.ResumePolicy)
	}
	if c.Persist.WriteTimeout <= 0 {
		return fmt.Errorf("config: persist.write_timeout must be positive, got %s", c.Persist.WriteTimeout)
	}
	return nil
}
