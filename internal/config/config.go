package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var validEnvs = map[string]bool{
	"local": true,
	"alpha": true,
	"beta":  true,
	"prod":  true,
}

type Config struct {
	ServerPort  string
	AppEnv      string
	AuthDevMode bool
	LogLevel    string
	AWS         AWSConfig
	Table       TableConfig
	Attachment  AttachmentConfig
	Auth        AuthConfig
}

func (c Config) ParseLogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c Config) Validate() error {
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return fmt.Errorf("invalid SERVER_PORT %q: %w", c.ServerPort, err)
	}
	if !validEnvs[c.AppEnv] {
		return fmt.Errorf("invalid APP_ENV %q: must be one of local, alpha, beta, prod", c.AppEnv)
	}
	if c.AuthDevMode && c.AppEnv != "local" {
		return fmt.Errorf("AUTH_DEV_MODE must not be enabled in %s environment", c.AppEnv)
	}
	if c.Table.Name == "" {
		return fmt.Errorf("TODOS_TABLE is required")
	}
	if c.Attachment.Bucket == "" {
		return fmt.Errorf("ATTACHMENT_S3_BUCKET is required")
	}
	if _, err := c.Attachment.URLExpiration(); err != nil {
		return err
	}
	if !c.AuthDevMode {
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("AUTH_JWKS_URL is required when AUTH_DEV_MODE is disabled")
		}
		if c.Auth.Issuer == "" {
			return fmt.Errorf("AUTH_ISSUER is required when AUTH_DEV_MODE is disabled")
		}
	}
	return nil
}

type AWSConfig struct {
	Region string
	// EndpointURL overrides the service endpoints, e.g. for LocalStack.
	EndpointURL string
}

type TableConfig struct {
	Name            string
	CreatedAtIndex  string
	TodoIDIndex     string
	SkipSchemaCheck bool
}

type AttachmentConfig struct {
	Bucket        string
	SignedURLTTL  string
	PrivateBucket bool
}

// URLExpiration parses SIGNED_URL_EXPIRATION. A bare integer is a number of
// seconds; anything else must be a Go duration string.
func (a AttachmentConfig) URLExpiration() (time.Duration, error) {
	if secs, err := strconv.Atoi(a.SignedURLTTL); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid SIGNED_URL_EXPIRATION %q: must be positive", a.SignedURLTTL)
		}
		return time.Duration(secs) * time.Second, nil
	}
	d, err := time.ParseDuration(a.SignedURLTTL)
	if err != nil {
		return 0, fmt.Errorf("invalid SIGNED_URL_EXPIRATION %q: %w", a.SignedURLTTL, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid SIGNED_URL_EXPIRATION %q: must be positive", a.SignedURLTTL)
	}
	return d, nil
}

type AuthConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string
}

func Load() Config {
	return Config{
		ServerPort:  envOrDefault("SERVER_PORT", "8080"),
		AppEnv:      envOrDefault("APP_ENV", "local"),
		AuthDevMode: envBool("AUTH_DEV_MODE"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),
		AWS: AWSConfig{
			Region:      envOrDefault("AWS_REGION", "us-east-1"),
			EndpointURL: os.Getenv("AWS_ENDPOINT_URL"),
		},
		Table: TableConfig{
			Name:            envOrDefault("TODOS_TABLE", "Todos"),
			CreatedAtIndex:  envOrDefault("TODOS_CREATED_AT_INDEX", "CreatedAtIndex"),
			TodoIDIndex:     envOrDefault("TODOS_ID_INDEX", "TodoIdIndex"),
			SkipSchemaCheck: envBool("TODOS_SKIP_SCHEMA_CHECK"),
		},
		Attachment: AttachmentConfig{
			Bucket:        os.Getenv("ATTACHMENT_S3_BUCKET"),
			SignedURLTTL:  envOrDefault("SIGNED_URL_EXPIRATION", "300"),
			PrivateBucket: envBool("ATTACHMENT_PRIVATE_BUCKET"),
		},
		Auth: AuthConfig{
			JWKSURL:  os.Getenv("AUTH_JWKS_URL"),
			Issuer:   os.Getenv("AUTH_ISSUER"),
			Audience: os.Getenv("AUTH_AUDIENCE"),
		},
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envBool(key string) bool {
	return strings.EqualFold(envOrDefault(key, "false"), "true")
}
