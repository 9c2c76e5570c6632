// Package config loads the process configuration from the environment, with an
// optional .env file layered underneath.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

// Config is the process configuration read from the environment.
type Config struct {
	Port           string `env:"SERVER_PORT,default=:8080" validate:"required"`
	AllowedOrigins string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize int64  `env:"MAX_MESSAGE_SIZE,default=4096" validate:"gt=0"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Per-session inbound event budget: RateLimitBurst events per
	// RateLimitRefillSeconds, refilled evenly across the interval.
	RateLimitBurst         int `env:"RATE_LIMIT_BURST,default=5" validate:"gt=0"`
	RateLimitRefillSeconds int `env:"RATE_LIMIT_REFILL_INTERVAL,default=1" validate:"gt=0"`

	HandshakeTimeout  time.Duration `env:"HANDSHAKE_TIMEOUT,default=10s" validate:"gt=0"`
	PersistTimeout    time.Duration `env:"PERSIST_TIMEOUT,default=5s" validate:"gt=0"`
	SideEffectTimeout time.Duration `env:"SIDE_EFFECT_TIMEOUT,default=2s" validate:"gt=0"`
	TypingThrottle    time.Duration `env:"TYPING_THROTTLE,default=1s" validate:"gte=0"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,default=256" validate:"gt=0"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,default=2000" validate:"gt=0"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`

	JWTSecret string        `env:"JWT_SECRET,required=true" validate:"min=16"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,default=168h" validate:"gt=0"`

	BadgerPath    string `env:"BADGER_PATH,default=data/badger"`
	UploadDir     string `env:"UPLOAD_DIR,default=uploads" validate:"required"`
	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE,default=5242880" validate:"gt=0"`
	FileURLPrefix string `env:"FILE_URL_PREFIX,default=/api/files/" validate:"required"`
	HistoryLimit  int    `env:"HISTORY_LIMIT,default=50" validate:"gt=0,lte=500"`

	// Optional; presence is mirrored to Redis when set.
	RedisURL string `env:"REDIS_URL"`
}

// Load reads envFile (or ./.env when envFile is empty and the file exists) into
// the process environment without overriding variables already set, then
// decodes and validates the configuration.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return Config{}, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// RateLimitRefill is the interval over which a full burst is refilled.
func (c Config) RateLimitRefill() time.Duration {
	return time.Duration(c.RateLimitRefillSeconds) * time.Second
}
