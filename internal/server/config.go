package server

import (
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-session event rate limiting:
// at most Burst events per RefillInterval.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the relay runtime settings. Zero values are replaced by
// defaults in sanitizeConfig.
type Config struct {
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      RateLimitConfig

	// HandshakeTimeout bounds the wait for the authenticate frame.
	HandshakeTimeout time.Duration
	// PersistTimeout bounds a single message write.
	PersistTimeout time.Duration
	// SideEffectTimeout bounds last-seen updates and presence mirroring.
	SideEffectTimeout time.Duration
	// TypingThrottle is the minimum gap between two relayed typing signals of
	// one session in one room. Zero disables throttling.
	TypingThrottle time.Duration
	SendBufferSize int
	// FileURLPrefix is prepended to attachment ids in new-message payloads.
	FileURLPrefix    string
	MaxContentLength int
}

const (
	defaultMaxMessageSize    = 4096
	defaultBurst             = 5
	defaultRefillInterval    = time.Second
	defaultHandshakeTimeout  = 10 * time.Second
	defaultPersistTimeout    = 5 * time.Second
	defaultSideEffectTimeout = 2 * time.Second
	defaultSendBufferSize    = 256
	defaultFileURLPrefix     = "/api/files/"
	defaultMaxContentLength  = 2000
)

func defaultConfig() Config {
	return Config{
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize: defaultMaxMessageSize,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		HandshakeTimeout:  defaultHandshakeTimeout,
		PersistTimeout:    defaultPersistTimeout,
		SideEffectTimeout: defaultSideEffectTimeout,
		TypingThrottle:    time.Second,
		SendBufferSize:    defaultSendBufferSize,
		FileURLPrefix:     defaultFileURLPrefix,
		MaxContentLength:  defaultMaxContentLength,
	}
}

// NewConfig creates a Config populated with default values for all settings.
func NewConfig() Config {
	return defaultConfig()
}

func sanitizeConfig(cfg Config) Config {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}

	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = defaultPersistTimeout
	}

	if cfg.SideEffectTimeout <= 0 {
		cfg.SideEffectTimeout = defaultSideEffectTimeout
	}

	if cfg.TypingThrottle < 0 {
		cfg.TypingThrottle = 0
	}

	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = defaultSendBufferSize
	}

	if strings.TrimSpace(cfg.FileURLPrefix) == "" {
		cfg.FileURLPrefix = defaultFileURLPrefix
	}

	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = defaultMaxContentLength
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}
