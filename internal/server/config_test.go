package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewConfig(t *testing.T) {
	req := require.New(t)
	cfg := NewConfig()

	req.Equal([]string{"http://localhost:8080"}, cfg.AllowedOrigins)
	req.Equal(int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	req.Equal(RateLimitConfig{Burst: 5, RefillInterval: time.Second}, cfg.RateLimit)
	req.Equal(time.Second, cfg.TypingThrottle)
	req.Equal("/api/files/", cfg.FileURLPrefix)
	req.Equal(2000, cfg.MaxContentLength)
}

func TestSanitizeConfig(t *testing.T) {
	req := require.New(t)

	cfg := sanitizeConfig(Config{
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: -time.Second},
		TypingThrottle: -time.Second,
		FileURLPrefix:  "   ",
	})
	req.Equal(int64(defaultMaxMessageSize), cfg.MaxMessageSize)
	req.Equal(defaultBurst, cfg.RateLimit.Burst)
	req.Equal(defaultRefillInterval, cfg.RateLimit.RefillInterval)
	req.Equal(defaultHandshakeTimeout, cfg.HandshakeTimeout)
	req.Equal(defaultPersistTimeout, cfg.PersistTimeout)
	req.Equal(defaultSideEffectTimeout, cfg.SideEffectTimeout)
	req.Zero(cfg.TypingThrottle)
	req.Equal(defaultSendBufferSize, cfg.SendBufferSize)
	req.Equal(defaultFileURLPrefix, cfg.FileURLPrefix)
	req.Equal(defaultMaxContentLength, cfg.MaxContentLength)

	origins := []string{"http://a.example"}
	cfg = sanitizeConfig(Config{AllowedOrigins: origins, SendBufferSize: 8})
	origins[0] = "http://mutated.example"
	req.Equal([]string{"http://a.example"}, cfg.AllowedOrigins)
	req.Equal(8, cfg.SendBufferSize)
}

func TestRateLimiter(t *testing.T) {
	req := require.New(t)
	limiter := newRateLimiter(3, time.Minute)

	for range 3 {
		req.True(limiter.Allow())
	}
	req.False(limiter.Allow())
}

func TestRateLimiter_RefillsBurstPerInterval(t *testing.T) {
	req := require.New(t)
	limiter := newRateLimiter(5, time.Second)
	now := time.Now()

	req.InDelta(5.0, float64(limiter.Limit()), 1e-9)
	req.True(limiter.AllowN(now, 5))
	req.False(limiter.AllowN(now, 1))
	req.False(limiter.AllowN(now.Add(100*time.Millisecond), 1))
	req.True(limiter.AllowN(now.Add(250*time.Millisecond), 1))
}
