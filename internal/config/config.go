// Package config holds the server configuration, loaded from the environment.
package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"
)

// Config stores every tunable of the voice server. Defaults match the
// deployed product; only the JWT secret has no safe default.
type Config struct {
	BindAddr         string `env:"VOICE_BIND_ADDR, default=0.0.0.0:8080"`
	HTTPAddr         string `env:"VOICE_HTTP_ADDR, default=0.0.0.0:9090"`
	MaxPacketSize    int    `env:"VOICE_MAX_PACKET_SIZE, default=1024"`
	SocketBufferSize int    `env:"VOICE_SOCKET_BUFFER_SIZE, default=8192"`

	CleanupInterval   time.Duration `env:"VOICE_CLEANUP_INTERVAL, default=60s"`
	UserTimeout       time.Duration `env:"VOICE_USER_TIMEOUT, default=300s"`
	HeartbeatInterval time.Duration `env:"VOICE_HEARTBEAT_INTERVAL, default=30s"`
	HandshakeTimeout  time.Duration `env:"VOICE_HANDSHAKE_TIMEOUT, default=5s"`

	JWTSecret string `env:"VOICE_JWT_SECRET, required"`

	// PostgresDSN points at the relational store owned by the channel
	// management API. When empty the server runs with an empty in-memory
	// membership store, which only makes sense for local development.
	PostgresDSN string `env:"VOICE_POSTGRES_DSN"`
}

// FromEnv loads the configuration from process environment variables.
func FromEnv(ctx context.Context) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
