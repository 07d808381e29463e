package core

import (
	"filedrop/internal/auth"
	"filedrop/internal/storage"
)

// DefaultMaxUploadBytes bounds request bodies on /upload.
const DefaultMaxUploadBytes = 100 << 20

type Config struct {
	Gateway        *storage.Gateway
	Authenticator  auth.AuthEngine
	MaxUploadBytes int64
}

type ConfigOption func(*Config)

func WithGateway(gateway *storage.Gateway) ConfigOption {
	return func(cfg *Config) {
		cfg.Gateway = gateway
	}
}

// WithAuthEngine requires every request to pass authenticator. Without it
// the server is open.
func WithAuthEngine(authenticator auth.AuthEngine) ConfigOption {
	return func(cfg *Config) {
		cfg.Authenticator = authenticator
	}
}

func WithMaxUploadBytes(n int64) ConfigOption {
	return func(cfg *Config) {
		cfg.MaxUploadBytes = n
	}
}

func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
