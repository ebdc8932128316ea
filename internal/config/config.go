// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads relay configuration from defaults, an optional YAML
// file and command-line flags, in increasing precedence.
package config

import (
	"time"
)

// Config is the complete relay configuration.
type Config struct {
	WebSocket       WebSocketConfig `koanf:"websocket" yaml:"websocket"`
	API             ListenConfig    `koanf:"api" yaml:"api"`
	Metrics         ListenConfig    `koanf:"metrics" yaml:"metrics"`
	Control         ListenConfig    `koanf:"control" yaml:"control"`
	Postgres        PostgresConfig  `koanf:"postgres" yaml:"postgres"`
	Log             LogConfig       `koanf:"log" yaml:"log"`
	ShutdownTimeout time.Duration   `koanf:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gt=0"`
}

// WebSocketConfig configures the client-facing endpoint.
type WebSocketConfig struct {
	Addr           string        `koanf:"addr" yaml:"addr" validate:"required,hostname_port"`
	Path           string        `koanf:"path" yaml:"path" validate:"required,startswith=/"`
	AllowedOrigins []string      `koanf:"allowed_origins" yaml:"allowed_origins" validate:"dive,required"`
	SendQueue      int           `koanf:"send_queue" yaml:"send_queue" validate:"gte=1,lte=65536"`
	MaxFrameBytes  int64         `koanf:"max_frame_bytes" yaml:"max_frame_bytes" validate:"gte=64"`
	WriteWait      time.Duration `koanf:"write_wait" yaml:"write_wait" validate:"gt=0"`
	PingInterval   time.Duration `koanf:"ping_interval" yaml:"ping_interval" validate:"gte=0"`
	PongWait       time.Duration `koanf:"pong_wait" yaml:"pong_wait" validate:"gte=0"`
}

// ListenConfig is an optional listener; an empty Addr disables it.
type ListenConfig struct {
	Addr string `koanf:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// PostgresConfig enables the LISTEN/NOTIFY bridge when URL is set.
type PostgresConfig struct {
	URL     string `koanf:"url" yaml:"url" validate:"omitempty,url"`
	Channel string `koanf:"channel" yaml:"channel" validate:"required_with=URL,omitempty,max=63"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Format string `koanf:"format" yaml:"format" validate:"oneof=json text"`
	Level  string `koanf:"level" yaml:"level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		WebSocket: WebSocketConfig{
			Addr:          ":8080",
			Path:          "/ws",
			SendQueue:     64,
			MaxFrameBytes: 4096,
			WriteWait:     10 * time.Second,
			PingInterval:  30 * time.Second,
			PongWait:      60 * time.Second,
		},
		API:     ListenConfig{Addr: "127.0.0.1:8081"},
		Metrics: ListenConfig{Addr: "127.0.0.1:9100"},
		Control: ListenConfig{Addr: "127.0.0.1:9101"},
		Postgres: PostgresConfig{
			Channel: "roomrelay_messages",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		ShutdownTimeout: 15 * time.Second,
	}
}
