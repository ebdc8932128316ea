// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"
)

// flagKeys maps command-line flags to configuration keys.
var flagKeys = map[string]string{
	"ws-addr":          "websocket.addr",
	"ws-path":          "websocket.path",
	"allowed-origins":  "websocket.allowed_origins",
	"send-queue":       "websocket.send_queue",
	"max-frame-bytes":  "websocket.max_frame_bytes",
	"write-wait":       "websocket.write_wait",
	"ping-interval":    "websocket.ping_interval",
	"pong-wait":        "websocket.pong_wait",
	"api-addr":         "api.addr",
	"metrics-addr":     "metrics.addr",
	"control-addr":     "control.addr",
	"postgres-url":     "postgres.url",
	"postgres-channel": "postgres.channel",
	"log-format":       "log.format",
	"log-level":        "log.level",
	"shutdown-timeout": "shutdown_timeout",
}

// BindFlags registers one flag per configuration key on fs, defaulting to
// Default().
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("ws-addr", d.WebSocket.Addr, "WebSocket listen address")
	fs.String("ws-path", d.WebSocket.Path, "WebSocket endpoint path")
	fs.StringSlice("allowed-origins", d.WebSocket.AllowedOrigins, "allowed Origin glob patterns (empty = same origin only)")
	fs.Int("send-queue", d.WebSocket.SendQueue, "per-connection outbound queue length")
	fs.Int64("max-frame-bytes", d.WebSocket.MaxFrameBytes, "maximum inbound frame size")
	fs.Duration("write-wait", d.WebSocket.WriteWait, "deadline for a single socket write")
	fs.Duration("ping-interval", d.WebSocket.PingInterval, "heartbeat ping interval (0 disables heartbeats)")
	fs.Duration("pong-wait", d.WebSocket.PongWait, "time to wait for a pong before dropping the connection")
	fs.String("api-addr", d.API.Addr, "notify API listen address (empty disables)")
	fs.String("metrics-addr", d.Metrics.Addr, "metrics and health listen address (empty disables)")
	fs.String("control-addr", d.Control.Addr, "gRPC health listen address (empty disables)")
	fs.String("postgres-url", d.Postgres.URL, "PostgreSQL URL for LISTEN/NOTIFY (empty disables)")
	fs.String("postgres-channel", d.Postgres.Channel, "PostgreSQL notification channel")
	fs.String("log-format", d.Log.Format, "log format (json, text)")
	fs.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	fs.Duration("shutdown-timeout", d.ShutdownTimeout, "time allowed for graceful shutdown")
}

// Load builds the configuration from fs and an optional YAML file at path.
// Flag defaults are overridden by the file, which is overridden by flags
// set explicitly on the command line. The result is validated.
func Load(fs *pflag.FlagSet, path string) (Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	// Flag defaults fill keys the file left unset; flags changed on the
	// command line override the file.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
		return Config{}, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").With("path", path).Wrapf(err, "decode configuration")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

// YAML renders cfg as a YAML document.
func (c Config) YAML() ([]byte, error) {
	out, err := yamlv3.Marshal(c)
	if err != nil {
		return nil, oops.Wrapf(err, "encode configuration")
	}
	return out, nil
}
