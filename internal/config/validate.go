// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"

	"github.com/holomush/roomrelay/internal/socket"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints and the relations between fields.
// Violations are reported together as a CONFIG_INVALID error.
func (c Config) Validate() error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return oops.Code("CONFIG_INVALID").Wrap(err)
		}
		for _, fe := range verrs {
			problems = append(problems, describe(fe))
		}
	}

	ws := c.WebSocket
	if ws.PingInterval > 0 && ws.PongWait <= ws.PingInterval {
		problems = append(problems, "websocket.pong_wait must exceed websocket.ping_interval")
	}
	if ws.PingInterval == 0 && ws.PongWait > 0 {
		problems = append(problems, "websocket.pong_wait requires websocket.ping_interval")
	}
	if _, err := socket.NewOriginChecker(ws.AllowedOrigins); err != nil {
		problems = append(problems, "websocket.allowed_origins: "+err.Error())
	}

	if len(problems) == 0 {
		return nil
	}
	return oops.Code("CONFIG_INVALID").
		With("problems", problems).
		Errorf("invalid configuration: %s", strings.Join(problems, "; "))
}

// describe renders fe with its dotted configuration key.
func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if _, rest, ok := strings.Cut(key, "."); ok {
		key = rest
	}
	if fe.Param() != "" {
		return key + " failed " + fe.Tag() + "=" + fe.Param()
	}
	return key + " failed " + fe.Tag()
}
