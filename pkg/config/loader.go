// Package config fills tagged structs from the process environment.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Validator is implemented by config structs with cross-field rules, such as
// credentials that only one storage backend needs.
type Validator interface {
	Validate() error
}

// Option adjusts how Load reads variables.
type Option func(*env.Options)

// WithPrefix prepends prefix to every variable name.
func WithPrefix(prefix string) Option {
	return func(o *env.Options) { o.Prefix = prefix }
}

// WithEnvironment reads from vars instead of os.Environ.
func WithEnvironment(vars map[string]string) Option {
	return func(o *env.Options) { o.Environment = vars }
}

// Load parses `env`/`envDefault` tags into cfg, then runs cfg.Validate when
// cfg implements Validator.
func Load(cfg any, opts ...Option) error {
	var o env.Options
	for _, opt := range opts {
		opt(&o)
	}
	if err := env.ParseWithOptions(cfg, o); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	if v, ok := cfg.(Validator); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}
