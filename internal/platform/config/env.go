package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment variable the binaries read.
const EnvPrefix = "SKIRMISH_"

// ParseEnv loads configuration from SKIRMISH_-prefixed environment
// variables. Struct tags name variables without the prefix.
func ParseEnv(target any) error {
	if err := env.ParseWithOptions(target, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}
