package core

import "strings"

// Environment is the deployment environment, bound from APP_ENV.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Testing     Environment = "testing"
	Production  Environment = "production"
)

var environmentAliases = map[string]Environment{
	"dev":   Development,
	"local": Development,
	"stage": Staging,
	"test":  Testing,
	"ci":    Testing,
	"prod":  Production,
}

func (e Environment) String() string {
	return string(e)
}

func (e Environment) IsProduction() bool {
	return e == Production
}

// LogLevel is the default zerolog level name for the environment.
func (e Environment) LogLevel() string {
	switch e {
	case Production, Staging:
		return "info"
	case Testing:
		return "warn"
	default:
		return "debug"
	}
}

// ParseEnvironment accepts the canonical names and their short aliases.
// Anything else is Development.
func ParseEnvironment(v string) Environment {
	v = strings.ToLower(strings.TrimSpace(v))
	switch env := Environment(v); env {
	case Development, Staging, Testing, Production:
		return env
	}
	if env, ok := environmentAliases[v]; ok {
		return env
	}
	return Development
}

// Decode implements envconfig.Decoder.
func (e *Environment) Decode(v string) error {
	*e = ParseEnvironment(v)
	return nil
}
