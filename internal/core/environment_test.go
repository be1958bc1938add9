package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironment(t *testing.T) {
	tests := map[string]Environment{
		"production":  Production,
		" PROD ":      Production,
		"staging":     Staging,
		"test":        Testing,
		"ci":          Testing,
		"local":       Development,
		"":            Development,
		"moon-base-7": Development,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParseEnvironment(in), in)
	}
}

func TestEnvironmentDecodeAndLevel(t *testing.T) {
	var e Environment
	assert.NoError(t, e.Decode("Prod"))
	assert.True(t, e.IsProduction())
	assert.Equal(t, "info", e.LogLevel())
	assert.Equal(t, "warn", Testing.LogLevel())
	assert.Equal(t, "debug", Environment("").LogLevel())
}
