package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitIDs("a, b ,c"))
	assert.Equal(t, []string{"only"}, splitIDs("only,,"))
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_MAX_POSITION", "500")
	assert.Equal(t, 500, getIntEnv("TEST_MAX_POSITION", 1000))

	t.Setenv("TEST_MAX_POSITION", "not-a-number")
	assert.Equal(t, 1000, getIntEnv("TEST_MAX_POSITION", 1000))

	assert.Equal(t, 1000, getIntEnv("TEST_UNSET_KEY", 1000))
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_INTERVAL", "90m")
	assert.Equal(t, 90*time.Minute, getDurationEnv("TEST_INTERVAL", time.Hour))

	t.Setenv("TEST_INTERVAL", "bogus")
	assert.Equal(t, time.Hour, getDurationEnv("TEST_INTERVAL", time.Hour))
}

func TestGetEnvWithDefault(t *testing.T) {
	t.Setenv("TEST_WORKSHEET", "Позиции")
	assert.Equal(t, "Позиции", getEnvWithDefault("TEST_WORKSHEET", "fallback"))
	assert.Equal(t, "fallback", getEnvWithDefault("TEST_UNSET_KEY", "fallback"))
}
