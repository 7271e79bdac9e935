package logger

import (
	"testing"

	"github.com/zhanikpanik/restaurant-checklist-sub001/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitLoggerDevelopment(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "development"},
		Log:    config.LogConfig{Level: "debug"},
	}

	require.NoError(t, InitLogger(cfg))
	assert.NotNil(t, GetLogger())
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitLoggerProduction(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "production"},
		Log:    config.LogConfig{Level: "warn"},
	}

	require.NoError(t, InitLogger(cfg))
	assert.NotNil(t, GetLogger())
	assert.False(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
}

func TestInitLoggerUnknownLevelDefaultsToInfo(t *testing.T) {
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "development"},
		Log:    config.LogConfig{Level: "chatty"},
	}

	require.NoError(t, InitLogger(cfg))
	assert.False(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
}
