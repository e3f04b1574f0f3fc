package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestSettings_DefaultsApply(t *testing.T) {
	settings := &Settings{}

	assert.Equal(t, DefaultGatewayAddr, settings.EffectiveGatewayAddr())
	assert.Equal(t, DefaultAgentCommand, settings.EffectiveAgentCommand())
	assert.Equal(t, DefaultBufferCapacity, settings.EffectiveBufferCapacity())
	assert.Equal(t, DefaultApprovalTimeout, settings.EffectiveApprovalTimeout())
	assert.Equal(t, DefaultApprovalSweepEvery, settings.EffectiveApprovalSweepInterval())
	assert.Equal(t, DefaultTerminateGracePeriod, settings.EffectiveTerminateGrace())
}

func TestSettings_FileValuesOverrideDefaults(t *testing.T) {
	settings := &Settings{
		AgentCommand:           "my-agent",
		ApprovalTimeoutMinutes: intPtr(3),
		BufferCapacity:         intPtr(25),
		GatewayAddr:            "10.0.0.5:9000",
		TerminateGraceSeconds:  intPtr(15),
	}

	assert.Equal(t, "10.0.0.5:9000", settings.EffectiveGatewayAddr())
	assert.Equal(t, "my-agent", settings.EffectiveAgentCommand())
	assert.Equal(t, 25, settings.EffectiveBufferCapacity())
	assert.Equal(t, 3*time.Minute, settings.EffectiveApprovalTimeout())
	assert.Equal(t, 15*time.Second, settings.EffectiveTerminateGrace())
}

func TestSettings_EnvOverridesFile(t *testing.T) {
	t.Setenv("TETHER_GATEWAY_ADDR", "192.168.1.1:7000")
	t.Setenv("TETHER_AGENT_COMMAND", "env-agent")

	settings := &Settings{
		AgentCommand: "file-agent",
		GatewayAddr:  "10.0.0.5:9000",
	}

	assert.Equal(t, "192.168.1.1:7000", settings.EffectiveGatewayAddr())
	assert.Equal(t, "env-agent", settings.EffectiveAgentCommand())
}

func TestSettings_NonPositiveValuesFallBack(t *testing.T) {
	settings := &Settings{
		ApprovalTimeoutMinutes: intPtr(0),
		BufferCapacity:         intPtr(-5),
	}

	assert.Equal(t, DefaultBufferCapacity, settings.EffectiveBufferCapacity())
	assert.Equal(t, DefaultApprovalTimeout, settings.EffectiveApprovalTimeout())
}

func TestLoadSettings_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("TETHER_HOME", t.TempDir())

	settings, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, DefaultGatewayAddr, settings.EffectiveGatewayAddr())
}

func TestSaveAndLoadSettings(t *testing.T) {
	t.Setenv("TETHER_HOME", t.TempDir())

	saved := &Settings{
		AgentArgs:    []string{"--headless"},
		AgentCommand: "my-agent",
		GatewayAddr:  "10.0.0.5:9000",
	}
	require.NoError(t, SaveSettings(saved))

	loaded, err := LoadSettings()
	require.NoError(t, err)
	assert.Equal(t, saved.AgentCommand, loaded.AgentCommand)
	assert.Equal(t, saved.GatewayAddr, loaded.GatewayAddr)
	assert.Equal(t, saved.AgentArgs, loaded.AgentArgs)
}
