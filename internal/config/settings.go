package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// Defaults applied when neither settings.json nor the environment says
// otherwise.
const (
	DefaultGatewayAddr          = "127.0.0.1:7600"
	DefaultAgentCommand         = "claude"
	DefaultBufferCapacity       = 100
	DefaultApprovalTimeout      = 10 * time.Minute
	DefaultApprovalSweepEvery   = 30 * time.Second
	DefaultTerminateGracePeriod = 5 * time.Second
)

// Settings represents the structure of $TETHER_HOME/settings.json
type Settings struct {
	AgentArgs              []string `json:"agent_args,omitempty"`
	AgentCommand           string   `json:"agent_command,omitempty"`
	ApprovalSweepSeconds   *int     `json:"approval_sweep_seconds,omitempty"`
	ApprovalTimeoutMinutes *int     `json:"approval_timeout_minutes,omitempty"`
	BufferCapacity         *int     `json:"buffer_capacity,omitempty"`
	Debug                  *bool    `json:"debug,omitempty"`
	GatewayAddr            string   `json:"gateway_addr,omitempty"`
	MaxLogFiles            *int     `json:"max_log_files,omitempty"`
	TerminateGraceSeconds  *int     `json:"terminate_grace_seconds,omitempty"`
}

// EffectiveGatewayAddr resolves the gateway address with
// env > settings.json > default precedence.
func (s *Settings) EffectiveGatewayAddr() string {
	if addr := os.Getenv("TETHER_GATEWAY_ADDR"); addr != "" {
		return addr
	}
	if s.GatewayAddr != "" {
		return s.GatewayAddr
	}
	return DefaultGatewayAddr
}

// EffectiveAgentCommand resolves the agent binary to spawn.
func (s *Settings) EffectiveAgentCommand() string {
	if cmd := os.Getenv("TETHER_AGENT_COMMAND"); cmd != "" {
		return cmd
	}
	if s.AgentCommand != "" {
		return s.AgentCommand
	}
	return DefaultAgentCommand
}

// EffectiveBufferCapacity resolves the outbound buffer capacity.
func (s *Settings) EffectiveBufferCapacity() int {
	if s.BufferCapacity != nil && *s.BufferCapacity > 0 {
		return *s.BufferCapacity
	}
	return DefaultBufferCapacity
}

// EffectiveApprovalTimeout resolves how long a pending approval waits
// before the sweep marks it timed out.
func (s *Settings) EffectiveApprovalTimeout() time.Duration {
	if s.ApprovalTimeoutMinutes != nil && *s.ApprovalTimeoutMinutes > 0 {
		return time.Duration(*s.ApprovalTimeoutMinutes) * time.Minute
	}
	return DefaultApprovalTimeout
}

// EffectiveApprovalSweepInterval resolves the timeout sweep period.
func (s *Settings) EffectiveApprovalSweepInterval() time.Duration {
	if s.ApprovalSweepSeconds != nil && *s.ApprovalSweepSeconds > 0 {
		return time.Duration(*s.ApprovalSweepSeconds) * time.Second
	}
	return DefaultApprovalSweepEvery
}

// EffectiveTerminateGrace resolves the SIGTERM grace period for agent
// shutdown.
func (s *Settings) EffectiveTerminateGrace() time.Duration {
	if s.TerminateGraceSeconds != nil && *s.TerminateGraceSeconds > 0 {
		return time.Duration(*s.TerminateGraceSeconds) * time.Second
	}
	return DefaultTerminateGracePeriod
}

// LoadSettings loads settings from $TETHER_HOME/settings.json.
// Returns empty Settings if the file doesn't exist (not an error).
func LoadSettings() (*Settings, error) {
	path := GetSettingsPath()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil // Not an error, use defaults
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("invalid settings.json: %w", err)
	}

	// Expand AgentCommand path if it starts with ~
	if strings.HasPrefix(settings.AgentCommand, "~") {
		settings.AgentCommand = ExpandPath(settings.AgentCommand)
	}

	return &settings, nil
}

// SaveSettings saves settings to $TETHER_HOME/settings.json
func SaveSettings(settings *Settings) error {
	path := GetSettingsPath()
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}

	return nil
}
