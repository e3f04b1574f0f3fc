package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"tether/internal/domain"
	"tether/internal/theme"
)

// SessionsListCmd lists all sessions
type SessionsListCmd struct {
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
}

// Run executes the list command
func (s *SessionsListCmd) Run(cli *CLI) error {
	container, err := NewReadOnlyContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	sessions, err := container.SessionRepository.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	if s.Format == "json" {
		return s.printJSON(sessions)
	}
	return s.printTable(sessions)
}

func (s *SessionsListCmd) printJSON(sessions []domain.Session) error {
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func (s *SessionsListCmd) printTable(sessions []domain.Session) error {
	if len(sessions) == 0 {
		fmt.Println(theme.MutedStyle.Render("No sessions."))
		return nil
	}

	fmt.Println(theme.HeaderStyle.Render(
		fmt.Sprintf("%-36s  %-10s  %s", "ID", "STATUS", "PROJECT")))
	for _, session := range sessions {
		status := theme.StatusStyle(session.Status).Render(
			fmt.Sprintf("%-10s", session.Status))
		fmt.Printf("%-36s  %s  %s\n", session.ID, status, session.ProjectPath)
	}
	return nil
}
