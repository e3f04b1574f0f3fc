package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"tether/internal/domain"
	"tether/internal/theme"
)

// SessionsViewCmd views a specific session
type SessionsViewCmd struct {
	Format string `help:"Output format: table or json" enum:"table,json" default:"table"`
	ID     string `arg:"" help:"ID of the session to view"`
}

// Run executes the view command
func (s *SessionsViewCmd) Run(cli *CLI) error {
	container, err := NewReadOnlyContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	session, err := container.SessionRepository.Get(context.Background(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	if s.Format == "json" {
		return s.printJSON(session)
	}
	return s.printTable(session)
}

func (s *SessionsViewCmd) printJSON(session *domain.Session) error {
	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func (s *SessionsViewCmd) printTable(session *domain.Session) error {
	fmt.Println(theme.TitleStyle.Render("Session " + session.ID))
	fmt.Printf("Status: %s\n", theme.StatusStyle(session.Status).Render(string(session.Status)))
	fmt.Printf("Project: %s\n", session.ProjectPath)
	fmt.Printf("Thread: %s\n", session.ThreadID)
	fmt.Printf("Created: %s\n", session.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Printf("Updated: %s\n", session.UpdatedAt.Format("2006-01-02 15:04:05"))

	if len(session.Context) == 0 {
		return nil
	}

	fmt.Println("Context:")
	keys := make([]string, 0, len(session.Context))
	for key := range session.Context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("  %s: %v\n", key, session.Context[key])
	}
	return nil
}
