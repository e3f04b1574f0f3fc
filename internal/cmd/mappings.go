package cmd

import (
	"context"
	"fmt"

	"tether/internal/theme"
)

// MappingsCmd lists thread-to-project links
type MappingsCmd struct{}

// Run executes the mappings command
func (m *MappingsCmd) Run(cli *CLI) error {
	container, err := NewReadOnlyContainer()
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer container.Close()

	mappings, err := container.MappingRepository.List(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list mappings: %w", err)
	}

	if len(mappings) == 0 {
		fmt.Println(theme.MutedStyle.Render("No threads linked."))
		return nil
	}

	fmt.Println(theme.HeaderStyle.Render(fmt.Sprintf("%-24s  %s", "THREAD", "PROJECT")))
	for _, mapping := range mappings {
		fmt.Printf("%-24s  %s\n", mapping.ThreadID, mapping.ProjectPath)
	}
	return nil
}
