package cmd

// SessionsCmd inspects sessions
type SessionsCmd struct {
	List SessionsListCmd `cmd:"list" help:"List all sessions" default:"1"`
	View SessionsViewCmd `cmd:"view" help:"View a specific session"`
}
