package client

import (
	"github.com/spf13/cobra"
)

// NewRoot constructs a root Cobra command for the killfeed client.
// It registers the poll, import, rewind and config commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "killfeed",
		Short: "killfeed client commands",
	}
	Register(root, baseURL)
	return root
}

// Register adds the client commands to an existing root.
func Register(root *cobra.Command, baseURL BaseURLFunc) {
	root.AddCommand(NewPollCommand(baseURL))
	root.AddCommand(NewImportCommand())
	root.AddCommand(NewRewindCommand())
	root.AddCommand(NewConfigCommand())
}
