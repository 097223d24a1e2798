package client

import (
	"github.com/spf13/cobra"
)

// BaseURLFunc provides the base HTTP API URL (e.g., from env or flag).
type BaseURLFunc func() string

// NewRoot constructs a root Cobra command for the feedgen client.
// It registers the feeds, debug, health and checkpoint commands.
func NewRoot(baseURL BaseURLFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "feedgen",
		Short: "feedgen client commands",
	}
	root.AddCommand(NewFeedsCommand(baseURL))
	root.AddCommand(NewDebugCommand(baseURL))
	root.AddCommand(NewHealthCommand())
	root.AddCommand(NewCheckpointCommand())
	return root
}
