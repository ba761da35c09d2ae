package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"workspace-merge/internal/app"
)

type upgradeOptions struct {
	workspaceFlags
	Folder string
}

func newUpgradeCommand() *cobra.Command {
	opts := upgradeOptions{}
	cmd := &cobra.Command{
		Use:   "upgrade [folder]",
		Short: "Rewrite legacy variable syntax in workspace files",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				opts.Folder = args[0]
			}
			return runUpgrade(cmd.Context(), cmd, opts)
		},
	}
	opts.register(cmd.Flags())
	return cmd
}

func runUpgrade(ctx context.Context, cmd *cobra.Command, opts upgradeOptions) error {
	service := newAppService()
	result, err := service.Upgrade(ctx, app.UpgradeRequest{
		WorkspaceRequest: opts.request(cmd),
		Folder:           opts.Folder,
	})
	if result.Folder != "" {
		fmt.Printf("upgraded %s: %d files modified\n", result.Folder, result.Modified)
	}
	return err
}
