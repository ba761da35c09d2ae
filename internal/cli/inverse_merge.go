package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"workspace-merge/internal/app"
)

type inverseMergeOptions struct {
	workspaceFlags
	AddNewProperties bool
	Report           string
}

func newInverseMergeCommand() *cobra.Command {
	opts := inverseMergeOptions{}
	cmd := &cobra.Command{
		Use:   "inverse-merge",
		Short: "Fold workspace changes back into the update templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInverseMerge(cmd.Context(), cmd, opts)
		},
	}
	opts.register(cmd.Flags())
	cmd.Flags().BoolVar(&opts.AddNewProperties, "add-new-properties", false, "Also add entries that only exist in the workspace")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write a YAML merge report to this path")
	_ = viper.BindPFlag("add_new_properties", cmd.Flags().Lookup("add-new-properties"))
	return cmd
}

func runInverseMerge(ctx context.Context, cmd *cobra.Command, opts inverseMergeOptions) error {
	service := newAppService()
	result, err := service.InverseMerge(ctx, app.InverseMergeRequest{
		WorkspaceRequest: opts.request(cmd),
		AddNewProperties: resolveBool(cmd, opts.AddNewProperties, "add_new_properties", "add-new-properties"),
		ReportPath:       resolveString(cmd, opts.Report, "report", "report"),
	})
	if result.UpdatePath != "" {
		fmt.Printf("updated %s: %d written, %d failed\n", result.UpdatePath, result.Written, result.Errors)
	}
	return err
}
