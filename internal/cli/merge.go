package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"workspace-merge/internal/app"
)

type mergeOptions struct {
	workspaceFlags
	LegacyXMLSupport     bool
	FailOnAmbiguousMerge bool
	AttributeConflict    string
	Report               string
}

func newMergeCommand() *cobra.Command {
	opts := mergeOptions{}
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge setup and update templates into the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMerge(cmd.Context(), cmd, opts)
		},
	}
	opts.register(cmd.Flags())
	cmd.Flags().BoolVar(&opts.LegacyXMLSupport, "legacy-xml-support", true, "Treat XML templates without merge namespace as legacy templates")
	cmd.Flags().BoolVar(&opts.FailOnAmbiguousMerge, "fail-on-ambiguous-merge", false, "Fail when a template element matches several workspace elements")
	cmd.Flags().StringVar(&opts.AttributeConflict, "attribute-conflict", "template", "Attribute conflict policy (template|workspace)")
	cmd.Flags().StringVar(&opts.Report, "report", "", "Write a YAML merge report to this path")

	_ = viper.BindPFlag("legacy_xml_support", cmd.Flags().Lookup("legacy-xml-support"))
	_ = viper.BindPFlag("fail_on_ambiguous_merge", cmd.Flags().Lookup("fail-on-ambiguous-merge"))
	_ = viper.BindPFlag("attribute_conflict", cmd.Flags().Lookup("attribute-conflict"))
	_ = viper.BindPFlag("report", cmd.Flags().Lookup("report"))
	return cmd
}

func runMerge(ctx context.Context, cmd *cobra.Command, opts mergeOptions) error {
	service := newAppService()
	result, err := service.Merge(ctx, app.MergeRequest{
		WorkspaceRequest:     opts.request(cmd),
		LegacyXMLSupport:     resolveBool(cmd, opts.LegacyXMLSupport, "legacy_xml_support", "legacy-xml-support"),
		FailOnAmbiguousMerge: resolveBool(cmd, opts.FailOnAmbiguousMerge, "fail_on_ambiguous_merge", "fail-on-ambiguous-merge"),
		AttributeConflict:    resolveString(cmd, opts.AttributeConflict, "attribute_conflict", "attribute-conflict"),
		ReportPath:           resolveString(cmd, opts.Report, "report", "report"),
	})
	if result.WorkspacePath != "" {
		fmt.Printf("merged %s: %d written, %d failed\n", result.WorkspacePath, result.Written, result.Errors)
	}
	return err
}
