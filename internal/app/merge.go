package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"workspace-merge/internal/core"
	"workspace-merge/internal/policies"
	"workspace-merge/internal/types"
)

// Merge applies the settings templates to the workspace. Failing files do not
// stop the run; they are counted in the result and turn the returned error
// into a failed precondition.
func (s Service) Merge(ctx context.Context, req MergeRequest) (MergeResult, error) {
	layout, err := resolveLayout(req.WorkspaceRequest)
	if err != nil {
		return MergeResult{}, err
	}
	attributeConflict, err := policies.ParseAttributeConflictPolicy(req.AttributeConflict)
	if err != nil {
		return MergeResult{}, err
	}
	variables, err := s.newVariables(ctx, layout, req.WorkspaceRequest, req.LegacyXMLSupport)
	if err != nil {
		return MergeResult{}, err
	}
	merger := core.NewDirectoryMerger(core.DirectoryMergerOptions{
		LegacyXMLSupport:     req.LegacyXMLSupport,
		FailOnAmbiguousMerge: req.FailOnAmbiguousMerge,
		AttributeConflict:    attributeConflict,
		Upgrader:             variables,
	})

	started := s.now()
	log.Info().Str("workspace", layout.workspace).Str("settings", layout.settings).Msg("merging workspace")
	report := merger.MergeReport(ctx, layout.setup, layout.update, variables, layout.workspace)
	result := MergeResult{
		WorkspacePath: layout.workspace,
		Written:       report.Written(),
		Errors:        report.Errors,
	}
	result.RunID = s.record(req.JournalDB, types.JournalRun{
		Direction: types.JournalDirectionMerge,
		Workspace: layout.workspace,
		Errors:    report.Errors,
		Files:     journalFiles(report),
	}, started)
	if err := s.writeReport(req.ReportPath, report); err != nil {
		return result, err
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	if report.Errors > 0 {
		return result, mergeFailed(types.JournalDirectionMerge, report.Errors)
	}
	return result, nil
}
