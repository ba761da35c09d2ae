package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/core"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// InverseMerge folds values changed in the workspace back into the update
// templates of the settings.
func (s Service) InverseMerge(ctx context.Context, req InverseMergeRequest) (InverseMergeResult, error) {
	layout, err := resolveLayout(req.WorkspaceRequest)
	if err != nil {
		return InverseMergeResult{}, err
	}
	if !shared.IsDir(layout.workspace) {
		return InverseMergeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("workspace not found: " + layout.workspace)
	}
	variables, err := s.newVariables(ctx, layout, req.WorkspaceRequest, true)
	if err != nil {
		return InverseMergeResult{}, err
	}
	merger := core.NewDirectoryMerger(core.DirectoryMergerOptions{
		LegacyXMLSupport: true,
		Upgrader:         variables,
	})

	started := s.now()
	log.Info().Str("workspace", layout.workspace).Str("update", layout.update).Msg("inverse merging workspace")
	report := merger.InverseMerge(ctx, layout.workspace, variables, req.AddNewProperties, layout.update)
	result := InverseMergeResult{
		UpdatePath: layout.update,
		Written:    report.Written(),
		Errors:     report.Errors,
	}
	result.RunID = s.record(req.JournalDB, types.JournalRun{
		Direction: types.JournalDirectionInverse,
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
		return result, mergeFailed(types.JournalDirectionInverse, report.Errors)
	}
	return result, nil
}
