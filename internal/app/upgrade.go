package app

import (
	"context"
	"strings"

	"workspace-merge/internal/core"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// Upgrade rewrites legacy variable syntax in the workspace, or in the folder
// given by the request, in place.
func (s Service) Upgrade(ctx context.Context, req UpgradeRequest) (UpgradeResult, error) {
	layout, err := resolveLayout(req.WorkspaceRequest)
	if err != nil {
		return UpgradeResult{}, err
	}
	folder := layout.workspace
	if override := strings.TrimSpace(req.Folder); override != "" {
		folder = shared.ExpandTilde(override)
	}
	variables, err := s.newVariables(ctx, layout, req.WorkspaceRequest, true)
	if err != nil {
		return UpgradeResult{}, err
	}
	merger := core.NewDirectoryMerger(core.DirectoryMergerOptions{
		LegacyXMLSupport: true,
		Upgrader:         variables,
	})

	started := s.now()
	modified, upgradeErr := merger.Upgrade(ctx, folder)
	result := UpgradeResult{Folder: folder, Modified: modified}
	errorCount := 0
	if upgradeErr != nil {
		errorCount = 1
	}
	result.RunID = s.record(req.JournalDB, types.JournalRun{
		Direction: types.JournalDirectionUpgrade,
		Workspace: folder,
		Errors:    errorCount,
	}, started)
	return result, upgradeErr
}
