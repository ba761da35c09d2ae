package app

import "workspace-merge/internal/types"

// WorkspaceRequest locates a workspace and the settings it is merged from.
type WorkspaceRequest struct {
	SettingsPath string
	IDEHome      string
	Workspace    string
	// Variables come from the configuration and take precedence over the
	// ide.properties files and the environment.
	Variables map[string]string
	JournalDB string
}

type MergeRequest struct {
	WorkspaceRequest
	LegacyXMLSupport     bool
	FailOnAmbiguousMerge bool
	AttributeConflict    string
	ReportPath           string
}

type MergeResult struct {
	WorkspacePath string
	Written       int
	Errors        int
	RunID         int64
}

type InverseMergeRequest struct {
	WorkspaceRequest
	AddNewProperties bool
	ReportPath       string
}

type InverseMergeResult struct {
	UpdatePath string
	Written    int
	Errors     int
	RunID      int64
}

type UpgradeRequest struct {
	WorkspaceRequest
	// Folder overrides the workspace directory as the upgrade target.
	Folder string
}

type UpgradeResult struct {
	Folder   string
	Modified int
	RunID    int64
}

type JournalRequest struct {
	JournalDB string
	RunID     int64
	Limit     int
}

type JournalResult struct {
	Runs []types.JournalRun
}
