package app

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/adapters"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

const (
	defaultWorkspace = "main"
	// JournalDisabled turns off run recording when used as the journal path.
	JournalDisabled = "off"
)

// workspaceLayout holds the resolved directories of one merge invocation.
type workspaceLayout struct {
	settings  string
	setup     string
	update    string
	ideHome   string
	name      string
	workspace string
}

func resolveLayout(req WorkspaceRequest) (workspaceLayout, error) {
	settings := shared.ExpandTilde(strings.TrimSpace(req.SettingsPath))
	ideHome := shared.ExpandTilde(strings.TrimSpace(req.IDEHome))
	if ideHome == "" {
		return workspaceLayout{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("ide home is required")
	}
	if settings == "" {
		settings = filepath.Join(ideHome, "settings")
	}
	name := strings.TrimSpace(req.Workspace)
	if name == "" {
		name = defaultWorkspace
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return workspaceLayout{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("invalid workspace name: " + name)
	}
	if !shared.IsDir(settings) {
		return workspaceLayout{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("settings directory not found: " + settings)
	}
	return workspaceLayout{
		settings:  settings,
		setup:     filepath.Join(settings, "setup"),
		update:    filepath.Join(settings, "update"),
		ideHome:   ideHome,
		name:      name,
		workspace: filepath.Join(ideHome, "workspaces", name),
	}, nil
}

func (s Service) newVariables(ctx context.Context, layout workspaceLayout, req WorkspaceRequest, legacy bool) (*adapters.VariablesAdapter, error) {
	assert.NotEmpty(ctx, layout.workspace, "workspace path must be set")
	config := map[string]string{
		"IDE_HOME":       layout.ideHome,
		"SETTINGS_PATH":  layout.settings,
		"WORKSPACE_PATH": layout.workspace,
	}
	for key, value := range req.Variables {
		config[strings.ToUpper(key)] = value
	}
	var environ []string
	if s.Environ != nil {
		environ = s.Environ()
	}
	variables, err := adapters.NewVariablesAdapter(adapters.VariablesOptions{
		Config: config,
		PropertiesFiles: []string{
			filepath.Join(layout.workspace, "ide.properties"),
			filepath.Join(layout.ideHome, "conf", "ide.properties"),
			filepath.Join(layout.settings, "ide.properties"),
		},
		Environ: environ,
		Fixed:   map[string]string{"WORKSPACE": layout.name},
		Legacy:  legacy,
	})
	if err != nil {
		return nil, err
	}
	event := log.Debug()
	for _, name := range []string{"IDE_HOME", "SETTINGS_PATH", "WORKSPACE_PATH"} {
		if value, ok := variables.Get(name); ok {
			event = event.Str(strings.ToLower(name), value)
		}
	}
	event.Msg("variables resolved")
	return variables, nil
}

// record stores a finished run in the journal. Journal failures are logged
// and never fail the run itself.
func (s Service) record(journalDB string, run types.JournalRun, started time.Time) int64 {
	path := strings.TrimSpace(journalDB)
	if path == JournalDisabled || s.OpenJournal == nil {
		return 0
	}
	if path == "" {
		path = adapters.DefaultJournalPath()
	}
	run.Timestamp = started
	run.DurationMs = s.now().Sub(started).Milliseconds()
	journal, err := s.OpenJournal(shared.ExpandTilde(path))
	if err != nil {
		log.Warn().Err(err).Str("journal", path).Msg("failed to open journal")
		return 0
	}
	defer journal.Close()
	id, err := journal.RecordRun(run)
	if err != nil {
		log.Warn().Err(err).Str("journal", path).Msg("failed to record run")
		return 0
	}
	return id
}

func (s Service) writeReport(path string, report types.MergeReport) error {
	if strings.TrimSpace(path) == "" || s.Reports == nil {
		return nil
	}
	return s.Reports.WriteReport(shared.ExpandTilde(path), report)
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock()
}

func journalFiles(report types.MergeReport) []types.JournalFile {
	files := make([]types.JournalFile, 0, len(report.Outcomes))
	for _, outcome := range report.Outcomes {
		file := types.JournalFile{
			Path:        outcome.Path,
			Format:      outcome.Format,
			Status:      outcome.Status,
			Fingerprint: outcome.Fingerprint,
		}
		if outcome.Err != nil {
			file.Message = outcome.Err.Error()
		}
		files = append(files, file)
	}
	return files
}

func mergeFailed(direction types.JournalDirection, failed int) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeFailedPrecondition).
		WithMsg(fmt.Sprintf("%s finished with %d failed file(s)", direction, failed))
}
