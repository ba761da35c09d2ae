package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-merge/internal/types"
)

type treeFixture struct {
	setup     string
	update    string
	workspace string
}

func newTreeFixture(t *testing.T) treeFixture {
	dir := t.TempDir()
	f := treeFixture{
		setup:     filepath.Join(dir, "settings", "setup"),
		update:    filepath.Join(dir, "settings", "update"),
		workspace: filepath.Join(dir, "workspaces", "main"),
	}
	writeFile(t, filepath.Join(f.setup, "conf", "ide.properties"), "a=1\n")
	writeFile(t, filepath.Join(f.setup, ".editorconfig"), "root = true\n")
	writeFile(t, filepath.Join(f.setup, "bin", "tool.sh"), "#!/bin/sh\n")
	writeFile(t, filepath.Join(f.update, "conf", "ide.properties"), "b=$[X]\n")
	writeFile(t, filepath.Join(f.update, "broken.xml"), "<root")
	writeFile(t, filepath.Join(f.update, "settings.json"), `{"k": "$[X]"}`)
	require.NoError(t, os.MkdirAll(filepath.Join(f.update, "empty"), 0o755))
	return f
}

func TestDirectoryMergerMergeContinuesAfterFailure(t *testing.T) {
	f := newTreeFixture(t)
	merger := NewDirectoryMerger(DirectoryMergerOptions{})
	resolver := mapResolver{"X": "v"}

	report := merger.MergeReport(t.Context(), f.setup, f.update, resolver, f.workspace)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, 4, report.Written())

	var failed []string
	for _, outcome := range report.Outcomes {
		if outcome.Failed() {
			failed = append(failed, filepath.Base(outcome.Path))
		}
	}
	assert.Equal(t, []string{"broken.xml"}, failed)

	assert.Equal(t, "root = true\n", readFile(t, filepath.Join(f.workspace, ".editorconfig")))
	assert.Equal(t, "#!/bin/sh\n", readFile(t, filepath.Join(f.workspace, "bin", "tool.sh")))
	assert.Equal(t, map[string]string{"a": "1", "b": "v"}, readProperties(t, filepath.Join(f.workspace, "conf", "ide.properties")))
	assert.Equal(t, "{\n  \"k\": \"v\"\n}\n", readFile(t, filepath.Join(f.workspace, "settings.json")))
	assert.NoFileExists(t, filepath.Join(f.workspace, "broken.xml"))
	assert.NoDirExists(t, filepath.Join(f.workspace, "empty"))

	errorCount := merger.Merge(t.Context(), f.setup, f.update, resolver, f.workspace)
	assert.Equal(t, 1, errorCount)
	second := merger.MergeReport(t.Context(), f.setup, f.update, resolver, f.workspace)
	assert.Equal(t, 0, second.Written())
}

func TestDirectoryMergerRootMismatchIsNotCounted(t *testing.T) {
	dir := t.TempDir()
	setup, update, workspace := filepath.Join(dir, "setup"), filepath.Join(dir, "update"), filepath.Join(dir, "workspace")
	writeFile(t, filepath.Join(update, "a.xml"), `<other `+mergeNS+`/>`)
	writeFile(t, filepath.Join(workspace, "a.xml"), `<root/>`)
	writeFile(t, filepath.Join(update, "b.txt"), "b\n")

	report := NewDirectoryMerger(DirectoryMergerOptions{}).MergeReport(t.Context(), setup, update, mapResolver{}, workspace)
	assert.Equal(t, 0, report.Errors)
	assert.Equal(t, 1, report.Written())
	assert.Equal(t, `<root/>`, readFile(t, filepath.Join(workspace, "a.xml")))
	assert.Equal(t, "b\n", readFile(t, filepath.Join(workspace, "b.txt")))
}

func TestDirectoryMergerMissingTemplates(t *testing.T) {
	dir := t.TempDir()
	report := NewDirectoryMerger(DirectoryMergerOptions{}).MergeReport(t.Context(), filepath.Join(dir, "setup"), filepath.Join(dir, "update"), mapResolver{}, filepath.Join(dir, "workspace"))
	assert.Equal(t, 0, report.Errors)
	assert.Empty(t, report.Outcomes)
}

func TestDirectoryMergerInverseMerge(t *testing.T) {
	f := newTreeFixture(t)
	writeFile(t, filepath.Join(f.update, "missing", "x.properties"), "x=1\n")
	merger := NewDirectoryMerger(DirectoryMergerOptions{})
	resolver := mapResolver{"X": "v"}
	merger.Merge(t.Context(), f.setup, f.update, resolver, f.workspace)
	writeFile(t, filepath.Join(f.workspace, "settings.json"), `{"k": "w", "extra": 1}`)

	report := merger.InverseMerge(t.Context(), f.workspace, resolver, false, f.update)
	assert.Equal(t, 0, report.Errors)

	statuses := map[string]types.MergeStatus{}
	for _, outcome := range report.Outcomes {
		rel, err := filepath.Rel(f.update, outcome.Path)
		require.NoError(t, err)
		statuses[rel] = outcome.Status
	}
	assert.Equal(t, map[string]types.MergeStatus{
		filepath.Join("conf", "ide.properties"): types.MergeStatusUnchanged,
		"settings.json":                         types.MergeStatusWritten,
	}, statuses)
	assert.Equal(t, "{\n  \"k\": \"w\"\n}\n", readFile(t, filepath.Join(f.update, "settings.json")))
	assert.NoDirExists(t, filepath.Join(f.workspace, "missing"))
}

func TestDirectoryMergerUpgrade(t *testing.T) {
	f := newTreeFixture(t)
	merger := NewDirectoryMerger(DirectoryMergerOptions{Upgrader: braceUpgrader{}})
	merger.Merge(t.Context(), f.setup, f.update, mapResolver{"X": "v"}, f.workspace)
	writeFile(t, filepath.Join(f.workspace, "notes", "legacy.txt"), "${X}\n")

	count, err := merger.Upgrade(t.Context(), f.workspace)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "$[X]\n", readFile(t, filepath.Join(f.workspace, "notes", "legacy.txt")))

	_, err = merger.Upgrade(t.Context(), filepath.Join(f.workspace, "absent"))
	require.Error(t, err)
}

func TestDirectoryMergerRouting(t *testing.T) {
	merger := NewDirectoryMerger(DirectoryMergerOptions{})
	tests := map[string]any{
		"a/ide.properties":     &PropertiesMerger{},
		"org.eclipse.ui.prefs": &PropertiesMerger{},
		"workspace.xml":        &XMLMerger{},
		"Main.launch":          &XMLMerger{},
		"settings.json":        &JSONMerger{},
		".editorconfig":        &TextMerger{},
		"tool.sh":              &FallbackMerger{},
		"Makefile":             &FallbackMerger{},
	}
	for path, want := range tests {
		assert.IsType(t, want, merger.MergerFor(path), path)
	}
}
