package core

import (
	"context"
	"errors"
	"path/filepath"
	"sort"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/policies"
	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

type DirectoryMergerOptions struct {
	LegacyXMLSupport     bool
	FailOnAmbiguousMerge bool
	AttributeConflict    policies.AttributeConflictPolicy
	Upgrader             ports.LegacyUpgraderPort
}

// DirectoryMerger walks mirrored setup, update and workspace trees and
// dispatches every file to the merger of its format. A failing file is
// counted and logged; it never stops the walk.
type DirectoryMerger struct {
	routing policies.MergeRouting
	mergers map[types.FileFormat]ports.FileMergerPort
}

func NewDirectoryMerger(options DirectoryMergerOptions) *DirectoryMerger {
	routing := policies.NewMergeRouting()
	log.Debug().Strs("extensions", routing.Extensions()).Msg("structured merge formats registered")
	return &DirectoryMerger{
		routing: routing,
		mergers: map[types.FileFormat]ports.FileMergerPort{
			types.FileFormatProperties: NewPropertiesMerger(options.Upgrader),
			types.FileFormatXML: NewXMLMerger(XMLMergerOptions{
				LegacySupport:        options.LegacyXMLSupport,
				FailOnAmbiguousMerge: options.FailOnAmbiguousMerge,
				AttributeConflict:    options.AttributeConflict,
				Upgrader:             options.Upgrader,
			}),
			types.FileFormatJSON:     NewJSONMerger(options.Upgrader),
			types.FileFormatText:     NewTextMerger(options.Upgrader),
			types.FileFormatFallback: NewFallbackMerger(),
		},
	}
}

// MergerFor returns the file merger responsible for the given path.
func (d *DirectoryMerger) MergerFor(path string) ports.FileMergerPort {
	if merger, ok := d.mergers[d.routing.FormatFor(path)]; ok {
		return merger
	}
	return d.mergers[types.FileFormatFallback]
}

// Merge merges setup and update into the workspace tree and returns the
// number of files that failed.
func (d *DirectoryMerger) Merge(ctx context.Context, setupRoot string, updateRoot string, resolver ports.VariableResolverPort, workspaceRoot string) int {
	return d.MergeReport(ctx, setupRoot, updateRoot, resolver, workspaceRoot).Errors
}

func (d *DirectoryMerger) MergeReport(ctx context.Context, setupRoot string, updateRoot string, resolver ports.VariableResolverPort, workspaceRoot string) types.MergeReport {
	var report types.MergeReport
	d.mergePath(ctx, &report, setupRoot, updateRoot, resolver, workspaceRoot)
	return report
}

func (d *DirectoryMerger) mergePath(ctx context.Context, report *types.MergeReport, setup string, update string, resolver ports.VariableResolverPort, workspace string) {
	if shared.IsDir(setup) || shared.IsDir(update) {
		names, err := unionNames(setup, update)
		if err != nil {
			log.Error().Err(err).Str("workspace", workspace).Msg("failed to list template directory")
			report.Add(types.MergeOutcome{Path: workspace, Status: types.MergeStatusFailed, Err: err})
			return
		}
		for _, name := range names {
			d.mergePath(ctx, report, filepath.Join(setup, name), filepath.Join(update, name), resolver, filepath.Join(workspace, name))
		}
		return
	}
	if !shared.Exists(setup) && !shared.Exists(update) {
		return
	}
	triple := types.Triple{Setup: setup, Update: update, Workspace: workspace}
	outcome, err := d.MergerFor(workspace).Merge(ctx, triple, resolver)
	if err != nil {
		log.Error().Err(err).Str("workspace", workspace).Msg("failed to merge file")
		outcome.Status = types.MergeStatusFailed
		outcome.Err = err
	} else if outcome.Status == types.MergeStatusWritten {
		log.Debug().Str("workspace", workspace).Str("format", string(outcome.Format)).Msg("wrote workspace file")
	}
	report.Add(outcome)
}

// InverseMerge folds workspace changes back into the update tree. The walk
// follows the update tree; workspace entries without an update counterpart
// are ignored.
func (d *DirectoryMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) types.MergeReport {
	var report types.MergeReport
	d.inverseMergePath(ctx, &report, workspace, resolver, addNewProperties, update)
	return report
}

func (d *DirectoryMerger) inverseMergePath(ctx context.Context, report *types.MergeReport, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) {
	if shared.IsDir(update) {
		if !shared.IsDir(workspace) {
			log.Warn().Str("workspace", workspace).Str("update", update).Msg("workspace directory does not exist, skipping")
			return
		}
		names, err := shared.ListNames(update)
		if err != nil {
			log.Error().Err(err).Str("update", update).Msg("failed to list update directory")
			report.Add(types.MergeOutcome{Path: update, Status: types.MergeStatusFailed, Err: err})
			return
		}
		for _, name := range names {
			d.inverseMergePath(ctx, report, filepath.Join(workspace, name), resolver, addNewProperties, filepath.Join(update, name))
		}
		return
	}
	if !shared.Exists(update) {
		return
	}
	if !shared.Exists(workspace) {
		log.Warn().Str("workspace", workspace).Str("update", update).Msg("workspace file does not exist, skipping")
		return
	}
	outcome, err := d.MergerFor(update).InverseMerge(ctx, workspace, resolver, addNewProperties, update)
	if err != nil {
		log.Error().Err(err).Str("update", update).Msg("failed to inverse merge file")
		outcome.Status = types.MergeStatusFailed
		outcome.Err = err
	}
	report.Add(outcome)
}

// Upgrade migrates legacy constructs of every file below folder, or of folder
// itself if it is a file, and returns the number of modified files.
func (d *DirectoryMerger) Upgrade(ctx context.Context, folder string) (int, error) {
	if !shared.Exists(folder) {
		return 0, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("nothing to upgrade at " + folder)
	}
	var errs []error
	count := d.upgradePath(ctx, folder, &errs)
	return count, errors.Join(errs...)
}

func (d *DirectoryMerger) upgradePath(ctx context.Context, path string, errs *[]error) int {
	if !shared.IsDir(path) {
		modified, err := d.MergerFor(path).Upgrade(ctx, path)
		if err != nil {
			log.Error().Err(err).Str("file", path).Msg("failed to upgrade file")
			*errs = append(*errs, err)
			return 0
		}
		if modified {
			log.Info().Str("file", path).Msg("upgraded legacy file")
			return 1
		}
		return 0
	}
	names, err := shared.ListNames(path)
	if err != nil {
		*errs = append(*errs, err)
		return 0
	}
	count := 0
	for _, name := range names {
		count += d.upgradePath(ctx, filepath.Join(path, name), errs)
	}
	return count
}

func unionNames(dirs ...string) ([]string, error) {
	seen := map[string]bool{}
	var names []string
	for _, dir := range dirs {
		if !shared.IsDir(dir) {
			continue
		}
		entries, err := shared.ListNames(dir)
		if err != nil {
			return nil, err
		}
		for _, name := range entries {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}
