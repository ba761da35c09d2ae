package core

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// TextMerger writes the resolved template over the workspace file. There is
// no structure to merge, so inverse merging is not supported.
type TextMerger struct {
	upgrader ports.LegacyUpgraderPort
}

func NewTextMerger(upgrader ports.LegacyUpgraderPort) *TextMerger {
	return &TextMerger{upgrader: upgrader}
}

func (m *TextMerger) Merge(ctx context.Context, triple types.Triple, resolver ports.VariableResolverPort) (types.MergeOutcome, error) {
	outcome := newOutcome(triple.Workspace, types.FileFormatText)
	if err := ctx.Err(); err != nil {
		return failOutcome(outcome, err)
	}
	source := templateSource(triple, shared.Exists(triple.Workspace))
	if source == "" {
		return outcome, nil
	}
	data, _, err := readOptional(source)
	if err != nil {
		return failOutcome(outcome, err)
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = resolver.Resolve(line, source)
	}
	log.Debug().Str("workspace", triple.Workspace).Str("template", source).Msg("merging text")
	return saveOutcome(outcome, []byte(strings.Join(lines, "\n")))
}

func (m *TextMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error) {
	return newOutcome(update, types.FileFormatText), ctx.Err()
}

func (m *TextMerger) Upgrade(ctx context.Context, workspaceFile string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, exists, err := readOptional(workspaceFile)
	if err != nil || !exists {
		return false, err
	}
	upgraded := upgradeLines(m.upgrader, string(data))
	if upgraded == string(data) {
		return false, nil
	}
	if err := shared.WriteFileAtomic(workspaceFile, []byte(upgraded), 0o644); err != nil {
		return false, err
	}
	return true, nil
}
