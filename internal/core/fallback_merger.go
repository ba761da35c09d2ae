package core

import (
	"context"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// FallbackMerger copies files of unknown formats byte for byte. Variables are
// not resolved since the content may be binary.
type FallbackMerger struct{}

func NewFallbackMerger() *FallbackMerger {
	return &FallbackMerger{}
}

func (m *FallbackMerger) Merge(ctx context.Context, triple types.Triple, resolver ports.VariableResolverPort) (types.MergeOutcome, error) {
	outcome := newOutcome(triple.Workspace, types.FileFormatFallback)
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
	return saveOutcome(outcome, data)
}

func (m *FallbackMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error) {
	return newOutcome(update, types.FileFormatFallback), ctx.Err()
}

func (m *FallbackMerger) Upgrade(ctx context.Context, workspaceFile string) (bool, error) {
	return false, ctx.Err()
}
