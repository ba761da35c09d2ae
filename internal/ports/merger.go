package ports

import (
	"context"

	"workspace-merge/internal/types"
)

// FileMergerPort merges one logical file of a single format.
type FileMergerPort interface {
	// Merge applies setup (first creation only) and update onto the
	// workspace file of the triple.
	Merge(ctx context.Context, triple types.Triple, resolver VariableResolverPort) (types.MergeOutcome, error)

	// InverseMerge folds workspace values back into the update template.
	// With addNewProperties, entries only present in the workspace are
	// added as well.
	InverseMerge(ctx context.Context, workspace string, resolver VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error)

	// Upgrade migrates legacy constructs of a workspace file in place and
	// reports whether the file was modified.
	Upgrade(ctx context.Context, workspaceFile string) (bool, error)
}
