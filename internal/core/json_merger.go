package core

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// JSONMerger merges JSON documents key by key. Arrays are never merged
// element-wise: the overlay array replaces the base array.
type JSONMerger struct {
	upgrader ports.LegacyUpgraderPort
}

func NewJSONMerger(upgrader ports.LegacyUpgraderPort) *JSONMerger {
	return &JSONMerger{upgrader: upgrader}
}

func (m *JSONMerger) Merge(ctx context.Context, triple types.Triple, resolver ports.VariableResolverPort) (types.MergeOutcome, error) {
	outcome := newOutcome(triple.Workspace, types.FileFormatJSON)
	if err := ctx.Err(); err != nil {
		return failOutcome(outcome, err)
	}
	workspaceData, workspaceExists, err := readOptional(triple.Workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	updateData, updateExists, err := readOptional(triple.Update)
	if err != nil {
		return failOutcome(outcome, err)
	}
	if workspaceExists && !updateExists {
		return outcome, nil
	}

	var workspace any
	var result any
	if workspaceExists {
		if workspace, err = loadJSON(workspaceData, triple.Workspace); err != nil {
			return failOutcome(outcome, err)
		}
		result = workspace
	} else {
		setupData, setupExists, err := readOptional(triple.Setup)
		if err != nil {
			return failOutcome(outcome, err)
		}
		if setupExists {
			if result, err = loadResolvedJSON(setupData, triple.Setup, resolver); err != nil {
				return failOutcome(outcome, err)
			}
		}
	}
	if updateExists {
		overlay, err := loadResolvedJSON(updateData, triple.Update, resolver)
		if err != nil {
			return failOutcome(outcome, err)
		}
		if result == nil {
			result = overlay
		} else {
			result = mergeJSON(result, overlay)
		}
	}
	if result == nil {
		return outcome, nil
	}
	if workspaceExists && jsonEqual(result, workspace) {
		outcome.Status = types.MergeStatusUnchanged
		outcome.Fingerprint = shared.Fingerprint(workspaceData)
		return outcome, nil
	}
	log.Debug().Str("workspace", triple.Workspace).Msg("merging JSON")
	return m.save(outcome, result)
}

func (m *JSONMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error) {
	outcome := newOutcome(update, types.FileFormatJSON)
	if err := ctx.Err(); err != nil {
		return failOutcome(outcome, err)
	}
	workspaceData, workspaceExists, err := readOptional(workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	updateData, updateExists, err := readOptional(update)
	if err != nil {
		return failOutcome(outcome, err)
	}
	if !workspaceExists || !updateExists {
		return outcome, nil
	}
	workspaceValue, err := loadJSON(workspaceData, workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	updateValue, err := loadJSON(updateData, update)
	if err != nil {
		return failOutcome(outcome, err)
	}
	resolved := mapJSONStrings(updateValue, func(text string) string { return resolver.Resolve(text, update) })
	inverse := func(text string) string { return resolver.InverseResolve(text, workspace) }

	result, changed := inverseMergeJSON(updateValue, resolved, workspaceValue, addNewProperties, inverse)
	if !changed {
		outcome.Status = types.MergeStatusUnchanged
		outcome.Fingerprint = shared.Fingerprint(updateData)
		return outcome, nil
	}
	return m.save(outcome, result)
}

func (m *JSONMerger) Upgrade(ctx context.Context, workspaceFile string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, exists, err := readOptional(workspaceFile)
	if err != nil || !exists {
		return false, err
	}
	value, err := loadJSON(data, workspaceFile)
	if err != nil {
		return false, err
	}
	changed := false
	upgraded := mapJSONStrings(value, func(text string) string {
		result := upgradeText(m.upgrader, text)
		if result != text {
			changed = true
		}
		return result
	})
	if !changed {
		return false, nil
	}
	outcome, err := m.save(newOutcome(workspaceFile, types.FileFormatJSON), upgraded)
	if err != nil {
		return false, err
	}
	return outcome.Status == types.MergeStatusWritten, nil
}

func (m *JSONMerger) save(outcome types.MergeOutcome, value any) (types.MergeOutcome, error) {
	data, err := encodeJSON(value)
	if err != nil {
		return failOutcome(outcome, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize "+outcome.Path).
			WithCause(err))
	}
	return saveOutcome(outcome, data)
}

func loadJSON(data []byte, path string) (any, error) {
	value, err := decodeJSON(data)
	if err != nil {
		return nil, parseError(path, err)
	}
	return value, nil
}

func loadResolvedJSON(data []byte, path string, resolver ports.VariableResolverPort) (any, error) {
	value, err := loadJSON(data, path)
	if err != nil {
		return nil, err
	}
	return mapJSONStrings(value, func(text string) string { return resolver.Resolve(text, path) }), nil
}

// mergeJSON overlays overlay onto base. Objects are merged key by key with
// base keys first in their original order; every other combination is
// decided by the overlay.
func mergeJSON(base any, overlay any) any {
	baseObject, baseIsObject := base.(*jsonObject)
	overlayObject, overlayIsObject := overlay.(*jsonObject)
	if !baseIsObject || !overlayIsObject {
		return overlay
	}
	result := newJSONObject()
	for _, key := range baseObject.keys {
		result.set(key, baseObject.values[key])
	}
	for _, key := range overlayObject.keys {
		value := overlayObject.values[key]
		if existing, found := baseObject.get(key); found {
			value = mergeJSON(existing, value)
		}
		result.set(key, value)
	}
	return result
}

// inverseMergeJSON takes workspace values for every key of the update tree
// that the workspace also has. Values whose resolved form already equals the
// workspace value are kept as written in the update template.
func inverseMergeJSON(update any, resolved any, workspace any, addNewProperties bool, inverse func(string) string) (any, bool) {
	updateObject, updateIsObject := update.(*jsonObject)
	workspaceObject, workspaceIsObject := workspace.(*jsonObject)
	if !updateIsObject || !workspaceIsObject {
		if jsonEqual(resolved, workspace) {
			return update, false
		}
		return mapJSONStrings(workspace, inverse), true
	}
	resolvedObject := resolved.(*jsonObject)
	changed := false
	result := newJSONObject()
	for _, key := range updateObject.keys {
		value := updateObject.values[key]
		if workspaceValue, found := workspaceObject.get(key); found {
			var valueChanged bool
			value, valueChanged = inverseMergeJSON(value, resolvedObject.values[key], workspaceValue, addNewProperties, inverse)
			changed = changed || valueChanged
		}
		result.set(key, value)
	}
	if addNewProperties {
		for _, key := range workspaceObject.keys {
			if _, found := updateObject.get(key); found {
				continue
			}
			result.set(key, mapJSONStrings(workspaceObject.values[key], inverse))
			changed = true
		}
	}
	return result, changed
}
