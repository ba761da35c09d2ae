package core

import (
	"bytes"
	"context"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/magiconair/properties"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

// PropertiesMerger merges Java properties files as flat key/value maps.
// Output is sorted by key and keeps the comments attached to each key.
type PropertiesMerger struct {
	upgrader ports.LegacyUpgraderPort
}

func NewPropertiesMerger(upgrader ports.LegacyUpgraderPort) *PropertiesMerger {
	return &PropertiesMerger{upgrader: upgrader}
}

func (m *PropertiesMerger) Merge(ctx context.Context, triple types.Triple, resolver ports.VariableResolverPort) (types.MergeOutcome, error) {
	outcome := newOutcome(triple.Workspace, types.FileFormatProperties)
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

	dirty := false
	var result *properties.Properties
	if workspaceExists {
		if result, err = loadProperties(workspaceData, triple.Workspace); err != nil {
			return failOutcome(outcome, err)
		}
	} else {
		setupData, setupExists, err := readOptional(triple.Setup)
		if err != nil {
			return failOutcome(outcome, err)
		}
		if !setupExists && !updateExists {
			return outcome, nil
		}
		result = newProperties()
		if setupExists {
			if result, err = loadProperties(setupData, triple.Setup); err != nil {
				return failOutcome(outcome, err)
			}
		}
		dirty = true
	}
	source := triple.Workspace
	if !workspaceExists {
		source = triple.Setup
	}
	resolved, err := resolveProperties(result, func(text string) string { return resolver.Resolve(text, source) })
	if err != nil {
		return failOutcome(outcome, err)
	}
	if resolved {
		dirty = true
	}

	if updateExists {
		update, err := loadProperties(updateData, triple.Update)
		if err != nil {
			return failOutcome(outcome, err)
		}
		for _, key := range update.Keys() {
			value := resolver.Resolve(update.GetString(key, ""), triple.Update)
			if current, found := result.Get(key); found && current == value {
				continue
			}
			if len(result.GetComments(key)) == 0 {
				if comments := update.GetComments(key); len(comments) > 0 {
					result.SetComments(key, comments)
				}
			}
			if err := setProperty(result, key, value); err != nil {
				return failOutcome(outcome, err)
			}
			dirty = true
		}
	}
	if !dirty {
		outcome.Status = types.MergeStatusUnchanged
		outcome.Fingerprint = shared.Fingerprint(workspaceData)
		return outcome, nil
	}
	log.Debug().Str("workspace", triple.Workspace).Msg("merging properties")
	return m.save(outcome, result)
}

func (m *PropertiesMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error) {
	outcome := newOutcome(update, types.FileFormatProperties)
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
	workspaceProps, err := loadProperties(workspaceData, workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	updateProps, err := loadProperties(updateData, update)
	if err != nil {
		return failOutcome(outcome, err)
	}

	dirty := false
	for _, key := range workspaceProps.Keys() {
		value := workspaceProps.GetString(key, "")
		current, found := updateProps.Get(key)
		if !found && !addNewProperties {
			continue
		}
		if found && resolver.Resolve(current, update) == value {
			continue
		}
		if err := setProperty(updateProps, key, resolver.InverseResolve(value, workspace)); err != nil {
			return failOutcome(outcome, err)
		}
		dirty = true
	}
	if !dirty {
		outcome.Status = types.MergeStatusUnchanged
		outcome.Fingerprint = shared.Fingerprint(updateData)
		return outcome, nil
	}
	return m.save(outcome, updateProps)
}

func (m *PropertiesMerger) Upgrade(ctx context.Context, workspaceFile string) (bool, error) {
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

func (m *PropertiesMerger) save(outcome types.MergeOutcome, props *properties.Properties) (types.MergeOutcome, error) {
	props.Sort()
	var buf bytes.Buffer
	if _, err := props.WriteComment(&buf, "# ", properties.ISO_8859_1); err != nil {
		return failOutcome(outcome, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize "+outcome.Path).
			WithCause(err))
	}
	return saveOutcome(outcome, buf.Bytes())
}

func newProperties() *properties.Properties {
	props := properties.NewProperties()
	props.DisableExpansion = true
	return props
}

func loadProperties(data []byte, path string) (*properties.Properties, error) {
	loader := &properties.Loader{Encoding: properties.ISO_8859_1, DisableExpansion: true}
	props, err := loader.LoadBytes(data)
	if err != nil {
		return nil, parseError(path, err)
	}
	props.DisableExpansion = true
	return props, nil
}

func setProperty(props *properties.Properties, key string, value string) error {
	if _, _, err := props.Set(key, value); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to set property " + key).
			WithCause(err)
	}
	return nil
}

// resolveProperties resolves every value in place and reports whether any
// value changed.
func resolveProperties(props *properties.Properties, resolve func(string) string) (bool, error) {
	changed := false
	for _, key := range props.Keys() {
		value := props.GetString(key, "")
		resolved := resolve(value)
		if resolved == value {
			continue
		}
		if err := setProperty(props, key, resolved); err != nil {
			return changed, err
		}
		changed = true
	}
	return changed, nil
}

func upgradeLines(upgrader ports.LegacyUpgraderPort, text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = upgradeText(upgrader, line)
	}
	return strings.Join(lines, "\n")
}
