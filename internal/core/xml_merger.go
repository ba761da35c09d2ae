package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"

	"workspace-merge/internal/policies"
	"workspace-merge/internal/ports"
	"workspace-merge/internal/shared"
	"workspace-merge/internal/types"
)

const xmlDeclaration = `version="1.0" encoding="UTF-8"`

type XMLMergerOptions struct {
	// LegacySupport applies OVERRIDE (existing workspace) or KEEP (first
	// creation) to template roots without a merge namespace declaration.
	LegacySupport        bool
	FailOnAmbiguousMerge bool
	AttributeConflict    policies.AttributeConflictPolicy
	Upgrader             ports.LegacyUpgraderPort
}

type XMLMerger struct {
	options XMLMergerOptions
}

func NewXMLMerger(options XMLMergerOptions) *XMLMerger {
	if options.AttributeConflict == nil {
		options.AttributeConflict = policies.TemplateWins
	}
	return &XMLMerger{options: options}
}

func (m *XMLMerger) Merge(ctx context.Context, triple types.Triple, resolver ports.VariableResolverPort) (types.MergeOutcome, error) {
	outcome := newOutcome(triple.Workspace, types.FileFormatXML)
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

	var result *etree.Document
	var template *etree.Document
	switch {
	case workspaceExists:
		if result, err = loadXML(workspaceData, triple.Workspace); err != nil {
			return failOutcome(outcome, err)
		}
		if template, err = loadResolvedXML(updateData, triple.Update, resolver); err != nil {
			return failOutcome(outcome, err)
		}
	default:
		setupData, setupExists, err := readOptional(triple.Setup)
		if err != nil {
			return failOutcome(outcome, err)
		}
		switch {
		case setupExists:
			if result, err = loadResolvedXML(setupData, triple.Setup, resolver); err != nil {
				return failOutcome(outcome, err)
			}
			if updateExists {
				if template, err = loadResolvedXML(updateData, triple.Update, resolver); err != nil {
					return failOutcome(outcome, err)
				}
			}
		case updateExists:
			if result, err = loadResolvedXML(updateData, triple.Update, resolver); err != nil {
				return failOutcome(outcome, err)
			}
		default:
			return outcome, nil
		}
	}

	if template != nil {
		templateRoot, resultRoot := template.Root(), result.Root()
		if elementQName(templateRoot) != elementQName(resultRoot) {
			log.Error().
				Str("workspace", triple.Workspace).
				Str("template", elementQName(templateRoot).String()).
				Str("result", elementQName(resultRoot).String()).
				Msg("XML root elements differ, cannot merge")
			if workspaceExists {
				return outcome, nil
			}
			// Materialize the resolved setup alone; the update does not apply.
		} else {
			strategy, err := m.rootStrategy(templateRoot, workspaceExists, triple.Workspace)
			if err != nil {
				return failOutcome(outcome, err)
			}
			log.Debug().
				Str("workspace", triple.Workspace).
				Str("strategy", string(strategy)).
				Msg("merging XML")
			runner := m.runner(triple.Workspace)
			if err := runner.merge(strategy, templateRoot, resultRoot); err != nil {
				return failOutcome(outcome, err)
			}
		}
	}

	removeMergeNamespace(result.Root())
	out, err := serializeXML(result, triple.Workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	return saveOutcome(outcome, out)
}

func (m *XMLMerger) rootStrategy(templateRoot *etree.Element, workspaceExists bool, file string) (types.MergeStrategy, error) {
	strategy, err := mergeStrategyOf(templateRoot)
	if err != nil {
		return "", &types.MergeError{
			File:     file,
			Location: xmlPath(templateRoot, true),
			Strategy: types.MergeStrategyCombine,
			Cause:    err,
		}
	}
	if strategy == "" {
		strategy = types.MergeStrategyCombine
	}
	if hasMergeNamespaceDeclaration(templateRoot) {
		return strategy, nil
	}
	if !m.options.LegacySupport {
		log.Warn().
			Str("workspace", file).
			Msg("XML template root has no merge namespace declaration, combining anyway")
		return strategy, nil
	}
	if workspaceExists {
		return types.MergeStrategyOverride, nil
	}
	return types.MergeStrategyKeep, nil
}

func (m *XMLMerger) runner(file string) *xmlStrategyRunner {
	return &xmlStrategyRunner{
		file:              file,
		matcher:           NewElementMatcher(m.options.FailOnAmbiguousMerge),
		attributeConflict: m.options.AttributeConflict,
	}
}

func (m *XMLMerger) InverseMerge(ctx context.Context, workspace string, resolver ports.VariableResolverPort, addNewProperties bool, update string) (types.MergeOutcome, error) {
	outcome := newOutcome(update, types.FileFormatXML)
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
	workspaceDoc, err := loadXML(workspaceData, workspace)
	if err != nil {
		return failOutcome(outcome, err)
	}
	updateDoc, err := loadXML(updateData, update)
	if err != nil {
		return failOutcome(outcome, err)
	}
	resolvedDoc := updateDoc.Copy()
	resolveTree(resolvedDoc.Root(), func(text string) string { return resolver.Resolve(text, update) })

	if elementQName(updateDoc.Root()) != elementQName(workspaceDoc.Root()) {
		log.Error().
			Str("workspace", workspace).
			Str("update", update).
			Msg("XML root elements differ, cannot inverse merge")
		return failOutcome(outcome, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("root element of %s does not match root element of %s", update, workspace)))
	}

	inverse := &xmlInverseRun{
		matcher:          NewElementMatcher(m.options.FailOnAmbiguousMerge),
		addNewProperties: addNewProperties,
		inverseResolve:   func(text string) string { return resolver.InverseResolve(text, workspace) },
	}
	changed, err := inverse.fold(updateDoc.Root(), resolvedDoc.Root(), workspaceDoc.Root())
	if err != nil {
		return failOutcome(outcome, &types.MergeError{
			File:     update,
			Location: xmlPath(updateDoc.Root(), true),
			Strategy: types.MergeStrategyCombine,
			Cause:    err,
		})
	}
	if !changed {
		outcome.Status = types.MergeStatusUnchanged
		outcome.Fingerprint = shared.Fingerprint(updateData)
		return outcome, nil
	}
	out, err := serializeXML(updateDoc, update)
	if err != nil {
		return failOutcome(outcome, err)
	}
	return saveOutcome(outcome, out)
}

func (m *XMLMerger) Upgrade(ctx context.Context, workspaceFile string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, exists, err := readOptional(workspaceFile)
	if err != nil || !exists {
		return false, err
	}
	doc, err := loadXML(data, workspaceFile)
	if err != nil {
		return false, err
	}
	if !hasMergeNamespaceDeclaration(doc.Root()) {
		log.Warn().
			Str("file", workspaceFile).
			Str("namespace", MergeNamespaceURI).
			Msg("XML root has no merge namespace declaration, legacy merge semantics apply")
	}
	changed := false
	resolveTree(doc.Root(), func(text string) string {
		upgraded := upgradeText(m.options.Upgrader, text)
		if upgraded != text {
			changed = true
		}
		return upgraded
	})
	if !changed {
		return false, nil
	}
	out, err := doc.WriteToBytes()
	if err != nil {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize " + workspaceFile).
			WithCause(err)
	}
	if err := shared.WriteFileAtomic(workspaceFile, out, 0o644); err != nil {
		return false, err
	}
	return true, nil
}

func loadXML(data []byte, path string) (*etree.Document, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.PreserveCData = true
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, parseError(path, err)
	}
	if doc.Root() == nil {
		return nil, parseError(path, fmt.Errorf("no root element"))
	}
	return doc, nil
}

func loadResolvedXML(data []byte, path string, resolver ports.VariableResolverPort) (*etree.Document, error) {
	doc, err := loadXML(data, path)
	if err != nil {
		return nil, err
	}
	resolveTree(doc.Root(), func(text string) string { return resolver.Resolve(text, path) })
	trimText(doc.Root())
	return doc, nil
}

// trimText trims every non-blank text node below root, matching what the
// combine strategy writes when it replaces text.
func trimText(root *etree.Element) {
	for _, e := range allElements(root) {
		for _, token := range e.Child {
			if cd, ok := isTextual(token); ok && !isBlank(cd.Data) {
				cd.Data = strings.TrimSpace(cd.Data)
			}
		}
	}
}

// resolveTree rewrites every attribute value and text node below root.
// Namespace declarations and merge meta attributes are left alone.
func resolveTree(root *etree.Element, resolve func(string) string) {
	for _, e := range allElements(root) {
		for i, attr := range e.Attr {
			if isNamespaceDeclaration(attr) || isMergeAttr(e, attr) {
				continue
			}
			e.Attr[i].Value = resolve(attr.Value)
		}
		for _, token := range e.Child {
			if cd, ok := isTextual(token); ok && !isBlank(cd.Data) {
				cd.Data = resolve(cd.Data)
			}
		}
	}
}

func serializeXML(doc *etree.Document, path string) ([]byte, error) {
	removeWhitespace(&doc.Element)
	ensureDeclaration(doc)
	doc.Indent(2)
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to serialize " + path).
			WithCause(err)
	}
	return out, nil
}

func ensureDeclaration(doc *etree.Document) {
	for _, token := range doc.Child {
		if pi, ok := token.(*etree.ProcInst); ok && pi.Target == "xml" {
			return
		}
	}
	doc.InsertChildAt(0, etree.NewProcInst("xml", xmlDeclaration))
}
