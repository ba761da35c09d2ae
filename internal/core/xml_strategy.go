package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"workspace-merge/internal/policies"
	"workspace-merge/internal/types"
)

// xmlStrategyRunner executes merge strategies of one template document
// against one result document.
type xmlStrategyRunner struct {
	file              string
	matcher           *ElementMatcher
	attributeConflict policies.AttributeConflictPolicy
}

func (r *xmlStrategyRunner) merge(strategy types.MergeStrategy, template *etree.Element, result *etree.Element) error {
	var err error
	switch strategy {
	case types.MergeStrategyCombine:
		err = r.combine(template, result)
	case types.MergeStrategyOverride:
		err = r.override(template, result)
	case types.MergeStrategyKeep:
		return nil
	default:
		err = fmt.Errorf("unsupported merge strategy %q", strategy)
	}
	if err == nil {
		return nil
	}
	var mergeErr *types.MergeError
	if errors.As(err, &mergeErr) {
		return err
	}
	return &types.MergeError{
		File:     r.file,
		Location: xmlPath(template, true),
		Strategy: strategy,
		Cause:    err,
	}
}

func (r *xmlStrategyRunner) combine(template *etree.Element, result *etree.Element) error {
	r.combineAttributes(template, result)
	return r.combineChildren(template, result)
}

func (r *xmlStrategyRunner) override(template *etree.Element, result *etree.Element) error {
	parent := result.Parent()
	if parent == nil {
		return fmt.Errorf("element %s has no parent to override in", result.FullTag())
	}
	index := result.Index()
	imported := importElement(template, parent)
	parent.RemoveChildAt(index)
	parent.InsertChildAt(index, imported)
	return nil
}

func (r *xmlStrategyRunner) combineAttributes(template *etree.Element, result *etree.Element) {
	for _, attr := range template.Attr {
		if isMergeAttr(template, attr) {
			continue
		}
		if isNamespaceDeclaration(attr) {
			if _, found := findAttr(result, attr.Space, attr.Key); !found {
				setAttr(result, attr.Space, attr.Key, attr.Value)
			}
			continue
		}
		if attr.Space != "" && attr.Space != "xml" {
			if uri, ok := lookupNamespace(template, attr.Space); ok {
				if current, _ := lookupNamespace(result, attr.Space); current != uri {
					setAttr(result, xmlnsPrefix, attr.Space, uri)
				}
			}
		}
		value := attr.Value
		if i, found := findAttr(result, attr.Space, attr.Key); found {
			existing := result.Attr[i].Value
			if existing != value && r.attributeConflict != nil {
				value = r.attributeConflict(fullKey(attr.Space, attr.Key), value, existing)
			}
		}
		setAttr(result, attr.Space, attr.Key, value)
	}
}

func (r *xmlStrategyRunner) combineChildren(template *etree.Element, result *etree.Element) error {
	for _, token := range template.Child {
		switch child := token.(type) {
		case *etree.Element:
			matched, err := r.matcher.Match(child, result)
			if err != nil {
				return err
			}
			if matched == nil {
				result.AddChild(importElement(child, result))
				continue
			}
			strategy, err := mergeStrategyOf(child)
			if err != nil {
				return &types.MergeError{
					File:     r.file,
					Location: xmlPath(child, true),
					Strategy: types.MergeStrategyCombine,
					Cause:    err,
				}
			}
			if strategy == "" {
				strategy = types.MergeStrategyCombine
			}
			if err := r.merge(strategy, child, matched); err != nil {
				return err
			}
		case *etree.CharData:
			if !isBlank(child.Data) {
				replaceText(result, child)
			}
		}
	}
	return nil
}

// replaceText overwrites the first non-blank text of result with the trimmed
// template text, or appends it when result has no text yet.
func replaceText(result *etree.Element, template *etree.CharData) {
	text := strings.TrimSpace(template.Data)
	for _, token := range result.Child {
		if cd, ok := isTextual(token); ok && !isBlank(cd.Data) {
			cd.Data = text
			return
		}
	}
	if template.IsCData() {
		result.AddChild(etree.NewCData(text))
		return
	}
	result.AddChild(etree.NewText(text))
}
