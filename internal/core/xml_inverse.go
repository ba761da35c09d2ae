package core

import (
	"strings"

	"github.com/beevik/etree"

	"workspace-merge/internal/types"
)

// xmlInverseRun folds workspace values back into an update template. The
// resolved tree is a resolved copy of the update tree with identical shape;
// it is used for matching and for deciding whether a value changed.
type xmlInverseRun struct {
	matcher          *ElementMatcher
	addNewProperties bool
	inverseResolve   func(string) string
}

func (r *xmlInverseRun) fold(update *etree.Element, resolved *etree.Element, workspace *etree.Element) (bool, error) {
	strategy, err := mergeStrategyOf(update)
	if err != nil {
		return false, err
	}
	if strategy == types.MergeStrategyKeep {
		return false, nil
	}
	changed := r.foldAttributes(update, resolved, workspace)
	if r.foldText(update, resolved, workspace) {
		changed = true
	}

	matched := map[*etree.Element]bool{}
	resolvedChildren := resolved.ChildElements()
	for i, child := range update.ChildElements() {
		counterpart, err := r.matcher.Match(resolvedChildren[i], workspace)
		if err != nil {
			return changed, err
		}
		if counterpart == nil {
			continue
		}
		matched[counterpart] = true
		childChanged, err := r.fold(child, resolvedChildren[i], counterpart)
		if err != nil {
			return changed, err
		}
		if childChanged {
			changed = true
		}
	}

	if r.addNewProperties {
		for _, child := range workspace.ChildElements() {
			if matched[child] {
				continue
			}
			imported := importElement(child, update)
			resolveTree(imported, r.inverseResolve)
			update.AddChild(imported)
			changed = true
		}
	}
	return changed, nil
}

func (r *xmlInverseRun) foldAttributes(update *etree.Element, resolved *etree.Element, workspace *etree.Element) bool {
	changed := false
	for i, attr := range update.Attr {
		if isNamespaceDeclaration(attr) || isMergeAttr(update, attr) {
			continue
		}
		j, found := findAttr(workspace, attr.Space, attr.Key)
		if !found {
			continue
		}
		value := workspace.Attr[j].Value
		if resolved.Attr[i].Value == value {
			continue
		}
		update.Attr[i].Value = r.inverseResolve(value)
		changed = true
	}
	if !r.addNewProperties {
		return changed
	}
	for _, attr := range payloadAttrs(workspace) {
		if _, found := findAttr(update, attr.Space, attr.Key); found {
			continue
		}
		if attr.Space != "" && attr.Space != "xml" {
			uri := attrNamespaceURI(workspace, attr)
			if current, _ := lookupNamespace(update, attr.Space); current != uri {
				setAttr(update, xmlnsPrefix, attr.Space, uri)
			}
		}
		setAttr(update, attr.Space, attr.Key, r.inverseResolve(attr.Value))
		changed = true
	}
	return changed
}

func (r *xmlInverseRun) foldText(update *etree.Element, resolved *etree.Element, workspace *etree.Element) bool {
	w := firstTextIndex(workspace)
	if w < 0 {
		return false
	}
	value := strings.TrimSpace(workspace.Child[w].(*etree.CharData).Data)
	u := firstTextIndex(update)
	if u < 0 {
		if !r.addNewProperties {
			return false
		}
		update.AddChild(etree.NewText(r.inverseResolve(value)))
		return true
	}
	if strings.TrimSpace(resolved.Child[u].(*etree.CharData).Data) == value {
		return false
	}
	update.Child[u].(*etree.CharData).Data = r.inverseResolve(value)
	return true
}

func firstTextIndex(e *etree.Element) int {
	for i, token := range e.Child {
		if cd, ok := isTextual(token); ok && !isBlank(cd.Data) {
			return i
		}
	}
	return -1
}
