package core

import (
	"strings"

	"github.com/beevik/etree"

	"workspace-merge/internal/types"
)

// MergeNamespaceURI is the namespace of the merge meta attributes. They are
// stripped from every merged workspace file.
const MergeNamespaceURI = "https://github.com/devonfw/IDEasy/merge"

const (
	mergeAttrID       = "id"
	mergeAttrStrategy = "strategy"

	xmlnsPrefix = "xmlns"

	mergeIDElementName = "name()"
	mergeIDElementText = "text()"
)

type qualifiedName struct {
	URI   string
	Local string
}

func (q qualifiedName) String() string {
	if q.URI == "" {
		return q.Local
	}
	return "{" + q.URI + "}" + q.Local
}

func elementQName(e *etree.Element) qualifiedName {
	return qualifiedName{URI: elementNamespaceURI(e), Local: e.Tag}
}

func elementNamespaceURI(e *etree.Element) string {
	if e.Space == "" {
		uri, _ := lookupNamespace(e, "")
		return uri
	}
	if uri, ok := lookupNamespace(e, e.Space); ok {
		return uri
	}
	return e.Space
}

// lookupNamespace resolves a prefix ("" for the default namespace) against
// the declarations of e and its ancestors.
func lookupNamespace(e *etree.Element, prefix string) (string, bool) {
	for current := e; current != nil; current = current.Parent() {
		for _, attr := range current.Attr {
			if prefix == "" {
				if attr.Space == "" && attr.Key == xmlnsPrefix {
					return attr.Value, true
				}
				continue
			}
			if attr.Space == xmlnsPrefix && attr.Key == prefix {
				return attr.Value, true
			}
		}
	}
	return "", false
}

func isNamespaceDeclaration(attr etree.Attr) bool {
	return attr.Space == xmlnsPrefix || (attr.Space == "" && attr.Key == xmlnsPrefix)
}

func attrNamespaceURI(owner *etree.Element, attr etree.Attr) string {
	if attr.Space == "" || attr.Space == xmlnsPrefix {
		return ""
	}
	if uri, ok := lookupNamespace(owner, attr.Space); ok {
		return uri
	}
	return attr.Space
}

func isMergeAttr(owner *etree.Element, attr etree.Attr) bool {
	if isNamespaceDeclaration(attr) {
		return attr.Value == MergeNamespaceURI
	}
	return attrNamespaceURI(owner, attr) == MergeNamespaceURI
}

func hasMergeNamespaceDeclaration(e *etree.Element) bool {
	for _, attr := range e.Attr {
		if attr.Space == xmlnsPrefix && attr.Value == MergeNamespaceURI {
			return true
		}
	}
	return false
}

func mergeAttrValue(e *etree.Element, key string) string {
	for _, attr := range e.Attr {
		if attr.Key == key && attr.Space != "" && attr.Space != xmlnsPrefix && attrNamespaceURI(e, attr) == MergeNamespaceURI {
			return attr.Value
		}
	}
	return ""
}

func plainAttr(e *etree.Element, key string) (etree.Attr, bool) {
	for _, attr := range e.Attr {
		if attr.Space == "" && attr.Key == key {
			return attr, true
		}
	}
	return etree.Attr{}, false
}

func findAttr(e *etree.Element, space string, key string) (int, bool) {
	for i, attr := range e.Attr {
		if attr.Space == space && attr.Key == key {
			return i, true
		}
	}
	return -1, false
}

func setAttr(e *etree.Element, space string, key string, value string) {
	if i, ok := findAttr(e, space, key); ok {
		e.Attr[i].Value = value
		return
	}
	e.CreateAttr(fullKey(space, key), value)
}

func fullKey(space string, key string) string {
	if space == "" {
		return key
	}
	return space + ":" + key
}

// payloadAttrs returns the attributes of e that are neither namespace
// declarations nor merge meta attributes.
func payloadAttrs(e *etree.Element) []etree.Attr {
	var result []etree.Attr
	for _, attr := range e.Attr {
		if isNamespaceDeclaration(attr) || isMergeAttr(e, attr) {
			continue
		}
		result = append(result, attr)
	}
	return result
}

// mergeID derives the identity expression used to find the counterpart of e.
// An empty result means no stable identity could be derived.
func mergeID(e *etree.Element) string {
	if id := mergeAttrValue(e, mergeAttrID); id != "" {
		return id
	}
	if _, ok := plainAttr(e, "id"); ok {
		return "@id"
	}
	if _, ok := plainAttr(e, "name"); ok {
		return "@name"
	}
	attrs := payloadAttrs(e)
	switch len(attrs) {
	case 0:
		return mergeIDElementName
	case 1:
		return "@" + fullKey(attrs[0].Space, attrs[0].Key)
	default:
		return ""
	}
}

// mergeStrategyOf returns the declared strategy of e, or "" if undeclared.
func mergeStrategyOf(e *etree.Element) (types.MergeStrategy, error) {
	value := mergeAttrValue(e, mergeAttrStrategy)
	if value == "" {
		return "", nil
	}
	return types.ParseMergeStrategy(value)
}

func isTextual(token etree.Token) (*etree.CharData, bool) {
	cd, ok := token.(*etree.CharData)
	return cd, ok
}

func isBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

// xmlPath renders the location of e as an XPath-like string, optionally
// with the payload attributes of every step.
func xmlPath(e *etree.Element, includeAttributes bool) string {
	var steps []string
	for current := e; current != nil && current.Tag != ""; current = current.Parent() {
		var sb strings.Builder
		sb.WriteString("/")
		sb.WriteString(current.FullTag())
		if includeAttributes {
			attrs := payloadAttrs(current)
			if len(attrs) > 0 {
				sb.WriteString("[")
				for i, attr := range attrs {
					if i > 0 {
						sb.WriteString(" ")
					}
					sb.WriteString("@")
					sb.WriteString(fullKey(attr.Space, attr.Key))
					sb.WriteString("='")
					sb.WriteString(escapeSingleQuotes(attr.Value))
					sb.WriteString("'")
				}
				sb.WriteString("]")
			}
		}
		steps = append(steps, sb.String())
	}
	var result strings.Builder
	for i := len(steps) - 1; i >= 0; i-- {
		result.WriteString(steps[i])
	}
	return result.String()
}

func escapeSingleQuotes(value string) string {
	return strings.ReplaceAll(value, "'", "&apos;")
}

// allElements returns e and its descendants in document order.
func allElements(e *etree.Element) []*etree.Element {
	result := []*etree.Element{e}
	for _, child := range e.ChildElements() {
		result = append(result, allElements(child)...)
	}
	return result
}

// removeMergeNamespace strips merge meta attributes and merge namespace
// declarations from root and all descendants. Descendants are processed
// first so declarations stay resolvable while they are needed.
func removeMergeNamespace(root *etree.Element) {
	elements := allElements(root)
	for i := len(elements) - 1; i >= 0; i-- {
		e := elements[i]
		kept := make([]etree.Attr, 0, len(e.Attr))
		for _, attr := range e.Attr {
			if !isMergeAttr(e, attr) {
				kept = append(kept, attr)
			}
		}
		if len(kept) != len(e.Attr) {
			e.Attr = kept
		}
	}
}

// removeWhitespace drops whitespace-only text below e so re-indenting does
// not pile up blank lines.
func removeWhitespace(e *etree.Element) {
	for i := len(e.Child) - 1; i >= 0; i-- {
		switch token := e.Child[i].(type) {
		case *etree.CharData:
			if !token.IsCData() && isBlank(token.Data) {
				e.RemoveChildAt(i)
			}
		case *etree.Element:
			removeWhitespace(token)
		}
	}
}

// importElement deep-copies a template element for insertion below
// resultParent. Namespace declarations the copy relies on but the result
// context resolves differently are added to the copy.
func importElement(template *etree.Element, resultParent *etree.Element) *etree.Element {
	copied := template.Copy()
	declared := map[string]bool{}
	for _, attr := range copied.Attr {
		if attr.Space == xmlnsPrefix {
			declared[attr.Key] = true
		} else if attr.Space == "" && attr.Key == xmlnsPrefix {
			declared[""] = true
		}
	}
	for _, prefix := range usedPrefixes(copied) {
		if declared[prefix] {
			continue
		}
		templateURI, ok := lookupNamespace(template, prefix)
		if !ok {
			continue
		}
		resultURI, _ := lookupNamespace(resultParent, prefix)
		if resultURI == templateURI {
			continue
		}
		if prefix == "" {
			copied.CreateAttr(xmlnsPrefix, templateURI)
		} else {
			copied.CreateAttr(xmlnsPrefix+":"+prefix, templateURI)
		}
	}
	return copied
}

func usedPrefixes(e *etree.Element) []string {
	seen := map[string]bool{}
	var result []string
	add := func(prefix string) {
		if !seen[prefix] {
			seen[prefix] = true
			result = append(result, prefix)
		}
	}
	for _, element := range allElements(e) {
		add(element.Space)
		for _, attr := range element.Attr {
			if attr.Space != "" && attr.Space != xmlnsPrefix && attr.Space != "xml" {
				add(attr.Space)
			}
		}
	}
	return result
}
