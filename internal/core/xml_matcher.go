package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/beevik/etree"
	"github.com/rs/zerolog/log"
)

// ElementMatcher finds the counterpart of a template element below a parent
// element of another document.
type ElementMatcher struct {
	FailOnAmbiguousMerge bool
	paths                map[string]etree.Path
	ids                  map[qualifiedName]string
}

func NewElementMatcher(failOnAmbiguous bool) *ElementMatcher {
	return &ElementMatcher{
		FailOnAmbiguousMerge: failOnAmbiguous,
		paths:                map[string]etree.Path{},
		ids:                  map[qualifiedName]string{},
	}
}

// Match returns the element below parent that corresponds to template, or
// nil if there is none. An element without a derivable identity reuses the
// first identity seen for its qualified name in the same document.
func (m *ElementMatcher) Match(template *etree.Element, parent *etree.Element) (*etree.Element, error) {
	id := m.identity(template)
	var candidates []*etree.Element
	var expression string
	switch {
	case id == "":
		expression = "*"
		candidates = m.matchAllAttributes(template, parent)
	case id == mergeIDElementName:
		expression = template.FullTag()
		candidates = m.matchChildren(template, parent, func(*etree.Element) bool { return true })
	case id == mergeIDElementText:
		text := strings.TrimSpace(template.Text())
		expression = fmt.Sprintf("%s[text()='%s']", template.FullTag(), escapeSingleQuotes(text))
		candidates = m.matchChildren(template, parent, func(candidate *etree.Element) bool {
			return strings.TrimSpace(candidate.Text()) == text
		})
	case isAttributeID(id):
		space, key := splitKey(id[1:])
		index, found := findAttr(template, space, key)
		if !found {
			return nil, nil
		}
		value := template.Attr[index].Value
		expression = fmt.Sprintf("%s[%s='%s']", template.FullTag(), id, escapeSingleQuotes(value))
		candidates = m.matchChildren(template, parent, func(candidate *etree.Element) bool {
			i, ok := findAttr(candidate, space, key)
			return ok && candidate.Attr[i].Value == value
		})
	default:
		path, err := m.compile(id)
		if err != nil {
			return nil, err
		}
		expression = id
		candidates = parent.FindElementsPath(path)
	}
	return m.pick(expression, candidates, parent)
}

func (m *ElementMatcher) identity(template *etree.Element) string {
	name := elementQName(template)
	id := mergeID(template)
	if id == "" {
		return m.ids[name]
	}
	if _, ok := m.ids[name]; !ok {
		m.ids[name] = id
	}
	return id
}

func (m *ElementMatcher) pick(expression string, candidates []*etree.Element, parent *etree.Element) (*etree.Element, error) {
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}
	message := fmt.Sprintf("%d matches found for %s in workspace XML at %s", len(candidates), expression, xmlPath(parent, true))
	if m.FailOnAmbiguousMerge {
		return nil, fmt.Errorf("%s", message)
	}
	log.Warn().Msg(message)
	return candidates[0], nil
}

func (m *ElementMatcher) matchChildren(template *etree.Element, parent *etree.Element, accept func(*etree.Element) bool) []*etree.Element {
	name := elementQName(template)
	var result []*etree.Element
	for _, child := range parent.ChildElements() {
		if elementQName(child) == name && accept(child) {
			result = append(result, child)
		}
	}
	return result
}

// matchAllAttributes handles elements without a stable identity: only a
// sibling carrying exactly the same payload attributes counts as the same
// element. Such an element is therefore combined with an identical sibling
// instead of being appended again, which keeps repeated merges stable.
func (m *ElementMatcher) matchAllAttributes(template *etree.Element, parent *etree.Element) []*etree.Element {
	want := payloadAttrs(template)
	return m.matchChildren(template, parent, func(candidate *etree.Element) bool {
		got := payloadAttrs(candidate)
		if len(got) != len(want) {
			return false
		}
		for _, attr := range want {
			i, ok := findAttr(candidate, attr.Space, attr.Key)
			if !ok || candidate.Attr[i].Value != attr.Value {
				return false
			}
		}
		return true
	})
}

var andPredicate = regexp.MustCompile(`\s+and\s+`)

// compile turns a custom merge:id expression into an etree path. Conjunctions
// inside a predicate are split into consecutive predicates.
func (m *ElementMatcher) compile(expression string) (etree.Path, error) {
	if path, ok := m.paths[expression]; ok {
		return path, nil
	}
	converted := andPredicate.ReplaceAllString(expression, "][")
	path, err := etree.CompilePath(converted)
	if err != nil {
		return etree.Path{}, fmt.Errorf("invalid merge:id expression %q: %w", expression, err)
	}
	m.paths[expression] = path
	return path, nil
}

func isAttributeID(id string) bool {
	if !strings.HasPrefix(id, "@") || len(id) < 2 {
		return false
	}
	return !strings.ContainsAny(id[1:], "[]/()='\" ")
}

func splitKey(value string) (string, string) {
	if idx := strings.IndexByte(value, ':'); idx >= 0 {
		return value[:idx], value[idx+1:]
	}
	return "", value
}
