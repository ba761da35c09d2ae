package core

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/require"
)

// mapResolver resolves $[NAME] and ${NAME} from a fixed map. Inverse
// resolution replaces known values by $[NAME].
type mapResolver map[string]string

func (r mapResolver) Resolve(text string, _ string) string {
	for name, value := range r {
		text = strings.ReplaceAll(text, "$["+name+"]", value)
		text = strings.ReplaceAll(text, "${"+name+"}", value)
	}
	return text
}

func (r mapResolver) InverseResolve(text string, _ string) string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return len(r[names[i]]) > len(r[names[j]]) })
	for _, name := range names {
		text = strings.ReplaceAll(text, r[name], "$["+name+"]")
	}
	return text
}

type braceUpgrader struct{}

func (braceUpgrader) UpgradeLegacy(text string) string {
	return strings.ReplaceAll(strings.ReplaceAll(text, "${", "$["), "}", "]")
}

func writeFile(t *testing.T, path string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func parseXMLString(t *testing.T, content string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(content))
	require.NotNil(t, doc.Root())
	return doc
}

func parseXMLFile(t *testing.T, path string) *etree.Document {
	t.Helper()
	return parseXMLString(t, readFile(t, path))
}

func childTags(e *etree.Element) []string {
	var tags []string
	for _, child := range e.ChildElements() {
		tags = append(tags, child.Tag)
	}
	return tags
}
