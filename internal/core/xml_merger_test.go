package core

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-merge/internal/policies"
	"workspace-merge/internal/types"
)

const mergeNS = `xmlns:merge="https://github.com/devonfw/IDEasy/merge"`

type xmlFixture struct {
	triple types.Triple
}

func newXMLFixture(t *testing.T) xmlFixture {
	dir := t.TempDir()
	return xmlFixture{triple: types.Triple{
		Setup:     filepath.Join(dir, "setup", "workspace.xml"),
		Update:    filepath.Join(dir, "update", "workspace.xml"),
		Workspace: filepath.Join(dir, "workspace", "workspace.xml"),
	}}
}

func TestXMLMergerOverrideReplacesElement(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+`><a merge:id="name()" merge:strategy="override" x="1"><b/></a></root>`)
	writeFile(t, f.triple.Workspace, `<root><a x="2"><c/></a></root>`)

	merger := NewXMLMerger(XMLMergerOptions{})
	outcome, err := merger.Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusWritten, outcome.Status)

	doc := parseXMLFile(t, f.triple.Workspace)
	elements := doc.Root().ChildElements()
	require.Len(t, elements, 1)
	assert.Equal(t, "1", elements[0].SelectAttrValue("x", ""))
	assert.Equal(t, []string{"b"}, childTags(elements[0]))
}

func TestXMLMergerCombineKeepsBothAttributes(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<a `+mergeNS+` m="1"/>`)
	writeFile(t, f.triple.Workspace, `<a n="2"/>`)

	_, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)

	root := parseXMLFile(t, f.triple.Workspace).Root()
	assert.Equal(t, "1", root.SelectAttrValue("m", ""))
	assert.Equal(t, "2", root.SelectAttrValue("n", ""))
}

func TestXMLMergerAttributeConflictPolicy(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<a `+mergeNS+` v="template"/>`)
	writeFile(t, f.triple.Workspace, `<a v="workspace"/>`)

	_, err := NewXMLMerger(XMLMergerOptions{AttributeConflict: policies.WorkspaceWins}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)
	assert.Equal(t, "workspace", parseXMLFile(t, f.triple.Workspace).Root().SelectAttrValue("v", ""))
}

func TestXMLMergerIsIdempotent(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<?xml version="1.0" encoding="UTF-8"?>
<project `+mergeNS+`>
  <component name="A">
    <option name="path" value="$[IDE_HOME]/bin"/>
    <option name="flag" value="true"/>
  </component>
  <component name="B" merge:strategy="override">
    <entry key="k" value="v"/>
  </component>
  <description>  Hello $[USER]  </description>
  <list>
    <item type="x" order="1"/>
  </list>
</project>
`)
	writeFile(t, f.triple.Workspace, `<project>
  <component name="A"><option name="path" value="old"/><option name="other" value="1"/></component>
  <component name="B"><old/></component>
</project>`)
	resolver := mapResolver{"IDE_HOME": "/ide", "USER": "dev"}
	merger := NewXMLMerger(XMLMergerOptions{})

	first, err := merger.Merge(t.Context(), f.triple, resolver)
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusWritten, first.Status)
	written := readFile(t, f.triple.Workspace)

	second, err := merger.Merge(t.Context(), f.triple, resolver)
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusUnchanged, second.Status)
	assert.Equal(t, written, readFile(t, f.triple.Workspace))
	assert.Equal(t, first.Fingerprint, second.Fingerprint)

	root := parseXMLFile(t, f.triple.Workspace).Root()
	components := root.SelectElements("component")
	require.Len(t, components, 2)
	options := components[0].SelectElements("option")
	require.Len(t, options, 3)
	assert.Equal(t, "/ide/bin", options[0].SelectAttrValue("value", ""))
	assert.Equal(t, "other", options[1].SelectAttrValue("name", ""))
	assert.Equal(t, "flag", options[2].SelectAttrValue("name", ""))
	assert.Equal(t, []string{"entry"}, childTags(components[1]))
	assert.Equal(t, "Hello dev", root.SelectElement("description").Text())
	assert.Len(t, root.SelectElement("list").SelectElements("item"), 1)
	assert.True(t, strings.HasPrefix(written, `<?xml version="1.0" encoding="UTF-8"?>`))
	assert.Contains(t, written, "\n  <component name=\"A\">\n    <option")
}

func TestXMLMergerInheritsMergeIDForSiblings(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+`><opt merge:id="@key" key="a" v="1"/><opt key="b" v="2"/></root>`)
	writeFile(t, f.triple.Workspace, `<root><opt key="a" v="0"/><opt key="b" v="9"/></root>`)

	_, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)

	options := parseXMLFile(t, f.triple.Workspace).Root().SelectElements("opt")
	require.Len(t, options, 2)
	assert.Equal(t, "a", options[0].SelectAttrValue("key", ""))
	assert.Equal(t, "1", options[0].SelectAttrValue("v", ""))
	assert.Equal(t, "b", options[1].SelectAttrValue("key", ""))
	assert.Equal(t, "2", options[1].SelectAttrValue("v", ""))
}

func TestXMLMergerKeepPreservesHandEdits(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+`><settings merge:strategy="keep"><value>default</value></settings><other>$[X]</other></root>`)
	resolver := mapResolver{"X": "v"}
	merger := NewXMLMerger(XMLMergerOptions{})

	_, err := merger.Merge(t.Context(), f.triple, resolver)
	require.NoError(t, err)
	created := readFile(t, f.triple.Workspace)
	require.Contains(t, created, "<value>default</value>")
	require.Contains(t, created, "<other>v</other>")

	writeFile(t, f.triple.Workspace, strings.Replace(created, "default", "custom", 1))
	_, err = merger.Merge(t.Context(), f.triple, resolver)
	require.NoError(t, err)

	root := parseXMLFile(t, f.triple.Workspace).Root()
	assert.Equal(t, "custom", root.SelectElement("settings").SelectElement("value").Text())
	assert.Equal(t, "v", root.SelectElement("other").Text())
}

func TestXMLMergerStripsMergeNamespace(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+` xmlns:x="urn:x" merge:strategy="combine"><a merge:id="name()" x:attr="1"/><b merge:strategy="keep"/></root>`)
	writeFile(t, f.triple.Workspace, `<root><a/></root>`)

	_, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)

	written := readFile(t, f.triple.Workspace)
	assert.NotContains(t, written, MergeNamespaceURI)
	assert.NotContains(t, written, "merge:")
	assert.Contains(t, written, `xmlns:x="urn:x"`)
	assert.Contains(t, written, `x:attr="1"`)
	assert.Contains(t, written, "<b/>")
}

func TestXMLMergerMaterializesSetup(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Setup, `<root><value>${X}</value></root>`)

	outcome, err := NewXMLMerger(XMLMergerOptions{LegacySupport: true}).Merge(t.Context(), f.triple, mapResolver{"X": "v"})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusWritten, outcome.Status)
	assert.Equal(t, "v", parseXMLFile(t, f.triple.Workspace).Root().SelectElement("value").Text())
}

func TestXMLMergerWorkspaceWithoutUpdateIsUntouched(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Setup, `<root><value>setup</value></root>`)
	writeFile(t, f.triple.Workspace, `<root>  <value>mine</value></root>`)

	outcome, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusSkipped, outcome.Status)
	assert.Equal(t, `<root>  <value>mine</value></root>`, readFile(t, f.triple.Workspace))
}

func TestXMLMergerLegacyRoot(t *testing.T) {
	tests := []struct {
		name      string
		legacy    bool
		setup     string
		workspace string
		want      []string
	}{
		{
			name:      "existing workspace is overridden",
			legacy:    true,
			workspace: `<root><b/></root>`,
			want:      []string{"a"},
		},
		{
			name:      "existing workspace is combined without legacy support",
			legacy:    false,
			workspace: `<root><b/></root>`,
			want:      []string{"b", "a"},
		},
		{
			name:   "first creation keeps setup",
			legacy: true,
			setup:  `<root><s/></root>`,
			want:   []string{"s"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newXMLFixture(t)
			writeFile(t, f.triple.Update, `<root><a/></root>`)
			if tt.setup != "" {
				writeFile(t, f.triple.Setup, tt.setup)
			}
			if tt.workspace != "" {
				writeFile(t, f.triple.Workspace, tt.workspace)
			}
			_, err := NewXMLMerger(XMLMergerOptions{LegacySupport: tt.legacy}).Merge(t.Context(), f.triple, mapResolver{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, childTags(parseXMLFile(t, f.triple.Workspace).Root()))
		})
	}
}

func TestXMLMergerRootMismatch(t *testing.T) {
	t.Run("existing workspace is skipped", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Update, `<other `+mergeNS+`/>`)
		writeFile(t, f.triple.Workspace, `<root/>`)

		outcome, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
		require.NoError(t, err)
		assert.Equal(t, types.MergeStatusSkipped, outcome.Status)
		assert.Equal(t, `<root/>`, readFile(t, f.triple.Workspace))
	})

	t.Run("first creation keeps resolved setup", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Setup, `<setuproot><s>$[X]</s></setuproot>`)
		writeFile(t, f.triple.Update, `<other `+mergeNS+`><v>2</v></other>`)

		outcome, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{"X": "1"})
		require.NoError(t, err)
		assert.Equal(t, types.MergeStatusWritten, outcome.Status)
		root := parseXMLFile(t, f.triple.Workspace).Root()
		assert.Equal(t, "setuproot", root.Tag)
		assert.Equal(t, []string{"s"}, childTags(root))
		assert.Equal(t, "1", root.SelectElement("s").Text())
	})
}

func TestXMLMergerWrapsStrategyFailures(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+`><a merge:strategy="bogus"/></root>`)
	writeFile(t, f.triple.Workspace, `<root><a/></root>`)

	outcome, err := NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.Error(t, err)
	assert.True(t, outcome.Failed())

	var mergeErr *types.MergeError
	require.True(t, errors.As(err, &mergeErr))
	assert.Equal(t, "/root/a", mergeErr.Location)
	assert.Equal(t, f.triple.Workspace, mergeErr.File)
	assert.Equal(t, `<root><a/></root>`, readFile(t, f.triple.Workspace))
}

func TestXMLMergerFailsOnAmbiguousMatchWhenConfigured(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Update, `<root `+mergeNS+`><item>new</item></root>`)
	writeFile(t, f.triple.Workspace, `<root><item>1</item><item>2</item></root>`)

	_, err := NewXMLMerger(XMLMergerOptions{FailOnAmbiguousMerge: true}).Merge(t.Context(), f.triple, mapResolver{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 matches found")

	_, err = NewXMLMerger(XMLMergerOptions{}).Merge(t.Context(), f.triple, mapResolver{})
	require.NoError(t, err)
	items := parseXMLFile(t, f.triple.Workspace).Root().SelectElements("item")
	require.Len(t, items, 2)
	assert.Equal(t, "new", items[0].Text())
	assert.Equal(t, "2", items[1].Text())
}

func TestXMLMergerInverseMerge(t *testing.T) {
	update := `<root ` + mergeNS + `><option name="path" value="$[IDE_HOME]/x"/><option name="color" value="red"/></root>`
	workspace := `<root><option name="path" value="/ide/x"/><option name="color" value="blue"/><option name="new" value="/ide/new"/></root>`
	resolver := mapResolver{"IDE_HOME": "/ide"}

	t.Run("updates shared values", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Update, update)
		writeFile(t, f.triple.Workspace, workspace)

		outcome, err := NewXMLMerger(XMLMergerOptions{}).InverseMerge(t.Context(), f.triple.Workspace, resolver, false, f.triple.Update)
		require.NoError(t, err)
		assert.Equal(t, types.MergeStatusWritten, outcome.Status)

		written := readFile(t, f.triple.Update)
		assert.Contains(t, written, `value="$[IDE_HOME]/x"`)
		assert.Contains(t, written, `value="blue"`)
		assert.NotContains(t, written, `name="new"`)
		assert.Contains(t, written, MergeNamespaceURI)
	})

	t.Run("adds new elements", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Update, update)
		writeFile(t, f.triple.Workspace, workspace)

		_, err := NewXMLMerger(XMLMergerOptions{}).InverseMerge(t.Context(), f.triple.Workspace, resolver, true, f.triple.Update)
		require.NoError(t, err)

		options := parseXMLFile(t, f.triple.Update).Root().SelectElements("option")
		require.Len(t, options, 3)
		assert.Equal(t, "new", options[2].SelectAttrValue("name", ""))
		assert.Equal(t, "$[IDE_HOME]/new", options[2].SelectAttrValue("value", ""))
	})

	t.Run("unchanged update is not rewritten", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Update, update)
		writeFile(t, f.triple.Workspace, `<root><option name="path" value="/ide/x"/><option name="color" value="red"/></root>`)

		outcome, err := NewXMLMerger(XMLMergerOptions{}).InverseMerge(t.Context(), f.triple.Workspace, resolver, false, f.triple.Update)
		require.NoError(t, err)
		assert.Equal(t, types.MergeStatusUnchanged, outcome.Status)
		assert.Equal(t, update, readFile(t, f.triple.Update))
	})

	t.Run("missing workspace is a no-op", func(t *testing.T) {
		f := newXMLFixture(t)
		writeFile(t, f.triple.Update, update)

		outcome, err := NewXMLMerger(XMLMergerOptions{}).InverseMerge(t.Context(), f.triple.Workspace, resolver, true, f.triple.Update)
		require.NoError(t, err)
		assert.Equal(t, types.MergeStatusSkipped, outcome.Status)
	})
}

func TestXMLMergerUpgrade(t *testing.T) {
	f := newXMLFixture(t)
	writeFile(t, f.triple.Workspace, `<root><a value="${IDE_HOME}/x">${X}</a></root>`)
	merger := NewXMLMerger(XMLMergerOptions{Upgrader: braceUpgrader{}})

	modified, err := merger.Upgrade(t.Context(), f.triple.Workspace)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, `<root><a value="$[IDE_HOME]/x">$[X]</a></root>`, readFile(t, f.triple.Workspace))

	modified, err = merger.Upgrade(t.Context(), f.triple.Workspace)
	require.NoError(t, err)
	assert.False(t, modified)
}
