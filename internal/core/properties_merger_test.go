package core

import (
	"path/filepath"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/magiconair/properties"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"workspace-merge/internal/types"
)

func newPropertiesTriple(t *testing.T) types.Triple {
	dir := t.TempDir()
	return types.Triple{
		Setup:     filepath.Join(dir, "setup", "ide.properties"),
		Update:    filepath.Join(dir, "update", "ide.properties"),
		Workspace: filepath.Join(dir, "workspace", "ide.properties"),
	}
}

func readProperties(t *testing.T, path string) map[string]string {
	t.Helper()
	props, err := loadProperties([]byte(readFile(t, path)), path)
	require.NoError(t, err)
	return props.Map()
}

func TestPropertiesMergerOverlaysUpdate(t *testing.T) {
	triple := newPropertiesTriple(t)
	writeFile(t, triple.Workspace, "b=2\na=1\n")
	writeFile(t, triple.Update, "b=3\nc=$[X]\n")
	merger := NewPropertiesMerger(nil)

	outcome, err := merger.Merge(t.Context(), triple, mapResolver{"X": "v"})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusWritten, outcome.Status)
	assert.Equal(t, map[string]string{"a": "1", "b": "3", "c": "v"}, readProperties(t, triple.Workspace))
	written := readFile(t, triple.Workspace)

	outcome, err = merger.Merge(t.Context(), triple, mapResolver{"X": "v"})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusUnchanged, outcome.Status)
	assert.Equal(t, written, readFile(t, triple.Workspace))
}

func TestPropertiesMergerMaterializesSetupWithComments(t *testing.T) {
	triple := newPropertiesTriple(t)
	writeFile(t, triple.Setup, "# where the IDE lives\nhome=${X}\n")

	outcome, err := NewPropertiesMerger(nil).Merge(t.Context(), triple, mapResolver{"X": "v"})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusWritten, outcome.Status)
	assert.Equal(t, map[string]string{"home": "v"}, readProperties(t, triple.Workspace))
	assert.Contains(t, readFile(t, triple.Workspace), "# where the IDE lives")
}

func TestPropertiesMergerNothingToDo(t *testing.T) {
	triple := newPropertiesTriple(t)

	outcome, err := NewPropertiesMerger(nil).Merge(t.Context(), triple, mapResolver{})
	require.NoError(t, err)
	assert.Equal(t, types.MergeStatusSkipped, outcome.Status)
	assert.NoFileExists(t, triple.Workspace)
}

func TestResolveProperties(t *testing.T) {
	props := newProperties()
	require.NoError(t, setProperty(props, "home", "$[IDE_HOME]/bin"))
	require.NoError(t, setProperty(props, "fixed", "x"))

	changed, err := resolveProperties(props, func(text string) string { return mapResolver{"IDE_HOME": "/ide"}.Resolve(text, "") })
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, map[string]string{"home": "/ide/bin", "fixed": "x"}, props.Map())

	changed, err = resolveProperties(props, func(text string) string { return text })
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestResolvePropertiesReportsRejectedValue(t *testing.T) {
	props := properties.NewProperties()
	require.NoError(t, setProperty(props, "a", "$[A]"))

	_, err := resolveProperties(props, func(string) string { return "${a}" })
	require.Error(t, err)
	assert.Equal(t, errbuilder.CodeInvalidArgument, errbuilder.CodeOf(err))
	assert.Equal(t, "$[A]", props.GetString("a", ""))
}

func TestPropertiesMergerInverseMerge(t *testing.T) {
	tests := []struct {
		name             string
		addNewProperties bool
		wantStatus       types.MergeStatus
		want             map[string]string
	}{
		{
			name:       "new keys are ignored",
			wantStatus: types.MergeStatusUnchanged,
			want:       map[string]string{"home": "$[IDE_HOME]/x", "only": "u"},
		},
		{
			name:             "new keys are added",
			addNewProperties: true,
			wantStatus:       types.MergeStatusWritten,
			want:             map[string]string{"home": "$[IDE_HOME]/x", "only": "u", "k": "1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			triple := newPropertiesTriple(t)
			writeFile(t, triple.Update, "home=$[IDE_HOME]/x\nonly=u\n")
			writeFile(t, triple.Workspace, "home=/ide/x\nk=1\n")

			outcome, err := NewPropertiesMerger(nil).InverseMerge(t.Context(), triple.Workspace, mapResolver{"IDE_HOME": "/ide"}, tt.addNewProperties, triple.Update)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, outcome.Status)
			assert.Equal(t, tt.want, readProperties(t, triple.Update))
		})
	}
}

func TestPropertiesMergerInverseMergeTakesWorkspaceValue(t *testing.T) {
	triple := newPropertiesTriple(t)
	writeFile(t, triple.Update, "home=$[IDE_HOME]/x\n")
	writeFile(t, triple.Workspace, "home=/ide/y\n")

	_, err := NewPropertiesMerger(nil).InverseMerge(t.Context(), triple.Workspace, mapResolver{"IDE_HOME": "/ide"}, false, triple.Update)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"home": "$[IDE_HOME]/y"}, readProperties(t, triple.Update))
}

func TestPropertiesMergerUpgrade(t *testing.T) {
	triple := newPropertiesTriple(t)
	writeFile(t, triple.Workspace, "# keep me\nhome=${IDE_HOME}\n")
	merger := NewPropertiesMerger(braceUpgrader{})

	modified, err := merger.Upgrade(t.Context(), triple.Workspace)
	require.NoError(t, err)
	assert.True(t, modified)
	assert.Equal(t, "# keep me\nhome=$[IDE_HOME]\n", readFile(t, triple.Workspace))

	modified, err = merger.Upgrade(t.Context(), triple.Workspace)
	require.NoError(t, err)
	assert.False(t, modified)
}
