package policies

import (
	"path/filepath"
	"sort"
	"strings"

	"workspace-merge/internal/types"
)

var defaultExtensionFormats = map[string]types.FileFormat{
	"properties":   types.FileFormatProperties,
	"prefs":        types.FileFormatProperties,
	"xml":          types.FileFormatXML,
	"xmi":          types.FileFormatXML,
	"launch":       types.FileFormatXML,
	"json":         types.FileFormatJSON,
	"name":         types.FileFormatText,
	"editorconfig": types.FileFormatText,
	"txt":          types.FileFormatText,
}

type MergeRouting struct {
	extensions map[string]types.FileFormat
}

func NewMergeRouting() MergeRouting {
	extensions := make(map[string]types.FileFormat, len(defaultExtensionFormats))
	for ext, format := range defaultExtensionFormats {
		extensions[ext] = format
	}
	return MergeRouting{extensions: extensions}
}

// FormatFor returns the format registered for the extension of the given
// file name, or FileFormatFallback.
func (r MergeRouting) FormatFor(path string) types.FileFormat {
	ext := Extension(path)
	if ext == "" {
		return types.FileFormatFallback
	}
	if format, ok := r.extensions[ext]; ok {
		return format
	}
	return types.FileFormatFallback
}

// Extensions lists the registered extensions in sorted order.
func (r MergeRouting) Extensions() []string {
	result := make([]string, 0, len(r.extensions))
	for ext := range r.extensions {
		result = append(result, ext)
	}
	sort.Strings(result)
	return result
}

// Extension returns the text after the last dot of the base name. A leading
// dot counts, so ".editorconfig" yields "editorconfig".
func Extension(path string) string {
	name := filepath.Base(path)
	idx := strings.LastIndex(name, ".")
	if idx < 0 || idx == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}
