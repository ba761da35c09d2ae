package adapters

import (
	"errors"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/magiconair/properties"
	"github.com/rs/zerolog/log"
)

// minInverseValueLen keeps short values such as "true" or "1" from being
// turned into variable references.
const minInverseValueLen = 4

var (
	variablePattern       = regexp.MustCompile(`\$\[([A-Za-z0-9_.\-]+)\]`)
	legacyVariablePattern = regexp.MustCompile(`\$\{([A-Za-z0-9_.\-]+)\}`)
)

var legacyVariableNames = map[string]string{
	"DEVON_IDE_HOME": "IDE_HOME",
	"DEVON_HOME":     "IDE_HOME",
}

type VariablesOptions struct {
	// Config holds variables from the configuration file. They take
	// precedence over everything else.
	Config map[string]string
	// PropertiesFiles are read in order; earlier files win. Missing files
	// are skipped.
	PropertiesFiles []string
	// Environ is the process environment in KEY=VALUE form. It has the
	// lowest precedence and is never used for inverse resolution.
	Environ []string
	// Fixed variables resolve like Config entries with lower precedence but
	// are never used for inverse resolution.
	Fixed  map[string]string
	Legacy bool
}

// VariablesAdapter resolves $[NAME] references, and ${NAME} when legacy
// syntax is enabled. Unknown variables are left as they are.
type VariablesAdapter struct {
	values  map[string]string
	legacy  bool
	inverse *strings.Replacer
}

func NewVariablesAdapter(options VariablesOptions) (*VariablesAdapter, error) {
	values := map[string]string{}
	for _, entry := range options.Environ {
		if key, value, ok := strings.Cut(entry, "="); ok && key != "" {
			values[key] = value
		}
	}
	invertible := map[string]string{}
	for i := len(options.PropertiesFiles) - 1; i >= 0; i-- {
		loaded, err := loadVariablesFile(options.PropertiesFiles[i])
		if err != nil {
			return nil, err
		}
		for key, value := range loaded {
			values[key] = value
			invertible[key] = value
		}
	}
	for key, value := range options.Fixed {
		values[strings.ToUpper(key)] = value
	}
	for key, value := range options.Config {
		name := strings.ToUpper(key)
		values[name] = value
		invertible[name] = value
	}
	return &VariablesAdapter{
		values:  values,
		legacy:  options.Legacy,
		inverse: newInverseReplacer(invertible),
	}, nil
}

func (a *VariablesAdapter) Get(name string) (string, bool) {
	value, ok := a.values[name]
	return value, ok
}

func (a *VariablesAdapter) Resolve(text string, source string) string {
	if !strings.Contains(text, "$") {
		return text
	}
	text = a.replace(variablePattern, text, source)
	if a.legacy {
		text = a.replace(legacyVariablePattern, text, source)
	}
	return text
}

func (a *VariablesAdapter) replace(pattern *regexp.Regexp, text string, source string) string {
	return pattern.ReplaceAllStringFunc(text, func(match string) string {
		name := pattern.FindStringSubmatch(match)[1]
		if value, ok := a.values[name]; ok {
			return value
		}
		log.Debug().Str("variable", name).Str("source", source).Msg("undefined variable")
		return match
	})
}

func (a *VariablesAdapter) InverseResolve(text string, _ string) string {
	if a.inverse == nil {
		return text
	}
	return a.inverse.Replace(text)
}

// UpgradeLegacy rewrites ${NAME} into $[NAME] and renames variables that
// were replaced over time.
func (a *VariablesAdapter) UpgradeLegacy(text string) string {
	text = legacyVariablePattern.ReplaceAllStringFunc(text, func(match string) string {
		return "$[" + legacyVariablePattern.FindStringSubmatch(match)[1] + "]"
	})
	return variablePattern.ReplaceAllStringFunc(text, func(match string) string {
		name := variablePattern.FindStringSubmatch(match)[1]
		if renamed, ok := legacyVariableNames[name]; ok {
			return "$[" + renamed + "]"
		}
		return match
	})
}

func newInverseReplacer(values map[string]string) *strings.Replacer {
	names := make([]string, 0, len(values))
	for name, value := range values {
		if len(value) >= minInverseValueLen {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil
	}
	sort.Slice(names, func(i, j int) bool {
		if len(values[names[i]]) != len(values[names[j]]) {
			return len(values[names[i]]) > len(values[names[j]])
		}
		return names[i] < names[j]
	})
	pairs := make([]string, 0, 2*len(names))
	for _, name := range names {
		pairs = append(pairs, values[name], "$["+name+"]")
	}
	return strings.NewReplacer(pairs...)
}

// loadVariablesFile reads an ide.properties style file, which may prefix
// entries with "export".
func loadVariablesFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read variables from " + path).
			WithCause(err)
	}
	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimPrefix(strings.TrimLeft(line, " \t"), "export ")
	}
	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}
	props, err := loader.LoadBytes([]byte(strings.Join(lines, "\n")))
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse variables in " + path).
			WithCause(err)
	}
	return props.Map(), nil
}
