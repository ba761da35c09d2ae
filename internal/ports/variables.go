package ports

// VariableResolverPort substitutes variables in scalar text values. The
// source is an origin token (usually the file path) used for diagnostics.
type VariableResolverPort interface {
	Resolve(text string, source string) string
	InverseResolve(text string, source string) string
}

// LegacyUpgraderPort rewrites legacy variable syntax into the current one.
type LegacyUpgraderPort interface {
	UpgradeLegacy(text string) string
}
