package dtsbundle

import (
	"regexp"
	"strings"
)

// The lexical rule set. These are deliberately dumb patterns over statement
// text: anything that needs structure goes through the parser instead.
var (
	importTypeRe = regexp.MustCompile(`^(\s*)import\s+type\s`)
	exportTypeRe = regexp.MustCompile(`^(\s*)export\s+type\s`)

	// Named specifier groups of an import/export statement, with and without
	// a preceding default specifier.
	importExportNamesRe       = regexp.MustCompile(`(import|export)\s*(\{[^}]*\})`)
	importExportWithDefaultRe = regexp.MustCompile(`(import)\s+([A-Za-z_$][A-Za-z0-9_$]*)\s*,\s*(\{[^}]*\})`)

	// The `type ` modifier on a single specifier inside braces.
	typeWordRe = regexp.MustCompile(`\btype\s+`)

	// One lexical unit of declaration text. Longer units first so that
	// comments, strings and template literals win over their own punctuation.
	tokenizeRe = regexp.MustCompile(`/\*[\s\S]*?\*/|//[^\n]*|"(?:[^"\\\n]|\\.)*"|'(?:[^'\\\n]|\\.)*'|` +
		"`(?:[^`\\\\]|\\\\[\\s\\S])*`" +
		`|[A-Za-z_$][A-Za-z0-9_$]*|\s+|[\s\S]`)

	// Fallback identifier heuristic: looks like an identifier and carries a
	// capital letter somewhere.
	capitalLetterRe  = regexp.MustCompile(`[A-Z]`)
	identifierWordRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

	// Third-party importer detection.
	nodeModulesRe = regexp.MustCompile(`(^|[/\\])node_modules[/\\]`)

	// Runtime extensions on bundled module specifiers. The dot is escaped on
	// purpose: the unanchored-prefix variant would also strip things like
	// "foo.somejs".
	jsExtensionSuffixRe = regexp.MustCompile(`\.(mjs|cjs|js)$`)
)

// jsifyImportExport turns a type-only import/export statement into its plain
// value form: `import type`/`export type` lose the `type` keyword, and each
// `type X` specifier inside braces loses its modifier. Structure is otherwise
// untouched so the bundler sees an ordinary module-graph edge.
func jsifyImportExport(text string) string {
	text = importTypeRe.ReplaceAllString(text, "${1}import ")
	text = exportTypeRe.ReplaceAllString(text, "${1}export ")
	text = importExportWithDefaultRe.ReplaceAllStringFunc(text, stripSpecifierTypeWords)
	text = importExportNamesRe.ReplaceAllStringFunc(text, stripSpecifierTypeWords)
	return text
}

func stripSpecifierTypeWords(match string) string {
	open := strings.IndexByte(match, '{')
	if open < 0 {
		return match
	}
	return match[:open] + typeWordRe.ReplaceAllString(match[open:], "")
}

// probablyTypeReference reports whether an unknown word token still looks like
// a reference to a type: identifier syntax plus at least one capital letter.
// Used only as a fallback for namespace-style accesses that escape the
// referenced-names set.
func probablyTypeReference(token string) bool {
	return identifierWordRe.MatchString(token) && capitalLetterRe.MatchString(token)
}

// isNodeModulesPath reports whether the file lives under a node_modules
// directory and should therefore bypass declaration generation.
func isNodeModulesPath(path string) bool {
	return nodeModulesRe.MatchString(path)
}

// stripJsExtension removes a trailing .js/.mjs/.cjs from a module specifier.
// Applying it twice equals applying it once.
func stripJsExtension(specifier string) string {
	return jsExtensionSuffixRe.ReplaceAllString(specifier, "")
}
