package dtsbundle

import (
	"path/filepath"
	"regexp"
	"strings"
)

// ResolvedModule is one resolver answer: either an absolute path into the
// project (or a package's declaration entry), or an external specifier the
// bundle keeps verbatim.
type ResolvedModule struct {
	Path     string
	External bool
}

type aliasRule struct {
	aliasKey string
	regExp   *regexp.Regexp
	targets  []string
}

// ModuleResolver maps import specifiers to files for the bundler's resolve
// hook. It understands relative specifiers with the TypeScript extension
// candidates, tsconfig paths aliases, baseUrl lookups, and bare package
// specifiers resolved to their declaration entries.
type ModuleResolver struct {
	cwd          string
	baseDir      string
	aliasRules   []aliasRule
	inlineAll    bool
	inlineGlobs  []GlobMatcher
	hasAllowList bool
}

// NewModuleResolver builds a resolver rooted at cwd. tsconfig may be nil.
// The policy controls which bare package specifiers are inlined into the
// bundle; everything else stays external.
func NewModuleResolver(cwd string, tsconfig *TsConfig, policy ResolvePolicy) *ModuleResolver {
	resolver := &ModuleResolver{
		cwd:          cwd,
		baseDir:      cwd,
		inlineAll:    policy.All,
		hasAllowList: len(policy.Patterns) > 0,
	}
	if resolver.hasAllowList {
		resolver.inlineGlobs = CreateGlobMatchers(policy.Patterns)
	}
	if tsconfig != nil {
		configDir := filepath.Dir(tsconfig.Path)
		if tsconfig.BaseUrl != "" {
			resolver.baseDir = filepath.Join(configDir, filepath.FromSlash(tsconfig.BaseUrl))
		} else {
			resolver.baseDir = configDir
		}
		resolver.aliasRules = compileAliasRules(tsconfig.Paths)
	}
	return resolver
}

// compileAliasRules turns tsconfig paths keys into anchored regexps, one
// capture group per wildcard.
func compileAliasRules(paths map[string][]string) []aliasRule {
	rules := make([]aliasRule, 0, len(paths))
	for alias, targets := range paths {
		pattern := "^" + strings.ReplaceAll(regexp.QuoteMeta(alias), `\*`, "(.*)") + "$"
		rules = append(rules, aliasRule{
			aliasKey: alias,
			regExp:   regexp.MustCompile(pattern),
			targets:  targets,
		})
	}
	return rules
}

// Resolve maps one specifier, imported from importerDir, to a module.
func (r *ModuleResolver) Resolve(specifier, importerDir string) (ResolvedModule, bool) {
	if isBuiltinModule(specifier) {
		return ResolvedModule{Path: specifier, External: true}, true
	}

	if strings.HasPrefix(specifier, ".") || filepath.IsAbs(specifier) {
		base := specifier
		if !filepath.IsAbs(base) {
			base = filepath.Join(importerDir, filepath.FromSlash(specifier))
		}
		if path, ok := resolveFileCandidates(base); ok {
			return ResolvedModule{Path: path}, true
		}
		return ResolvedModule{}, false
	}

	for _, rule := range r.aliasRules {
		match := rule.regExp.FindStringSubmatch(specifier)
		if match == nil {
			continue
		}
		for _, target := range rule.targets {
			substituted := target
			if len(match) > 1 {
				substituted = strings.Replace(target, "*", match[1], 1)
			}
			if path, ok := resolveFileCandidates(filepath.Join(r.baseDir, filepath.FromSlash(substituted))); ok {
				return ResolvedModule{Path: path}, true
			}
		}
	}

	// baseUrl lookup: a bare specifier may name a project file directly.
	if path, ok := resolveFileCandidates(filepath.Join(r.baseDir, filepath.FromSlash(specifier))); ok {
		return ResolvedModule{Path: path}, true
	}

	if !r.shouldInline(GetNodeModuleName(specifier)) {
		return ResolvedModule{Path: specifier, External: true}, true
	}
	if path, ok := resolvePackageTypes(specifier, importerDir); ok {
		return ResolvedModule{Path: path}, true
	}
	// No declarations found for an inlined package: keep the import so the
	// consumer's own resolution still has a chance.
	return ResolvedModule{Path: specifier, External: true}, true
}

// shouldInline applies the resolve policy to a package name.
func (r *ModuleResolver) shouldInline(pkgName string) bool {
	if r.inlineAll {
		return true
	}
	if !r.hasAllowList {
		return false
	}
	return MatchesAnyGlobMatcher(pkgName, r.inlineGlobs)
}

// Candidate extensions for a specifier without one, source preferred over
// prebuilt declarations so the emitter sees fresh input.
var resolveExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".d.ts", ".d.mts", ".d.cts"}

// resolveFileCandidates tries the TypeScript resolution dance for one base
// path: the exact file, extension candidates (with any runtime extension
// stripped first — TS permits `./x.js` for `./x.ts`), then index files.
func resolveFileCandidates(base string) (string, bool) {
	if hasDeclarationExtension(base) || hasSourceExtension(base) {
		if fileExists(base) {
			return base, true
		}
	}

	stem := stripJsExtension(base)
	for _, ext := range resolveExtensions {
		if candidate := stem + ext; fileExists(candidate) {
			return candidate, true
		}
	}
	for _, ext := range resolveExtensions {
		if candidate := filepath.Join(base, "index"+ext); fileExists(candidate) {
			return candidate, true
		}
	}
	return "", false
}

func hasDeclarationExtension(path string) bool {
	return strings.HasSuffix(path, ".d.ts") || strings.HasSuffix(path, ".d.mts") || strings.HasSuffix(path, ".d.cts")
}

func hasSourceExtension(path string) bool {
	if hasDeclarationExtension(path) {
		return false
	}
	switch filepath.Ext(path) {
	case ".ts", ".tsx", ".mts", ".cts":
		return true
	}
	return false
}
