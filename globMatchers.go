package dtsbundle

import (
	"strings"

	"github.com/gobwas/glob"
)

// GlobMatcher wraps one compiled allow-list pattern. Patterns use forward
// slashes regardless of platform; scoped package names keep their `/`.
type GlobMatcher struct {
	globPattern glob.Glob
	inputString string
}

// CreateGlobMatchers compiles resolve allow-list patterns. A plain name
// without wildcards matches that exact package; `@scope/*` style patterns
// match across the separator-free segments of a package name.
func CreateGlobMatchers(patterns []string) []GlobMatcher {
	matchers := make([]GlobMatcher, 0, len(patterns))
	for _, pattern := range patterns {
		normalized := strings.TrimSpace(pattern)
		if normalized == "" {
			continue
		}
		matchers = append(matchers, GlobMatcher{
			globPattern: glob.MustCompile(normalized, '/'),
			inputString: normalized,
		})
	}
	return matchers
}

// MatchesAnyGlobMatcher reports whether input matches any compiled pattern.
func MatchesAnyGlobMatcher(input string, matchers []GlobMatcher) bool {
	for _, matcher := range matchers {
		if matcher.globPattern.Match(input) {
			return true
		}
	}
	return false
}
