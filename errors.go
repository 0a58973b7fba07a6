package dtsbundle

import "github.com/cockroachdb/errors"

// Sentinel error kinds. Call sites wrap these with context; callers match
// them with errors.Is.
var (
	// ErrNoEntry: no entrypoint resolved to a TypeScript source.
	ErrNoEntry = errors.New("no entrypoint resolves to a TypeScript source file")

	// ErrMissingTsconfig: inferTypes requested without a project config.
	ErrMissingTsconfig = errors.WithHint(
		errors.New("type inference requires a project config"),
		"create a tsconfig.json or pass one explicitly via the preferred tsconfig option")

	// ErrInvalidDynamicImport: a dynamic type import that the expander's
	// grammar rejects. Fatal for the affected file.
	ErrInvalidDynamicImport = errors.New("invalid dynamic import expression")

	// ErrBundle: the bundler reported errors; surfaced verbatim.
	ErrBundle = errors.New("bundle failed")

	// ErrEmptyOutput: the final tree-shake pass produced errors and no code
	// for an entry point.
	ErrEmptyOutput = errors.New("no declaration output produced for entry")

	// ErrTypeScriptVersion: the installed typescript package cannot emit
	// isolated declarations.
	ErrTypeScriptVersion = errors.WithHint(
		errors.New("installed typescript package is too old"),
		"isolated declaration emission needs typescript >= 5.5.0")
)
