package dtsbundle

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// checkerEmitter serves declaration text from a shadow tree that a
// whole-program compiler run pre-emitted into a scoped temp directory. This
// is the inferTypes path: slower than per-file isolated emission, but types
// may be inferred across files.
type checkerEmitter struct {
	rootDir string
	outDir  string
}

// NewCheckerEmitter runs the project compiler (tsc, or the tsgo native
// preview when requested) with declaration-only emission into a fresh temp
// directory. The directory is removed by Close on every exit path.
func NewCheckerEmitter(cwd, tsconfigPath string, tsgo bool) (*checkerEmitter, error) {
	outDir, err := os.MkdirTemp("", "dts-bundle-*")
	if err != nil {
		return nil, errors.Wrap(err, "create checker output dir")
	}

	binary := checkerBinary(cwd, tsgo)
	args := []string{
		"--project", tsconfigPath,
		"--declaration", "--emitDeclarationOnly",
		"--noEmit", "false",
		"--outDir", outDir,
		"--rootDir", cwd,
	}
	cmd := exec.Command(binary, args...)
	cmd.Dir = cwd
	output, runErr := cmd.CombinedOutput()

	emitter := &checkerEmitter{rootDir: cwd, outDir: outDir}
	if runErr != nil && !emitter.hasOutput() {
		_ = os.RemoveAll(outDir)
		return nil, errors.Wrapf(runErr, "declaration pre-emit failed:\n%s", strings.TrimSpace(string(output)))
	}
	// Type errors with declarations still emitted: the checker noise is the
	// project's problem, the shadow tree is usable.
	return emitter, nil
}

// checkerBinary prefers the project-local compiler over a global one.
func checkerBinary(cwd string, tsgo bool) string {
	name := "tsc"
	if tsgo {
		name = "tsgo"
	}
	for _, nmDir := range nodeModulesDirs(cwd) {
		local := filepath.Join(nmDir, ".bin", name)
		if fileExists(local) {
			return local
		}
	}
	return name
}

func (c *checkerEmitter) hasOutput() bool {
	found := false
	_ = filepath.WalkDir(c.outDir, func(path string, entry os.DirEntry, err error) error {
		if err == nil && !entry.IsDir() && hasDeclarationExtension(path) {
			found = true
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

// EmitFile maps a source path into the shadow tree and reads the declaration
// the checker left there.
func (c *checkerEmitter) EmitFile(path string) (string, []Diagnostic, error) {
	rel, err := filepath.Rel(c.rootDir, path)
	if err != nil {
		return "", nil, errors.Wrapf(err, "map %s into shadow tree", path)
	}
	shadow := filepath.Join(c.outDir, declarationShadowName(rel))
	content, err := os.ReadFile(shadow)
	if err != nil {
		return "", nil, errors.Wrapf(err, "no pre-emitted declaration for %s", path)
	}
	return string(content), nil, nil
}

// declarationShadowName rewrites a source-relative path to the name the
// compiler emits for it.
func declarationShadowName(rel string) string {
	switch {
	case strings.HasSuffix(rel, ".d.ts"), strings.HasSuffix(rel, ".d.mts"), strings.HasSuffix(rel, ".d.cts"):
		return rel
	case strings.HasSuffix(rel, ".mts"):
		return strings.TrimSuffix(rel, ".mts") + ".d.mts"
	case strings.HasSuffix(rel, ".cts"):
		return strings.TrimSuffix(rel, ".cts") + ".d.cts"
	case strings.HasSuffix(rel, ".tsx"):
		return strings.TrimSuffix(rel, ".tsx") + ".d.ts"
	default:
		return strings.TrimSuffix(rel, ".ts") + ".d.ts"
	}
}

func (c *checkerEmitter) Close() error {
	return os.RemoveAll(c.outDir)
}
