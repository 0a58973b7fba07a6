package dtsbundle

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"gotest.tools/v3/assert"
)

// passthroughEmitter treats every source file as already being declaration
// text, and its tree-shake pass as the identity. Tests write declaration
// bodies into .ts files and skip the toolchain.
type passthroughEmitter struct{}

func (passthroughEmitter) EmitFile(path string) (string, []Diagnostic, error) {
	content, err := os.ReadFile(path)
	return string(content), nil, err
}

func (passthroughEmitter) EmitText(fileName, source string) (string, []Diagnostic, error) {
	return source, nil, nil
}

func (passthroughEmitter) Close() error { return nil }

func testOptions(cwd string) Options {
	return Options{
		Cwd:         cwd,
		fileEmitter: passthroughEmitter{},
		textEmitter: passthroughEmitter{},
	}
}

func TestGenerateSingleInterface(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export interface User { id: number; name: string }\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 1)

	out := result.Files[0]
	assert.Equal(t, out.Kind, OutputEntryPoint)
	assert.Equal(t, out.Extension, ".d.ts")
	assert.Equal(t, out.FileName, "index")
	if !strings.Contains(out.Code, "interface User { id: number; name: string }") {
		t.Fatalf("expected interface body, got:\n%s", out.Code)
	}
	if !strings.Contains(out.Code, "User") || !strings.Contains(out.Code, "export {") {
		t.Fatalf("expected User export, got:\n%s", out.Code)
	}
}

func TestGenerateInlinesAcrossFiles(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "user.ts"),
		"export interface User {\n  id: number;\n}\nexport interface Unused {\n  gone: true;\n}\n")
	writeFile(t, filepath.Join(tmp, "src", "index.ts"),
		"import { User } from './user';\nexport type Id = User[\"id\"];\nexport { User };\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 1)

	code := result.Files[0].Code
	if !strings.Contains(code, "interface User") {
		t.Fatalf("expected User inlined, got:\n%s", code)
	}
	if strings.Contains(code, "Unused") {
		t.Fatalf("unreferenced declarations must be tree-shaken, got:\n%s", code)
	}
	if !strings.Contains(code, "type Id = User[\"id\"];") {
		t.Fatalf("expected Id alias, got:\n%s", code)
	}
}

func TestGenerateDynamicImportInlined(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "m.ts"), "export interface User {\n  id: number;\n}\n")
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export type U = import('./m').User;\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 1)

	code := result.Files[0].Code
	if !strings.Contains(code, "interface User") {
		t.Fatalf("expected User inlined from ./m, got:\n%s", code)
	}
	if !strings.Contains(code, "type U = User;") {
		t.Fatalf("expected alias collapsed to the inlined name, got:\n%s", code)
	}
	if strings.Contains(code, "import(") {
		t.Fatalf("dynamic import must not survive, got:\n%s", code)
	}
}

func TestGenerateDynamicImportExternalBuiltin(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export type B = import('node:buffer').Buffer;\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 1)

	code := result.Files[0].Code
	if !strings.Contains(code, `from "node:buffer";`) {
		t.Fatalf("expected builtin import preserved, got:\n%s", code)
	}
	if !strings.Contains(code, "import { Buffer as Buffer_") {
		t.Fatalf("expected hashed import alias, got:\n%s", code)
	}
	if !strings.Contains(code, "type B = Buffer_") {
		t.Fatalf("expected alias reference, got:\n%s", code)
	}
	assert.DeepEqual(t, result.External, []string{"node:buffer"})
}

func TestGenerateNamespaceReExport(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "models.ts"), "export interface User {\n  id: number;\n}\n")
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "import * as models from './models';\nexport { models };\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 1)

	code := result.Files[0].Code
	if !strings.Contains(code, "declare namespace models {") {
		t.Fatalf("expected synthesised namespace reconstructed, got:\n%s", code)
	}
	if !strings.Contains(code, "export { User };") {
		t.Fatalf("expected namespace members listed, got:\n%s", code)
	}
	if !strings.Contains(code, "export { models };") {
		t.Fatalf("expected user-facing namespace export, got:\n%s", code)
	}
	if strings.Contains(code, "_exports") || strings.Contains(code, "__export") {
		t.Fatalf("bundler internals must not leak, got:\n%s", code)
	}
}

func TestGenerateDefaultExport(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export default function (): number;\n")

	result, err := GenerateDts([]string{"src/index.ts"}, testOptions(tmp))
	assert.NilError(t, err)
	code := result.Files[0].Code
	if strings.Contains(code, "export default") {
		t.Fatalf("default must be normalised to a named alias export, got:\n%s", code)
	}
	if !strings.Contains(code, "as default") {
		t.Fatalf("expected `as default` specifier, got:\n%s", code)
	}
}

func TestGenerateEntryValidation(t *testing.T) {
	_, err := GenerateDts([]string{"no-such-dir/*.ts"}, testOptions(t.TempDir()))
	if !errors.Is(err, ErrNoEntry) {
		t.Fatalf("expected ErrNoEntry, got %v", err)
	}
}

func TestGenerateInferTypesNeedsTsconfig(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export interface A {}\n")

	options := testOptions(tmp)
	options.InferTypes = true
	options.fileEmitter = nil
	_, err := GenerateDts([]string{"src/index.ts"}, options)
	if !errors.Is(err, ErrMissingTsconfig) {
		t.Fatalf("expected ErrMissingTsconfig, got %v", err)
	}
}

// emptyTextEmitter simulates a tree-shake pass that leaves nothing: the chunk
// must be elided silently.
type emptyTextEmitter struct{}

func (emptyTextEmitter) EmitText(fileName, source string) (string, []Diagnostic, error) {
	return "", nil, nil
}

func (emptyTextEmitter) Close() error { return nil }

func TestGenerateElidesEmptyChunks(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"), "export interface A {}\n")

	options := testOptions(tmp)
	options.textEmitter = emptyTextEmitter{}
	result, err := GenerateDts([]string{"src/index.ts"}, options)
	assert.NilError(t, err)
	assert.Equal(t, len(result.Files), 0)
}

func TestGenerateMinify(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "index.ts"),
		"export interface LongInterfaceName {\n  id: number;\n}\n")

	options := testOptions(tmp)
	options.Minify = true
	result, err := GenerateDts([]string{"src/index.ts"}, options)
	assert.NilError(t, err)
	code := result.Files[0].Code
	if !strings.Contains(code, "as LongInterfaceName") {
		t.Fatalf("minified output must keep the external name, got:\n%s", code)
	}
	if strings.Contains(code, "interface LongInterfaceName") {
		t.Fatalf("local name must be shortened, got:\n%s", code)
	}
}

func TestGenerateNodeModulesPassthrough(t *testing.T) {
	tmp := t.TempDir()
	pkgDir := filepath.Join(tmp, "node_modules", "tiny-lib")
	writeFile(t, filepath.Join(pkgDir, "package.json"), `{"name":"tiny-lib","types":"index.d.ts"}`)
	writeFile(t, filepath.Join(pkgDir, "index.d.ts"), "export interface Tiny {\n  bit: number;\n}\n")
	writeFile(t, filepath.Join(tmp, "src", "index.ts"),
		"import { Tiny } from 'tiny-lib';\nexport type T = Tiny;\n")

	options := testOptions(tmp)
	options.Resolve = ResolvePolicy{All: true}
	result, err := GenerateDts([]string{"src/index.ts"}, options)
	assert.NilError(t, err)
	code := result.Files[0].Code
	if !strings.Contains(code, "interface Tiny") {
		t.Fatalf("expected package declaration inlined, got:\n%s", code)
	}
	if strings.Contains(code, "tiny-lib") {
		t.Fatalf("inlined package must not be imported, got:\n%s", code)
	}
}

func TestGenerateSplitting(t *testing.T) {
	tmp := t.TempDir()
	writeFile(t, filepath.Join(tmp, "src", "shared.ts"), "export interface Shared {\n  n: number;\n}\n")
	writeFile(t, filepath.Join(tmp, "src", "a.ts"), "import { Shared } from './shared';\nexport type A = Shared;\n")
	writeFile(t, filepath.Join(tmp, "src", "b.ts"), "import { Shared } from './shared';\nexport type B = Shared;\n")

	options := testOptions(tmp)
	options.Splitting = true
	result, err := GenerateDts([]string{"src/a.ts", "src/b.ts"}, options)
	assert.NilError(t, err)

	entries, chunks := 0, 0
	for _, file := range result.Files {
		switch file.Kind {
		case OutputEntryPoint:
			entries++
		case OutputChunk:
			chunks++
			assert.Equal(t, file.Extension, ".d.ts")
		}
	}
	assert.Equal(t, entries, 2)
	if chunks == 0 {
		t.Fatalf("expected a shared chunk, got files: %+v", result.Files)
	}
	// Entry imports of the shared chunk must be extensionless.
	for _, file := range result.Files {
		if file.Kind == OutputEntryPoint && strings.Contains(file.Code, ".js\"") {
			t.Fatalf("runtime extension leaked into %s:\n%s", file.FileName, file.Code)
		}
	}
}
