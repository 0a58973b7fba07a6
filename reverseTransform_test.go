package dtsbundle

import (
	"strings"
	"testing"
)

func TestReverseTokenArray(t *testing.T) {
	fakeJs := `var User = ["interface ", User, " { id: number; }"];
export { User };
`
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "interface User { id: number; }") {
		t.Fatalf("expected reconstructed interface, got:\n%s", dts)
	}
	if !strings.Contains(dts, "export { User };") {
		t.Fatalf("expected export clause, got:\n%s", dts)
	}
}

func TestReverseUnescapesTokens(t *testing.T) {
	source := "export interface User {\n\tid: number;\n}"
	fakeJs, err := ForwardTransform(source)
	if err != nil {
		t.Fatalf("forward transform: %v", err)
	}
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "interface User {\n\tid: number;\n}") {
		t.Fatalf("expected whitespace restored, got:\n%q", dts)
	}
}

// Forward then reverse over canonical declarations is the identity, modulo
// erased type-only modifiers and single-newline statement separation.
func TestForwardReverseIdentity(t *testing.T) {
	source := `// Keep me.
interface User {
  id: number;
}
type Id = User["id"];
export { User, Id };
`
	fakeJs, err := ForwardTransform(source)
	if err != nil {
		t.Fatalf("forward transform: %v", err)
	}
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	expected := `// Keep me.
interface User {
  id: number;
}
type Id = User["id"];
export { User, Id };
`
	if dts != expected {
		t.Fatalf("round trip mismatch:\n--- got ---\n%s\n--- want ---\n%s", dts, expected)
	}
}

func TestReverseImportExtensionStripped(t *testing.T) {
	fakeJs := `import { helper } from "./chunk-ABC123.js";
var X = ["type X = ", helper, ";"];
export { X };
`
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, `from "./chunk-ABC123";`) {
		t.Fatalf("expected extension stripped, got:\n%s", dts)
	}
	if strings.Contains(dts, ".js") {
		t.Fatalf("runtime extension must not survive, got:\n%s", dts)
	}
}

func TestReverseNamespaceSynthesis(t *testing.T) {
	fakeJs := `var schema_exports = {};
__export(schema_exports, {
  User: () => User,
  Renamed: () => Original
});
var User = ["interface ", User, " {}"];
var Original = ["interface ", Original, " {}"];
export { schema_exports as schema };
`
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "declare namespace schema {") {
		t.Fatalf("expected namespace declaration, got:\n%s", dts)
	}
	if !strings.Contains(dts, "export { User, Original as Renamed };") {
		t.Fatalf("expected namespace export specifiers, got:\n%s", dts)
	}
	// The synthetic local resolves to the user-facing name in the re-export.
	if !strings.Contains(dts, "export { schema };") {
		t.Fatalf("expected repaired namespace export, got:\n%s", dts)
	}
}

func TestReverseBunStyleNamespaceLocals(t *testing.T) {
	fakeJs := `NS(exports_models, {
  User: () => User
});
var User = ["interface ", User, " {}"];
export { exports_models as models };
`
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "declare namespace models {") {
		t.Fatalf("expected alias-resolved namespace name, got:\n%s", dts)
	}
}

func TestReverseRenameEdge(t *testing.T) {
	dts, err := ReverseTransform("var X = Y;\nexport { X };\n")
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "type X = Y;") {
		t.Fatalf("expected rename edge as type alias, got:\n%s", dts)
	}
}

func TestReverseMemberAccess(t *testing.T) {
	dts, err := ReverseTransform("var X = A.B['c'];\n")
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "type X = A['B']['c'];") {
		t.Fatalf("expected computed-access form, got:\n%s", dts)
	}
}

func TestReverseCallExpression(t *testing.T) {
	dts, err := ReverseTransform("var X = f(A, 'lit', 3);\n")
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "type X = f(A, 'lit', 3);") {
		t.Fatalf("expected call form, got:\n%s", dts)
	}
}

func TestReverseSkipsBundlerHelpers(t *testing.T) {
	fakeJs := `var __defProp = Object.defineProperty;
var __getOwnPropNames = Object.getOwnPropertyNames;
var __export = (target, all) => { for (var name in all) __defProp(target, name, { get: all[name] }); };
var User = ["interface ", User, " {}"];
export { User };
`
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if strings.Contains(dts, "__defProp") || strings.Contains(dts, "__getOwnPropNames") {
		t.Fatalf("bundler helpers must be skipped, got:\n%s", dts)
	}
	if !strings.Contains(dts, "interface User {}") {
		t.Fatalf("real declarations must survive, got:\n%s", dts)
	}
}

func TestReverseTemplateElements(t *testing.T) {
	fakeJs := "var X = [`type X = `, Y, `;`];\n"
	dts, err := ReverseTransform(fakeJs)
	if err != nil {
		t.Fatalf("reverse transform: %v", err)
	}
	if !strings.Contains(dts, "type X = Y;") {
		t.Fatalf("expected template elements concatenated, got:\n%s", dts)
	}
}
