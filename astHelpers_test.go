package dtsbundle

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func parseStatements(t *testing.T, source string) (*parsedModule, []*sitter.Node) {
	t.Helper()
	module, err := parseModule([]byte(source))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	return module, module.statements()
}

func TestStatementPredicates(t *testing.T) {
	source := `import './side-effect';
import { A } from './a';
import * as ns from './ns';
export * from './all';
export { B } from './b';
export default function () {}
export default C;
export interface D {}
interface E {}
`
	_, stmts := parseStatements(t, source)
	if len(stmts) != 9 {
		t.Fatalf("expected 9 statements, got %d", len(stmts))
	}

	if !isSideEffectImport(stmts[0]) {
		t.Fatal("statement 0 should be a side-effect import")
	}
	if !isImport(stmts[1]) || isSideEffectImport(stmts[1]) {
		t.Fatal("statement 1 should be a named import")
	}
	if !isImport(stmts[2]) {
		t.Fatal("statement 2 should be a namespace import")
	}
	if !isExportAll(stmts[3]) {
		t.Fatal("statement 3 should be export-all")
	}
	if !isReExport(stmts[4]) {
		t.Fatal("statement 4 should be a re-export")
	}
	if !isUnnamedDefaultExport(stmts[5]) {
		t.Fatal("statement 5 should be an unnamed default export")
	}
	if !isDefaultReExport(stmts[6]) {
		t.Fatal("statement 6 should be a default re-export")
	}
	if !hasExportModifier(stmts[7]) || hasDefaultExportModifier(stmts[7]) {
		t.Fatal("statement 7 should have a plain export modifier")
	}
	if hasExportModifier(stmts[8]) || isExport(stmts[8]) {
		t.Fatal("statement 8 should be unexported")
	}
}

func TestGetName(t *testing.T) {
	cases := []struct {
		source   string
		expected string
	}{
		{"interface Foo {}", "Foo"},
		{"type Alias = string;", "Alias"},
		{"declare class Klass {}", "Klass"},
		{"enum Level { Low }", "Level"},
		{"declare function fn(): void;", "fn"},
		{"declare namespace Space {}", "Space"},
		{"declare const single: number;", "single"},
		{"export interface Exported {}", "Exported"},
		{"declare const a: number, b: number;", ""},
		{"declare module 'some-path' {}", ""},
	}
	for _, tc := range cases {
		module, err := parseModule([]byte(tc.source))
		if err != nil {
			t.Fatalf("parse %q: %v", tc.source, err)
		}
		stmts := module.statements()
		if len(stmts) != 1 {
			t.Fatalf("expected 1 statement for %q, got %d", tc.source, len(stmts))
		}
		if got := getName(stmts[0], module.source); got != tc.expected {
			t.Fatalf("getName(%q) = %q, want %q", tc.source, got, tc.expected)
		}
	}
}

func TestImportedLocals(t *testing.T) {
	source := `import Def, { A, B as C } from './m';
import * as ns from './n';
`
	module, stmts := parseStatements(t, source)

	first := importedLocals(stmts[0], module.source)
	expectStrings(t, first, []string{"Def", "A", "C"})

	second := importedLocals(stmts[1], module.source)
	expectStrings(t, second, []string{"ns"})
}

func expectStrings(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestLeadingComments(t *testing.T) {
	source := `// first
// second
interface Foo {}

interface Bar {}
`
	module, stmts := parseStatements(t, source)
	comments := module.leadingComments(stmts[0])
	if comments != "// first\n// second\n" {
		t.Fatalf("unexpected comments %q", comments)
	}
	if module.leadingComments(stmts[1]) != "" {
		t.Fatal("Bar should have no leading comments")
	}
}

func TestRemoveExportSyntax(t *testing.T) {
	cases := []struct {
		input    string
		expected string
	}{
		{"export interface Foo {}", "interface Foo {}"},
		{"export default function f() {}", "function f() {}"},
		{"interface Foo {}", "interface Foo {}"},
	}
	for _, tc := range cases {
		if got := removeExportSyntax(tc.input); got != tc.expected {
			t.Fatalf("removeExportSyntax(%q) = %q", tc.input, got)
		}
	}
}
