package dtsbundle

import (
	"strings"
	"testing"
)

func TestMinifyPreservesExternalNames(t *testing.T) {
	source := `interface User {
  id: number;
}
type Id = User["id"];
export { User, Id };
`
	minified, err := Minify(source)
	if err != nil {
		t.Fatalf("minify: %v", err)
	}
	if strings.Contains(minified, "interface User") {
		t.Fatalf("top-level names must be shortened, got:\n%s", minified)
	}
	if !strings.Contains(minified, "as User") || !strings.Contains(minified, "as Id") {
		t.Fatalf("external names must survive behind `as`, got:\n%s", minified)
	}
	// Property names stay untouched.
	if !strings.Contains(minified, "id: number") {
		t.Fatalf("property names must not be renamed, got:\n%s", minified)
	}

	// The output still parses as a module.
	module, err := parseModule([]byte(minified))
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if module.root.HasError() {
		t.Fatalf("minified output has syntax errors:\n%s", minified)
	}
}

func TestMinifyRenamesReferences(t *testing.T) {
	source := `interface Base {
  x: number;
}
interface Derived extends Base {
  y: Base;
}
export { Derived };
`
	minified, err := Minify(source)
	if err != nil {
		t.Fatalf("minify: %v", err)
	}
	if strings.Contains(minified, "extends Base") {
		t.Fatalf("references must follow the rename, got:\n%s", minified)
	}
	if strings.Contains(minified, "y: Base") {
		t.Fatalf("type position after `:` keeps the reference renamed... got:\n%s", minified)
	}
}

func TestMinifyLeavesReExportsAlone(t *testing.T) {
	source := `export { Other } from "some-pkg";
interface Local {}
export { Local };
`
	minified, err := Minify(source)
	if err != nil {
		t.Fatalf("minify: %v", err)
	}
	if !strings.Contains(minified, `export { Other } from "some-pkg";`) {
		t.Fatalf("re-exports from other modules must stay verbatim, got:\n%s", minified)
	}
}

func TestMinifyCollapsesWhitespace(t *testing.T) {
	source := "type    A    =    string;\nexport { A };\n"
	minified, err := Minify(source)
	if err != nil {
		t.Fatalf("minify: %v", err)
	}
	if strings.Contains(minified, "    ") {
		t.Fatalf("whitespace runs must collapse, got:\n%q", minified)
	}
}

func TestMinifyStripsComments(t *testing.T) {
	source := "// gone\ninterface A {}\nexport { A };\n"
	minified, err := Minify(source)
	if err != nil {
		t.Fatalf("minify: %v", err)
	}
	if strings.Contains(minified, "gone") {
		t.Fatalf("comments must be stripped, got:\n%s", minified)
	}
}
