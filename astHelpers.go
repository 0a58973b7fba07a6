package dtsbundle

import (
	"regexp"

	sitter "github.com/smacker/go-tree-sitter"
)

// Predicates over top-level statement nodes. All of these are syntactic;
// nothing here resolves types or follows imports.

func isImport(node *sitter.Node) bool {
	return node.Type() == "import_statement"
}

// isSideEffectImport matches `import 'mod';` — an import with no specifiers.
func isSideEffectImport(node *sitter.Node) bool {
	if !isImport(node) {
		return false
	}
	return findChildOfType(node, "import_clause") == nil
}

func isExport(node *sitter.Node) bool {
	return node.Type() == "export_statement"
}

// isExportAll matches `export * from 'mod'` and `export * as ns from 'mod'`.
func isExportAll(node *sitter.Node) bool {
	if !isExport(node) {
		return false
	}
	if findChildOfType(node, "namespace_export") != nil {
		return true
	}
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		if node.Child(i).Type() == "*" {
			return true
		}
	}
	return false
}

// isReExport matches a named export with no local declaration: `export { A }`
// or `export { A } from 'mod'`.
func isReExport(node *sitter.Node) bool {
	if !isExport(node) {
		return false
	}
	return findChildOfType(node, "export_clause") != nil &&
		node.ChildByFieldName("declaration") == nil
}

// hasExportModifier matches `export <declaration>`.
func hasExportModifier(node *sitter.Node) bool {
	return isExport(node) && node.ChildByFieldName("declaration") != nil && !hasDefaultKeyword(node)
}

// hasDefaultExportModifier matches `export default <declaration or expr>`.
func hasDefaultExportModifier(node *sitter.Node) bool {
	return isExport(node) && hasDefaultKeyword(node)
}

func hasDefaultKeyword(node *sitter.Node) bool {
	count := int(node.ChildCount())
	for i := 0; i < count; i++ {
		if node.Child(i).Type() == "default" {
			return true
		}
	}
	return false
}

// defaultExported returns the declaration or value under `export default`.
func defaultExported(node *sitter.Node) *sitter.Node {
	if decl := node.ChildByFieldName("declaration"); decl != nil {
		return decl
	}
	return node.ChildByFieldName("value")
}

// isUnnamedDefaultExport matches `export default function () {}` and
// `export default class {}` — a default export whose declaration carries no
// name of its own.
func isUnnamedDefaultExport(node *sitter.Node) bool {
	if !hasDefaultExportModifier(node) {
		return false
	}
	inner := unwrapAmbient(defaultExported(node))
	if inner == nil {
		return false
	}
	switch inner.Type() {
	case "function_declaration", "function_signature", "function_expression",
		"class_declaration", "abstract_class_declaration", "class":
		return inner.ChildByFieldName("name") == nil
	}
	return false
}

// isDefaultReExport matches `export default SomeLocal;`.
func isDefaultReExport(node *sitter.Node) bool {
	if !hasDefaultExportModifier(node) {
		return false
	}
	inner := defaultExported(node)
	return inner != nil && inner.Type() == "identifier"
}

// unwrapAmbient peels `declare` wrappers and export statements down to the
// declaration they carry.
func unwrapAmbient(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "ambient_declaration":
			node = node.NamedChild(0)
		case "export_statement":
			node = defaultExported(node)
		default:
			return node
		}
	}
	return nil
}

// getName extracts the single declared identifier of a statement, when it has
// one obvious name. Variable declarations qualify only with exactly one
// declarator binding a plain identifier; everything else without a single
// name returns "".
func getName(node *sitter.Node, source []byte) string {
	inner := unwrapAmbient(node)
	if inner == nil {
		return ""
	}
	switch inner.Type() {
	case "interface_declaration", "type_alias_declaration", "class_declaration",
		"abstract_class_declaration", "enum_declaration", "function_declaration",
		"function_signature", "internal_module", "module":
		name := inner.ChildByFieldName("name")
		if name == nil {
			return ""
		}
		if name.Type() != "identifier" && name.Type() != "type_identifier" {
			// `declare module "some-path"` has a string name; no binding.
			return ""
		}
		return string(source[name.StartByte():name.EndByte()])
	case "variable_declaration", "lexical_declaration":
		var declarator *sitter.Node
		count := int(inner.NamedChildCount())
		for i := 0; i < count; i++ {
			child := inner.NamedChild(i)
			if child.Type() != "variable_declarator" {
				continue
			}
			if declarator != nil {
				return ""
			}
			declarator = child
		}
		if declarator == nil {
			return ""
		}
		name := declarator.ChildByFieldName("name")
		if name == nil || name.Type() != "identifier" {
			return ""
		}
		return string(source[name.StartByte():name.EndByte()])
	}
	return ""
}

var exportSyntaxRe = regexp.MustCompile(`^export\s+(default\s+)?`)

// removeExportSyntax strips a leading `export` / `export default` from
// statement text so the tokenised body holds the raw declaration.
func removeExportSyntax(text string) string {
	return exportSyntaxRe.ReplaceAllString(text, "")
}

// findChildOfType returns the first named child of the given type.
func findChildOfType(node *sitter.Node, nodeType string) *sitter.Node {
	count := int(node.NamedChildCount())
	for i := 0; i < count; i++ {
		child := node.NamedChild(i)
		if child.Type() == nodeType {
			return child
		}
	}
	return nil
}

// importedLocals returns the local bindings introduced by an import
// statement: the default name, the namespace alias, and each named
// specifier's local name.
func importedLocals(node *sitter.Node, source []byte) []string {
	clause := findChildOfType(node, "import_clause")
	if clause == nil {
		return nil
	}
	var locals []string
	count := int(clause.NamedChildCount())
	for i := 0; i < count; i++ {
		child := clause.NamedChild(i)
		switch child.Type() {
		case "identifier":
			locals = append(locals, nodeText(child, source))
		case "namespace_import":
			if id := findChildOfType(child, "identifier"); id != nil {
				locals = append(locals, nodeText(id, source))
			}
		case "named_imports":
			specCount := int(child.NamedChildCount())
			for j := 0; j < specCount; j++ {
				spec := child.NamedChild(j)
				if spec.Type() != "import_specifier" {
					continue
				}
				local := spec.ChildByFieldName("alias")
				if local == nil {
					local = spec.ChildByFieldName("name")
				}
				if local != nil {
					locals = append(locals, nodeText(local, source))
				}
			}
		}
	}
	return locals
}

// exportSpecifier is one `name` / `name as alias` entry of an export clause.
type exportSpecifier struct {
	Name  string
	Alias string
}

// exportClauseSpecifiers lists the specifiers of a named export statement.
func exportClauseSpecifiers(node *sitter.Node, source []byte) []exportSpecifier {
	clause := findChildOfType(node, "export_clause")
	if clause == nil {
		return nil
	}
	var specs []exportSpecifier
	count := int(clause.NamedChildCount())
	for i := 0; i < count; i++ {
		child := clause.NamedChild(i)
		if child.Type() != "export_specifier" {
			continue
		}
		spec := exportSpecifier{}
		if name := child.ChildByFieldName("name"); name != nil {
			spec.Name = nodeText(name, source)
		}
		if alias := child.ChildByFieldName("alias"); alias != nil {
			spec.Alias = nodeText(alias, source)
		}
		specs = append(specs, spec)
	}
	return specs
}

// moduleSource returns the string node holding an import/export statement's
// module specifier, or nil for local exports.
func moduleSource(node *sitter.Node) *sitter.Node {
	return node.ChildByFieldName("source")
}

func nodeText(node *sitter.Node, source []byte) string {
	return string(source[node.StartByte():node.EndByte()])
}

// exportedName resolves the visible name of one specifier (`A as B` -> B).
func (s exportSpecifier) exportedName() string {
	if s.Alias != "" {
		return s.Alias
	}
	return s.Name
}
