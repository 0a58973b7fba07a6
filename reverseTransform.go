package dtsbundle

import (
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ReverseTransform parses one bundled fake-JS module and reconstructs a
// declaration file from it: token arrays concatenate back into statement
// text, the bundler's namespace synthesis becomes `declare namespace` blocks,
// and export specifiers are repaired where the bundler renamed the locals
// behind them.
func ReverseTransform(source string) (string, error) {
	module, err := parseModule([]byte(source))
	if err != nil {
		return "", err
	}

	state := &reverseState{module: module, aliases: map[string]string{}}
	state.collectAliases()

	var fragments []string
	for _, stmt := range module.statements() {
		fragment := state.convertStatement(stmt)
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	return strings.Join(fragments, "\n") + "\n", nil
}

type reverseState struct {
	module *parsedModule
	// aliases maps bundler-synthesised namespace locals to the user-facing
	// names they were exported under. Built once, read-only afterwards.
	aliases map[string]string
}

// collectAliases builds the namespace alias map: every namespace-import local
// maps to itself, then `export { synthetic as Name }` entries override the
// synthesised locals with their user-visible names.
func (s *reverseState) collectAliases() {
	for _, stmt := range s.module.statements() {
		if isImport(stmt) {
			clause := findChildOfType(stmt, "import_clause")
			if clause == nil {
				continue
			}
			if ns := findChildOfType(clause, "namespace_import"); ns != nil {
				if id := findChildOfType(ns, "identifier"); id != nil {
					local := s.module.text(id)
					s.aliases[local] = local
				}
			}
			continue
		}
		if isReExport(stmt) && moduleSource(stmt) == nil {
			for _, spec := range exportClauseSpecifiers(stmt, s.module.source) {
				if isSyntheticNamespaceName(spec.Name) {
					s.aliases[spec.Name] = spec.exportedName()
				}
			}
		}
	}
}

// isSyntheticNamespaceName matches the bundler's synthesised namespace
// locals. Bun spells them exports_X; esbuild spells them x_exports, with a
// numeric suffix on collision.
func isSyntheticNamespaceName(name string) bool {
	if strings.HasPrefix(name, "exports_") {
		return true
	}
	trimmed := strings.TrimRight(name, "0123456789")
	return strings.HasSuffix(trimmed, "_exports")
}

func (s *reverseState) remap(name string) string {
	if mapped, ok := s.aliases[name]; ok {
		return mapped
	}
	return name
}

func (s *reverseState) convertStatement(stmt *sitter.Node) string {
	switch {
	case isImport(stmt):
		return s.convertImport(stmt)
	case isExportAll(stmt):
		return s.rewriteSourceExtension(stmt)
	case isReExport(stmt):
		return s.convertReExport(stmt)
	case stmt.Type() == "expression_statement":
		return s.convertNamespaceSynthesis(stmt)
	case stmt.Type() == "variable_declaration", stmt.Type() == "lexical_declaration":
		return s.convertVariables(stmt)
	}
	return ""
}

// convertImport re-emits an import with the runtime extension stripped from
// its specifier: chunk files land next to their declaration counterparts, so
// consumers resolve the extensionless form.
func (s *reverseState) convertImport(stmt *sitter.Node) string {
	return s.rewriteSourceExtension(stmt)
}

func (s *reverseState) rewriteSourceExtension(stmt *sitter.Node) string {
	text := s.module.text(stmt)
	src := moduleSource(stmt)
	if src == nil {
		return text
	}
	specifier := s.module.jsStringValue(src)
	stripped := stripJsExtension(specifier)
	if stripped == specifier {
		return text
	}
	start := int(src.StartByte()) - int(stmt.StartByte())
	end := int(src.EndByte()) - int(stmt.StartByte())
	return text[:start] + `"` + stripped + `"` + text[end:]
}

// convertReExport rewrites specifiers through the alias map so synthesised
// namespace locals surface under their user names.
func (s *reverseState) convertReExport(stmt *sitter.Node) string {
	specs := exportClauseSpecifiers(stmt, s.module.source)
	if len(specs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(specs))
	for _, spec := range specs {
		local := s.remap(spec.Name)
		visible := spec.exportedName()
		if local == visible {
			parts = append(parts, visible)
		} else {
			parts = append(parts, local+" as "+visible)
		}
	}
	clause := "export { " + strings.Join(parts, ", ") + " };"
	if src := moduleSource(stmt); src != nil {
		specifier := stripJsExtension(s.module.jsStringValue(src))
		clause = strings.TrimSuffix(clause, ";") + ` from "` + specifier + `";`
	}
	return clause
}

// convertNamespaceSynthesis recognises the bundler's namespace shim,
// `NS(local, { key: () => value, ... });`, and reconstructs the namespace
// declaration it stands for.
func (s *reverseState) convertNamespaceSynthesis(stmt *sitter.Node) string {
	call := stmt.NamedChild(0)
	if call == nil || call.Type() != "call_expression" {
		return ""
	}
	callee := call.ChildByFieldName("function")
	if callee == nil || callee.Type() != "identifier" {
		return ""
	}
	args := call.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() != 2 {
		return ""
	}
	target := args.NamedChild(0)
	object := args.NamedChild(1)
	if target.Type() != "identifier" || object.Type() != "object" {
		return ""
	}

	var specifiers []string
	count := int(object.NamedChildCount())
	for i := 0; i < count; i++ {
		pair := object.NamedChild(i)
		if pair.Type() != "pair" {
			continue
		}
		key := pair.ChildByFieldName("key")
		value := pair.ChildByFieldName("value")
		if key == nil || value == nil || value.Type() != "arrow_function" {
			continue
		}
		body := value.ChildByFieldName("body")
		if body == nil || body.Type() != "identifier" {
			continue
		}
		keyName := s.module.text(key)
		bodyName := s.module.text(body)
		if bodyName == keyName {
			specifiers = append(specifiers, keyName)
		} else {
			specifiers = append(specifiers, bodyName+" as "+keyName)
		}
	}
	if len(specifiers) == 0 {
		return ""
	}

	name := s.remap(s.module.text(target))
	return fmt.Sprintf("declare namespace %s {\n  export { %s };\n}", name, strings.Join(specifiers, ", "))
}

// convertVariables reconstructs declaration text from each declarator.
func (s *reverseState) convertVariables(stmt *sitter.Node) string {
	var fragments []string
	count := int(stmt.NamedChildCount())
	for i := 0; i < count; i++ {
		declarator := stmt.NamedChild(i)
		if declarator.Type() != "variable_declarator" {
			continue
		}
		name := declarator.ChildByFieldName("name")
		value := declarator.ChildByFieldName("value")
		if name == nil || value == nil {
			continue
		}
		fragment := s.convertDeclarator(s.module.text(name), value)
		if fragment != "" {
			fragments = append(fragments, fragment)
		}
	}
	return strings.Join(fragments, "\n")
}

func (s *reverseState) convertDeclarator(name string, value *sitter.Node) string {
	switch value.Type() {
	case "array":
		return s.concatTokens(value)
	case "identifier":
		// The bundler introduced an alias for a renamed type.
		if isBundlerHelperName(name) {
			return ""
		}
		return fmt.Sprintf("type %s = %s;", name, s.remap(s.module.text(value)))
	case "member_expression", "subscript_expression":
		if isBundlerHelperName(name) {
			return ""
		}
		access, ok := s.convertAccessChain(value)
		if !ok {
			return ""
		}
		return fmt.Sprintf("type %s = %s;", name, access)
	case "call_expression":
		if isBundlerHelperName(name) {
			return ""
		}
		converted, ok := s.convertCall(value)
		if !ok {
			return ""
		}
		return fmt.Sprintf("type %s = %s;", name, converted)
	}
	return ""
}

// isBundlerHelperName matches the bundler's runtime helpers (__defProp and
// friends), which carry no type information.
func isBundlerHelperName(name string) bool {
	return strings.HasPrefix(name, "__")
}

// concatTokens folds a token array back into declaration text.
func (s *reverseState) concatTokens(array *sitter.Node) string {
	var sb strings.Builder
	count := int(array.NamedChildCount())
	for i := 0; i < count; i++ {
		element := array.NamedChild(i)
		switch element.Type() {
		case "string":
			sb.WriteString(UnescapeTokenText(s.module.jsStringValue(element)))
		case "identifier":
			sb.WriteString(s.remap(s.module.text(element)))
		case "template_string":
			sb.WriteString(s.concatTemplate(element))
		case "number":
			sb.WriteString(s.module.text(element))
		}
	}
	return sb.String()
}

// concatTemplate handles arrays the bundler rewrote into template literals:
// the raw text between substitutions concatenates with each substitution's
// (alias-remapped) identifier.
func (s *reverseState) concatTemplate(template *sitter.Node) string {
	start := int(template.StartByte()) + 1
	end := int(template.EndByte()) - 1
	var sb strings.Builder
	pos := start
	count := int(template.NamedChildCount())
	for i := 0; i < count; i++ {
		part := template.NamedChild(i)
		if part.Type() != "template_substitution" {
			continue
		}
		sb.WriteString(string(s.module.source[pos:int(part.StartByte())]))
		inner := part.NamedChild(0)
		if inner != nil && inner.Type() == "identifier" {
			sb.WriteString(s.remap(s.module.text(inner)))
		}
		pos = int(part.EndByte())
	}
	sb.WriteString(string(s.module.source[pos:end]))
	return UnescapeTokenText(sb.String())
}

// convertAccessChain renders `A.B['c']` as the computed-access form that
// survives in declarations: A['B']['c'].
func (s *reverseState) convertAccessChain(node *sitter.Node) (string, bool) {
	switch node.Type() {
	case "identifier":
		return s.remap(s.module.text(node)), true
	case "member_expression":
		object := node.ChildByFieldName("object")
		property := node.ChildByFieldName("property")
		if object == nil || property == nil {
			return "", false
		}
		base, ok := s.convertAccessChain(object)
		if !ok {
			return "", false
		}
		return base + "['" + s.module.text(property) + "']", true
	case "subscript_expression":
		object := node.ChildByFieldName("object")
		index := node.ChildByFieldName("index")
		if object == nil || index == nil {
			return "", false
		}
		base, ok := s.convertAccessChain(object)
		if !ok {
			return "", false
		}
		switch index.Type() {
		case "string":
			return base + "['" + s.module.jsStringValue(index) + "']", true
		case "number":
			return base + "[" + s.module.text(index) + "]", true
		}
		return "", false
	}
	return "", false
}

// convertCall renders `f(args)` with the member/string/number/identifier
// argument subset accepted in declaration position.
func (s *reverseState) convertCall(call *sitter.Node) (string, bool) {
	callee := call.ChildByFieldName("function")
	args := call.ChildByFieldName("arguments")
	if callee == nil || args == nil {
		return "", false
	}
	base, ok := s.convertAccessChain(callee)
	if !ok {
		return "", false
	}
	var rendered []string
	count := int(args.NamedChildCount())
	for i := 0; i < count; i++ {
		arg := args.NamedChild(i)
		switch arg.Type() {
		case "identifier":
			rendered = append(rendered, s.remap(s.module.text(arg)))
		case "string", "number":
			rendered = append(rendered, s.module.text(arg))
		case "member_expression", "subscript_expression":
			access, ok := s.convertAccessChain(arg)
			if !ok {
				return "", false
			}
			rendered = append(rendered, access)
		default:
			return "", false
		}
	}
	return base + "(" + strings.Join(rendered, ", ") + ")", true
}
