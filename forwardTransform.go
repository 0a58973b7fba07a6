package dtsbundle

import (
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// ForwardTransform turns one declaration file into a fake-JS module the
// bundler can treat as runtime code. Every non-import/export statement
// becomes `var NAME = [tokens];` where tokens are string literals and bare
// identifier references; imports and exports are re-emitted as real
// statements (type-only modifiers erased) so the module graph survives.
//
// The transform shares no state across invocations: the bundler may run it
// concurrently from its load hooks.
func ForwardTransform(source string) (string, error) {
	// Unnamed default declarations get a placeholder name before parsing;
	// without one, the body-less declaration forms do not parse as a
	// statement. The placeholder is swapped for the statement's positional
	// name during emission.
	source = preNameUnnamedDefaults(source)

	module, err := parseModule([]byte(source))
	if err != nil {
		return "", err
	}

	state := &forwardState{
		module:     module,
		referenced: map[string]bool{},
		exported:   map[string]bool{},
		dynamic:    map[string]string{},
	}

	stmts := module.statements()

	// Names a token may legally reference: imported locals plus every
	// declared name in the file. Collected up front so forward references
	// tokenise the same way as backward ones.
	for _, stmt := range stmts {
		if isImport(stmt) {
			for _, local := range importedLocals(stmt, module.source) {
				state.referenced[local] = true
			}
			continue
		}
		if name := getName(stmt, module.source); name != "" {
			state.referenced[name] = true
		}
	}

	var out strings.Builder
	for index, stmt := range stmts {
		if err := state.emitStatement(&out, stmt, index); err != nil {
			return "", err
		}
	}
	return out.String(), nil
}

type forwardState struct {
	module     *parsedModule
	referenced map[string]bool
	exported   map[string]bool
	// dynamic maps a specifier/property pair to the identifier already
	// injected for it, so repeated dynamic imports of one type collapse.
	dynamic map[string]string
}

func (s *forwardState) emitStatement(out *strings.Builder, stmt *sitter.Node, index int) error {
	switch {
	case isSideEffectImport(stmt):
		// Declarations have no runtime side effects; drop the edge.
		return nil

	case isImport(stmt), isExportAll(stmt):
		out.WriteString(jsifyImportExport(s.module.text(stmt)))
		out.WriteString("\n")
		return nil

	case isReExport(stmt):
		specs := exportClauseSpecifiers(stmt, s.module.source)
		if moduleSource(stmt) == nil {
			// A local export list lists only the names not exported yet, so a
			// declaration's own `export { name };` is not repeated.
			var fresh []string
			for _, spec := range specs {
				if s.exported[spec.exportedName()] {
					continue
				}
				s.exported[spec.exportedName()] = true
				if spec.Alias != "" {
					fresh = append(fresh, spec.Name+" as "+spec.Alias)
				} else {
					fresh = append(fresh, spec.Name)
				}
			}
			if len(fresh) > 0 {
				fmt.Fprintf(out, "export { %s };\n", strings.Join(fresh, ", "))
			}
			return nil
		}
		for _, spec := range specs {
			s.exported[spec.exportedName()] = true
		}
		out.WriteString(jsifyImportExport(s.module.text(stmt)))
		out.WriteString("\n")
		return nil

	case isDefaultReExport(stmt):
		name := nodeText(defaultExported(stmt), s.module.source)
		fmt.Fprintf(out, "export { %s as default };\n", name)
		return nil

	case hasDefaultExportModifier(stmt):
		return s.emitDefaultDeclaration(out, stmt, index)

	default:
		return s.emitDeclaration(out, stmt, index)
	}
}

func (s *forwardState) emitDefaultDeclaration(out *strings.Builder, stmt *sitter.Node, index int) error {
	name := getName(stmt, s.module.source)
	text := removeExportSyntax(s.module.text(stmt))
	switch {
	case defaultPlaceholderRe.MatchString(name):
		// Pre-named by preNameUnnamedDefaults; swap in the positional name.
		placeholder := name
		name = syntheticName(index)
		text = strings.ReplaceAll(text, placeholder, name)
	case name == "":
		// An unnamed default function or class gets the synthetic name
		// spliced into its own syntax so the binding is tokenisable.
		name = syntheticName(index)
		text = insertDeclarationName(text, name)
	}
	s.referenced[name] = true

	tokens, injected, err := s.tokenize(s.module.leadingComments(stmt) + text)
	if err != nil {
		return err
	}
	writeInjected(out, injected)
	writeTokenVar(out, name, tokens)
	fmt.Fprintf(out, "export { %s as default };\n", name)
	return nil
}

func (s *forwardState) emitDeclaration(out *strings.Builder, stmt *sitter.Node, index int) error {
	name := getName(stmt, s.module.source)
	if name == "" {
		name = syntheticName(index)
		s.referenced[name] = true
	}

	text := s.module.text(stmt)
	wasExported := hasExportModifier(stmt)
	if wasExported {
		text = removeExportSyntax(text)
	}

	tokens, injected, err := s.tokenize(s.module.leadingComments(stmt) + text)
	if err != nil {
		return err
	}
	writeInjected(out, injected)
	writeTokenVar(out, name, tokens)
	if wasExported && !s.exported[name] {
		fmt.Fprintf(out, "export { %s };\n", name)
		s.exported[name] = true
	}
	return nil
}

// tokenize splits prepared statement text into fake-JS array elements.
// Adjacent opaque units merge into a single string literal; referenced names
// stay bare identifiers. Dynamic type imports are expanded on the fly and
// contribute extra statements to inject ahead of the array.
func (s *forwardState) tokenize(text string) (tokens []string, injected []string, err error) {
	words := tokenizeRe.FindAllString(text, -1)

	var pending strings.Builder
	flush := func() {
		if pending.Len() > 0 {
			tokens = append(tokens, quoteToken(pending.String()))
			pending.Reset()
		}
	}

	for i := 0; i < len(words); i++ {
		word := words[i]

		if word == "import" && nextMeaningfulIs(words, i+1, "(") {
			ident, stmts, next, expandErr := s.expandDynamicImport(words, i)
			if expandErr != nil {
				return nil, nil, expandErr
			}
			injected = append(injected, stmts...)
			flush()
			tokens = append(tokens, ident)
			i = next - 1
			continue
		}

		if isIdentifierWord(word) && (s.referenced[word] ||
			(probablyTypeReference(word) && nextMeaningfulIs(words, i+1, "."))) {
			flush()
			tokens = append(tokens, word)
			continue
		}

		pending.WriteString(word)
	}
	flush()

	if len(tokens) == 0 {
		tokens = append(tokens, quoteToken(""))
	}
	return tokens, injected, nil
}

func isIdentifierWord(word string) bool {
	return identifierWordRe.MatchString(word)
}

// nextMeaningfulIs reports whether the next non-whitespace lexical unit at or
// after position i equals want.
func nextMeaningfulIs(words []string, i int, want string) bool {
	for ; i < len(words); i++ {
		if strings.TrimSpace(words[i]) == "" {
			continue
		}
		return words[i] == want
	}
	return false
}

func writeTokenVar(out *strings.Builder, name string, tokens []string) {
	out.WriteString("var ")
	out.WriteString(name)
	out.WriteString(" = [")
	out.WriteString(strings.Join(tokens, ", "))
	out.WriteString("];\n")
}

func writeInjected(out *strings.Builder, injected []string) {
	for _, stmt := range injected {
		out.WriteString(stmt)
		out.WriteString("\n")
	}
}

// syntheticName is the positional fallback for statements without a declared
// name. Stable for a given statement index within a file.
func syntheticName(index int) string {
	return "var" + fmt.Sprint(index)
}

var (
	unnamedDefaultFnRe    = regexp.MustCompile(`(?m)^(\s*export\s+default\s+(?:async\s+)?function)(\s*\()`)
	unnamedDefaultClassRe = regexp.MustCompile(`(?m)^(\s*export\s+default\s+(?:abstract\s+)?class)(\s*(?:\{|<|extends\s|implements\s))`)
	defaultPlaceholderRe  = regexp.MustCompile(`^__dts_default_\d+$`)
)

// preNameUnnamedDefaults inserts placeholder names into unnamed default
// function/class declarations so they parse as named declarations.
func preNameUnnamedDefaults(source string) string {
	counter := 0
	name := func() string {
		n := fmt.Sprintf("__dts_default_%d", counter)
		counter++
		return n
	}
	source = unnamedDefaultFnRe.ReplaceAllStringFunc(source, func(match string) string {
		return unnamedDefaultFnRe.ReplaceAllString(match, "$1 "+name()+"$2")
	})
	source = unnamedDefaultClassRe.ReplaceAllStringFunc(source, func(match string) string {
		return unnamedDefaultClassRe.ReplaceAllString(match, "$1 "+name()+" $2")
	})
	return source
}

var declarationKeywordRe = regexp.MustCompile(`\b(function\s*\*?|class)`)

// insertDeclarationName splices a name into an unnamed default function or
// class declaration, right after its introducing keyword.
func insertDeclarationName(text, name string) string {
	done := false
	return declarationKeywordRe.ReplaceAllStringFunc(text, func(keyword string) string {
		if done {
			return keyword
		}
		done = true
		return keyword + " " + name
	})
}
