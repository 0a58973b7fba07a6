package dtsbundle

import (
	"context"
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/cockroachdb/errors"
)

// parsedModule is one parsed source with its top-level statements located by
// byte span. The TypeScript grammar covers both inputs this package parses:
// declaration text (forward transform) and bundled fake-JS (reverse
// transform).
type parsedModule struct {
	source []byte
	tree   *sitter.Tree
	root   *sitter.Node
}

// parseModule parses source as a module. A fresh parser per call keeps
// invocations isolated; the bundler may drive transforms concurrently.
func parseModule(source []byte) (*parsedModule, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(typescript.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, errors.Wrap(err, "parse module")
	}
	return &parsedModule{source: source, tree: tree, root: tree.RootNode()}, nil
}

// statements returns the top-level statement nodes in source order, comments
// excluded.
func (m *parsedModule) statements() []*sitter.Node {
	count := int(m.root.NamedChildCount())
	stmts := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		child := m.root.NamedChild(i)
		if child.Type() == "comment" {
			continue
		}
		stmts = append(stmts, child)
	}
	return stmts
}

// text slices the original source for a node.
func (m *parsedModule) text(node *sitter.Node) string {
	return string(m.source[node.StartByte():node.EndByte()])
}

// leadingComments collects the run of comment nodes immediately preceding a
// statement and returns them serialised one per line, ready to prepend.
func (m *parsedModule) leadingComments(stmt *sitter.Node) string {
	var comments []string
	for prev := stmt.PrevNamedSibling(); prev != nil && prev.Type() == "comment"; prev = prev.PrevNamedSibling() {
		comments = append(comments, m.text(prev))
	}
	if len(comments) == 0 {
		return ""
	}
	var sb strings.Builder
	for i := len(comments) - 1; i >= 0; i-- {
		sb.WriteString(comments[i])
		sb.WriteString("\n")
	}
	return sb.String()
}

// jsStringValue returns the cooked value of a string literal node. Cooking
// works over the raw text so it stays independent of how the grammar version
// structures string contents.
func (m *parsedModule) jsStringValue(node *sitter.Node) string {
	return jsUnquote(m.text(node))
}

// jsUnquote strips the surrounding quotes and decodes backslash escapes.
func jsUnquote(raw string) string {
	if len(raw) >= 2 && (raw[0] == '"' || raw[0] == '\'') && raw[len(raw)-1] == raw[0] {
		raw = raw[1 : len(raw)-1]
	}
	if !strings.ContainsRune(raw, '\\') {
		return raw
	}
	var sb strings.Builder
	for i := 0; i < len(raw); {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			i++
			continue
		}
		switch c := raw[i+1]; c {
		case 'n':
			sb.WriteByte('\n')
			i += 2
		case 't':
			sb.WriteByte('\t')
			i += 2
		case 'r':
			sb.WriteByte('\r')
			i += 2
		case 'b':
			sb.WriteByte('\b')
			i += 2
		case 'f':
			sb.WriteByte('\f')
			i += 2
		case 'v':
			sb.WriteByte('\v')
			i += 2
		case '0':
			sb.WriteByte(0)
			i += 2
		case 'x':
			if i+4 <= len(raw) {
				if n, err := strconv.ParseUint(raw[i+2:i+4], 16, 32); err == nil {
					sb.WriteRune(rune(n))
					i += 4
					continue
				}
			}
			sb.WriteByte(c)
			i += 2
		case 'u':
			if i+2 < len(raw) && raw[i+2] == '{' {
				if end := strings.IndexByte(raw[i+3:], '}'); end >= 0 {
					if n, err := strconv.ParseUint(raw[i+3:i+3+end], 16, 32); err == nil {
						sb.WriteRune(rune(n))
						i += 3 + end + 1
						continue
					}
				}
			} else if i+6 <= len(raw) {
				if n, err := strconv.ParseUint(raw[i+2:i+6], 16, 32); err == nil {
					sb.WriteRune(rune(n))
					i += 6
					continue
				}
			}
			sb.WriteByte(c)
			i += 2
		default:
			sb.WriteByte(c)
			i += 2
		}
	}
	return sb.String()
}

// quoteToken renders s as a double-quoted JS string literal with the token
// escape codec applied first.
func quoteToken(s string) string {
	s = EscapeTokenText(s)
	var sb strings.Builder
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
