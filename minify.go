package dtsbundle

import (
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// Minify renames user-visible top-level identifiers to short ones and
// collapses whitespace. External names survive exactly: every rewritten
// export clause maps the short local back to the original via `as`.
//
// The rename is lexical over the same token classes the forward transform
// uses. Occurrences in property position (next token `:` or `?`) and after a
// `.` are left alone; member names that shadow a top-level name in call
// position share the forward transform's known hazard.
func Minify(source string) (string, error) {
	module, err := parseModule([]byte(source))
	if err != nil {
		return "", err
	}

	words := tokenizeRe.FindAllString(source, -1)

	renames := buildRenameMap(module, words)
	if len(renames) == 0 {
		return collapseWhitespace(words), nil
	}
	clauses := collectClauseSpans(module)

	var out strings.Builder
	pos := 0
	for i := 0; i < len(words); i++ {
		word := words[i]
		start := pos
		pos += len(word)

		if isCommentToken(word) {
			continue
		}
		if blank := strings.TrimSpace(word); blank == "" {
			writeCollapsed(&out, word)
			continue
		}

		clause := clauseAt(clauses, start)
		if clause != nil {
			if clause.verbatim || !isIdentifierWord(word) {
				out.WriteString(word)
				continue
			}
			out.WriteString(rewriteClauseWord(words, i, word, renames))
			continue
		}

		if short, ok := renames[word]; ok && isIdentifierWord(word) &&
			prevMeaningful(words, i) != "." &&
			nextMeaningful(words, i) != ":" && nextMeaningful(words, i) != "?" {
			out.WriteString(short)
			continue
		}
		out.WriteString(word)
	}
	return strings.TrimSpace(out.String()) + "\n", nil
}

// buildRenameMap assigns a short name to every renameable top-level
// declaration, avoiding reserved words and every word already present in the
// file.
func buildRenameMap(module *parsedModule, words []string) map[string]string {
	taken := map[string]bool{"as": true, "in": true, "of": true, "is": true, "do": true, "if": true}
	for _, word := range words {
		if isIdentifierWord(word) {
			taken[word] = true
		}
	}

	var names []string
	seen := map[string]bool{}
	for _, stmt := range module.statements() {
		name := getName(stmt, module.source)
		if name == "" || name == "default" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)

	renames := map[string]string{}
	counter := 0
	for _, name := range names {
		short := shortName(&counter, taken)
		taken[short] = true
		renames[name] = short
	}
	return renames
}

// shortName yields the next free base-26 identifier: a..z, aa, ab, ...
func shortName(counter *int, taken map[string]bool) string {
	for {
		n := *counter
		*counter++
		var sb []byte
		for {
			sb = append([]byte{byte('a' + n%26)}, sb...)
			n = n/26 - 1
			if n < 0 {
				break
			}
		}
		candidate := string(sb)
		if !taken[candidate] {
			return candidate
		}
	}
}

type clauseSpan struct {
	start, end int
	// verbatim spans re-export from another module; their names are not
	// local bindings and must not change.
	verbatim bool
}

// collectClauseSpans finds every export clause, including those inside
// reconstructed namespace blocks.
func collectClauseSpans(module *parsedModule) []clauseSpan {
	var spans []clauseSpan
	var walk func(node *sitter.Node)
	walk = func(node *sitter.Node) {
		count := int(node.NamedChildCount())
		for i := 0; i < count; i++ {
			child := node.NamedChild(i)
			if child.Type() == "export_clause" {
				parent := child.Parent()
				spans = append(spans, clauseSpan{
					start:    int(child.StartByte()),
					end:      int(child.EndByte()),
					verbatim: parent != nil && moduleSource(parent) != nil,
				})
				continue
			}
			walk(child)
		}
	}
	walk(module.root)
	return spans
}

func clauseAt(spans []clauseSpan, pos int) *clauseSpan {
	for i := range spans {
		if pos >= spans[i].start && pos < spans[i].end {
			return &spans[i]
		}
	}
	return nil
}

// rewriteClauseWord handles one identifier inside a local export clause.
// Local position gains the short name with the original preserved behind
// `as`; alias position stays untouched.
func rewriteClauseWord(words []string, i int, word string, renames map[string]string) string {
	short, renamed := renames[word]
	if !renamed {
		return word
	}
	if prevMeaningful(words, i) == "as" {
		// Alias position: this is the external name.
		return word
	}
	if nextMeaningful(words, i) == "as" {
		// Local with an explicit alias following.
		return short
	}
	return short + " as " + word
}

func prevMeaningful(words []string, i int) string {
	for j := i - 1; j >= 0; j-- {
		if strings.TrimSpace(words[j]) == "" || isCommentToken(words[j]) {
			continue
		}
		return words[j]
	}
	return ""
}

func nextMeaningful(words []string, i int) string {
	for j := i + 1; j < len(words); j++ {
		if strings.TrimSpace(words[j]) == "" || isCommentToken(words[j]) {
			continue
		}
		return words[j]
	}
	return ""
}

func isCommentToken(word string) bool {
	return strings.HasPrefix(word, "//") || strings.HasPrefix(word, "/*")
}

func collapseWhitespace(words []string) string {
	var out strings.Builder
	for _, word := range words {
		if isCommentToken(word) {
			continue
		}
		if strings.TrimSpace(word) == "" {
			writeCollapsed(&out, word)
			continue
		}
		out.WriteString(word)
	}
	return strings.TrimSpace(out.String()) + "\n"
}

func writeCollapsed(out *strings.Builder, blank string) {
	if strings.ContainsRune(blank, '\n') {
		out.WriteString("\n")
		return
	}
	out.WriteString(" ")
}
