package dtsbundle

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strings"

	"github.com/cockroachdb/errors"
)

// Dynamic type imports (`import('mod').Name`, with optional further accesses)
// cannot survive as-is: the bundler would treat them as runtime code. They are
// rewritten into synthesised static imports plus an aliased local, and the
// token stream references the alias instead.
//
// Accepted surface: `import ( QUOTE spec QUOTE ) ACCESS*` where
// ACCESS ::= .Ident | [QUOTE text QUOTE]. A head without a parenthesised
// quoted specifier, or a `.` not followed by an identifier, is a fatal error
// for the file; any other unit after the head ends the access chain.

type dynamicAccess struct {
	// name is the property for `.name` accesses and the unquoted text of
	// `["name"]` accesses; computed marks the bracket form.
	name     string
	computed bool
}

// expandDynamicImport consumes a dynamic import expression from the lexical
// unit stream starting at `start` (which holds the `import` word). It returns
// the identifier token to emit, the statements to inject ahead of the current
// declaration, and the index of the first unconsumed unit.
func (s *forwardState) expandDynamicImport(words []string, start int) (string, []string, int, error) {
	specifier, accesses, next, err := parseDynamicImport(words, start)
	if err != nil {
		return "", nil, 0, err
	}

	var injected []string

	if len(accesses) == 0 {
		alias, fresh := s.dynamicAlias(specifier, "*")
		if fresh {
			injected = append(injected, fmt.Sprintf("import * as %s from %s;", alias, quotedSpecifier(specifier)))
		}
		return alias, injected, next, nil
	}

	first := accesses[0]
	if isIdentifierWord(first.name) {
		alias, fresh := s.dynamicAlias(specifier, first.name)
		if fresh {
			injected = append(injected, fmt.Sprintf("import { %s as %s } from %s;", first.name, alias, quotedSpecifier(specifier)))
		}
		if len(accesses) == 1 {
			return alias, injected, next, nil
		}
		local := localAliasName(specifier, accesses)
		injected = append(injected, fmt.Sprintf("var %s = %s%s;", local, alias, renderAccesses(accesses[1:])))
		return local, injected, next, nil
	}

	// Computed first access with non-identifier text: go through a namespace
	// import and keep the whole chain.
	alias, fresh := s.dynamicAlias(specifier, "*")
	if fresh {
		injected = append(injected, fmt.Sprintf("import * as %s from %s;", alias, quotedSpecifier(specifier)))
	}
	local := localAliasName(specifier, accesses)
	injected = append(injected, fmt.Sprintf("var %s = %s%s;", local, alias, renderAccesses(accesses)))
	return local, injected, next, nil
}

// parseDynamicImport walks the unit stream against the accepted grammar.
func parseDynamicImport(words []string, start int) (specifier string, accesses []dynamicAccess, next int, err error) {
	i := skipBlank(words, start+1)
	if i >= len(words) || words[i] != "(" {
		return "", nil, 0, invalidDynamicImport(words, start)
	}
	i = skipBlank(words, i+1)
	spec, ok := quotedValue(wordAt(words, i))
	if !ok {
		return "", nil, 0, invalidDynamicImport(words, start)
	}
	i = skipBlank(words, i+1)
	if i >= len(words) || words[i] != ")" {
		return "", nil, 0, invalidDynamicImport(words, start)
	}
	i++

	for {
		j := skipBlank(words, i)
		switch wordAt(words, j) {
		case ".":
			j = skipBlank(words, j+1)
			if !isIdentifierWord(wordAt(words, j)) {
				return "", nil, 0, invalidDynamicImport(words, start)
			}
			accesses = append(accesses, dynamicAccess{name: words[j]})
			i = j + 1
		case "[":
			// Only a quoted computed access belongs to the chain; anything
			// else (an array-type suffix, an indexed access on the result)
			// ends it.
			j = skipBlank(words, j+1)
			text, ok := quotedValue(wordAt(words, j))
			if !ok {
				return spec, accesses, i, nil
			}
			j = skipBlank(words, j+1)
			if wordAt(words, j) != "]" {
				return spec, accesses, i, nil
			}
			accesses = append(accesses, dynamicAccess{name: text, computed: true})
			i = j + 1
		default:
			return spec, accesses, i, nil
		}
	}
}

func invalidDynamicImport(words []string, start int) error {
	end := start + 8
	if end > len(words) {
		end = len(words)
	}
	return errors.Wrapf(ErrInvalidDynamicImport, "near %q", strings.Join(words[start:end], ""))
}

func skipBlank(words []string, i int) int {
	for i < len(words) && strings.TrimSpace(words[i]) == "" {
		i++
	}
	return i
}

func wordAt(words []string, i int) string {
	if i < 0 || i >= len(words) {
		return ""
	}
	return words[i]
}

// quotedValue unwraps a single- or double-quoted lexical unit.
func quotedValue(word string) (string, bool) {
	if len(word) < 2 {
		return "", false
	}
	if (word[0] == '\'' && word[len(word)-1] == '\'') || (word[0] == '"' && word[len(word)-1] == '"') {
		return word[1 : len(word)-1], true
	}
	return "", false
}

func quotedSpecifier(specifier string) string {
	return `"` + specifier + `"`
}

// dynamicAlias returns the injected identifier for a specifier/property pair,
// reusing the existing one when the same type was imported before. The suffix
// is a content hash so repeated runs stay stable.
func (s *forwardState) dynamicAlias(specifier, property string) (string, bool) {
	key := specifier + "\x00" + property
	if alias, ok := s.dynamic[key]; ok {
		return alias, false
	}
	base := property
	if property == "*" {
		base = lastSpecifierSegment(specifier)
	}
	alias := sanitizeIdentifier(base) + "_" + contentSuffix(specifier, property)
	s.dynamic[key] = alias
	s.referenced[alias] = true
	return alias, true
}

// localAliasName names the `var V = ...;` local for access chains. One-shot:
// a random suffix keeps distinct chains from colliding without tracking them.
func localAliasName(specifier string, accesses []dynamicAccess) string {
	base := sanitizeIdentifier(accesses[len(accesses)-1].name)
	return base + "_" + randomSuffix()
}

func renderAccesses(accesses []dynamicAccess) string {
	var sb strings.Builder
	for _, access := range accesses {
		if access.computed {
			sb.WriteString("[")
			sb.WriteString(quotedSpecifier(access.name))
			sb.WriteString("]")
		} else {
			sb.WriteString(".")
			sb.WriteString(access.name)
		}
	}
	return sb.String()
}

func contentSuffix(specifier, property string) string {
	sum := sha256.Sum256([]byte(specifier + "\x00" + property))
	return hex.EncodeToString(sum[:4])
}

const suffixAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomSuffix() string {
	b := make([]byte, 8)
	for i := range b {
		b[i] = suffixAlphabet[rand.Intn(len(suffixAlphabet))]
	}
	return string(b)
}

func sanitizeIdentifier(name string) string {
	var sb strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '$':
			sb.WriteRune(r)
		case r >= '0' && r <= '9':
			if sb.Len() == 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r)
		default:
			sb.WriteByte('_')
		}
	}
	if sb.Len() == 0 {
		return "m"
	}
	return sb.String()
}

func lastSpecifierSegment(specifier string) string {
	specifier = strings.TrimSuffix(specifier, "/")
	if idx := strings.LastIndexByte(specifier, '/'); idx >= 0 {
		specifier = specifier[idx+1:]
	}
	if idx := strings.IndexByte(specifier, ':'); idx >= 0 {
		specifier = specifier[idx+1:]
	}
	return specifier
}
