// Package glob converts shell-style patterns to regular expressions that
// both Go and browser JavaScript accept.
package glob

import (
	"regexp"
	"strings"
)

// ToRegex converts a glob pattern to an anchored regular expression.
//
//	*      any run of characters except "/"
//	**/    zero or more leading directories
//	**     anything
//	?      one character except "/"
//	[ab]   a character class, [!ab] negated; "/" is dropped from classes
//	{a,b}  alternatives, which may nest
//	\x     x literally
func ToRegex(pattern string) string {
	return "^" + translate(pattern, true) + "$"
}

// TextRegex converts a glob pattern that matches free text rather than a
// path: "/" is an ordinary character, so "*" and "?" match it too.
func TextRegex(pattern string) string {
	return "^" + translate(pattern, false) + "$"
}

func translate(p string, path bool) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		switch {
		case !path && c == '*':
			b.WriteString(".*")
		case !path && c == '?':
			b.WriteByte('.')
		case strings.HasPrefix(p[i:], "**/"):
			b.WriteString("(.*/)?")
			i += 2
		case strings.HasPrefix(p[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		case c == '[':
			j := i + 1
			neg := j < len(p) && p[j] == '!'
			if neg {
				j++
			}
			n := strings.IndexByte(p[j:], ']')
			if n < 0 {
				b.WriteString(`\[`)
				continue
			}
			b.WriteByte('[')
			if neg {
				b.WriteByte('^')
			}
			class := p[j : j+n]
			if path {
				class = strings.ReplaceAll(class, "/", "")
			}
			b.WriteString(class)
			b.WriteByte(']')
			i = j + n
		case c == '{':
			end := closingBrace(p, i)
			if end < 0 {
				b.WriteString(`\{`)
				continue
			}
			b.WriteByte('(')
			for k, alt := range alternatives(p[i+1 : end]) {
				if k > 0 {
					b.WriteByte('|')
				}
				b.WriteString(translate(alt, path))
			}
			b.WriteByte(')')
			i = end
		case c == '\\':
			if i+1 == len(p) {
				b.WriteString(`\\`)
				continue
			}
			i++
			b.WriteString(regexp.QuoteMeta(p[i : i+1]))
		case strings.IndexByte(".+()|^$", c) >= 0:
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// closingBrace returns the index of the brace closing the one at open, or
// -1 when it is unbalanced.
func closingBrace(p string, open int) int {
	depth := 0
	for i := open; i < len(p); i++ {
		switch p[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// alternatives splits brace content on its top-level commas.
func alternatives(s string) []string {
	var parts []string
	depth, last := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '{':
			depth++
		case '}':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[last:i])
				last = i + 1
			}
		}
	}
	return append(parts, s[last:])
}

// Match reports whether s matches pattern.
func Match(pattern, s string) (bool, error) {
	return regexp.MatchString(ToRegex(pattern), s)
}

// Compile compiles pattern, case-insensitively when fold is set.
func Compile(pattern string, fold bool) (*regexp.Regexp, error) {
	expr := ToRegex(pattern)
	if fold {
		expr = "(?i)" + expr
	}
	return regexp.Compile(expr)
}

// CompileText compiles pattern with TextRegex.
func CompileText(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile(TextRegex(pattern))
}

// Extensions returns a pattern matching a file name ending in any of exts,
// e.g. "*.{gba,gbc,gb}". Leading dots on exts are ignored and glob
// metacharacters in them are escaped.
func Extensions(exts ...string) string {
	var parts []string
	for _, ext := range exts {
		ext = strings.TrimPrefix(ext, ".")
		if ext == "" {
			continue
		}
		var b strings.Builder
		for _, r := range ext {
			if strings.ContainsRune(`*?[]{},\`, r) {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		parts = append(parts, b.String())
	}
	switch len(parts) {
	case 0:
		return ""
	case 1:
		return "*." + parts[0]
	}
	return "*.{" + strings.Join(parts, ",") + "}"
}
