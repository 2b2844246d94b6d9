package textmate

import (
	"strings"

	"github.com/textmate-go/textmate/regexp"
)

// metaChars lists the regex metacharacters backreference substitution must
// escape when splicing captured text into an end/while pattern (§4.4).
const metaChars = `\|.*+?^$-:~#&()[]{}<>'`

func isRegexMeta(c byte) bool {
	return strings.IndexByte(metaChars, c) >= 0
}

// escapeForRegex prefixes every regex metacharacter in s with a backslash.
func escapeForRegex(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if isRegexMeta(s[i]) {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// substituteBackrefs walks source character by character, replacing \1..\9
// with the regex-escaped text captured by the corresponding group of
// beginMatch in beginLine, per §4.4:
//
//   - "\\" followed by "\\" emits a literal "\\\\" (the escape survives).
//   - "\" followed by a digit splices the escaped captured text, or
//     nothing if that group did not participate.
//   - "\" followed by anything else passes both characters through as-is.
//   - unescaped characters pass through verbatim.
func substituteBackrefs(source string, beginLine string, beginMatch []regexp.Range) string {
	var b strings.Builder
	escaped := false
	for i := 0; i < len(source); i++ {
		c := source[i]
		if !escaped {
			if c == '\\' {
				escaped = true
				continue
			}
			b.WriteByte(c)
			continue
		}
		escaped = false
		switch {
		case c == '\\':
			b.WriteString(`\\`)
		case c >= '0' && c <= '9':
			idx := int(c - '0')
			if idx < len(beginMatch) && beginMatch[idx].Participated() {
				b.WriteString(escapeForRegex(beginMatch[idx].Text(beginLine)))
			}
			// missing/non-participating group contributes nothing
		default:
			b.WriteByte('\\')
			b.WriteByte(c)
		}
	}
	return b.String()
}

// compileEndRegex produces the concrete end/while regex for a stack
// element, substituting backreferences against its begin-match snapshot.
func compileEndRegex(source string, beginLine string, beginMatch []regexp.Range) (*regexp.Regexp, error) {
	substituted := substituteBackrefs(source, beginLine, beginMatch)
	re, err := regexp.Compile(substituted, regexp.OptionNone)
	if err != nil {
		return nil, err
	}
	return re, nil
}
