package backend

import "strings"

// namedArgsDelimiter separates multiple argument values formatted in a
// single pass before they are split back apart on the decode side, avoiding
// one fmt call per named argument on the producer side. Ported from quill's
// _format_and_split_arguments, which joins with a private three-byte
// delimiter for the same reason.
const namedArgsDelimiter = "\x01\x02\x03"

// namedArgToken is one parsed placeholder from a message template: either a
// literal run of text, or a `{name}` reference into the argument list.
type namedArgToken struct {
	literal string
	name    string
	isArg   bool
}

// parseNamedArgsTemplate scans pattern for `{name}` placeholders, treating
// `{{` and `}}` as escaped literal braces, the same escaping rule quill's
// _process_named_args_format_message applies while bracket-scanning a
// message template once, so the parsed token list can be cached and reused
// across every record built from this call site.
func parseNamedArgsTemplate(pattern string) []namedArgToken {
	var tokens []namedArgToken
	var literal strings.Builder

	flushLiteral := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, namedArgToken{literal: literal.String()})
			literal.Reset()
		}
	}

	i := 0
	for i < len(pattern) {
		c := pattern[i]
		switch {
		case c == '{' && i+1 < len(pattern) && pattern[i+1] == '{':
			literal.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(pattern) && pattern[i+1] == '}':
			literal.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(pattern[i:], '}')
			if end < 0 {
				// Unterminated placeholder: treat the rest as literal.
				literal.WriteString(pattern[i:])
				i = len(pattern)
				continue
			}
			flushLiteral()
			name := pattern[i+1 : i+end]
			tokens = append(tokens, namedArgToken{name: name, isArg: true})
			i += end + 1
		default:
			literal.WriteByte(c)
			i++
		}
	}
	flushLiteral()
	return tokens
}

// renderNamedArgsTokens substitutes each `{name}` token with its matching
// value from values, leaving unmatched names blank.
func renderNamedArgsTokens(tokens []namedArgToken, values map[string]string) string {
	var b strings.Builder
	for _, t := range tokens {
		if !t.isArg {
			b.WriteString(t.literal)
			continue
		}
		b.WriteString(values[t.name])
	}
	return b.String()
}

// splitJoinedArgValues splits a single delimiter-joined string produced by a
// producer-side formatAll pass back into its individual argument values,
// the decode-side half of quill's _format_and_split_arguments trick.
func splitJoinedArgValues(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, namedArgsDelimiter)
}
