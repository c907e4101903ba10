package address

import (
	"strings"
)

// SplitList pulls the addr-specs out of the body of an address-list header
// field such as To or Cc. Display names, angle brackets and group syntax
// are removed; whatever remains of each mailbox is returned untouched so
// that it can be diagnosed.
//
// Commas and colons inside quoted strings, comments and domain literals are
// not treated as delimiters.
func SplitList(v string) []string {
	var retval []string
	var depth int // comment nesting
	var quoted, escaped, inLiteral bool
	start := 0
	angle, angleEnd := -1, -1

	flush := func(end int) {
		s := v[start:end]
		if angle >= 0 {
			e := end
			if angleEnd >= 0 {
				e = angleEnd
			}
			s = v[angle:e]
		}
		s = strings.Trim(s, " \t\r\n")
		if s != "" {
			retval = append(retval, s)
		}
		start = end + 1
		angle, angleEnd = -1, -1
	}

	for i := 0; i < len(v); i++ {
		c := v[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && (quoted || depth > 0 || inLiteral):
			escaped = true
		case quoted:
			if c == '"' {
				quoted = false
			}
		case depth > 0:
			switch c {
			case '(':
				depth++
			case ')':
				depth--
			}
		case inLiteral:
			if c == ']' {
				inLiteral = false
			}
		default:
			switch c {
			case '"':
				quoted = true
			case '(':
				depth++
			case '[':
				inLiteral = true
			case '<':
				angle = i + 1
			case '>':
				if angle >= 0 {
					angleEnd = i
				}
			case ':':
				// group display-name
				if angle < 0 {
					start = i + 1
				}
			case ',', ';':
				if angle < 0 || angleEnd >= 0 {
					flush(i)
				}
			}
		}
	}
	if start < len(v) || angle >= 0 {
		flush(len(v))
	}
	return retval
}
