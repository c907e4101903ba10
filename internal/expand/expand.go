// Package expand decodes the placeholder notations used to keep control
// characters out of text fixtures.
package expand

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var re = regexp.MustCompile(`\$\{([a-zA-Z0-9_.-]+)\}`)

// Expand replaces every ${name} in v with mapping(name).
func Expand(v string, mapping func(string) string) string {
	return re.ReplaceAllStringFunc(v, func(s string) string {
		return mapping(s[2 : len(s)-1])
	})
}

// ExpandStrict is like Expand but fails on the first name the mapping does
// not know.
func ExpandStrict(v string, mapping func(string) (string, bool)) (string, error) {
	var err error
	retval := Expand(v, func(name string) string {
		s, ok := mapping(name)
		if !ok && err == nil {
			err = fmt.Errorf("unknown placeholder ${%s}", name)
		}
		return s
	})
	if err != nil {
		return "", err
	}
	return retval, nil
}

var octetNames = map[string]string{
	"NUL":  "\x00",
	"HT":   "\t",
	"LF":   "\n",
	"CR":   "\r",
	"CRLF": "\r\n",
	"SP":   " ",
	"DEL":  "\x7f",
}

// Octets maps a placeholder name to the octets it stands for: one of NUL, HT,
// LF, CR, CRLF, SP and DEL, or xNN for an arbitrary octet in hex.
func Octets(name string) (string, bool) {
	if s, ok := octetNames[name]; ok {
		return s, true
	}
	if len(name) == 3 && name[0] == 'x' {
		if n, err := strconv.ParseUint(name[1:], 16, 8); err == nil {
			return string([]byte{byte(n)}), true
		}
	}
	return "", false
}

const controlPictures = 0x2400 // SYMBOL FOR NULL

// ControlPictures turns the Unicode control pictures U+2400 to U+241F back
// into the C0 octets they depict. The pair U+240D U+240A becomes CRLF like
// any other sequence of the two.
func ControlPictures(v string) string {
	if !strings.ContainsFunc(v, isControlPicture) {
		return v
	}
	var b strings.Builder
	b.Grow(len(v))
	for _, r := range v {
		if isControlPicture(r) {
			b.WriteByte(byte(r - controlPictures))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isControlPicture(r rune) bool {
	return r >= controlPictures && r < controlPictures+0x20
}

// Decode applies both notations. Unknown placeholders are an error.
func Decode(v string) (string, error) {
	s, err := ExpandStrict(v, Octets)
	if err != nil {
		return "", err
	}
	return ControlPictures(s), nil
}
