// Package literal classifies the body of a domain literal ("[...]") as an
// RFC 5321 address literal where possible.
package literal

import (
	"regexp"
	"strings"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

// IPv6Tag prefixes an IPv6 address literal. It is matched case-insensitively.
const IPv6Tag = "IPv6:"

const ipv6Groups = 8

var (
	ipv4Suffix = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	ipv6Group  = regexp.MustCompile(`^[0-9A-Fa-f]{0,4}$`)
)

// IPv4Suffix returns the offset of a dotted-quad IPv4 address that ends s,
// or -1 if there is none.
func IPv4Suffix(s string) int {
	loc := ipv4Suffix.FindStringIndex(s)
	if loc == nil {
		return -1
	}
	return loc[0]
}

// CheckIPv6 validates the text that follows the IPv6 tag. An embedded IPv4
// tail must already have been replaced by two zero groups. More than one
// diagnosis may be produced; the last one is either a syntax complaint or
// RFC5321AddressLiteral.
func CheckIPv6(addr string) []diagnosis.Diagnosis {
	var ds []diagnosis.Diagnosis

	groups := strings.Split(addr, ":")
	maxGroups := ipv6Groups
	idx := strings.Index(addr, "::")
	if idx < 0 {
		if len(groups) != maxGroups {
			ds = append(ds, diagnosis.RFC5322IPv6GrpCount)
		}
	} else if idx != strings.LastIndex(addr, "::") {
		ds = append(ds, diagnosis.RFC5322IPv62x2xColon)
	} else {
		// a leading or trailing "::" yields one extra empty group
		if idx == 0 || idx == len(addr)-2 {
			maxGroups++
		}
		switch {
		case len(groups) > maxGroups:
			ds = append(ds, diagnosis.RFC5322IPv6MaxGrps)
		case len(groups) == maxGroups:
			ds = append(ds, diagnosis.RFC5321IPv6Deprecated)
		}
	}

	switch {
	case strings.HasPrefix(addr, ":") && !strings.HasPrefix(addr, "::"):
		ds = append(ds, diagnosis.RFC5322IPv6ColonStrt)
	case strings.HasSuffix(addr, ":") && !strings.HasSuffix(addr, "::"):
		ds = append(ds, diagnosis.RFC5322IPv6ColonEnd)
	case !allMatch(ipv6Group, groups):
		ds = append(ds, diagnosis.RFC5322IPv6BadChar)
	default:
		ds = append(ds, diagnosis.RFC5321AddressLiteral)
	}
	return ds
}

func allMatch(re *regexp.Regexp, ss []string) bool {
	for _, s := range ss {
		if !re.MatchString(s) {
			return false
		}
	}
	return true
}

// Classify inspects the body of a closed domain literal.
//
// A body that is exactly a dotted quad is an address literal. A body that
// ends in one has the quad replaced by "0:0" and is then checked as IPv6.
// Anything without the IPv6 tag is a general RFC 5322 domain literal.
func Classify(body string) []diagnosis.Diagnosis {
	if i := IPv4Suffix(body); i == 0 {
		return []diagnosis.Diagnosis{diagnosis.RFC5321AddressLiteral}
	} else if i > 0 {
		body = body[:i] + "0:0"
	}
	if len(body) < len(IPv6Tag) || !strings.EqualFold(body[:len(IPv6Tag)], IPv6Tag) {
		return []diagnosis.Diagnosis{diagnosis.RFC5322DomainLiteral}
	}
	return CheckIPv6(body[len(IPv6Tag):])
}
