package literal

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

func TestIPv4Suffix(t *testing.T) {
	testCases := [...]struct {
		in       string
		expected int
	}{
		0: {"1.2.3.4", 0},
		1: {"255.255.255.255", 0},
		2: {"1.2.3.256", -1},
		3: {"IPv6:1111:2222:3333:4444:5555:6666:255.255.255.255", 35},
		4: {"x11.2.3.4", -1},
		5: {"1.2.3.4.5", 2},
		6: {"1.2.3", -1},
		7: {"", -1},
		8: {"01.002.3.4", 0},
	}
	for i, tc := range testCases {
		assert.Equal(t, tc.expected, IPv4Suffix(tc.in), "#%d: %q", i, tc.in)
	}
}

func TestClassify(t *testing.T) {
	d := func(ds ...diagnosis.Diagnosis) []diagnosis.Diagnosis { return ds }
	testCases := [...]struct {
		in       string
		expected []diagnosis.Diagnosis
	}{
		0:  {"1.2.3.4", d(diagnosis.RFC5321AddressLiteral)},
		1:  {"1.2.3.256", d(diagnosis.RFC5322DomainLiteral)},
		2:  {"example.com", d(diagnosis.RFC5322DomainLiteral)},
		3:  {"IPv5:::12.34.56.78", d(diagnosis.RFC5322DomainLiteral)},
		4:  {"IPv6:1111:2222:3333:4444:5555:6666:7777:8888", d(diagnosis.RFC5321AddressLiteral)},
		5:  {"ipv6:1111:2222:3333:4444:5555:6666:7777:8888", d(diagnosis.RFC5321AddressLiteral)},
		6:  {"IPv6:1111:2222:3333:4444:5555:6666:7777", d(diagnosis.RFC5322IPv6GrpCount, diagnosis.RFC5321AddressLiteral)},
		7:  {"IPv6:1111:2222:3333:4444:5555:6666:7777:8888:9999", d(diagnosis.RFC5322IPv6GrpCount, diagnosis.RFC5321AddressLiteral)},
		8:  {"IPv6:1111:2222:3333:4444:5555:6666:7777:888G", d(diagnosis.RFC5322IPv6BadChar)},
		9:  {"IPv6:1111:2222:3333:4444:5555:6666::8888", d(diagnosis.RFC5321IPv6Deprecated, diagnosis.RFC5321AddressLiteral)},
		10: {"IPv6:1111:2222:3333:4444:5555::8888", d(diagnosis.RFC5321AddressLiteral)},
		11: {"IPv6:1111:2222:3333:4444:5555:6666::7777:8888", d(diagnosis.RFC5322IPv6MaxGrps, diagnosis.RFC5321AddressLiteral)},
		12: {"IPv6:::3333:4444:5555:6666:7777:8888", d(diagnosis.RFC5321AddressLiteral)},
		13: {"IPv6::3333:4444:5555:6666:7777:8888", d(diagnosis.RFC5322IPv6GrpCount, diagnosis.RFC5322IPv6ColonStrt)},
		14: {"IPv6:1111:2222:3333:4444:5555:6666:7777:", d(diagnosis.RFC5322IPv6ColonEnd)},
		15: {"IPv6:1111::4444:5555::8888", d(diagnosis.RFC5322IPv62x2xColon, diagnosis.RFC5321AddressLiteral)},
		16: {"IPv6:::", d(diagnosis.RFC5321AddressLiteral)},
		17: {"IPv6:1111:2222:3333:4444:5555:255.255.255.255", d(diagnosis.RFC5322IPv6GrpCount, diagnosis.RFC5321AddressLiteral)},
		18: {"IPv6:1111:2222:3333:4444:5555:6666:255.255.255.255", d(diagnosis.RFC5321AddressLiteral)},
		19: {"IPv6:1111:2222:3333:4444::255.255.255.255", d(diagnosis.RFC5321AddressLiteral)},
		20: {"IPv6:1111:2222:3333:4444:5555:6666::255.255.255.255", d(diagnosis.RFC5322IPv6MaxGrps, diagnosis.RFC5321AddressLiteral)},
		21: {"IPv6:1111:2222:3333:4444:::255.255.255.255", d(diagnosis.RFC5322IPv62x2xColon, diagnosis.RFC5321AddressLiteral)},
		22: {"IPv6", d(diagnosis.RFC5322DomainLiteral)},
	}
	for i, tc := range testCases {
		assert.Equal(t, tc.expected, Classify(tc.in), "#%d: %q", i, tc.in)
	}
}
