package address

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

func TestParseDiagnosis(t *testing.T) {
	label63 := strings.Repeat("a", 63)
	cases := [...]struct {
		input    string
		expected diagnosis.Diagnosis
	}{
		0:  {"", diagnosis.ErrNoLocalPart},
		1:  {"test", diagnosis.ErrNoDomain},
		2:  {"@", diagnosis.ErrNoLocalPart},
		3:  {"test@", diagnosis.ErrNoDomain},
		4:  {"test@io", diagnosis.Valid},
		5:  {"@io", diagnosis.ErrNoLocalPart},
		6:  {"@iana.org", diagnosis.ErrNoLocalPart},
		7:  {"test@iana.org", diagnosis.Valid},
		8:  {"test@nominet.org.uk", diagnosis.Valid},
		9:  {"a@iana.org", diagnosis.Valid},
		10: {"test.test@iana.org", diagnosis.Valid},
		11: {".test@iana.org", diagnosis.ErrDotStart},
		12: {"test.@iana.org", diagnosis.ErrDotEnd},
		13: {"test..iana.org", diagnosis.ErrConsecutiveDots},
		14: {"test_exa-mple.com", diagnosis.ErrNoDomain},
		15: {"!#$%&`*+/=?^`{|}~@iana.org", diagnosis.Valid},
		16: {"test\\@test@iana.org", diagnosis.ErrExpectingAtext},
		17: {"123@iana.org", diagnosis.Valid},
		18: {"test@123.com", diagnosis.Valid},
		19: {"test@iana.123", diagnosis.Valid},
		20: {strings.Repeat("a", 64) + "@iana.org", diagnosis.Valid},
		21: {strings.Repeat("a", 65) + "@iana.org", diagnosis.RFC5322LocalTooLong},
		22: {"test@" + strings.Repeat("a", 64) + ".com", diagnosis.RFC5322LabelTooLong},
		23: {"test@mason-dixon.com", diagnosis.Valid},
		24: {"test@-iana.org", diagnosis.ErrDomainHyphenStart},
		25: {"test@iana-.com", diagnosis.ErrDomainHyphenEnd},
		26: {"test@g--a.com", diagnosis.Valid},
		27: {"test@.iana.org", diagnosis.ErrDotStart},
		28: {"test@iana.org.", diagnosis.ErrDotEnd},
		29: {"test@iana..com", diagnosis.ErrConsecutiveDots},
		30: {`"test"@iana.org`, diagnosis.RFC5321QuotedString},
		31: {`""@iana.org`, diagnosis.RFC5321QuotedString},
		32: {`"""@iana.org`, diagnosis.ErrExpectingAtext},
		33: {`"\a"@iana.org`, diagnosis.RFC5321QuotedString},
		34: {`"\""@iana.org`, diagnosis.RFC5321QuotedString},
		35: {`"\"@iana.org`, diagnosis.ErrUnclosedQuotedStr},
		36: {`"\\"@iana.org`, diagnosis.RFC5321QuotedString},
		37: {`test"@iana.org`, diagnosis.ErrExpectingAtext},
		38: {`"test@iana.org`, diagnosis.ErrUnclosedQuotedStr},
		39: {`"test"test@iana.org`, diagnosis.ErrAtextAfterQS},
		40: {`test"text"@iana.org`, diagnosis.ErrExpectingAtext},
		41: {`"test""test"@iana.org`, diagnosis.ErrExpectingAtext},
		42: {`"test"."test"@iana.org`, diagnosis.DeprecLocalPart},
		43: {`"test\ test"@iana.org`, diagnosis.RFC5321QuotedString},
		44: {`"test".test@iana.org`, diagnosis.DeprecLocalPart},
		45: {"\"test\x00\"@iana.org", diagnosis.ErrExpectingQtext},
		46: {"\"test\\\x00\"@iana.org", diagnosis.DeprecQP},
		47: {"test@[255.255.255.255]", diagnosis.RFC5321AddressLiteral},
		48: {"test@a[255.255.255.255]", diagnosis.ErrExpectingAtext},
		49: {"test@[255.255.255]", diagnosis.RFC5322DomainLiteral},
		50: {"test@[255.255.255.255.255]", diagnosis.RFC5322DomainLiteral},
		51: {"test@[255.255.255.256]", diagnosis.RFC5322DomainLiteral},
		52: {"test@[1111:2222:3333:4444:5555:6666:7777:8888]", diagnosis.RFC5322DomainLiteral},
		53: {"test@[IPv6:1111:2222:3333:4444:5555:6666:7777]", diagnosis.RFC5322IPv6GrpCount},
		54: {"test@[IPv6:1111:2222:3333:4444:5555:6666:7777:8888]", diagnosis.RFC5321AddressLiteral},
		55: {"test@[IPv6:1111:2222:3333:4444:5555:6666:7777:8888:9999]", diagnosis.RFC5322IPv6GrpCount},
		56: {"test@[IPv6:1111:2222:3333:4444:5555:6666:7777:888G]", diagnosis.RFC5322IPv6BadChar},
		57: {"test@[IPv6:1111:2222:3333:4444:5555:6666::8888]", diagnosis.RFC5321IPv6Deprecated},
		58: {"test@[IPv6:1111:2222:3333:4444:5555::8888]", diagnosis.RFC5321AddressLiteral},
		59: {"test@[IPv6:1111:2222:3333:4444:5555:6666::7777:8888]", diagnosis.RFC5322IPv6MaxGrps},
		60: {"test@[IPv6::3333:4444:5555:6666:7777:8888]", diagnosis.RFC5322IPv6ColonStrt},
		61: {"test@[IPv6:::3333:4444:5555:6666:7777:8888]", diagnosis.RFC5321AddressLiteral},
		62: {"test@[IPv6:1111::4444:5555::8888]", diagnosis.RFC5322IPv62x2xColon},
		63: {"test@[IPv6:::]", diagnosis.RFC5321AddressLiteral},
		64: {"test@[IPv6:1111:2222:3333:4444:5555:255.255.255.255]", diagnosis.RFC5322IPv6GrpCount},
		65: {"test@[IPv6:1111:2222:3333:4444:5555:6666:255.255.255.255]", diagnosis.RFC5321AddressLiteral},
		66: {"test@[IPv6:1111:2222:3333:4444:5555:6666:7777:255.255.255.255]", diagnosis.RFC5322IPv6GrpCount},
		67: {"test@[IPv6:1111:2222:3333:4444::255.255.255.255]", diagnosis.RFC5321AddressLiteral},
		68: {"test@[IPv6:1111:2222:3333:4444:5555:6666::255.255.255.255]", diagnosis.RFC5322IPv6MaxGrps},
		69: {"test@[IPv6:1111:2222:3333:4444:::255.255.255.255]", diagnosis.RFC5322IPv62x2xColon},
		70: {"test@[IPv6::255.255.255.255]", diagnosis.RFC5322IPv6ColonStrt},
		71: {" test @iana.org", diagnosis.DeprecCFWSNearAt},
		72: {"test@ iana .com", diagnosis.DeprecCFWSNearAt},
		73: {"test . test@iana.org", diagnosis.DeprecFWS},
		74: {"\r\n test@iana.org", diagnosis.CFWSFWS},
		75: {"\r\n \r\n test@iana.org", diagnosis.DeprecFWS},
		76: {"\r\ntest@iana.org", diagnosis.ErrFWSCRLFEnd},
		77: {"\r\n \r\ntest@iana.org", diagnosis.ErrFWSCRLFEnd},
		78: {"\r\n\r\n test@iana.org", diagnosis.ErrFWSCRLFx2},
		79: {" \r\n test@iana.org", diagnosis.CFWSFWS},
		80: {" \r\ntest@iana.org", diagnosis.ErrFWSCRLFEnd},
		81: {" \r\n \r\n test@iana.org", diagnosis.DeprecFWS},
		82: {"test@iana.org \r\n ", diagnosis.CFWSFWS},
		83: {"test@iana.org \r\n", diagnosis.ErrFWSCRLFEnd},
		84: {"test@iana.org\r\n", diagnosis.ErrFWSCRLFEnd},
		85: {"test@iana.org \r", diagnosis.ErrCRNoLF},
		86: {"\rtest@iana.org", diagnosis.ErrCRNoLF},
		87: {"test@iana.org\n", diagnosis.ErrExpectingAtext},
		88: {"(comment)test@iana.org", diagnosis.CFWSComment},
		89: {"((comment)test@iana.org", diagnosis.ErrUnclosedComment},
		90: {"(comment(comment))test@iana.org", diagnosis.CFWSComment},
		91: {"test@(comment)iana.org", diagnosis.DeprecCFWSNearAt},
		92: {"test(comment)test@iana.org", diagnosis.ErrAtextAfterCFWS},
		93: {"test@(comment)[255.255.255.255]", diagnosis.DeprecCFWSNearAt},
		94: {"test@iana.org(comment)", diagnosis.CFWSComment},
		95: {"test@iana(comment)iana.org", diagnosis.ErrAtextAfterCFWS},
		96: {"test.(comment)test@iana.org", diagnosis.DeprecComment},
		97: {"test@[\\255.255.255.255]", diagnosis.RFC5322DomLitObsDtext},
		98: {"test@[255.255.255.255]test", diagnosis.ErrAtextAfterDomLit},
		99: {"test@[255.255.255.255", diagnosis.ErrUnclosedDomLit},
		100: {"test@iana/icann.org", diagnosis.RFC5322Domain},
		101: {"test@[RFC-5322-domain-literal]", diagnosis.RFC5322DomainLiteral},
		102: {"test@[RFC-5322]-domain-literal]", diagnosis.ErrAtextAfterDomLit},
		103: {"test@[RFC-5322-[domain-literal]", diagnosis.ErrExpectingDtext},
		104: {"test@[RFC-5322-\\\x07-domain-literal]", diagnosis.RFC5322DomLitObsDtext},
		105: {"test@[RFC-5322-\\]-domain-literal]", diagnosis.RFC5322DomLitObsDtext},
		106: {"test@[RFC 5322 domain literal]", diagnosis.RFC5322DomainLiteral},
		107: {"test@iana.org-", diagnosis.ErrDomainHyphenEnd},
		108: {"(test@iana.org", diagnosis.ErrUnclosedComment},
		109: {"test@(iana.org", diagnosis.ErrUnclosedComment},
		110: {"(comment\\)test@iana.org", diagnosis.ErrUnclosedComment},
		111: {"test@iana.org(comment\\", diagnosis.ErrBackslashEnd},
		112: {"test@iana.org\\", diagnosis.ErrExpectingAtext},
		113: {"test@iana.org \r\n\r\n ", diagnosis.ErrFWSCRLFx2},
		114: {"test@example.com", diagnosis.Valid},
		115: {"\"a\r\n b\"@example.com", diagnosis.CFWSFWS},
		116: {"test@xn--hxajbheg2az3al.xn--jxalpdlp", diagnosis.Valid},
		117: {"t\xc3\xa9st@iana.org", diagnosis.ErrExpectingAtext},
		118: {"\"t\xc3\xa9st\"@iana.org", diagnosis.ErrExpectingQtext},
		119: {"(\x07)test@iana.org", diagnosis.DeprecCtext},
		120: {"(\x00)test@iana.org", diagnosis.ErrExpectingCtext},
		121: {"\"\x07\"@iana.org", diagnosis.DeprecQtext},
		122: {"\"\\\x7f\"@iana.org", diagnosis.DeprecQP},
		123: {"\"\\\xa9\"@iana.org", diagnosis.ErrExpectingQpair},
		124: {"test@[\x7f]", diagnosis.RFC5322DomLitObsDtext},
		125: {"test@[\x80]", diagnosis.ErrExpectingDtext},
		126: {"test@" + strings.Join([]string{label63, label63, label63, label63, "a"}, "."), diagnosis.RFC5322DomainTooLong},
		127: {strings.Repeat("a", 64) + "@" + strings.Join([]string{label63, label63, strings.Repeat("a", 62)}, "."), diagnosis.RFC5322TooLong},
		128: {"test@iana." + strings.Repeat("a", 64), diagnosis.RFC5322LabelTooLong},
		129: {"test@iana.org \r\n \r\n ", diagnosis.DeprecFWS},
		130: {"test@iana.org \r\n \r\n", diagnosis.ErrFWSCRLFEnd},
	}
	for i, c := range cases {
		r := Parse(c.input)
		assert.Equal(t, c.expected, r.Max(), "#%d: %q got %v", i, c.input, r.Diagnoses())
	}
}

func TestParseIsIdempotent(t *testing.T) {
	inputs := []string{"test@iana.org", " test . test @ iana . org ", "\"a\r\n b\"@example.com", "test@[IPv6:::]"}
	for _, input := range inputs {
		assert.Equal(t, Parse(input), Parse(input))
	}
}

func TestParseComponents(t *testing.T) {
	r := Parse("first.last@sub.iana.org")
	assert.Equal(t, "first.last", r.LocalPart)
	assert.Equal(t, "sub.iana.org", r.Domain)
	assert.Equal(t, []string{"first", "last"}, r.LocalAtoms)
	assert.Equal(t, []string{"sub", "iana", "org"}, r.DomainAtoms)
	assert.Equal(t, 2, r.LabelCount())
	assert.Equal(t, "org", r.TopLabel())
	assert.Equal(t, "first.last@sub.iana.org", r.Address())
	assert.Equal(t, Domain, r.End)
	assert.Equal(t, []diagnosis.Diagnosis{diagnosis.Valid}, r.Diagnoses())

	r = Parse("\"a\r\n b\"@example.com")
	assert.Equal(t, `"a b"`, r.LocalPart)
	assert.Equal(t, []diagnosis.Diagnosis{diagnosis.RFC5321QuotedString, diagnosis.CFWSFWS}, r.Diagnoses())

	r = Parse(`"test\ test"@iana.org`)
	assert.Equal(t, `"test\ test"`, r.LocalPart)

	r = Parse("test@[IPv6:1111:2222:3333:4444:5555:6666::8888]")
	assert.Equal(t, "[IPv6:1111:2222:3333:4444:5555:6666::8888]", r.Domain)
	assert.Equal(t, "IPv6:1111:2222:3333:4444:5555:6666::8888", r.Literal)
	assert.Equal(t, 0, r.LabelCount())
	assert.Equal(t, []diagnosis.Diagnosis{diagnosis.RFC5321IPv6Deprecated, diagnosis.RFC5321AddressLiteral}, r.Diagnoses())

	r = Parse("(a)test(b)@(c)iana.org(d)")
	assert.Equal(t, "test", r.LocalPart)
	assert.Equal(t, "iana.org", r.Domain)
}

func TestParseDiagnosesAreUnique(t *testing.T) {
	r := Parse("test . test . test@iana.org")
	assert.Equal(t, []diagnosis.Diagnosis{diagnosis.DeprecLocalPart, diagnosis.DeprecFWS}, r.Diagnoses())
}

func TestParseStopsAtFatal(t *testing.T) {
	r := Parse("te\"st@iana.org")
	assert.Equal(t, diagnosis.ErrExpectingAtext, r.Max())
	assert.Equal(t, "te", r.LocalPart)
	assert.Empty(t, r.Domain)
}

func TestParseCategories(t *testing.T) {
	// Every diagnosis the scanner produces must map back to a category.
	inputs := []string{"", "test@iana.org", "(x)test@iana.org", "test@[1.2.3.4]", "a..b@c"}
	for _, input := range inputs {
		for _, d := range Parse(input).Diagnoses() {
			assert.NotZero(t, d.Category(), "%q: %v", input, d)
		}
	}
}

func TestAddressParserObserve(t *testing.T) {
	type event struct {
		pos int
		ctx Context
		d   diagnosis.Diagnosis
	}
	var events []event
	p := &AddressParser{
		Observe: func(pos int, ctx Context, d diagnosis.Diagnosis) {
			events = append(events, event{pos, ctx, d})
		},
	}
	r := p.Parse("(c)a@b")
	require.NotNil(t, r)
	assert.Equal(t, []event{{0, LocalPart, diagnosis.CFWSComment}}, events)

	events = nil
	p.ParseBytes([]byte("a@b."))
	assert.Equal(t, []event{{4, Domain, diagnosis.ErrDotEnd}}, events)
}
