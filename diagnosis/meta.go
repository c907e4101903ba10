package diagnosis

import (
	"strconv"
	"strings"
)

// SMTPReply is the reply a mail server would give for an address carrying
// a given diagnosis.
type SMTPReply struct {
	Code     int
	Enhanced string // RFC 3463 enhanced status code
	Text     string
}

func (r SMTPReply) String() string {
	return strconv.Itoa(r.Code) + " " + r.Enhanced + " " + r.Text
}

// Reference points at the part of a standard a diagnosis is based on.
type Reference struct {
	ID   string
	Cite string
	Link string
}

// Meta describes a diagnosis for humans.
type Meta struct {
	ID          string
	Value       Diagnosis
	Description string
	Category    Category
	SMTP        SMTPReply
	References  []Reference
}

// CategoryMeta describes a category for humans.
type CategoryMeta struct {
	ID          string
	Value       Category
	Description string
}

var (
	smtpValid     = SMTPReply{250, "2.1.5", "Destination address valid"}
	smtpBadSystem = SMTPReply{553, "5.1.2", "Bad destination system address"}
	smtpBadSyntax = SMTPReply{553, "5.1.3", "Bad destination mailbox address syntax"}
)

func rfc(doc, section string) Reference {
	id := doc + " section " + section
	return Reference{
		ID:   id,
		Cite: id,
		Link: "https://tools.ietf.org/html/" + strings.ToLower(strings.ReplaceAll(doc, " ", "")) + "#section-" + section,
	}
}

var (
	refMailboxLocal   = rfc("RFC 5321", "4.1.2")
	refLocalPart      = rfc("RFC 5322", "3.4.1")
	refLocalTooLong   = rfc("RFC 5321", "4.5.3.1.1")
	refDomainTooLong  = rfc("RFC 5321", "4.5.3.1.2")
	refPathTooLong    = rfc("RFC 5321", "4.5.3.1.3")
	refLabelTooLong   = rfc("RFC 1035", "2.3.4")
	refAddressLiteral = rfc("RFC 5321", "4.1.3")
	refIPv6Text       = rfc("RFC 4291", "2.2")
	refIPv6Canonical  = rfc("RFC 5952", "4")
	refTLD            = rfc("RFC 5321", "2.3.5")
	refDNSLookup      = rfc("RFC 5321", "5.1")
	refCFWS           = rfc("RFC 5322", "3.2.2")
	refQuotedString   = rfc("RFC 5322", "3.2.4")
	refQuotedPair     = rfc("RFC 5322", "3.2.1")
	refAtext          = rfc("RFC 5322", "3.2.3")
	refObsLocalPart   = rfc("RFC 5322", "4.4")
	refObsFWS         = rfc("RFC 5322", "4.2")
	refObsNoWSCtl     = rfc("RFC 5322", "4.1")
	refDomainLiteral  = rfc("RFC 5322", "3.4.1")
	refSubdomain      = rfc("RFC 5321", "4.1.2")
	refHostnames      = rfc("RFC 1123", "2.1")
	refCRLF           = rfc("RFC 5234", "B.1")
)

var categoryMetas = map[Category]CategoryMeta{
	CategoryValid:   {Description: "Address is valid"},
	CategoryDNSWarn: {Description: "Address is valid but a DNS check was not successful"},
	CategoryRFC5321: {Description: "Address is valid for SMTP but has unusual elements"},
	CategoryCFWS:    {Description: "Address is valid within the message but cannot be used unmodified for the envelope"},
	CategoryDeprec:  {Description: "Address contains deprecated elements but may still be valid in restricted contexts"},
	CategoryRFC5322: {Description: "The address is only valid according to the broad definition of RFC 5322. It is otherwise invalid."},
	CategoryError:   {Description: "Address is invalid for any purpose"},
}

var metas = map[Diagnosis]Meta{
	Valid: {
		Description: "Address is valid. Please note that this does not mean the address actually exists, nor even that the domain actually exists. This address could be issued by the domain owner without breaking the rules of any RFCs.",
		SMTP:        smtpValid,
	},
	DNSWarnNoMXRecord: {
		Description: "Couldn't find an MX record for this domain but an A-record does exist",
		SMTP:        smtpBadSystem,
		References:  []Reference{refDNSLookup},
	},
	DNSWarnNoRecord: {
		Description: "Couldn't find an MX record or an A-record for this domain",
		SMTP:        smtpBadSystem,
		References:  []Reference{refDNSLookup},
	},
	RFC5321TLD: {
		Description: "Address is valid but at a Top Level Domain",
		SMTP:        smtpValid,
		References:  []Reference{refTLD},
	},
	RFC5321TLDNumeric: {
		Description: "Address is valid but the Top Level Domain begins with a number",
		SMTP:        smtpValid,
		References:  []Reference{refHostnames},
	},
	RFC5321QuotedString: {
		Description: "Address is valid but contains a quoted string",
		SMTP:        smtpValid,
		References:  []Reference{refMailboxLocal},
	},
	RFC5321AddressLiteral: {
		Description: "Address is valid but at a literal address not a domain",
		SMTP:        smtpValid,
		References:  []Reference{refAddressLiteral},
	},
	RFC5321IPv6Deprecated: {
		Description: "Address is valid but contains a :: that only elides one zero group. All implementations must accept and be able to handle any legitimate RFC 4291 format.",
		SMTP:        smtpValid,
		References:  []Reference{refIPv6Canonical},
	},
	CFWSComment: {
		Description: "Address contains comments",
		SMTP:        smtpValid,
		References:  []Reference{refCFWS},
	},
	CFWSFWS: {
		Description: "Address contains FWS",
		SMTP:        smtpValid,
		References:  []Reference{refCFWS},
	},
	DeprecLocalPart: {
		Description: "The local part is in a deprecated form",
		SMTP:        smtpValid,
		References:  []Reference{refObsLocalPart},
	},
	DeprecFWS: {
		Description: "Address contains an obsolete form of Folding White Space",
		SMTP:        smtpValid,
		References:  []Reference{refObsFWS},
	},
	DeprecQtext: {
		Description: "A quoted string contains a deprecated character",
		SMTP:        smtpValid,
		References:  []Reference{refObsNoWSCtl},
	},
	DeprecQP: {
		Description: "A quoted pair contains a deprecated character",
		SMTP:        smtpValid,
		References:  []Reference{refObsNoWSCtl},
	},
	DeprecComment: {
		Description: "Address contains a comment in a position that is deprecated",
		SMTP:        smtpValid,
		References:  []Reference{refObsLocalPart},
	},
	DeprecCtext: {
		Description: "A comment contains a deprecated character",
		SMTP:        smtpValid,
		References:  []Reference{refObsNoWSCtl},
	},
	DeprecCFWSNearAt: {
		Description: "Address contains a comment or Folding White Space around the @ sign",
		SMTP:        smtpValid,
		References:  []Reference{refLocalPart},
	},
	RFC5322Domain: {
		Description: "Address is RFC 5322 compliant but contains domain characters that are not allowed by DNS",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refSubdomain},
	},
	RFC5322TooLong: {
		Description: "Address is too long",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refPathTooLong},
	},
	RFC5322LocalTooLong: {
		Description: "The local part of the address is too long",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLocalTooLong},
	},
	RFC5322DomainTooLong: {
		Description: "The domain part is too long",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refDomainTooLong},
	},
	RFC5322LabelTooLong: {
		Description: "The domain part contains an element that is too long",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLabelTooLong},
	},
	RFC5322DomainLiteral: {
		Description: "The domain literal is not a valid RFC 5321 address literal",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refAddressLiteral},
	},
	RFC5322DomLitObsDtext: {
		Description: "The domain literal is not a valid RFC 5321 address literal and it contains obsolete characters",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refDomainLiteral},
	},
	RFC5322IPv6GrpCount: {
		Description: "The IPv6 literal address contains the wrong number of groups",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	RFC5322IPv62x2xColon: {
		Description: "The IPv6 literal address contains too many :: sequences",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	RFC5322IPv6BadChar: {
		Description: "The IPv6 address contains an illegal group of characters",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	RFC5322IPv6MaxGrps: {
		Description: "The IPv6 address has too many groups",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	RFC5322IPv6ColonStrt: {
		Description: "IPv6 address starts with a single colon",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	RFC5322IPv6ColonEnd: {
		Description: "IPv6 address ends with a single colon",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refIPv6Text},
	},
	ErrExpectingDtext: {
		Description: "A domain literal contains a character that is not allowed",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refDomainLiteral},
	},
	ErrNoLocalPart: {
		Description: "Address has no local part",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLocalPart},
	},
	ErrNoDomain: {
		Description: "Address has no domain part",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLocalPart},
	},
	ErrConsecutiveDots: {
		Description: "The address may not contain consecutive dots",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refAtext},
	},
	ErrAtextAfterCFWS: {
		Description: "Address contains text after a comment or Folding White Space",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLocalPart},
	},
	ErrAtextAfterQS: {
		Description: "Address contains text after a quoted string",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refLocalPart},
	},
	ErrAtextAfterDomLit: {
		Description: "Extra characters were found after the end of the domain literal",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refDomainLiteral},
	},
	ErrExpectingQpair: {
		Description: "The address contains a character that is not allowed in a quoted pair",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refQuotedPair},
	},
	ErrExpectingAtext: {
		Description: "Address contains a character that is not allowed",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refAtext},
	},
	ErrExpectingQtext: {
		Description: "A quoted string contains a character that is not allowed",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refQuotedString},
	},
	ErrExpectingCtext: {
		Description: "A comment contains a character that is not allowed",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refCFWS},
	},
	ErrBackslashEnd: {
		Description: "The address can't end with a backslash",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refQuotedPair},
	},
	ErrDotStart: {
		Description: "Neither part of the address may begin with a dot",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refAtext},
	},
	ErrDotEnd: {
		Description: "Neither part of the address may end with a dot",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refAtext},
	},
	ErrDomainHyphenStart: {
		Description: "A domain or subdomain cannot begin with a hyphen",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refSubdomain},
	},
	ErrDomainHyphenEnd: {
		Description: "A domain or subdomain cannot end with a hyphen",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refSubdomain},
	},
	ErrUnclosedQuotedStr: {
		Description: "Unclosed quoted string",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refQuotedString},
	},
	ErrUnclosedComment: {
		Description: "Unclosed comment",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refCFWS},
	},
	ErrUnclosedDomLit: {
		Description: "Domain literal is missing its closing bracket",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refDomainLiteral},
	},
	ErrFWSCRLFx2: {
		Description: "Folding White Space contains consecutive CRLF sequences",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refObsFWS},
	},
	ErrFWSCRLFEnd: {
		Description: "Folding White Space ends with a CRLF sequence",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refCFWS},
	},
	ErrCRNoLF: {
		Description: "Address contains a carriage return that is not followed by a line feed",
		SMTP:        smtpBadSyntax,
		References:  []Reference{refCRLF},
	},
}

// Describe returns the metadata for d.
func Describe(d Diagnosis) (Meta, bool) {
	m, ok := metas[d]
	if !ok {
		return Meta{}, false
	}
	m.ID = ids[d]
	m.Value = d
	m.Category = d.Category()
	return m, true
}

// DescribeCategory returns the metadata for c.
func DescribeCategory(c Category) (CategoryMeta, bool) {
	m, ok := categoryMetas[c]
	if !ok {
		return CategoryMeta{}, false
	}
	m.ID = categoryIDs[c]
	m.Value = c
	return m, true
}
