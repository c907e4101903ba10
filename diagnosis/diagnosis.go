// Package diagnosis defines the severity-ordered codes produced when an
// address is checked against RFC 5321, RFC 5322 and RFC 1035.
//
// Codes are grouped into categories. A code belongs to the category whose
// boundary is the smallest one that is greater than or equal to the code, so
// comparing two codes numerically also compares their severity.
package diagnosis

import (
	"strconv"
)

// Diagnosis is a single finding about an address.
type Diagnosis int

// Category is the upper boundary of a range of diagnoses.
type Category int

const (
	CategoryValid   Category = 1
	CategoryDNSWarn Category = 7
	CategoryRFC5321 Category = 15
	CategoryCFWS    Category = 31
	CategoryDeprec  Category = 63
	CategoryRFC5322 Category = 127
	CategoryError   Category = 255
)

// Threshold separates addresses that are usable as-is from those that are
// not. A diagnosis strictly below Threshold is considered valid.
const Threshold Diagnosis = 16

const (
	// Address is valid
	Valid Diagnosis = 0

	// Address is valid but a DNS check was not successful
	DNSWarnNoMXRecord Diagnosis = 5
	DNSWarnNoRecord   Diagnosis = 6

	// Address is valid for SMTP but has unusual elements
	RFC5321TLD            Diagnosis = 9
	RFC5321TLDNumeric     Diagnosis = 10
	RFC5321QuotedString   Diagnosis = 11
	RFC5321AddressLiteral Diagnosis = 12
	RFC5321IPv6Deprecated Diagnosis = 13

	// Address is valid within the message but cannot be used unmodified for the envelope
	CFWSComment Diagnosis = 17
	CFWSFWS     Diagnosis = 18

	// Address contains deprecated elements but may still be valid in restricted contexts
	DeprecLocalPart  Diagnosis = 33
	DeprecFWS        Diagnosis = 34
	DeprecQtext      Diagnosis = 35
	DeprecQP         Diagnosis = 36
	DeprecComment    Diagnosis = 37
	DeprecCtext      Diagnosis = 38
	DeprecCFWSNearAt Diagnosis = 49

	// The address is only valid according to the broad definition of RFC 5322
	RFC5322Domain         Diagnosis = 65
	RFC5322TooLong        Diagnosis = 66
	RFC5322LocalTooLong   Diagnosis = 67
	RFC5322DomainTooLong  Diagnosis = 68
	RFC5322LabelTooLong   Diagnosis = 69
	RFC5322DomainLiteral  Diagnosis = 70
	RFC5322DomLitObsDtext Diagnosis = 71
	RFC5322IPv6GrpCount   Diagnosis = 72
	RFC5322IPv62x2xColon  Diagnosis = 73
	RFC5322IPv6BadChar    Diagnosis = 74
	RFC5322IPv6MaxGrps    Diagnosis = 75
	RFC5322IPv6ColonStrt  Diagnosis = 76
	RFC5322IPv6ColonEnd   Diagnosis = 77

	// Address is invalid for any purpose
	ErrExpectingDtext    Diagnosis = 129
	ErrNoLocalPart       Diagnosis = 130
	ErrNoDomain          Diagnosis = 131
	ErrConsecutiveDots   Diagnosis = 132
	ErrAtextAfterCFWS    Diagnosis = 133
	ErrAtextAfterQS      Diagnosis = 134
	ErrAtextAfterDomLit  Diagnosis = 135
	ErrExpectingQpair    Diagnosis = 136
	ErrExpectingAtext    Diagnosis = 137
	ErrExpectingQtext    Diagnosis = 138
	ErrExpectingCtext    Diagnosis = 139
	ErrBackslashEnd      Diagnosis = 140
	ErrDotStart          Diagnosis = 141
	ErrDotEnd            Diagnosis = 142
	ErrDomainHyphenStart Diagnosis = 143
	ErrDomainHyphenEnd   Diagnosis = 144
	ErrUnclosedQuotedStr Diagnosis = 145
	ErrUnclosedComment   Diagnosis = 146
	ErrUnclosedDomLit    Diagnosis = 147
	ErrFWSCRLFx2         Diagnosis = 148
	ErrFWSCRLFEnd        Diagnosis = 149
	ErrCRNoLF            Diagnosis = 150
)

// categories is ordered by boundary; Category() depends on that.
var categories = [...]Category{
	CategoryValid,
	CategoryDNSWarn,
	CategoryRFC5321,
	CategoryCFWS,
	CategoryDeprec,
	CategoryRFC5322,
	CategoryError,
}

var categoryIDs = map[Category]string{
	CategoryValid:   "ISEMAIL_VALID_CATEGORY",
	CategoryDNSWarn: "ISEMAIL_DNSWARN",
	CategoryRFC5321: "ISEMAIL_RFC5321",
	CategoryCFWS:    "ISEMAIL_CFWS",
	CategoryDeprec:  "ISEMAIL_DEPREC",
	CategoryRFC5322: "ISEMAIL_RFC5322",
	CategoryError:   "ISEMAIL_ERR",
}

// all lists every diagnosis in ascending order.
var all = [...]Diagnosis{
	Valid,
	DNSWarnNoMXRecord, DNSWarnNoRecord,
	RFC5321TLD, RFC5321TLDNumeric, RFC5321QuotedString, RFC5321AddressLiteral, RFC5321IPv6Deprecated,
	CFWSComment, CFWSFWS,
	DeprecLocalPart, DeprecFWS, DeprecQtext, DeprecQP, DeprecComment, DeprecCtext, DeprecCFWSNearAt,
	RFC5322Domain, RFC5322TooLong, RFC5322LocalTooLong, RFC5322DomainTooLong, RFC5322LabelTooLong,
	RFC5322DomainLiteral, RFC5322DomLitObsDtext, RFC5322IPv6GrpCount, RFC5322IPv62x2xColon,
	RFC5322IPv6BadChar, RFC5322IPv6MaxGrps, RFC5322IPv6ColonStrt, RFC5322IPv6ColonEnd,
	ErrExpectingDtext, ErrNoLocalPart, ErrNoDomain, ErrConsecutiveDots, ErrAtextAfterCFWS,
	ErrAtextAfterQS, ErrAtextAfterDomLit, ErrExpectingQpair, ErrExpectingAtext, ErrExpectingQtext,
	ErrExpectingCtext, ErrBackslashEnd, ErrDotStart, ErrDotEnd, ErrDomainHyphenStart,
	ErrDomainHyphenEnd, ErrUnclosedQuotedStr, ErrUnclosedComment, ErrUnclosedDomLit,
	ErrFWSCRLFx2, ErrFWSCRLFEnd, ErrCRNoLF,
}

var ids = map[Diagnosis]string{
	Valid:                 "ISEMAIL_VALID",
	DNSWarnNoMXRecord:     "ISEMAIL_DNSWARN_NO_MX_RECORD",
	DNSWarnNoRecord:       "ISEMAIL_DNSWARN_NO_RECORD",
	RFC5321TLD:            "ISEMAIL_RFC5321_TLD",
	RFC5321TLDNumeric:     "ISEMAIL_RFC5321_TLDNUMERIC",
	RFC5321QuotedString:   "ISEMAIL_RFC5321_QUOTEDSTRING",
	RFC5321AddressLiteral: "ISEMAIL_RFC5321_ADDRESSLITERAL",
	RFC5321IPv6Deprecated: "ISEMAIL_RFC5321_IPV6DEPRECATED",
	CFWSComment:           "ISEMAIL_CFWS_COMMENT",
	CFWSFWS:               "ISEMAIL_CFWS_FWS",
	DeprecLocalPart:       "ISEMAIL_DEPREC_LOCALPART",
	DeprecFWS:             "ISEMAIL_DEPREC_FWS",
	DeprecQtext:           "ISEMAIL_DEPREC_QTEXT",
	DeprecQP:              "ISEMAIL_DEPREC_QP",
	DeprecComment:         "ISEMAIL_DEPREC_COMMENT",
	DeprecCtext:           "ISEMAIL_DEPREC_CTEXT",
	DeprecCFWSNearAt:      "ISEMAIL_DEPREC_CFWS_NEAR_AT",
	RFC5322Domain:         "ISEMAIL_RFC5322_DOMAIN",
	RFC5322TooLong:        "ISEMAIL_RFC5322_TOOLONG",
	RFC5322LocalTooLong:   "ISEMAIL_RFC5322_LOCAL_TOOLONG",
	RFC5322DomainTooLong:  "ISEMAIL_RFC5322_DOMAIN_TOOLONG",
	RFC5322LabelTooLong:   "ISEMAIL_RFC5322_LABEL_TOOLONG",
	RFC5322DomainLiteral:  "ISEMAIL_RFC5322_DOMAINLITERAL",
	RFC5322DomLitObsDtext: "ISEMAIL_RFC5322_DOMLIT_OBSDTEXT",
	RFC5322IPv6GrpCount:   "ISEMAIL_RFC5322_IPV6_GRPCOUNT",
	RFC5322IPv62x2xColon:  "ISEMAIL_RFC5322_IPV6_2X2XCOLON",
	RFC5322IPv6BadChar:    "ISEMAIL_RFC5322_IPV6_BADCHAR",
	RFC5322IPv6MaxGrps:    "ISEMAIL_RFC5322_IPV6_MAXGRPS",
	RFC5322IPv6ColonStrt:  "ISEMAIL_RFC5322_IPV6_COLONSTRT",
	RFC5322IPv6ColonEnd:   "ISEMAIL_RFC5322_IPV6_COLONEND",
	ErrExpectingDtext:     "ISEMAIL_ERR_EXPECTING_DTEXT",
	ErrNoLocalPart:        "ISEMAIL_ERR_NOLOCALPART",
	ErrNoDomain:           "ISEMAIL_ERR_NODOMAIN",
	ErrConsecutiveDots:    "ISEMAIL_ERR_CONSECUTIVEDOTS",
	ErrAtextAfterCFWS:     "ISEMAIL_ERR_ATEXT_AFTER_CFWS",
	ErrAtextAfterQS:       "ISEMAIL_ERR_ATEXT_AFTER_QS",
	ErrAtextAfterDomLit:   "ISEMAIL_ERR_ATEXT_AFTER_DOMLIT",
	ErrExpectingQpair:     "ISEMAIL_ERR_EXPECTING_QPAIR",
	ErrExpectingAtext:     "ISEMAIL_ERR_EXPECTING_ATEXT",
	ErrExpectingQtext:     "ISEMAIL_ERR_EXPECTING_QTEXT",
	ErrExpectingCtext:     "ISEMAIL_ERR_EXPECTING_CTEXT",
	ErrBackslashEnd:       "ISEMAIL_ERR_BACKSLASHEND",
	ErrDotStart:           "ISEMAIL_ERR_DOT_START",
	ErrDotEnd:             "ISEMAIL_ERR_DOT_END",
	ErrDomainHyphenStart:  "ISEMAIL_ERR_DOMAINHYPHENSTART",
	ErrDomainHyphenEnd:    "ISEMAIL_ERR_DOMAINHYPHENEND",
	ErrUnclosedQuotedStr:  "ISEMAIL_ERR_UNCLOSEDQUOTEDSTR",
	ErrUnclosedComment:    "ISEMAIL_ERR_UNCLOSEDCOMMENT",
	ErrUnclosedDomLit:     "ISEMAIL_ERR_UNCLOSEDDOMLIT",
	ErrFWSCRLFx2:          "ISEMAIL_ERR_FWS_CRLF_X2",
	ErrFWSCRLFEnd:         "ISEMAIL_ERR_FWS_CRLF_END",
	ErrCRNoLF:             "ISEMAIL_ERR_CR_NO_LF",
}

var byID = func() map[string]Diagnosis {
	m := make(map[string]Diagnosis, len(ids))
	for d, id := range ids {
		m[id] = d
	}
	return m
}()

var categoryByID = func() map[string]Category {
	m := make(map[string]Category, len(categoryIDs))
	for c, id := range categoryIDs {
		m[id] = c
	}
	return m
}()

// All returns every known diagnosis in ascending order of severity.
func All() []Diagnosis {
	r := make([]Diagnosis, len(all))
	copy(r, all[:])
	return r
}

// Lookup returns the diagnosis with the given identifier, such as
// "ISEMAIL_ERR_NODOMAIN".
func Lookup(id string) (Diagnosis, bool) {
	d, ok := byID[id]
	return d, ok
}

// LookupCategory returns the category with the given identifier, such as
// "ISEMAIL_DEPREC".
func LookupCategory(id string) (Category, bool) {
	c, ok := categoryByID[id]
	return c, ok
}

// Known reports whether d is one of the defined diagnoses.
func (d Diagnosis) Known() bool {
	_, ok := ids[d]
	return ok
}

// Category returns the category d belongs to. Negative values and values
// above the last boundary belong to no category and yield 0.
func (d Diagnosis) Category() Category {
	if d < 0 {
		return 0
	}
	for _, c := range categories {
		if int(d) <= int(c) {
			return c
		}
	}
	return 0
}

// IsFatal reports whether d makes the address unusable under any
// interpretation.
func (d Diagnosis) IsFatal() bool {
	return d > Diagnosis(CategoryRFC5322)
}

// IsValid reports whether d is below the warning threshold.
func (d Diagnosis) IsValid() bool {
	return d < Threshold
}

func (d Diagnosis) String() string {
	if id, ok := ids[d]; ok {
		return id
	}
	return "Diagnosis(" + strconv.Itoa(int(d)) + ")"
}

func (c Category) String() string {
	if id, ok := categoryIDs[c]; ok {
		return id
	}
	return "Category(" + strconv.Itoa(int(c)) + ")"
}

// Max returns the most severe diagnosis in ds, or Valid when ds is empty.
func Max(ds []Diagnosis) Diagnosis {
	m := Valid
	for _, d := range ds {
		if d > m {
			m = d
		}
	}
	return m
}

// Parse accepts either an identifier ("ISEMAIL_RFC5321_TLD") or a decimal
// value ("9").
func Parse(s string) (Diagnosis, bool) {
	if d, ok := byID[s]; ok {
		return d, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	d := Diagnosis(n)
	return d, d.Known()
}
