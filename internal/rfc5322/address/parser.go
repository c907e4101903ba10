/*
Package address diagnoses a single addr-spec against RFC 5321, RFC 5322 and
RFC 1035.

Unlike a conventional parser it never fails. Each octet of the input is fed
to a handler for the current context (local-part, domain, domain literal,
comment, folding white space, quoted string or quoted pair) and every
irregularity is recorded as a diagnosis.Diagnosis on the Result. Scanning
stops at the first fatal diagnosis.

Obsolete forms accepted by RFC 5322 are recognised and reported as
deprecated. Route addresses, display names and groups are not; use
SplitList to pull addr-specs out of an address-list first.
*/
package address

import (
	"github.com/moriyoshi/go-isemail/diagnosis"
)

// An AddressParser diagnoses addr-specs.
type AddressParser struct {
	// Observe is called, if set, each time the scanner records a diagnosis.
	// pos is the offset of the octet being handled.
	Observe func(pos int, ctx Context, d diagnosis.Diagnosis)
}

// Parse diagnoses address.
func (p *AddressParser) Parse(address string) *Result {
	return p.ParseBytes([]byte(address))
}

// ParseBytes diagnoses address.
func (p *AddressParser) ParseBytes(address []byte) *Result {
	return newAddrParser(address, p.Observe).parse()
}

// Parse diagnoses address with a zero AddressParser.
func Parse(address string) *Result {
	return (&AddressParser{}).Parse(address)
}
