package address

import (
	"fmt"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

// Context is the part of the grammar the parser is currently in.
type Context int

const (
	LocalPart Context = iota
	Domain
	Literal
	Comment
	FWS
	QuotedString
	QuotedPair
)

var contextNames = [...]string{
	LocalPart:    "local-part",
	Domain:       "domain",
	Literal:      "domain-literal",
	Comment:      "comment",
	FWS:          "FWS",
	QuotedString: "quoted-string",
	QuotedPair:   "quoted-pair",
}

func (c Context) String() string {
	if c >= 0 && int(c) < len(contextNames) {
		return contextNames[c]
	}
	return fmt.Sprintf("Context(%d)", int(c))
}

// InvariantError is the panic value raised when the parser reaches a state
// its grammar does not allow. It always indicates a bug in the parser, never
// a problem with the input.
type InvariantError struct {
	Pos     int
	Context Context
	Prior   Context
	Msg     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("address parser invariant violated at offset %d (context %s, prior %s): %s", e.Pos, e.Context, e.Prior, e.Msg)
}

// Result holds the components of a parsed address together with the
// diagnoses found while parsing it.
type Result struct {
	// LocalPart is the local-part as written, quotes and escapes included.
	// A folded line break in a quoted string contributes a single space.
	LocalPart string
	// Domain is the domain as written, brackets included for a literal.
	Domain string
	// Literal is the body of a domain literal without the brackets.
	Literal string
	// LocalAtoms and DomainAtoms hold the dot-separated elements.
	LocalAtoms  []string
	DomainAtoms []string

	// End is the context the parser was in when it stopped.
	End Context

	statuses []diagnosis.Diagnosis
	max      diagnosis.Diagnosis
}

func newResult() *Result {
	return &Result{statuses: []diagnosis.Diagnosis{diagnosis.Valid}}
}

// Add records d unless it has already been recorded.
func (r *Result) Add(d diagnosis.Diagnosis) {
	if d > r.max {
		r.max = d
	}
	for _, s := range r.statuses {
		if s == d {
			return
		}
	}
	r.statuses = append(r.statuses, d)
}

// Max returns the most severe diagnosis recorded so far.
func (r *Result) Max() diagnosis.Diagnosis {
	return r.max
}

// Diagnoses returns the recorded diagnoses in the order they were first
// seen. Valid is only reported when nothing else was found.
func (r *Result) Diagnoses() []diagnosis.Diagnosis {
	ss := r.statuses
	if len(ss) > 1 {
		ss = ss[1:]
	}
	retval := make([]diagnosis.Diagnosis, len(ss))
	copy(retval, ss)
	return retval
}

// LabelCount returns the number of dots seen in the domain, which is one
// less than the number of labels.
func (r *Result) LabelCount() int {
	if len(r.DomainAtoms) == 0 {
		return 0
	}
	return len(r.DomainAtoms) - 1
}

// TopLabel returns the last element of the domain.
func (r *Result) TopLabel() string {
	if len(r.DomainAtoms) == 0 {
		return ""
	}
	return r.DomainAtoms[len(r.DomainAtoms)-1]
}

// Address returns local-part "@" domain.
func (r *Result) Address() string {
	return r.LocalPart + "@" + r.Domain
}
