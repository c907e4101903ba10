package types

import (
	"context"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

const (
	SourceEnvelopeFrom = "MAIL FROM"
	SourceEnvelopeTo   = "RCPT TO"
)

// Finding is the diagnosis of one address found in a message. Source is
// SourceEnvelopeFrom, SourceEnvelopeTo or the name of the header field the
// address appeared in.
type Finding struct {
	Source    string
	Address   string
	Final     diagnosis.Diagnosis
	Diagnoses []diagnosis.Diagnosis
	DNSError  string `json:",omitempty"`
}

// AuthResult is the outcome of an SPF or DKIM evaluation.
type AuthResult struct {
	Method string // "spf" or "dkim"
	Domain string
	Result string
	Error  string `json:",omitempty"`
}

// Report is what the server found out about a message.
type Report struct {
	Message   Message `json:"-"`
	Reception ReceptionDescriptor
	Findings  []Finding
	Auth      []AuthResult
}

// Worst returns the most severe diagnosis among the findings.
func (r *Report) Worst() diagnosis.Diagnosis {
	retval := diagnosis.Valid
	for _, f := range r.Findings {
		if f.Final > retval {
			retval = f.Final
		}
	}
	return retval
}

// Outlet receives the report of each message accepted by the server.
type Outlet func(ctx context.Context, report *Report) error
