// Package isemail checks email addresses against RFC 5321, RFC 5322 and
// RFC 1035 and tells why an address is or is not acceptable.
//
// The result of a check is a diagnosis.Diagnosis rather than a boolean.
// Diagnoses are ordered by severity, so the worst finding is also the
// numerically largest one, and anything below diagnosis.Threshold can be
// used as-is.
//
//	v, _ := isemail.NewValidator(isemail.WithDNSCheck(true))
//	r := v.Validate(ctx, "test@example.com")
//	fmt.Println(r.Final, r.Final.Category())
package isemail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"
	"unicode/utf8"

	"blitiri.com.ar/go/spf"
	"golang.org/x/net/idna"
	"golang.org/x/text/unicode/norm"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/logging"
	"github.com/moriyoshi/go-isemail/internal/rfc5322/address"
)

const (
	// ThresholdWarning makes every address usable without modification
	// come out as Valid.
	ThresholdWarning = diagnosis.Threshold
	// ThresholdError reports every finding.
	ThresholdError = diagnosis.Valid
)

const DefaultDNSTimeout = 5 * time.Second

// Result is the outcome of validating one address.
type Result struct {
	// Input is the address as given.
	Input string
	// Address is what was actually parsed; it differs from Input only when
	// IDNA conversion is enabled.
	Address string

	// Final is the most severe diagnosis, or Valid if it was below the
	// threshold.
	Final diagnosis.Diagnosis
	// Max is the most severe diagnosis regardless of the threshold.
	Max diagnosis.Diagnosis
	// Diagnoses lists every distinct diagnosis in the order found. Valid
	// only appears when it is the sole entry.
	Diagnoses []diagnosis.Diagnosis

	LocalPart   string
	Domain      string
	Literal     string
	LocalAtoms  []string
	DomainAtoms []string

	// DNSChecked is true when the domain checker was consulted.
	DNSChecked bool
	DNSStatus  DNSStatus
	// DNSError is the reason the domain could not be checked, if any. The
	// diagnoses treat it the same as a domain without records.
	DNSError error
}

// Valid reports whether Final is below the warning threshold.
func (r *Result) Valid() bool {
	return r.Final.IsValid()
}

// Validator diagnoses addresses. It is safe for concurrent use.
type Validator struct {
	checkDNS   bool
	threshold  diagnosis.Diagnosis
	checker    DomainChecker
	dnsTimeout time.Duration
	idna       bool
	logger     *slog.Logger
}

type OptionFunc func(v *Validator) error

// WithDNSCheck enables looking the domain up once the syntax is found to be
// valid.
func WithDNSCheck(enabled bool) OptionFunc {
	return func(v *Validator) error {
		v.checkDNS = enabled
		return nil
	}
}

// WithThreshold makes diagnoses below threshold come out as Valid.
func WithThreshold(threshold diagnosis.Diagnosis) OptionFunc {
	return func(v *Validator) error {
		if threshold < 0 || threshold > diagnosis.Diagnosis(diagnosis.CategoryError) {
			return fmt.Errorf("threshold out of range: %d", int(threshold))
		}
		v.threshold = threshold
		return nil
	}
}

func WithDomainChecker(checker DomainChecker) OptionFunc {
	return func(v *Validator) error {
		v.checker = checker
		return nil
	}
}

// WithResolver checks domains with a ResolverChecker over r.
func WithResolver(r spf.DNSResolver) OptionFunc {
	return func(v *Validator) error {
		v.checker = NewResolverChecker(r)
		return nil
	}
}

// WithDNSTimeout bounds the time spent checking a domain. Zero means no
// bound other than the caller's context.
func WithDNSTimeout(timeout time.Duration) OptionFunc {
	return func(v *Validator) error {
		if timeout < 0 {
			return fmt.Errorf("negative DNS timeout: %s", timeout)
		}
		v.dnsTimeout = timeout
		return nil
	}
}

// WithIDNA converts an internationalized domain to its A-label form before
// parsing. The local-part is left alone.
func WithIDNA(enabled bool) OptionFunc {
	return func(v *Validator) error {
		v.idna = enabled
		return nil
	}
}

func WithLogger(logger *slog.Logger) OptionFunc {
	return func(v *Validator) error {
		v.logger = logging.OrDiscard(logger)
		return nil
	}
}

func newValidator() *Validator {
	return &Validator{
		threshold:  ThresholdError,
		dnsTimeout: DefaultDNSTimeout,
		logger:     logging.Discard(),
	}
}

// NewValidator returns a Validator. Without options it reports every
// diagnosis and does not touch the network. When DNS checking is enabled
// and neither WithResolver nor WithDomainChecker is given, the system
// resolver is used.
func NewValidator(options ...OptionFunc) (*Validator, error) {
	v := newValidator()
	for _, option := range options {
		if err := option(v); err != nil {
			return nil, err
		}
	}
	if v.checkDNS && v.checker == nil {
		v.checker = NewResolverChecker(&net.Resolver{})
	}
	return v, nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

func (v *Validator) toASCII(ctx context.Context, logger *slog.Logger, addr string) string {
	at := strings.LastIndexByte(addr, '@')
	if at < 0 {
		return addr
	}
	domain := addr[at+1:]
	if isASCII(domain) || !utf8.ValidString(domain) || strings.HasPrefix(domain, "[") {
		return addr
	}
	a, err := idna.Lookup.ToASCII(norm.NFC.String(domain))
	if err != nil {
		logger.DebugContext(ctx, "domain left as is", slog.Any("error", err))
		return addr
	}
	return addr[:at+1] + a
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// checkDomain consults the domain checker and records what it found. It
// returns true if the domain has an MX record.
func (v *Validator) checkDomain(ctx context.Context, logger *slog.Logger, pr *address.Result, r *Result) bool {
	if v.dnsTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.dnsTimeout)
		defer cancel()
	}
	status, err := v.checker.CheckDomain(ctx, pr.Domain)
	r.DNSChecked = true
	r.DNSStatus = status
	if err != nil {
		r.DNSError = err
		dnsChecks.WithLabelValues("error").Inc()
		logger.DebugContext(ctx, "domain check failed", slog.String("domain", pr.Domain), slog.Any("error", err))
		// a domain without MX records but whose address lookup failed
		var le *LookupError
		if errors.As(err, &le) && le.Type != "MX" {
			pr.Add(diagnosis.DNSWarnNoMXRecord)
		}
		pr.Add(diagnosis.DNSWarnNoRecord)
		return false
	}
	dnsChecks.WithLabelValues(status.String()).Inc()
	logger.DebugContext(ctx, "domain checked", slog.String("domain", pr.Domain), slog.String("result", status.String()))
	switch status {
	case DNSMXFound:
		return true
	case DNSOtherRecordFound:
		pr.Add(diagnosis.DNSWarnNoMXRecord)
	default:
		// no MX first, then nothing else either
		pr.Add(diagnosis.DNSWarnNoMXRecord)
		pr.Add(diagnosis.DNSWarnNoRecord)
	}
	return false
}

// Validate diagnoses addr.
func (v *Validator) Validate(ctx context.Context, addr string) *Result {
	logger := v.logger.With(slog.String("address", addr))
	r := &Result{Input: addr, Address: addr}
	if v.idna {
		r.Address = v.toASCII(ctx, logger, addr)
	}

	p := address.AddressParser{}
	if logger.Enabled(ctx, slog.LevelDebug) {
		p.Observe = func(pos int, c address.Context, d diagnosis.Diagnosis) {
			logger.DebugContext(ctx, "found", slog.Int("offset", pos), slog.String("context", c.String()), slog.String("diagnosis", d.String()))
		}
	}
	pr := p.Parse(r.Address)

	dnsWarn := diagnosis.Diagnosis(diagnosis.CategoryDNSWarn)
	hasMX := false
	if v.checkDNS && v.checker != nil && pr.Max() < dnsWarn {
		hasMX = v.checkDomain(ctx, logger, pr, r)
	}
	if !hasMX && pr.Max() < dnsWarn {
		if pr.LabelCount() == 0 {
			pr.Add(diagnosis.RFC5321TLD)
		}
		// a host name never has a top label starting with a digit
		if top := pr.TopLabel(); top != "" && isDigit(top[0]) {
			pr.Add(diagnosis.RFC5321TLDNumeric)
		}
	}

	r.Max = pr.Max()
	r.Final = r.Max
	if r.Final < v.threshold {
		r.Final = diagnosis.Valid
	}
	r.Diagnoses = pr.Diagnoses()
	r.LocalPart = pr.LocalPart
	r.Domain = pr.Domain
	r.Literal = pr.Literal
	r.LocalAtoms = pr.LocalAtoms
	r.DomainAtoms = pr.DomainAtoms

	validations.WithLabelValues(r.Max.Category().String()).Inc()
	logger.DebugContext(ctx, "validated", slog.String("final", r.Final.String()), slog.Any("diagnoses", r.Diagnoses))
	return r
}

// IsEmail diagnoses addr and returns the most severe finding, or Valid if it
// is below threshold. Pass ThresholdWarning or ThresholdError for the usual
// levels of pickiness.
func IsEmail(ctx context.Context, addr string, checkDNS bool, threshold diagnosis.Diagnosis) diagnosis.Diagnosis {
	v := newValidator()
	v.checkDNS = checkDNS
	v.threshold = threshold
	if checkDNS {
		v.checker = NewResolverChecker(&net.Resolver{})
	}
	return v.Validate(ctx, addr).Final
}

// IsValid reports whether addr can be used without modification.
func IsValid(ctx context.Context, addr string, checkDNS bool) bool {
	return IsEmail(ctx, addr, checkDNS, ThresholdError).IsValid()
}
