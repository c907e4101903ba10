package isemail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"blitiri.com.ar/go/spf"
	"golang.org/x/sync/singleflight"
)

// DNSStatus is what a DomainChecker found out about a domain.
type DNSStatus int

const (
	DNSNoRecord DNSStatus = iota
	DNSOtherRecordFound
	DNSMXFound
)

var dnsStatusNames = [...]string{
	DNSNoRecord:         "none",
	DNSOtherRecordFound: "other",
	DNSMXFound:          "mx",
}

func (s DNSStatus) String() string {
	if s >= 0 && int(s) < len(dnsStatusNames) {
		return dnsStatusNames[s]
	}
	return fmt.Sprintf("DNSStatus(%d)", int(s))
}

// DomainChecker tells whether a mail domain can be resolved.
//
// An implementation returns DNSMXFound when the domain has MX records,
// DNSOtherRecordFound when it has none but has address or CNAME records, and
// DNSNoRecord otherwise. A non-nil error means the answer could not be
// obtained; the status is then DNSNoRecord.
type DomainChecker interface {
	CheckDomain(ctx context.Context, domain string) (DNSStatus, error)
}

// LookupError is returned by ResolverChecker when a query fails for a reason
// other than the name not existing.
type LookupError struct {
	Domain string
	Type   string // "MX", "A" or "CNAME"
	Err    error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("%s lookup for %s failed: %v", e.Type, e.Domain, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

type cnameLookuper interface {
	LookupCNAME(ctx context.Context, host string) (string, error)
}

// ResolverChecker is a DomainChecker backed by a resolver. If the resolver
// also implements LookupCNAME it is used as a last resort for names with
// neither MX nor address records.
type ResolverChecker struct {
	resolver spf.DNSResolver
}

var _ DomainChecker = (*ResolverChecker)(nil)

func NewResolverChecker(resolver spf.DNSResolver) *ResolverChecker {
	return &ResolverChecker{resolver: resolver}
}

func isNotFound(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}

// rooted appends the root label to a name consisting of a single label so
// that a TLD is not subject to the search list.
func rooted(domain string) string {
	if !strings.Contains(domain, ".") {
		return domain + "."
	}
	return domain
}

func (c *ResolverChecker) CheckDomain(ctx context.Context, domain string) (DNSStatus, error) {
	name := rooted(domain)
	mxs, err := c.resolver.LookupMX(ctx, name)
	if len(mxs) > 0 {
		return DNSMXFound, nil
	}
	if err != nil && !isNotFound(err) {
		return DNSNoRecord, &LookupError{Domain: domain, Type: "MX", Err: err}
	}

	addrs, err := c.resolver.LookupIPAddr(ctx, name)
	if len(addrs) > 0 {
		return DNSOtherRecordFound, nil
	}
	if err != nil && !isNotFound(err) {
		return DNSNoRecord, &LookupError{Domain: domain, Type: "A", Err: err}
	}

	if cl, ok := c.resolver.(cnameLookuper); ok {
		cname, err := cl.LookupCNAME(ctx, name)
		if err != nil {
			if isNotFound(err) {
				return DNSNoRecord, nil
			}
			return DNSNoRecord, &LookupError{Domain: domain, Type: "CNAME", Err: err}
		}
		if cname != "" && !strings.EqualFold(strings.TrimSuffix(cname, "."), strings.TrimSuffix(name, ".")) {
			return DNSOtherRecordFound, nil
		}
	}
	return DNSNoRecord, nil
}

type checkResult struct {
	status DNSStatus
	expiry time.Time
}

// CachingChecker remembers the answers of another DomainChecker. Failed
// checks are not remembered. Concurrent checks of the same domain share a
// single call to the underlying checker.
type CachingChecker struct {
	checker   DomainChecker
	ttl       time.Duration
	nowGetter func() time.Time

	mu      sync.Mutex
	entries map[string]checkResult
	group   singleflight.Group
}

var _ DomainChecker = (*CachingChecker)(nil)

type CachingCheckerOptionFunc func(c *CachingChecker) error

func WithCheckerNowGetter(nowGetter func() time.Time) CachingCheckerOptionFunc {
	return func(c *CachingChecker) error {
		c.nowGetter = nowGetter
		return nil
	}
}

func NewCachingChecker(checker DomainChecker, ttl time.Duration, options ...CachingCheckerOptionFunc) (*CachingChecker, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid TTL: %s", ttl)
	}
	c := &CachingChecker{
		checker:   checker,
		ttl:       ttl,
		nowGetter: time.Now,
		entries:   make(map[string]checkResult),
	}
	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *CachingChecker) lookup(key string, now time.Time) (DNSStatus, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return DNSNoRecord, false
	}
	if !now.Before(e.expiry) {
		delete(c.entries, key)
		return DNSNoRecord, false
	}
	return e.status, true
}

func (c *CachingChecker) store(key string, status DNSStatus, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = checkResult{status: status, expiry: now.Add(c.ttl)}
}

// Len returns the number of cached answers, expired ones included.
func (c *CachingChecker) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CachingChecker) CheckDomain(ctx context.Context, domain string) (DNSStatus, error) {
	key := strings.ToLower(domain)
	if status, ok := c.lookup(key, c.nowGetter()); ok {
		return status, nil
	}
	ch := c.group.DoChan(key, func() (any, error) {
		// the first caller's deadline applies, its cancellation does not
		lookupCtx := context.WithoutCancel(ctx)
		if deadline, ok := ctx.Deadline(); ok {
			var cancel context.CancelFunc
			lookupCtx, cancel = context.WithDeadline(lookupCtx, deadline)
			defer cancel()
		}
		status, err := c.checker.CheckDomain(lookupCtx, domain)
		if err != nil {
			return status, err
		}
		c.store(key, status, c.nowGetter())
		return status, nil
	})
	select {
	case <-ctx.Done():
		return DNSNoRecord, ctx.Err()
	case res := <-ch:
		return res.Val.(DNSStatus), res.Err
	}
}
