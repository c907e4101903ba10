// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package resolver is a small stub DNS resolver speaking directly to the
// name servers listed in resolv.conf (or given explicitly), independent of
// the system resolver library. It implements the lookups needed to check
// mail domains and to evaluate SPF and DKIM.
package resolver

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"slices"
	"strings"
	"sync"
	"time"

	"blitiri.com.ar/go/spf"
	"golang.org/x/net/dns/dnsmessage"
	"golang.org/x/sync/singleflight"
)

// Resolver looks up names and IP addresses.
type Resolver struct {
	// Dial optionally replaces the dialer used to reach name servers.
	Dial func(ctx context.Context, network, address string) (net.Conn, error)

	nowGetter    func() time.Time
	configGetter func(context.Context) (*DNSConfig, error)
	diag         func(string, ...any)
	avoidEDNS0   bool
	soffset      uint32
	cache        answerCache
	lookupGroup  singleflight.Group
}

var _ spf.DNSResolver = (*Resolver)(nil)

func (r *Resolver) now() time.Time {
	if r.nowGetter != nil {
		return r.nowGetter()
	}
	return time.Now()
}

type dnsConfigKey struct{}

// DNSConfigKey overrides the resolver configuration for a single call when
// set as a context value holding a *DNSConfig.
var DNSConfigKey dnsConfigKey

func (r *Resolver) getConf(ctx context.Context) (*DNSConfig, error) {
	if conf, ok := ctx.Value(DNSConfigKey).(*DNSConfig); ok && conf != nil {
		return conf, nil
	}
	return r.configGetter(ctx)
}

// query runs one question through the cache and the singleflight group.
func (r *Resolver) query(ctx context.Context, name string, qtype dnsmessage.Type) (*answer, error) {
	if err := ctx.Err(); err != nil {
		return nil, newDNSError(mapErr(err), name, "")
	}
	key := qtype.String() + "\x00" + strings.ToLower(name)
	if a := r.cache.get(key, r.now()); a != nil {
		return a, nil
	}
	conf, err := r.getConf(ctx)
	if err != nil {
		return nil, &net.DNSError{Err: err.Error(), Name: name}
	}
	// A caller giving up must not fail the lookup shared with other callers.
	lookupCtx := context.WithoutCancel(ctx)
	ch := r.lookupGroup.DoChan(key, func() (any, error) {
		p, server, err := r.lookup(lookupCtx, conf, name, qtype)
		if err != nil {
			return nil, err
		}
		a, err := readAnswer(&p, qtype)
		if err != nil {
			return nil, newDNSError(err, name, server)
		}
		r.cache.put(key, a, r.now())
		return a, nil
	})
	select {
	case <-ctx.Done():
		return nil, newDNSError(mapErr(ctx.Err()), name, "")
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*answer), nil
	}
}

// readAnswer decodes the records of type qtype starting at the parser's
// current answer.
func readAnswer(p *dnsmessage.Parser, qtype dnsmessage.Type) (*answer, error) {
	a := &answer{}
	first := true
	for {
		h, err := p.AnswerHeader()
		if err == dnsmessage.ErrSectionDone {
			return a, nil
		}
		if err != nil {
			return nil, ErrCannotUnmarshalDNSMessage
		}
		if h.Type != qtype {
			if err := p.SkipAnswer(); err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			continue
		}
		if first || h.TTL < a.ttl {
			a.ttl = h.TTL
		}
		first = false
		switch qtype {
		case dnsmessage.TypeMX:
			mx, err := p.MXResource()
			if err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			a.mx = append(a.mx, &net.MX{Host: mx.MX.String(), Pref: mx.Pref})
		case dnsmessage.TypeTXT:
			txt, err := p.TXTResource()
			if err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			// strings of one record are joined without separator
			a.txt = append(a.txt, strings.Join(txt.TXT, ""))
		case dnsmessage.TypeA:
			rr, err := p.AResource()
			if err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			a.addrs = append(a.addrs, net.IPAddr{IP: net.IP(rr.A[:])})
			if a.cname == "" {
				a.cname = h.Name.String()
			}
		case dnsmessage.TypeAAAA:
			rr, err := p.AAAAResource()
			if err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			a.addrs = append(a.addrs, net.IPAddr{IP: net.IP(rr.AAAA[:])})
			if a.cname == "" {
				a.cname = h.Name.String()
			}
		case dnsmessage.TypePTR:
			rr, err := p.PTRResource()
			if err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
			a.ptr = append(a.ptr, rr.PTR.String())
		default:
			if err := p.SkipAnswer(); err != nil {
				return nil, ErrCannotUnmarshalDNSMessage
			}
		}
	}
}

// LookupHost looks up the given host using the local resolver.
// It returns a slice of that host's addresses.
func (r *Resolver) LookupHost(ctx context.Context, host string) ([]string, error) {
	if _, err := netip.ParseAddr(host); err == nil {
		return []string{host}, nil
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	retval := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		retval = append(retval, addr.String())
	}
	return retval, nil
}

// LookupIPAddr queries A and AAAA records concurrently. It fails only if
// both queries fail, reporting the error of the A query.
func (r *Resolver) LookupIPAddr(ctx context.Context, host string) ([]net.IPAddr, error) {
	if host == "" {
		return nil, &net.DNSError{Err: ErrNoSuchHost.Error(), Name: host, IsNotFound: true}
	}
	if ip, err := netip.ParseAddr(host); err == nil {
		return []net.IPAddr{{IP: net.IP(ip.AsSlice()), Zone: ip.Zone()}}, nil
	}
	var wg sync.WaitGroup
	qtypes := [...]dnsmessage.Type{dnsmessage.TypeA, dnsmessage.TypeAAAA}
	var answers [len(qtypes)]*answer
	var errs [len(qtypes)]error
	for i, qtype := range qtypes {
		wg.Add(1)
		go func(i int, qtype dnsmessage.Type) {
			defer wg.Done()
			answers[i], errs[i] = r.query(ctx, host, qtype)
		}(i, qtype)
	}
	wg.Wait()

	var retval []net.IPAddr
	for i := range qtypes {
		if errs[i] == nil {
			retval = append(retval, answers[i].addrs...)
		}
	}
	if len(retval) == 0 {
		if errs[0] != nil {
			return nil, errs[0]
		}
		if errs[1] != nil {
			return nil, errs[1]
		}
		return nil, &net.DNSError{Err: ErrNoSuchHost.Error(), Name: host, IsNotFound: true}
	}
	return retval, nil
}

// LookupCNAME returns the canonical name for the given host, that is the
// owner of its address records after following any CNAME chain. It does
// not fail for hosts without CNAME records as long as they have addresses.
func (r *Resolver) LookupCNAME(ctx context.Context, host string) (string, error) {
	a, err := r.query(ctx, host, dnsmessage.TypeA)
	if err != nil {
		var err6 error
		if a, err6 = r.query(ctx, host, dnsmessage.TypeAAAA); err6 != nil {
			return "", err
		}
	}
	if !isDomainName(a.cname) {
		return "", &net.DNSError{Err: ErrMalformedDNSRecordsDetail.Error(), Name: host}
	}
	return a.cname, nil
}

// LookupMX returns the DNS MX records for the given domain name sorted by
// preference. Records with malformed names are dropped and reported with
// an error alongside the remaining ones.
func (r *Resolver) LookupMX(ctx context.Context, name string) ([]*net.MX, error) {
	a, err := r.query(ctx, name, dnsmessage.TypeMX)
	if err != nil {
		return nil, err
	}
	retval := make([]*net.MX, 0, len(a.mx))
	for _, mx := range a.mx {
		if isDomainName(mx.Host) {
			c := *mx
			retval = append(retval, &c)
		}
	}
	slices.SortStableFunc(retval, func(a, b *net.MX) int { return int(a.Pref) - int(b.Pref) })
	if len(retval) != len(a.mx) {
		return retval, &net.DNSError{Err: ErrMalformedDNSRecordsDetail.Error(), Name: name}
	}
	return retval, nil
}

// LookupTXT returns the DNS TXT records for the given domain name.
func (r *Resolver) LookupTXT(ctx context.Context, name string) ([]string, error) {
	a, err := r.query(ctx, name, dnsmessage.TypeTXT)
	if err != nil {
		return nil, err
	}
	return slices.Clone(a.txt), nil
}

// LookupAddr performs a reverse lookup for the given address.
func (r *Resolver) LookupAddr(ctx context.Context, addr string) ([]string, error) {
	arpa, err := reverseaddr(addr)
	if err != nil {
		return nil, err
	}
	a, err := r.query(ctx, arpa, dnsmessage.TypePTR)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			// the error may be shared with other callers
			e := *dnsErr
			e.Name = addr
			return nil, &e
		}
		return nil, err
	}
	retval := make([]string, 0, len(a.ptr))
	for _, name := range a.ptr {
		if isDomainName(name) {
			retval = append(retval, name)
		}
	}
	if len(retval) != len(a.ptr) {
		return retval, &net.DNSError{Err: ErrMalformedDNSRecordsDetail.Error(), Name: addr}
	}
	return retval, nil
}

func WithConfigGetter(fn func(context.Context) (*DNSConfig, error)) ResolverOptionFunc {
	return func(r any) error {
		if resolver, ok := r.(*Resolver); ok {
			resolver.configGetter = fn
			return nil
		}
		return errors.New("option not applicable to Resolver")
	}
}

func WithStaticDNSConfig(conf *DNSConfig) ResolverOptionFunc {
	return WithConfigGetter(func(context.Context) (*DNSConfig, error) {
		return conf, nil
	})
}

func WithAvoidEDNS0(avoid bool) ResolverOptionFunc {
	return func(r any) error {
		if resolver, ok := r.(*Resolver); ok {
			resolver.avoidEDNS0 = avoid
			return nil
		}
		return errors.New("option not applicable to Resolver")
	}
}

// NewResolver returns a Resolver reading /etc/resolv.conf unless a
// configuration source is given. Positive answers are cached for their TTL,
// at most one minute unless WithCacheMaxAge says otherwise.
func NewResolver(options ...ResolverOptionFunc) (*Resolver, error) {
	r := &Resolver{
		nowGetter:    time.Now,
		configGetter: GetSystemDNSConfig,
		diag:         func(string, ...any) {},
		cache:        answerCache{maxAge: time.Minute},
	}
	for _, fn := range options {
		if err := fn(r); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func init() {
	OptionFuncHooks.CacheMaxAge = OptionFuncHooks.CacheMaxAge.Add(func(r any, value time.Duration) (bool, error) {
		if r, ok := (r).(*Resolver); ok {
			r.cache.maxAge = value
			return true, nil
		}
		return false, nil
	})
	OptionFuncHooks.NowGetter = OptionFuncHooks.NowGetter.Add(func(r any, value func() time.Time) (bool, error) {
		if r, ok := (r).(*Resolver); ok {
			r.nowGetter = value
			return true, nil
		}
		return false, nil
	})
	OptionFuncHooks.DiagnosticLogger = OptionFuncHooks.DiagnosticLogger.Add(func(r any, value func(string, ...any)) (bool, error) {
		if r, ok := (r).(*Resolver); ok {
			r.diag = value
			return true, nil
		}
		return false, nil
	})
}
