// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package resolver

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"strings"
	"sync/atomic"

	"golang.org/x/net/dns/dnsmessage"
)

// Maximum DNS packet size.
// Value taken from https://dnsflagday.net/2020/.
const maxDNSPacketSize = 1232

func (r *Resolver) servers(cfg *DNSConfig) ([]string, int) {
	var i uint32
	if cfg.Rotate {
		i = atomic.AddUint32(&r.soffset, 1) - 1
	}
	return cfg.Servers, int(i)
}

// dial connects to server, which must be an IP address so that no lookup is
// needed to reach it.
func (r *Resolver) dial(ctx context.Context, network, server string) (net.Conn, error) {
	var c net.Conn
	var err error
	if r.Dial != nil {
		c, err = r.Dial(ctx, network, server)
	} else {
		var d net.Dialer
		c, err = d.DialContext(ctx, network, server)
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return c, nil
}

func (r *Resolver) newRequest(conf *DNSConfig, q dnsmessage.Question) (id uint16, udpReq, tcpReq []byte, err error) {
	id = uint16(rand.Intn(65536))
	b := dnsmessage.NewBuilder(make([]byte, 2, 514), dnsmessage.Header{ID: id, RecursionDesired: true, AuthenticData: conf.TrustAD})
	if err := b.StartQuestions(); err != nil {
		return 0, nil, nil, err
	}
	if err := b.Question(q); err != nil {
		return 0, nil, nil, err
	}

	if !r.avoidEDNS0 && conf.EDNS0 {
		// Accept packets up to maxDNSPacketSize.  RFC 6891.
		if err := b.StartAdditionals(); err != nil {
			return 0, nil, nil, err
		}
		var rh dnsmessage.ResourceHeader
		if err := rh.SetEDNS0(maxDNSPacketSize, dnsmessage.RCodeSuccess, false); err != nil {
			return 0, nil, nil, err
		}
		if err := b.OPTResource(rh, dnsmessage.OPTResource{}); err != nil {
			return 0, nil, nil, err
		}
	}

	tcpReq, err = b.Finish()
	if err != nil {
		return 0, nil, nil, err
	}
	udpReq = tcpReq[2:]
	l := len(tcpReq) - 2
	tcpReq[0] = byte(l >> 8)
	tcpReq[1] = byte(l)
	return id, udpReq, tcpReq, nil
}

func checkResponse(reqID uint16, reqQues dnsmessage.Question, respHdr dnsmessage.Header, respQues dnsmessage.Question) bool {
	return respHdr.Response &&
		reqID == respHdr.ID &&
		reqQues.Type == respQues.Type &&
		reqQues.Class == respQues.Class &&
		equalASCIIName(reqQues.Name, respQues.Name)
}

func dnsPacketRoundTrip(c net.Conn, id uint16, query dnsmessage.Question, b []byte) (dnsmessage.Parser, dnsmessage.Header, error) {
	if _, err := c.Write(b); err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, err
	}

	b = make([]byte, maxDNSPacketSize)
	for {
		n, err := c.Read(b)
		if err != nil {
			return dnsmessage.Parser{}, dnsmessage.Header{}, err
		}
		var p dnsmessage.Parser
		// Forged or stale packets are dropped; keep waiting until the deadline.
		h, err := p.Start(b[:n])
		if err != nil {
			continue
		}
		q, err := p.Question()
		if err != nil || !checkResponse(id, query, h, q) {
			continue
		}
		return p, h, nil
	}
}

func dnsStreamRoundTrip(c net.Conn, id uint16, query dnsmessage.Question, b []byte) (dnsmessage.Parser, dnsmessage.Header, error) {
	if _, err := c.Write(b); err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, err
	}

	b = make([]byte, 1280)
	if _, err := io.ReadFull(c, b[:2]); err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, err
	}
	l := int(b[0])<<8 | int(b[1])
	if l > len(b) {
		b = make([]byte, l)
	}
	n, err := io.ReadFull(c, b[:l])
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, err
	}
	var p dnsmessage.Parser
	h, err := p.Start(b[:n])
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, ErrCannotUnmarshalDNSMessage
	}
	q, err := p.Question()
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, ErrCannotUnmarshalDNSMessage
	}
	if !checkResponse(id, query, h, q) {
		return dnsmessage.Parser{}, dnsmessage.Header{}, ErrInvalidDNSResponse
	}
	return p, h, nil
}

// exchange sends a query to server over UDP, falling back to TCP when the
// answer comes back truncated (RFC 5966).
func (r *Resolver) exchange(ctx context.Context, cfg *DNSConfig, server string, q dnsmessage.Question) (dnsmessage.Parser, dnsmessage.Header, error) {
	q.Class = dnsmessage.ClassINET
	id, udpReq, tcpReq, err := r.newRequest(cfg, q)
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, ErrCannotMarshalDNSMessage
	}
	networks := []string{"udp", "tcp"}
	if cfg.UseTCP {
		networks = networks[1:]
	}
	for _, network := range networks {
		p, h, err := r.roundTrip(ctx, cfg, network, server, id, q, udpReq, tcpReq)
		if err != nil {
			return dnsmessage.Parser{}, dnsmessage.Header{}, err
		}
		if err := p.SkipQuestion(); err != dnsmessage.ErrSectionDone {
			return dnsmessage.Parser{}, dnsmessage.Header{}, ErrInvalidDNSResponse
		}
		// A truncated TCP answer is returned as is, like glibc does.
		if h.Truncated && network == "udp" {
			continue
		}
		return p, h, nil
	}
	return dnsmessage.Parser{}, dnsmessage.Header{}, ErrNoAnswerFromDNSServer
}

func (r *Resolver) roundTrip(ctx context.Context, cfg *DNSConfig, network, server string, id uint16, q dnsmessage.Question, udpReq, tcpReq []byte) (dnsmessage.Parser, dnsmessage.Header, error) {
	ctx, cancel := context.WithDeadline(ctx, r.now().Add(cfg.Timeout))
	defer cancel()

	c, err := r.dial(ctx, network, server)
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, err
	}
	defer c.Close()
	if d, ok := ctx.Deadline(); ok && !d.IsZero() {
		c.SetDeadline(d)
	}
	var p dnsmessage.Parser
	var h dnsmessage.Header
	if _, ok := c.(net.PacketConn); ok {
		p, h, err = dnsPacketRoundTrip(c, id, q, udpReq)
	} else {
		p, h, err = dnsStreamRoundTrip(c, id, q, tcpReq)
	}
	if err != nil {
		return dnsmessage.Parser{}, dnsmessage.Header{}, mapErr(err)
	}
	return p, h, nil
}

// checkHeader performs basic sanity checks on the header.
func checkHeader(p *dnsmessage.Parser, h dnsmessage.Header) error {
	rcode, hasAdd := extractExtendedRCode(*p, h)

	if rcode == dnsmessage.RCodeNameError {
		return ErrNoSuchHost
	}

	_, err := p.AnswerHeader()
	if err != nil && err != dnsmessage.ErrSectionDone {
		return ErrCannotUnmarshalDNSMessage
	}

	// libresolv continues to the next server when it receives
	// an invalid referral response. See golang.org/issue/15434.
	if rcode == dnsmessage.RCodeSuccess && !h.Authoritative && !h.RecursionAvailable && err == dnsmessage.ErrSectionDone && !hasAdd {
		return ErrLameReferral
	}

	switch rcode {
	case dnsmessage.RCodeSuccess:
		return nil
	case dnsmessage.RCodeServerFailure:
		return ErrServerTemporarilyMisbehaving
	default:
		return ErrServerMisbehaving
	}
}

func skipToAnswer(p *dnsmessage.Parser, qtype dnsmessage.Type) error {
	for {
		h, err := p.AnswerHeader()
		if err == dnsmessage.ErrSectionDone {
			return ErrNoSuchHost
		}
		if err != nil {
			return ErrCannotUnmarshalDNSMessage
		}
		if h.Type == qtype {
			return nil
		}
		if err := p.SkipAnswer(); err != nil {
			return ErrCannotUnmarshalDNSMessage
		}
	}
}

// extractExtendedRCode extracts the extended RCode from the OPT resource (EDNS(0))
// If an OPT record is not found, the RCode from the hdr is returned.
// Another return value indicates whether an additional resource was found.
func extractExtendedRCode(p dnsmessage.Parser, hdr dnsmessage.Header) (dnsmessage.RCode, bool) {
	p.SkipAllAnswers()
	p.SkipAllAuthorities()
	hasAdd := false
	for {
		ahdr, err := p.AdditionalHeader()
		if err != nil {
			return hdr.RCode, hasAdd
		}
		hasAdd = true
		if ahdr.Type == dnsmessage.TypeOPT {
			return ahdr.ExtendedRCode(hdr.RCode), hasAdd
		}
		if err := p.SkipAdditional(); err != nil {
			return hdr.RCode, hasAdd
		}
	}
}

func newDNSError(err error, name, server string) *net.DNSError {
	dnsErr := &net.DNSError{Err: err.Error(), Name: name, Server: server}
	var nerr net.Error
	switch {
	case err == ErrNoSuchHost:
		dnsErr.IsNotFound = true
	case errors.As(err, &nerr):
		dnsErr.IsTimeout = nerr.Timeout()
		dnsErr.IsTemporary = true
	}
	return dnsErr
}

// tryOneName queries a single rooted name against every configured server.
func (r *Resolver) tryOneName(ctx context.Context, cfg *DNSConfig, name string, qtype dnsmessage.Type) (dnsmessage.Parser, string, error) {
	n, err := dnsmessage.NewName(name)
	if err != nil {
		return dnsmessage.Parser{}, "", &net.DNSError{Err: ErrCannotMarshalDNSMessage.Error(), Name: name}
	}
	q := dnsmessage.Question{
		Name:  n,
		Type:  qtype,
		Class: dnsmessage.ClassINET,
	}

	servers, offset := r.servers(cfg)
	if len(servers) == 0 {
		return dnsmessage.Parser{}, "", &net.DNSError{Err: ErrNoServers.Error(), Name: name}
	}

	var lastErr error
	for i := 0; i < cfg.Attempts; i++ {
		for j := 0; j < len(servers); j++ {
			server := servers[(offset+j)%len(servers)]

			p, h, err := r.exchange(ctx, cfg, server, q)
			if err == nil {
				err = checkHeader(&p, h)
			}
			if err == nil {
				err = skipToAnswer(&p, qtype)
			}
			if err == nil {
				return p, server, nil
			}
			r.diag("query %s %s to %s: %v", qtype, name, server, err)
			lastErr = newDNSError(err, name, server)
			// the name does not exist; another server won't help
			if err == ErrNoSuchHost {
				return dnsmessage.Parser{}, server, lastErr
			}
			if ctx.Err() != nil {
				return dnsmessage.Parser{}, "", lastErr
			}
		}
	}
	return dnsmessage.Parser{}, "", lastErr
}

func (r *Resolver) lookup(ctx context.Context, conf *DNSConfig, name string, qtype dnsmessage.Type) (dnsmessage.Parser, string, error) {
	if !isDomainName(name) {
		return dnsmessage.Parser{}, "", &net.DNSError{Err: ErrNoSuchHost.Error(), Name: name, IsNotFound: true}
	}

	var err error = &net.DNSError{Err: ErrNoSuchHost.Error(), Name: name, IsNotFound: true}
	for _, fqdn := range conf.nameList(name) {
		var p dnsmessage.Parser
		var server string
		p, server, err = r.tryOneName(ctx, conf, fqdn, qtype)
		if err == nil {
			return p, server, nil
		}
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		// report the name the caller asked for, not a suffixed one
		dnsErr.Name = name
	}
	return dnsmessage.Parser{}, "", err
}

func domainSuffix(name string) string {
	name = strings.TrimSuffix(name, ".")
	i := strings.LastIndexByte(name, '.')
	if i == -1 {
		return ""
	}
	return name[i:]
}

// avoidDNS reports whether this is a hostname for which we should not
// use DNS. Currently this includes only .onion, per RFC 7686.
func avoidDNS(name string) bool {
	return strings.EqualFold(domainSuffix(name), ".onion")
}
