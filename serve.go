package isemail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"blitiri.com.ar/go/spf"
	"github.com/emersion/go-msgauth/dkim"
	"github.com/mhale/smtpd"
	"golang.org/x/sync/errgroup"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/bufio"
	"github.com/moriyoshi/go-isemail/internal/logging"
	"github.com/moriyoshi/go-isemail/internal/rfc5322"
	"github.com/moriyoshi/go-isemail/internal/rfc5322/address"
	"github.com/moriyoshi/go-isemail/types"
)

const appName = "isemail"

// DefaultHeaderFields are the header fields whose addresses are checked.
var DefaultHeaderFields = []string{"From", "Sender", "Reply-To", "To", "Cc"}

type listenerSlot struct {
	s         *smtpd.Server
	protocol  string
	readyChan chan *listenerSlot
	l         net.Listener
}

func (slot *listenerSlot) Valid() bool {
	return slot.s != nil
}

func (slot *listenerSlot) Ready() <-chan *listenerSlot {
	return slot.readyChan
}

func (slot *listenerSlot) setListener(l net.Listener) {
	slot.l = l
	slot.readyChan <- slot
}

func newListenerSlot(s *smtpd.Server, protocol string) listenerSlot {
	// buffered so a slot never blocks on a Serve that already gave up
	return listenerSlot{s: s, protocol: protocol, readyChan: make(chan *listenerSlot, 1)}
}

// Server is an SMTP sink that diagnoses the addresses of the messages it
// receives. Recipients whose diagnosis reaches the rejection threshold are
// refused at RCPT TO; every accepted message is turned into a types.Report
// and handed to the outlet.
type Server struct {
	addr         string
	implicitAddr string
	appname      string
	hostname     string
	validator    *Validator
	rejectAt     diagnosis.Diagnosis
	headerFields []string
	resolver     spf.DNSResolver
	verifySPF    bool
	verifyDKIM   bool
	tlsConfig    *tls.Config
	logger       *slog.Logger
	nowGetter    func() time.Time
	plain        listenerSlot
	implicit     listenerSlot
	outlet       types.Outlet
	readyChan    chan struct{}
}

type ServerOptionFunc func(s *Server) error

func WithHostname(hostname string) ServerOptionFunc {
	return func(s *Server) error {
		s.hostname = hostname
		return nil
	}
}

func WithTLSConfig(tlsConfig *tls.Config) ServerOptionFunc {
	return func(s *Server) error {
		s.tlsConfig = tlsConfig
		return nil
	}
}

// WithServerResolver sets the resolver used for SPF and DKIM.
func WithServerResolver(r spf.DNSResolver) ServerOptionFunc {
	return func(s *Server) error {
		s.resolver = r
		return nil
	}
}

func WithSPFVerification(enabled bool) ServerOptionFunc {
	return func(s *Server) error {
		s.verifySPF = enabled
		return nil
	}
}

func WithDKIMVerification(enabled bool) ServerOptionFunc {
	return func(s *Server) error {
		s.verifyDKIM = enabled
		return nil
	}
}

// WithRejectThreshold refuses recipients whose final diagnosis is at least
// d. The default is diagnosis.Threshold.
func WithRejectThreshold(d diagnosis.Diagnosis) ServerOptionFunc {
	return func(s *Server) error {
		if d <= diagnosis.Valid {
			return fmt.Errorf("reject threshold must be positive: %d", int(d))
		}
		s.rejectAt = d
		return nil
	}
}

// WithHeaderFields replaces DefaultHeaderFields.
func WithHeaderFields(names ...string) ServerOptionFunc {
	return func(s *Server) error {
		s.headerFields = names
		return nil
	}
}

func WithServerLogger(logger *slog.Logger) ServerOptionFunc {
	return func(s *Server) error {
		s.logger = logging.OrDiscard(logger)
		return nil
	}
}

func WithServerNowGetter(nowGetter func() time.Time) ServerOptionFunc {
	return func(s *Server) error {
		s.nowGetter = nowGetter
		return nil
	}
}

func (s *Server) newSmtpdServerProto(addr string, tlsListener bool) *smtpd.Server {
	return &smtpd.Server{
		Appname:     s.appname,
		Hostname:    s.hostname,
		TLSConfig:   s.tlsConfig,
		Addr:        addr,
		TLSListener: tlsListener,
	}
}

// NewServer returns a Server listening on bind and, unless it is empty, on
// bindImplicitTLS for implicit TLS.
func NewServer(bind, bindImplicitTLS string, validator *Validator, outlet types.Outlet, options ...ServerOptionFunc) (*Server, error) {
	if validator == nil {
		return nil, errors.New("no validator given")
	}
	s := &Server{
		addr:         bind,
		implicitAddr: bindImplicitTLS,
		appname:      appName,
		validator:    validator,
		rejectAt:     diagnosis.Threshold,
		headerFields: DefaultHeaderFields,
		resolver:     &net.Resolver{},
		logger:       logging.Discard(),
		nowGetter:    time.Now,
		outlet:       outlet,
		readyChan:    make(chan struct{}),
	}
	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}
	s.plain = newListenerSlot(s.newSmtpdServerProto(s.addr, false), "ESMTP")
	if s.implicitAddr != "" {
		if s.tlsConfig == nil {
			return nil, errors.New("implicit TLS requires a TLS configuration")
		}
		s.implicit = newListenerSlot(s.newSmtpdServerProto(s.implicitAddr, true), "ESMTPS")
	}
	return s, nil
}

func ipPart(addr net.Addr) net.IP {
	switch addr := addr.(type) {
	case *net.TCPAddr:
		return addr.IP
	case *net.UDPAddr:
		return addr.IP
	case *net.IPAddr:
		return addr.IP
	default:
		return nil
	}
}

func domainPart(addr string) string {
	if i := strings.LastIndexByte(addr, '@'); i >= 0 {
		return addr[i+1:]
	}
	return ""
}

func (s *Server) checkSPF(ctx context.Context, logger *slog.Logger, origin net.Addr, from string) (spf.Result, error) {
	result, err := spf.CheckHostWithSender(
		ipPart(origin),
		"",
		from,
		spf.WithResolver(s.resolver),
		spf.WithContext(ctx),
		spf.WithTraceFunc(func(s string, args ...interface{}) {
			logger.Debug("spf trace", slog.String("text", fmt.Sprintf(s, args...)))
		}),
	)
	if err != nil {
		switch err {
		case spf.ErrMatchedAll, spf.ErrMatchedA, spf.ErrMatchedIP, spf.ErrMatchedMX, spf.ErrMatchedPTR, spf.ErrMatchedExists:
		default:
			return result, fmt.Errorf("error occurred during verifying SPF record: %w", err)
		}
	}
	return result, nil
}

func (s *Server) verifyDKIMSignatures(ctx context.Context, data []byte) ([]types.AuthResult, error) {
	verifications, err := dkim.VerifyWithOptions(
		bytes.NewReader(data),
		&dkim.VerifyOptions{
			LookupTXT: func(domain string) ([]string, error) {
				return s.resolver.LookupTXT(ctx, domain)
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("error occurred during DKIM verification: %w", err)
	}
	if len(verifications) == 0 {
		return []types.AuthResult{{Method: "dkim", Result: "none"}}, nil
	}
	retval := make([]types.AuthResult, 0, len(verifications))
	for _, v := range verifications {
		ar := types.AuthResult{Method: "dkim", Domain: v.Domain, Result: "pass"}
		if v.Err != nil {
			switch {
			case dkim.IsTempFail(v.Err):
				ar.Result = "temperror"
			case dkim.IsPermFail(v.Err):
				ar.Result = "permerror"
			default:
				ar.Result = "fail"
			}
			ar.Error = v.Err.Error()
		}
		retval = append(retval, ar)
	}
	return retval, nil
}

func (s *Server) finding(ctx context.Context, source, addr string) types.Finding {
	r := s.validator.Validate(ctx, addr)
	f := types.Finding{
		Source:    source,
		Address:   addr,
		Final:     r.Final,
		Diagnoses: r.Diagnoses,
	}
	if r.DNSError != nil {
		f.DNSError = r.DNSError.Error()
	}
	return f
}

// headerFindings diagnoses the addresses in the configured header fields.
func (s *Server) headerFindings(ctx context.Context, data []byte) ([]types.Finding, error) {
	collector := rfc5322.NewFieldCollector(s.headerFields...)
	if err := rfc5322.ScanHeader(bufio.FromBytes(data), collector); err != nil {
		return nil, fmt.Errorf("failed to read the header: %w", err)
	}
	var retval []types.Finding
	for _, f := range collector.Fields {
		for _, addr := range address.SplitList(f.Value) {
			retval = append(retval, s.finding(ctx, f.Name, addr))
		}
	}
	return retval, nil
}

func (s *Server) handlerInner(ctx context.Context, logger *slog.Logger, slot *listenerSlot, origin net.Addr, from string, to []string, data []byte) error {
	report := &types.Report{
		Message: types.NewMessage(from, to, data),
		Reception: types.ReceptionDescriptor{
			SenderHost: origin.String(),
			Host:       slot.s.Hostname,
			Protocol:   slot.protocol,
			Timestamp:  s.nowGetter(),
		},
	}
	if from != "" {
		report.Findings = append(report.Findings, s.finding(ctx, types.SourceEnvelopeFrom, from))
	}
	for _, rcpt := range to {
		report.Findings = append(report.Findings, s.finding(ctx, types.SourceEnvelopeTo, rcpt))
	}
	findings, err := s.headerFindings(ctx, data)
	if err != nil {
		return err
	}
	report.Findings = append(report.Findings, findings...)

	if s.verifySPF && from != "" {
		ar := types.AuthResult{Method: "spf", Domain: domainPart(from)}
		result, err := s.checkSPF(ctx, logger, origin, from)
		ar.Result = string(result)
		if err != nil {
			ar.Error = err.Error()
		}
		report.Auth = append(report.Auth, ar)
	}
	if s.verifyDKIM {
		results, err := s.verifyDKIMSignatures(ctx, data)
		if err != nil {
			return err
		}
		report.Auth = append(report.Auth, results...)
	}

	reportedMessages.Inc()
	logger.Info("message received", slog.String("worst", report.Worst().String()), slog.Int("findings", len(report.Findings)))
	if s.outlet == nil {
		return nil
	}
	if err := s.outlet(ctx, report); err != nil {
		return fmt.Errorf("failed to deliver the report: %w", err)
	}
	return nil
}

func (s *Server) rcptHandlerInner(ctx context.Context, logger *slog.Logger, origin net.Addr, from string, to string) (bool, error) {
	if s.verifySPF && from != "" {
		result, err := s.checkSPF(ctx, logger, origin, from)
		if err != nil {
			return false, err
		}
		if result == spf.Fail {
			return false, fmt.Errorf("SPF fail")
		}
	}
	r := s.validator.Validate(ctx, to)
	if r.Final >= s.rejectAt {
		logger.Info("recipient rejected", slog.String("diagnosis", r.Final.String()))
		return false, nil
	}
	return true, nil
}

func (s *Server) handler(ctx context.Context, slot *listenerSlot, origin net.Addr, from string, to []string, data []byte) error {
	logger := s.logger.With(slog.String("origin", origin.String()), slog.String("from", from), slog.Any("to", to), slog.Any("size", len(data)))
	err := s.handlerInner(ctx, logger, slot, origin, from, to, data)
	if err != nil {
		logger.Error("failed to handle mail", slog.Any("error", err))
	}
	return err
}

func (s *Server) rcptHandler(ctx context.Context, origin net.Addr, from string, to string) bool {
	logger := s.logger.With(slog.String("origin", origin.String()), slog.String("from", from), slog.String("to", to))
	ok, err := s.rcptHandlerInner(ctx, logger, origin, from, to)
	if err != nil {
		logger.Error("failed to handle recipient", slog.Any("error", err))
		ok = false
	}
	if ok {
		rcptVerdicts.WithLabelValues("accepted").Inc()
	} else {
		rcptVerdicts.WithLabelValues("rejected").Inc()
	}
	return ok
}

func (s *Server) Shutdown(ctx context.Context) error {
	eg, innerCtx := errgroup.WithContext(ctx)
	for _, slot := range []*listenerSlot{&s.plain, &s.implicit} {
		slot := slot
		if !slot.Valid() || slot.l == nil {
			continue
		}
		slot.l.Close()
		eg.Go(func() error { return slot.s.Shutdown(innerCtx) })
	}
	return eg.Wait()
}

type listenerWithContext struct {
	net.Listener
	ctx    context.Context
	cancel context.CancelFunc
}

func (l *listenerWithContext) Close() error {
	err := l.Listener.Close()
	l.cancel()
	return err
}

func (l *listenerWithContext) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil && errors.Is(err, net.ErrClosed) {
		l.cancel()
	}
	return conn, err
}

func wrapListener(ctx context.Context, ln net.Listener) *listenerWithContext {
	ctx, cancel := context.WithCancel(ctx)
	inner := &listenerWithContext{
		Listener: ln,
		ctx:      ctx,
		cancel:   cancel,
	}
	go func() {
		<-ctx.Done()
		inner.Close()
	}()
	return inner
}

func (s *Server) listenAndServe(ctx context.Context, slot *listenerSlot) error {
	if slot.s.Appname == "" {
		slot.s.Appname = "smtpd"
	}
	if slot.s.Hostname == "" {
		slot.s.Hostname, _ = os.Hostname()
	}
	if slot.s.Timeout == 0 {
		slot.s.Timeout = 5 * time.Minute
	}

	ln, err := net.Listen("tcp", slot.s.Addr)
	if err != nil {
		return err
	}
	ln = wrapListener(ctx, ln)
	// implicit TLS listeners accept TLS connections only
	if slot.s.TLSConfig != nil && slot.s.TLSListener {
		ln = tls.NewListener(ln, slot.s.TLSConfig)
	}
	slot.s.Handler = func(origin net.Addr, from string, to []string, data []byte) error {
		return s.handler(ctx, slot, origin, from, to, data)
	}
	slot.s.HandlerRcpt = func(origin net.Addr, from string, to string) bool {
		return s.rcptHandler(ctx, origin, from, to)
	}
	slot.setListener(ln)
	return slot.s.Serve(ln)
}

// Ready is closed once every listener is bound.
func (s *Server) Ready() <-chan struct{} {
	return s.readyChan
}

// Addr returns the address the plain listener is bound to. It is only
// meaningful after Ready is closed.
func (s *Server) Addr() net.Addr {
	if s.plain.l == nil {
		return nil
	}
	return s.plain.l.Addr()
}

// ImplicitTLSAddr is like Addr for the implicit TLS listener.
func (s *Server) ImplicitTLSAddr() net.Addr {
	if s.implicit.l == nil {
		return nil
	}
	return s.implicit.l.Addr()
}

func (s *Server) Serve(ctx context.Context) error {
	eg, innerCtx := errgroup.WithContext(ctx)
	readyChans := make([]<-chan *listenerSlot, 0, 2)
	for _, slot := range []*listenerSlot{&s.plain, &s.implicit} {
		slot := slot
		if !slot.Valid() {
			continue
		}
		eg.Go(func() error {
			err := s.listenAndServe(innerCtx, slot)
			if err != nil && (errors.Is(err, net.ErrClosed) || errors.Is(err, smtpd.ErrServerClosed)) {
				err = nil
			}
			return err
		})
		readyChans = append(readyChans, slot.Ready())
	}
	readySlots := make([]*listenerSlot, 0, 2)
outer:
	for _, readyChan := range readyChans {
		select {
		case <-innerCtx.Done():
			for _, slot := range readySlots {
				if err := slot.l.Close(); err != nil {
					s.logger.Warn("failed to close listener", slog.Any("error", err))
				}
				// XXX: this may race with Serve()
				if err := slot.s.Close(); err != nil {
					s.logger.Warn("failed to close server", slog.Any("error", err))
				}
			}
			break outer
		case slot := <-readyChan:
			readySlots = append(readySlots, slot)
		}
	}
	close(s.readyChan)
	return eg.Wait()
}
