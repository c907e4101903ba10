package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"blitiri.com.ar/go/spf"
	"github.com/alecthomas/kong"

	isemail "github.com/moriyoshi/go-isemail"
	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/logging"
	"github.com/moriyoshi/go-isemail/internal/resolver"
)

type Globals struct {
	LogLevel    slog.Level    `name:"log-level" help:"Log level." env:"ISEMAIL_LOG_LEVEL" default:"WARN" enum:"DEBUG,INFO,WARN,ERROR"`
	Nameservers []string      `name:"nameservers" help:"DNS server to use for resolving." env:"ISEMAIL_NAMESERVERS"`
	DNSTimeout  time.Duration `name:"dns-timeout" help:"Time allowed for checking a domain." env:"ISEMAIL_DNS_TIMEOUT" default:"5s"`
	DNSCacheTTL time.Duration `name:"dns-cache-ttl" help:"How long domain checks and DNS answers are remembered." env:"ISEMAIL_DNS_CACHE_TTL" default:"5m"`
	DNSNoEDNS0  bool          `name:"dns-no-edns0" help:"Do not send EDNS0 options to the DNS servers." env:"ISEMAIL_DNS_NO_EDNS0"`
	ResolvConf  string        `name:"resolv-conf" help:"resolv.conf to read DNS servers from with the built-in resolver." env:"ISEMAIL_RESOLV_CONF" optional:""`
	NoReload    bool          `name:"no-reload" help:"Read the resolv.conf given by --resolv-conf only once." env:"ISEMAIL_NO_RELOAD"`
}

type CLI struct {
	Globals

	Check    CheckCmd    `cmd:"" help:"Diagnose addresses."`
	Describe DescribeCmd `cmd:"" help:"Describe a diagnosis."`
	Selftest SelftestCmd `cmd:"" help:"Run the built-in test table."`
	Serve    ServeCmd    `cmd:"" help:"Run an SMTP server that reports on the addresses of incoming mail."`
}

func (g *Globals) initLogger() *slog.Logger {
	return slog.New(logging.NewHandler(g.LogLevel))
}

func normalizeNameservers(nameservers []string) ([]string, error) {
	servers := make([]string, len(nameservers))
	copy(servers, nameservers)
	for i := range servers {
		if _, _, err := net.SplitHostPort(servers[i]); err != nil {
			host, port, err := net.SplitHostPort(servers[i] + ":53")
			if err != nil {
				return nil, fmt.Errorf("invalid DNS server address: %s", servers[i])
			}
			servers[i] = net.JoinHostPort(host, port)
		}
	}
	return servers, nil
}

func (g *Globals) configGetter() (resolver.ResolverOptionFunc, error) {
	if len(g.Nameservers) > 0 {
		servers, err := normalizeNameservers(g.Nameservers)
		if err != nil {
			return nil, err
		}
		dnsConf := resolver.DefaultConfig()
		dnsConf.Servers = servers
		return resolver.WithStaticDNSConfig(&dnsConf), nil
	}
	loader, err := resolver.NewResolvConfLoader(
		resolver.WithResolvConfPath(g.ResolvConf),
		resolver.WithNoReload(g.NoReload),
	)
	if err != nil {
		return nil, err
	}
	return resolver.WithConfigGetter(loader.Get), nil
}

func (g *Globals) initResolver(logger *slog.Logger) (spf.DNSResolver, error) {
	if len(g.Nameservers) == 0 && g.ResolvConf == "" {
		return &net.Resolver{}, nil
	}
	configGetter, err := g.configGetter()
	if err != nil {
		return nil, err
	}
	res, err := resolver.NewResolver(
		configGetter,
		resolver.WithCacheMaxAge(g.DNSCacheTTL),
		resolver.WithAvoidEDNS0(g.DNSNoEDNS0),
		resolver.WithDiagnosticLogger(func(format string, args ...any) {
			logger.Debug("resolver", slog.String("text", fmt.Sprintf(format, args...)))
		}),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("with the built-in resolver", slog.Any("servers", g.Nameservers), slog.String("resolv_conf", g.ResolvConf))
	return res, nil
}

func (g *Globals) initChecker(logger *slog.Logger) (isemail.DomainChecker, spf.DNSResolver, error) {
	res, err := g.initResolver(logger)
	if err != nil {
		return nil, nil, err
	}
	checker, err := isemail.NewCachingChecker(isemail.NewResolverChecker(res), g.DNSCacheTTL)
	if err != nil {
		return nil, nil, err
	}
	return checker, res, nil
}

// parseThreshold accepts "warning", "error", a diagnosis identifier or a
// number.
func parseThreshold(s string) (diagnosis.Diagnosis, error) {
	switch strings.ToLower(s) {
	case "warning":
		return isemail.ThresholdWarning, nil
	case "error":
		return isemail.ThresholdError, nil
	}
	if d, ok := diagnosis.Lookup(s); ok {
		return d, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > int(diagnosis.CategoryError) {
		return 0, fmt.Errorf("invalid threshold: %s", s)
	}
	return diagnosis.Diagnosis(n), nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer cancel()
	var cli CLI
	kongCtx := kong.Parse(
		&cli,
		kong.Name("isemail"),
		kong.Description("Checks email addresses against RFC 5321, RFC 5322 and RFC 1035."),
		kong.UsageOnError(),
	)
	kongCtx.BindTo(ctx, (*context.Context)(nil))
	kongCtx.Bind(cancel)
	err := kongCtx.Run(&cli.Globals)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
