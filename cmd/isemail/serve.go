package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	isemail "github.com/moriyoshi/go-isemail"
	"github.com/moriyoshi/go-isemail/types"
)

type ServeCmd struct {
	Bind            string `name:"bind" help:"Address and port to listen on." env:"ISEMAIL_BIND" default:"[::0]:60025"`
	BindImplicitTLS string `name:"bind-implicit-tls" help:"Address and port to listen on, for implicit TLS. Requires a certificate." env:"ISEMAIL_BIND_IMPLICIT_TLS" optional:""`
	Certificate     string `name:"certificate" help:"Path to the certificate file." env:"ISEMAIL_CERTIFICATE" optional:""`
	PrivateKey      string `name:"private-key" help:"Path to the private key file." env:"ISEMAIL_PRIVATE_KEY" optional:""`
	Passphrase      string `name:"passphrase" help:"Passphrase for the private key file." env:"ISEMAIL_PASSPHRASE" optional:""`
	Hostname        string `name:"hostname" help:"Host name to be used in the SMTP banner." env:"ISEMAIL_HOSTNAME" optional:""`
	VerifySpf       bool   `name:"verify-spf" help:"Verify SPF records." env:"ISEMAIL_VERIFY_SPF" default:"true" negatable:""`
	VerifyDKIM      bool   `name:"verify-dkim" help:"Verify DKIM signatures." env:"ISEMAIL_VERIFY_DKIM" default:"true" negatable:""`
	DNS             bool   `name:"dns" help:"Look the domains of addresses up." env:"ISEMAIL_DNS" default:"false"`
	IDNA            bool   `name:"idna" help:"Convert internationalized domains to A-labels first." env:"ISEMAIL_IDNA"`
	RejectThreshold string `name:"reject-threshold" help:"Refuse recipients whose diagnosis is at least this one." env:"ISEMAIL_REJECT_THRESHOLD" default:"warning"`
	HeaderFields    []string `name:"header-fields" help:"Header fields whose addresses are checked." env:"ISEMAIL_HEADER_FIELDS" default:"From,Sender,Reply-To,To,Cc"`
	Reports         string `name:"reports" help:"File to append JSON reports to, or - for standard output." env:"ISEMAIL_REPORTS" default:"-"`
	MetricsBind     string `name:"metrics-bind" help:"Address and port to serve Prometheus metrics on." env:"ISEMAIL_METRICS_BIND" optional:""`
}

func loadServerCertificate(certFile string, keyFile string, passphrase string) (*tls.Config, error) {
	var certPEMBlock, keyPEMBlock *pem.Block

	{
		b, err := os.ReadFile(certFile)
		if err != nil {
			return nil, err
		}
		for {
			var block *pem.Block
			block, b = pem.Decode(b)
			if block == nil {
				break
			}
			if block.Type == "CERTIFICATE" {
				certPEMBlock = block
			}
			if strings.HasSuffix(block.Type, "PRIVATE KEY") {
				keyPEMBlock = block
			}
		}
	}
	if certPEMBlock == nil {
		return nil, fmt.Errorf("no certificate found in %s", certFile)
	}
	if keyFile != "" {
		b, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, err
		}
		keyPEMBlock, _ = pem.Decode(b)
		if keyPEMBlock == nil || !strings.HasSuffix(keyPEMBlock.Type, "PRIVATE KEY") {
			return nil, fmt.Errorf("no private key found in %s", keyFile)
		}
	} else if keyPEMBlock == nil {
		return nil, fmt.Errorf("no key found in %s and no key file is specified", certFile)
	}

	if passphrase != "" {
		b, err := x509.DecryptPEMBlock(keyPEMBlock, []byte(passphrase))
		if err != nil {
			return nil, err
		}
		keyPEMBlock.Bytes = b
	}
	cert, err := tls.X509KeyPair(pem.EncodeToMemory(certPEMBlock), pem.EncodeToMemory(keyPEMBlock))
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
	}, nil
}

// reportWriter is an outlet writing one JSON object per report.
type reportWriter struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (rw *reportWriter) handle(_ context.Context, report *types.Report) error {
	rw.mu.Lock()
	defer rw.mu.Unlock()
	return rw.enc.Encode(report)
}

func (c *ServeCmd) openReports() (io.WriteCloser, error) {
	if c.Reports == "-" {
		return nopCloser{os.Stdout}, nil
	}
	return os.OpenFile(c.Reports, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error {
	return nil
}

func (c *ServeCmd) initServer(g *Globals, logger *slog.Logger, outlet types.Outlet) (*isemail.Server, error) {
	rejectAt, err := parseThreshold(c.RejectThreshold)
	if err != nil {
		return nil, err
	}
	checker, res, err := g.initChecker(logger)
	if err != nil {
		return nil, err
	}
	validator, err := isemail.NewValidator(
		isemail.WithDNSCheck(c.DNS),
		isemail.WithDomainChecker(checker),
		isemail.WithDNSTimeout(g.DNSTimeout),
		isemail.WithIDNA(c.IDNA),
		isemail.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	options := []isemail.ServerOptionFunc{
		isemail.WithSPFVerification(c.VerifySpf),
		isemail.WithDKIMVerification(c.VerifyDKIM),
		isemail.WithServerLogger(logger),
		isemail.WithServerResolver(res),
		isemail.WithRejectThreshold(rejectAt),
		isemail.WithHeaderFields(c.HeaderFields...),
	}
	if c.Hostname != "" {
		options = append(options, isemail.WithHostname(c.Hostname))
	}
	if c.Certificate != "" {
		serverTLSConfig, err := loadServerCertificate(c.Certificate, c.PrivateKey, c.Passphrase)
		if err != nil {
			return nil, err
		}
		options = append(options, isemail.WithTLSConfig(serverTLSConfig))
	}
	return isemail.NewServer(c.Bind, c.BindImplicitTLS, validator, outlet, options...)
}

func serveMetrics(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	logger.Info("serving metrics", slog.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (c *ServeCmd) Run(ctx context.Context, cancel context.CancelFunc, g *Globals) error {
	logger := g.initLogger()
	w, err := c.openReports()
	if err != nil {
		return err
	}
	defer w.Close()
	rw := &reportWriter{enc: json.NewEncoder(w)}
	server, err := c.initServer(g, logger, rw.handle)
	if err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT)
	defer signal.Stop(sigChan)
	go func() {
		count := 0
	outer:
		for {
			select {
			case <-ctx.Done():
				break outer
			case <-sigChan:
				count += 1
				if count == 1 {
					logger.Warn("Received SIGINT, shutting down...")
					if err := server.Shutdown(ctx); err != nil {
						logger.Error("failed to shut down", slog.Any("error", err))
						cancel()
					}
				} else {
					logger.Warn("Received SIGINT again, forcing shutdown...")
					cancel()
				}
			}
		}
	}()

	eg, egCtx := errgroup.WithContext(ctx)
	if c.MetricsBind != "" {
		eg.Go(func() error {
			return serveMetrics(egCtx, c.MetricsBind, logger)
		})
	}
	eg.Go(func() error {
		err := server.Serve(egCtx)
		// the metrics endpoint goes down with the SMTP server
		cancel()
		return err
	})
	return eg.Wait()
}
