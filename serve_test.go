package isemail

import (
	"context"
	"crypto/tls"
	"net"
	"net/smtp"
	"testing"
	"time"

	"github.com/foxcpp/go-mockdns"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/types"
)

type mockOutlet struct {
	reports chan *types.Report
}

func (o *mockOutlet) handle(_ context.Context, report *types.Report) error {
	o.reports <- report
	return nil
}

const testMessage = "From: Sender <sender@example.org>\r\n" +
	"To: rcpt@example.org, \"quoted\"@example.org\r\n" +
	"Cc: (comment)cc@example.org\r\n" +
	"Subject: hello\r\n" +
	"\r\n" +
	"Hello, world!\r\n"

func TestServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	o := &mockOutlet{reports: make(chan *types.Report, 1)}
	s, err := NewServer(
		"127.0.0.1:0",
		"",
		newTestValidator(t),
		o.handle,
		WithHostname("isemail.test"),
		WithRejectThreshold(diagnosis.RFC5321TLD),
		WithDKIMVerification(true),
		WithServerResolver(&mockdns.Resolver{Zones: testZones}),
		WithServerNowGetter(func() time.Time { return now }),
	)
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() {
		served <- s.Serve(ctx)
	}()
	select {
	case <-time.After(5 * time.Second):
		t.Fatal("server did not become ready")
	case <-s.Ready():
	}

	rejected := rcptVerdicts.WithLabelValues("rejected")
	rejectedBefore := testutil.ToFloat64(rejected)

	c, err := smtp.Dial(s.Addr().String())
	require.NoError(t, err)
	require.NoError(t, c.Hello("client.example"))
	require.NoError(t, c.Mail("sender@example.org"))
	require.NoError(t, c.Rcpt("rcpt@example.org"))
	assert.Error(t, c.Rcpt("user@io"))
	w, err := c.Data()
	require.NoError(t, err)
	_, err = w.Write([]byte(testMessage))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.NoError(t, c.Quit())

	assert.Equal(t, rejectedBefore+1, testutil.ToFloat64(rejected))

	var report *types.Report
	select {
	case <-time.After(5 * time.Second):
		t.Fatal("no report")
	case report = <-o.reports:
	}
	assert.Equal(t, "sender@example.org", report.Message.Sender())
	assert.Equal(t, []string{"rcpt@example.org"}, report.Message.Recipients())
	assert.Equal(t, "isemail.test", report.Reception.Host)
	assert.Equal(t, "ESMTP", report.Reception.Protocol)
	assert.Equal(t, now, report.Reception.Timestamp)

	expected := [...]struct {
		source  string
		address string
		final   diagnosis.Diagnosis
	}{
		0: {types.SourceEnvelopeFrom, "sender@example.org", diagnosis.Valid},
		1: {types.SourceEnvelopeTo, "rcpt@example.org", diagnosis.Valid},
		2: {"From", "sender@example.org", diagnosis.Valid},
		3: {"To", "rcpt@example.org", diagnosis.Valid},
		4: {"To", "\"quoted\"@example.org", diagnosis.RFC5321QuotedString},
		5: {"Cc", "(comment)cc@example.org", diagnosis.CFWSComment},
	}
	if assert.Len(t, report.Findings, len(expected)) {
		for i, e := range expected {
			assert.Equal(t, e.source, report.Findings[i].Source, "#%d", i)
			assert.Equal(t, e.address, report.Findings[i].Address, "#%d", i)
			assert.Equal(t, e.final, report.Findings[i].Final, "#%d", i)
		}
	}
	assert.Equal(t, diagnosis.CFWSComment, report.Worst())
	assert.Equal(t, []types.AuthResult{{Method: "dkim", Result: "none"}}, report.Auth)

	cancel()
	select {
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	case err := <-served:
		assert.NoError(t, err)
	}
}

func TestNewServerErrors(t *testing.T) {
	_, err := NewServer("127.0.0.1:0", "", nil, nil)
	assert.ErrorContains(t, err, "no validator")

	v := newTestValidator(t)
	_, err = NewServer("127.0.0.1:0", "127.0.0.1:0", v, nil)
	assert.ErrorContains(t, err, "requires a TLS configuration")

	_, err = NewServer("127.0.0.1:0", "", v, nil, WithRejectThreshold(diagnosis.Valid))
	assert.ErrorContains(t, err, "must be positive")
}

func TestDomainPart(t *testing.T) {
	assert.Equal(t, "example.org", domainPart("a@b@example.org"))
	assert.Equal(t, "", domainPart("postmaster"))
}

func TestServerBindFailure(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer busy.Close()

	v := newTestValidator(t)
	for i := 0; i < 20; i++ {
		s, err := NewServer("127.0.0.1:0", busy.Addr().String(), v, nil, WithTLSConfig(&tls.Config{}))
		require.NoError(t, err)
		served := make(chan error, 1)
		go func() {
			served <- s.Serve(context.Background())
		}()
		select {
		case <-time.After(5 * time.Second):
			t.Fatalf("#%d: server did not give up", i)
		case err := <-served:
			assert.ErrorContains(t, err, "address already in use", "#%d", i)
		}
	}
}
