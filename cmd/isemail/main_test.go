package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/foxcpp/go-mockdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/resolver"
)

var quietGlobals = &Globals{LogLevel: slog.LevelError}

func TestParseThreshold(t *testing.T) {
	cases := [...]struct {
		input    string
		expected diagnosis.Diagnosis
		err      bool
	}{
		0: {"warning", diagnosis.Threshold, false},
		1: {"WARNING", diagnosis.Threshold, false},
		2: {"error", diagnosis.Valid, false},
		3: {"ISEMAIL_RFC5321_TLD", diagnosis.RFC5321TLD, false},
		4: {"42", diagnosis.Diagnosis(42), false},
		5: {"255", diagnosis.Diagnosis(255), false},
		6: {"256", 0, true},
		7: {"-1", 0, true},
		8: {"bogus", 0, true},
	}
	for i, c := range cases {
		d, err := parseThreshold(c.input)
		if c.err {
			assert.Error(t, err, "#%d", i)
		} else if assert.NoError(t, err, "#%d", i) {
			assert.Equal(t, c.expected, d, "#%d", i)
		}
	}
}

func TestNormalizeNameservers(t *testing.T) {
	servers, err := normalizeNameservers([]string{"192.0.2.1", "192.0.2.2:5353", "2001:db8::1", "[2001:db8::2]:53"})
	require.NoError(t, err)
	assert.Equal(t, []string{"192.0.2.1:53", "192.0.2.2:5353", "[2001:db8::1]:53", "[2001:db8::2]:53"}, servers)

	_, err = normalizeNameservers([]string{"[bad"})
	assert.Error(t, err)
}

func TestCheckText(t *testing.T) {
	c := &CheckCmd{Addresses: []string{"test@iana.org", "test@io"}, Threshold: "error"}
	var out bytes.Buffer
	require.NoError(t, c.run(context.Background(), quietGlobals, nil, &out))
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "\"test@iana.org\"\tISEMAIL_VALID\t0\tISEMAIL_VALID_CATEGORY", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "\"test@io\"\tISEMAIL_RFC5321_TLD\t9\t"), lines[1])
}

func TestCheckStdinJSON(t *testing.T) {
	c := &CheckCmd{Threshold: "warning", JSON: true}
	var out bytes.Buffer
	in := strings.NewReader("test@io\na..b@example.com\n")
	require.NoError(t, c.run(context.Background(), quietGlobals, in, &out))

	dec := json.NewDecoder(&out)
	var o checkOutput
	require.NoError(t, dec.Decode(&o))
	assert.Equal(t, "test@io", o.Address)
	assert.True(t, o.Valid)
	assert.Equal(t, "ISEMAIL_VALID", o.Diagnosis)
	assert.Equal(t, []string{"ISEMAIL_RFC5321_TLD"}, o.Diagnoses)

	require.NoError(t, dec.Decode(&o))
	assert.Equal(t, "a..b@example.com", o.Address)
	assert.False(t, o.Valid)
	assert.Equal(t, int(diagnosis.ErrConsecutiveDots), o.Value)
	assert.Equal(t, "ISEMAIL_ERR", o.Category)
}

func TestCheckBoolean(t *testing.T) {
	c := &CheckCmd{Addresses: []string{"test@iana.org"}, Threshold: "error", Boolean: true}
	var out bytes.Buffer
	require.NoError(t, c.run(context.Background(), quietGlobals, nil, &out))
	assert.Equal(t, "\"test@iana.org\"\tvalid\n", out.String())

	out.Reset()
	c.Addresses = append(c.Addresses, "(comment)test@iana.org", "test")
	assert.EqualError(t, c.run(context.Background(), quietGlobals, nil, &out), "2 invalid address(es)")
	assert.Contains(t, out.String(), "\"test\"\tinvalid\n")
}

func TestCheckInvalidThreshold(t *testing.T) {
	c := &CheckCmd{Addresses: []string{"test@iana.org"}, Threshold: "lenient"}
	assert.ErrorContains(t, c.run(context.Background(), quietGlobals, nil, &bytes.Buffer{}), "invalid threshold")
}

func TestDescribe(t *testing.T) {
	c := &DescribeCmd{Codes: []string{"ISEMAIL_RFC5321_TLD", "0"}}
	var out bytes.Buffer
	require.NoError(t, c.run(&out))
	assert.True(t, strings.HasPrefix(out.String(), "ISEMAIL_RFC5321_TLD (9)\n"), out.String())
	assert.Contains(t, out.String(), "ISEMAIL_VALID (0)\n")

	out.Reset()
	c = &DescribeCmd{JSON: true}
	require.NoError(t, c.run(&out))
	var metas []diagnosis.Meta
	require.NoError(t, json.Unmarshal(out.Bytes(), &metas))
	assert.Len(t, metas, len(diagnosis.All()))

	c = &DescribeCmd{Codes: []string{"ISEMAIL_NOPE"}}
	assert.EqualError(t, c.run(&out), "unknown diagnosis: ISEMAIL_NOPE")
}

func TestSelftest(t *testing.T) {
	c := &SelftestCmd{}
	var out bytes.Buffer
	require.NoError(t, c.run(context.Background(), quietGlobals, &out))
	assert.Regexp(t, `^\d+ cases, 0 failed\n$`, out.String())
}

func TestSelftestFailure(t *testing.T) {
	f := filepath.Join(t.TempDir(), "table.yaml")
	require.NoError(t, os.WriteFile(f, []byte(`
- id: 1
  address: 'test@iana.org'
  category: ISEMAIL_ERR
  diagnosis: ISEMAIL_ERR_NODOMAIN
`), 0o644))
	c := &SelftestCmd{File: f}
	var out bytes.Buffer
	assert.EqualError(t, c.run(context.Background(), quietGlobals, &out), "1 of 1 cases failed")
	assert.Contains(t, out.String(), "FAIL   1 \"test@iana.org\"\n")
}

func TestInitResolver(t *testing.T) {
	srv, err := mockdns.NewServerWithLogger(map[string]mockdns.Zone{
		"example.org.": {MX: []net.MX{{Host: "mx.example.org.", Pref: 10}}},
	}, log.New(io.Discard, "", 0), false)
	require.NoError(t, err)
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r, err := (&Globals{}).initResolver(logger)
	require.NoError(t, err)
	assert.IsType(t, &net.Resolver{}, r)

	g := &Globals{Nameservers: []string{srv.LocalAddr().String()}, DNSCacheTTL: time.Minute, DNSNoEDNS0: true}
	r, err = g.initResolver(logger)
	require.NoError(t, err)
	require.IsType(t, &resolver.Resolver{}, r)
	mxs, err := r.LookupMX(context.Background(), "example.org")
	require.NoError(t, err)
	assert.Equal(t, "mx.example.org.", mxs[0].Host)

	path := filepath.Join(t.TempDir(), "resolv.conf")
	require.NoError(t, os.WriteFile(path, []byte("nameserver 192.0.2.53\n"), 0o644))
	r, err = (&Globals{ResolvConf: path, NoReload: true}).initResolver(logger)
	require.NoError(t, err)
	assert.IsType(t, &resolver.Resolver{}, r)

	_, err = (&Globals{Nameservers: []string{"[bad"}}).initResolver(logger)
	assert.Error(t, err)
}
