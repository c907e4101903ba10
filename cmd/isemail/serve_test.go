package main

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/types"
)

func writeTestCertificate(t *testing.T, dir string) (string, string) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "isemail.test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		DNSNames:     []string{"isemail.test"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	certFile := filepath.Join(dir, "cert.pem")
	keyFile := filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o644))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestLoadServerCertificate(t *testing.T) {
	dir := t.TempDir()
	certFile, keyFile := writeTestCertificate(t, dir)

	c, err := loadServerCertificate(certFile, keyFile, "")
	require.NoError(t, err)
	assert.Len(t, c.Certificates, 1)

	// certificate and key in one file
	certPEM, err := os.ReadFile(certFile)
	require.NoError(t, err)
	keyPEM, err := os.ReadFile(keyFile)
	require.NoError(t, err)
	bundle := filepath.Join(dir, "bundle.pem")
	require.NoError(t, os.WriteFile(bundle, append(certPEM, keyPEM...), 0o600))
	c, err = loadServerCertificate(bundle, "", "")
	require.NoError(t, err)
	assert.Len(t, c.Certificates, 1)

	_, err = loadServerCertificate(certFile, "", "")
	assert.ErrorContains(t, err, "no key found")
	_, err = loadServerCertificate(keyFile, keyFile, "")
	assert.ErrorContains(t, err, "no certificate found")
}

func TestReportWriter(t *testing.T) {
	var buf bytes.Buffer
	rw := &reportWriter{enc: json.NewEncoder(&buf)}
	report := &types.Report{
		Message: types.NewMessage("a@example.org", []string{"b@example.org"}, []byte("secret")),
		Findings: []types.Finding{
			{Source: "To", Address: "(c)b@example.org", Final: diagnosis.CFWSComment, Diagnoses: []diagnosis.Diagnosis{diagnosis.CFWSComment}},
		},
	}
	require.NoError(t, rw.handle(context.Background(), report))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.NotContains(t, decoded, "Message")
	findings := decoded["Findings"].([]any)
	require.Len(t, findings, 1)
	assert.Equal(t, float64(diagnosis.CFWSComment), findings[0].(map[string]any)["Final"])
}

func TestServeInvalidRejectThreshold(t *testing.T) {
	c := &ServeCmd{Bind: "127.0.0.1:0", RejectThreshold: "strict"}
	_, err := c.initServer(quietGlobals, nil, nil)
	assert.ErrorContains(t, err, "invalid threshold")
}
