package rfc5322

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moriyoshi/go-isemail/internal/bufio"
)

func TestSplitField(t *testing.T) {
	cases := [...]struct {
		input    [][]byte
		expected Field
		ok       bool
	}{
		0: {[][]byte{[]byte("To: a@b")}, Field{"To", "a@b"}, true},
		1: {[][]byte{[]byte("From: abc"), []byte("\t<def@example.com>")}, Field{"From", "abc\r\n\t<def@example.com>"}, true},
		2: {[][]byte{[]byte("Cc :  x@y ")}, Field{"Cc", "x@y "}, true},
		3: {[][]byte{[]byte("garbage")}, Field{}, false},
		4: {nil, Field{}, false},
	}
	for i, c := range cases {
		f, ok := SplitField(c.input)
		assert.Equal(t, c.ok, ok, "#%d", i)
		assert.Equal(t, c.expected, f, "#%d", i)
	}
}

func TestFieldCollector(t *testing.T) {
	msg := "Subject: hi\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"to: bob@example.com,\r\n" +
		" carol@example.com\r\n" +
		"X-Other: ignored\r\n" +
		"\r\n" +
		"To: not-a-header@example.com\r\n"
	c := NewFieldCollector("From", "To")
	err := ScanHeader(bufio.FromBytes([]byte(msg)), c)
	require.NoError(t, err)
	assert.Equal(t, []Field{
		{"From", "Alice <alice@example.com>"},
		{"to", "bob@example.com,\r\n carol@example.com"},
	}, c.Fields)
}
