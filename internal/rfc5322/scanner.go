// Package rfc5322 reads the header section of an RFC 5322 message.
package rfc5322

import (
	"io"

	"github.com/moriyoshi/go-isemail/internal/bufio"
)

// HeaderHandler receives the header section of a message as ScanHeader
// finds it.
type HeaderHandler interface {
	// HandleStraggler is called for continuation lines that appear before
	// any header field.
	HandleStraggler([]byte) error
	// HandleField is called with the physical lines of one header field,
	// line terminators removed. The handler may keep the slices.
	HandleField([][]byte) error
}

func trimEOL(l []byte) []byte {
	if n := len(l); n > 0 && l[n-1] == '\n' {
		l = l[:n-1]
		if n--; n > 0 && l[n-1] == '\r' {
			l = l[:n-1]
		}
	}
	return l
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t'
}

func own(l []byte, borrowed bool) []byte {
	if borrowed {
		return l
	}
	return append([]byte(nil), l...)
}

// ScanHeader reads header fields from r up to the empty line that ends the
// header section, or to the end of input. The body is left unread.
func ScanHeader(r bufio.LineReader, handler HeaderHandler) error {
	var field [][]byte
	flush := func() error {
		if len(field) == 0 {
			return nil
		}
		err := handler.HandleField(field)
		field = nil
		return err
	}
	for {
		l, borrowed, err := r.ReadLine()
		if err != nil && err != io.EOF {
			return err
		}
		eof := err == io.EOF
		l = trimEOL(l)
		switch {
		case len(l) == 0:
			return flush()
		case isWhitespace(l[0]) && len(field) == 0:
			if err := handler.HandleStraggler(l); err != nil {
				return err
			}
		case isWhitespace(l[0]):
			field = append(field, own(l, borrowed))
		default:
			if err := flush(); err != nil {
				return err
			}
			field = append(field, own(l, borrowed))
		}
		if eof {
			return flush()
		}
	}
}
