// Package bufio provides the line readers the header scanner works on.
package bufio

import (
	_bufio "bufio"
	"bytes"
	"io"
)

// LineReader reads lines terminated by LF. The terminator is kept. A
// borrowed line aliases storage that is never overwritten, so it can be
// retained without copying; any other line is only valid until the next
// call. The last line may come with io.EOF.
type LineReader interface {
	ReadLine() (line []byte, borrowed bool, err error)
}

type sliceReader struct {
	b []byte
}

func (r *sliceReader) ReadLine() ([]byte, bool, error) {
	if len(r.b) == 0 {
		return nil, true, io.EOF
	}
	i := bytes.IndexByte(r.b, '\n')
	if i < 0 {
		l := r.b
		r.b = nil
		return l, true, io.EOF
	}
	l := r.b[:i+1:i+1]
	r.b = r.b[i+1:]
	return l, true, nil
}

type bufferedReader struct {
	r *_bufio.Reader
}

func (r *bufferedReader) ReadLine() ([]byte, bool, error) {
	l, err := r.r.ReadSlice('\n')
	if err != _bufio.ErrBufferFull {
		return l, false, err
	}
	// longer than the buffer; assemble a copy
	b := append([]byte(nil), l...)
	for err == _bufio.ErrBufferFull {
		l, err = r.r.ReadSlice('\n')
		b = append(b, l...)
	}
	return b, true, err
}

// FromBytes returns a LineReader over b. Every line it returns is borrowed
// from b.
func FromBytes(b []byte) LineReader {
	return &sliceReader{b: b}
}

// NewReaderSize returns a LineReader over r buffering at least size bytes.
// Lines longer than the buffer are still returned whole.
func NewReaderSize(r io.Reader, size int) LineReader {
	return &bufferedReader{r: _bufio.NewReaderSize(r, size)}
}
