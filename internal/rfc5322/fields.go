package rfc5322

import (
	"bytes"
	"strings"
)

// Field is a header field with its continuation lines joined by CRLF, as
// they appeared on the wire.
type Field struct {
	Name  string
	Value string
}

// SplitField splits the physical lines of a header field into its name and
// its value. The value keeps its folds; only the whitespace after the colon
// is dropped. ok is false for a line without a colon.
func SplitField(chunks [][]byte) (f Field, ok bool) {
	if len(chunks) == 0 {
		return
	}
	i := bytes.IndexByte(chunks[0], ':')
	if i < 0 {
		return
	}
	f.Name = string(bytes.TrimRight(chunks[0][:i], " \t"))
	var b strings.Builder
	b.Write(bytes.TrimLeft(chunks[0][i+1:], " \t"))
	for _, c := range chunks[1:] {
		b.WriteString("\r\n")
		b.Write(c)
	}
	f.Value = b.String()
	ok = true
	return
}

// FieldCollector is a HeaderHandler that keeps the header fields whose
// names it was created with.
type FieldCollector struct {
	names  map[string]struct{}
	Fields []Field
}

// NewFieldCollector returns a collector for the given field names, which
// are matched case-insensitively.
func NewFieldCollector(names ...string) *FieldCollector {
	c := &FieldCollector{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		c.names[strings.ToLower(n)] = struct{}{}
	}
	return c
}

func (c *FieldCollector) HandleStraggler([]byte) error {
	return nil
}

func (c *FieldCollector) HandleField(chunks [][]byte) error {
	f, ok := SplitField(chunks)
	if !ok {
		return nil
	}
	if _, ok := c.names[strings.ToLower(f.Name)]; ok {
		c.Fields = append(c.Fields, f)
	}
	return nil
}

var _ HeaderHandler = (*FieldCollector)(nil)
