package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/moriyoshi/go-isemail/diagnosis"
)

type DescribeCmd struct {
	Codes []string `arg:"" optional:"" help:"Identifiers or numeric values. All diagnoses are listed when none are given."`
	JSON  bool     `name:"json" help:"Print JSON."`
}

func printMeta(w io.Writer, m diagnosis.Meta) {
	category := m.Category.String()
	if cm, ok := diagnosis.DescribeCategory(m.Category); ok {
		category += " (" + cm.Description + ")"
	}
	fmt.Fprintf(w, "%s (%d)\n", m.ID, int(m.Value))
	fmt.Fprintf(w, "  %s\n", m.Description)
	fmt.Fprintf(w, "  category: %s\n", category)
	fmt.Fprintf(w, "  smtp: %s\n", m.SMTP)
	for _, ref := range m.References {
		fmt.Fprintf(w, "  see: %s <%s>\n", ref.Cite, ref.Link)
	}
}

func (c *DescribeCmd) Run() error {
	return c.run(os.Stdout)
}

func (c *DescribeCmd) run(w io.Writer) error {
	ds := diagnosis.All()
	if len(c.Codes) > 0 {
		ds = ds[:0]
		for _, code := range c.Codes {
			d, ok := diagnosis.Parse(code)
			if !ok {
				return fmt.Errorf("unknown diagnosis: %s", code)
			}
			ds = append(ds, d)
		}
	}
	metas := make([]diagnosis.Meta, 0, len(ds))
	for _, d := range ds {
		m, ok := diagnosis.Describe(d)
		if !ok {
			return fmt.Errorf("no description for %s", d)
		}
		metas = append(metas, m)
	}
	if c.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(metas)
	}
	for _, m := range metas {
		printMeta(w, m)
	}
	return nil
}
