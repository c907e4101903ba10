package main

import (
	"context"
	"fmt"
	"io"
	"os"

	isemail "github.com/moriyoshi/go-isemail"
	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/fixtures"
)

type SelftestCmd struct {
	File    string `name:"file" help:"YAML test table to run instead of the built-in one." type:"existingfile" optional:""`
	Verbose bool   `name:"verbose" short:"v" help:"Print passing cases too."`
}

func describe(d diagnosis.Diagnosis) string {
	if m, ok := diagnosis.Describe(d); ok {
		return fmt.Sprintf("%s (%s)", d, m.Description)
	}
	return d.String()
}

func (c *SelftestCmd) Run(ctx context.Context, g *Globals) error {
	return c.run(ctx, g, os.Stdout)
}

func (c *SelftestCmd) run(ctx context.Context, g *Globals, w io.Writer) error {
	var table fixtures.Table
	var err error
	if c.File != "" {
		table, err = fixtures.LoadFromYAMLFile(c.File)
	} else {
		table, err = fixtures.Default()
	}
	if err != nil {
		return err
	}
	v, err := isemail.NewValidator(isemail.WithLogger(g.initLogger()))
	if err != nil {
		return err
	}

	failed := 0
	for _, tc := range table {
		r := v.Validate(ctx, tc.Address)
		if r.Final == tc.Diagnosis {
			if c.Verbose {
				fmt.Fprintf(w, "ok   %3d %q %s\n", tc.ID, tc.Address, r.Final)
			}
			continue
		}
		failed++
		fmt.Fprintf(w, "FAIL %3d %q\n", tc.ID, tc.Address)
		fmt.Fprintf(w, "     expected %s\n", describe(tc.Diagnosis))
		fmt.Fprintf(w, "     got      %s\n", describe(r.Final))
		if tc.Comment != "" {
			fmt.Fprintf(w, "     %s\n", tc.Comment)
		}
	}
	fmt.Fprintf(w, "%d cases, %d failed\n", len(table), failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d cases failed", failed, len(table))
	}
	return nil
}
