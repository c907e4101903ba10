package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	isemail "github.com/moriyoshi/go-isemail"
	"github.com/moriyoshi/go-isemail/diagnosis"
)

type CheckCmd struct {
	Addresses []string `arg:"" optional:"" help:"Addresses to check. Read from standard input, one per line, when none are given."`
	DNS       bool     `name:"dns" help:"Look the domain up once the syntax is valid." env:"ISEMAIL_DNS"`
	Threshold string   `name:"threshold" help:"Diagnoses below this one are reported as valid: warning, error, an identifier or a number." env:"ISEMAIL_THRESHOLD" default:"error"`
	Boolean   bool     `name:"boolean" help:"Only tell whether each address is valid."`
	IDNA      bool     `name:"idna" help:"Convert internationalized domains to A-labels first." env:"ISEMAIL_IDNA"`
	JSON      bool     `name:"json" help:"Print one JSON object per address."`
}

type checkOutput struct {
	Address   string   `json:"address"`
	Valid     bool     `json:"valid"`
	Diagnosis string   `json:"diagnosis"`
	Value     int      `json:"value"`
	Category  string   `json:"category"`
	Diagnoses []string `json:"diagnoses"`
	DNSError  string   `json:"dns_error,omitempty"`
}

func newCheckOutput(r *isemail.Result) checkOutput {
	o := checkOutput{
		Address:   r.Input,
		Valid:     r.Valid(),
		Diagnosis: r.Final.String(),
		Value:     int(r.Final),
		Category:  r.Final.Category().String(),
		Diagnoses: make([]string, len(r.Diagnoses)),
	}
	for i, d := range r.Diagnoses {
		o.Diagnoses[i] = d.String()
	}
	if r.DNSError != nil {
		o.DNSError = r.DNSError.Error()
	}
	return o
}

func (c *CheckCmd) newValidator(g *Globals) (*isemail.Validator, error) {
	threshold, err := parseThreshold(c.Threshold)
	if err != nil {
		return nil, err
	}
	logger := g.initLogger()
	options := []isemail.OptionFunc{
		isemail.WithThreshold(threshold),
		isemail.WithIDNA(c.IDNA),
		isemail.WithDNSCheck(c.DNS),
		isemail.WithDNSTimeout(g.DNSTimeout),
		isemail.WithLogger(logger),
	}
	if c.DNS {
		checker, _, err := g.initChecker(logger)
		if err != nil {
			return nil, err
		}
		options = append(options, isemail.WithDomainChecker(checker))
	}
	return isemail.NewValidator(options...)
}

func (c *CheckCmd) print(w io.Writer, enc *json.Encoder, r *isemail.Result) error {
	switch {
	case c.JSON:
		return enc.Encode(newCheckOutput(r))
	case c.Boolean:
		verdict := "invalid"
		if r.Valid() {
			verdict = "valid"
		}
		_, err := fmt.Fprintf(w, "%q\t%s\n", r.Input, verdict)
		return err
	default:
		_, err := fmt.Fprintf(w, "%q\t%s\t%d\t%s\n", r.Input, r.Final, int(r.Final), r.Final.Category())
		return err
	}
}

func (c *CheckCmd) Run(ctx context.Context, g *Globals) error {
	return c.run(ctx, g, os.Stdin, os.Stdout)
}

func (c *CheckCmd) run(ctx context.Context, g *Globals, stdin io.Reader, stdout io.Writer) error {
	v, err := c.newValidator(g)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(stdout)

	invalid := 0
	check := func(addr string) error {
		r := v.Validate(ctx, addr)
		if r.Final >= diagnosis.Threshold {
			invalid++
		}
		return c.print(stdout, enc, r)
	}
	if len(c.Addresses) > 0 {
		for _, addr := range c.Addresses {
			if err := check(addr); err != nil {
				return err
			}
		}
	} else {
		s := bufio.NewScanner(stdin)
		for s.Scan() {
			if err := check(s.Text()); err != nil {
				return err
			}
		}
		if err := s.Err(); err != nil {
			return err
		}
	}
	if c.Boolean && invalid > 0 {
		return fmt.Errorf("%d invalid address(es)", invalid)
	}
	return nil
}
