// Package fixtures holds the table of addresses and their expected
// diagnoses shared by the package tests and the selftest command.
package fixtures

import (
	_ "embed"
	"fmt"
	"os"
	"sync"

	yaml "gopkg.in/yaml.v3"

	"github.com/moriyoshi/go-isemail/diagnosis"
	"github.com/moriyoshi/go-isemail/internal/expand"
)

//go:embed tests.yaml
var testsYAML []byte

// Case is one row of the table. Diagnosis is the expected result with DNS
// checks disabled.
type Case struct {
	ID        int
	Address   string
	Category  diagnosis.Category
	Diagnosis diagnosis.Diagnosis
	Comment   string
}

type rawCase struct {
	ID        int    `yaml:"id"`
	Address   string `yaml:"address"`
	Category  string `yaml:"category"`
	Diagnosis string `yaml:"diagnosis"`
	Comment   string `yaml:"comment"`
}

func (c *Case) UnmarshalYAML(n *yaml.Node) error {
	var raw rawCase
	if err := n.Decode(&raw); err != nil {
		return err
	}
	addr, err := expand.Decode(raw.Address)
	if err != nil {
		return fmt.Errorf("case %d: %w", raw.ID, err)
	}
	d, ok := diagnosis.Parse(raw.Diagnosis)
	if !ok {
		return fmt.Errorf("case %d: unknown diagnosis %q", raw.ID, raw.Diagnosis)
	}
	cat := d.Category()
	if raw.Category != "" {
		var ok bool
		if cat, ok = diagnosis.LookupCategory(raw.Category); !ok {
			return fmt.Errorf("case %d: unknown category %q", raw.ID, raw.Category)
		}
		if cat != d.Category() {
			return fmt.Errorf("case %d: %s does not belong to %s", raw.ID, d, cat)
		}
	}
	*c = Case{
		ID:        raw.ID,
		Address:   addr,
		Category:  cat,
		Diagnosis: d,
		Comment:   raw.Comment,
	}
	return nil
}

// Table is an ordered list of cases with unique IDs.
type Table []Case

func (t *Table) UnmarshalYAML(n *yaml.Node) error {
	var cases []Case
	if err := n.Decode(&cases); err != nil {
		return err
	}
	seen := make(map[int]struct{}, len(cases))
	for _, c := range cases {
		if _, ok := seen[c.ID]; ok {
			return fmt.Errorf("duplicate case id %d", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	*t = cases
	return nil
}

// ByID returns the case with the given id.
func (t Table) ByID(id int) (Case, bool) {
	for _, c := range t {
		if c.ID == id {
			return c, true
		}
	}
	return Case{}, false
}

func LoadFromYAML(b []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal(b, &t); err != nil {
		return nil, err
	}
	return t, nil
}

func LoadFromYAMLFile(path string) (Table, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LoadFromYAML(b)
}

var defaultTable = sync.OnceValues(func() (Table, error) {
	return LoadFromYAML(testsYAML)
})

// Default returns the built-in table. It is parsed once; callers must not
// modify the result.
func Default() (Table, error) {
	return defaultTable()
}
