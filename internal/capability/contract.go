// Package capability holds the contract of browser operations generated
// code may call. It is loaded once and never mutated.
package capability

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

//go:embed capabilities.yaml
var defaultContract []byte

// Category groups capabilities by what they do.
type Category string

const (
	CategoryNavigation  Category = "navigation"
	CategoryInteraction Category = "interaction"
	CategoryQuery       Category = "query"
)

// Param is one positional parameter of a capability.
type Param struct {
	Name     string `yaml:"name" json:"name"`
	Optional bool   `yaml:"optional,omitempty" json:"optional,omitempty"`
}

// Method describes one capability.
type Method struct {
	Name        string   `yaml:"name" json:"name"`
	Category    Category `yaml:"category" json:"category"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Returns     string   `yaml:"returns,omitempty" json:"returns,omitempty"`
	Params      []Param  `yaml:"params,omitempty" json:"params,omitempty"`
}

// Required returns the number of mandatory parameters.
func (m Method) Required() int {
	n := 0
	for _, p := range m.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Signature renders the method as name(p1, p2, [opt]).
func (m Method) Signature() string {
	parts := make([]string, 0, len(m.Params))
	for _, p := range m.Params {
		if p.Optional {
			parts = append(parts, "["+p.Name+"]")
		} else {
			parts = append(parts, p.Name)
		}
	}
	return fmt.Sprintf("%s(%s)", m.Name, strings.Join(parts, ", "))
}

type document struct {
	Version string   `yaml:"version"`
	Module  string   `yaml:"module"`
	Class   string   `yaml:"class"`
	Methods []Method `yaml:"methods"`
}

// Contract is the immutable set of capabilities.
type Contract struct {
	version string
	module  string
	class   string
	order   []string
	methods map[string]Method
}

// Default returns the built-in contract.
func Default() (*Contract, error) {
	return Parse(defaultContract)
}

// DefaultYAML returns the source of the built-in contract, the starting
// point for a project override.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultContract...)
}

// MustDefault is Default for package-level use; the embedded contract
// is validated by tests.
func MustDefault() *Contract {
	c, err := Default()
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a contract from a YAML file.
func LoadFile(path string) (*Contract, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read capability contract", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeCapabilityContract, fmt.Sprintf("invalid capability contract %s", path), err)
	}
	return c, nil
}

// Parse decodes and validates a contract.
func Parse(data []byte) (*Contract, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse capability contract: %w", err)
	}
	if doc.Module == "" || doc.Class == "" {
		return nil, fmt.Errorf("capability contract must name its module and class")
	}
	if len(doc.Methods) == 0 {
		return nil, fmt.Errorf("capability contract defines no methods")
	}

	c := &Contract{
		version: doc.Version,
		module:  doc.Module,
		class:   doc.Class,
		methods: make(map[string]Method, len(doc.Methods)),
	}
	for _, m := range doc.Methods {
		if m.Name == "" {
			return nil, fmt.Errorf("capability with empty name")
		}
		if _, dup := c.methods[m.Name]; dup {
			return nil, fmt.Errorf("capability %s defined twice", m.Name)
		}
		switch m.Category {
		case CategoryNavigation, CategoryInteraction, CategoryQuery:
		default:
			return nil, fmt.Errorf("capability %s has unknown category %q", m.Name, m.Category)
		}
		optional := false
		for _, p := range m.Params {
			if p.Optional {
				optional = true
			} else if optional {
				return nil, fmt.Errorf("capability %s: required parameter %s follows an optional one", m.Name, p.Name)
			}
		}
		c.methods[m.Name] = m
		c.order = append(c.order, m.Name)
	}
	return c, nil
}

// Version returns the contract version string.
func (c *Contract) Version() string { return c.version }

// Module returns the import route of the capability implementation.
func (c *Contract) Module() string { return c.module }

// Class returns the class name of the capability implementation.
func (c *Contract) Class() string { return c.class }

// Names returns all capability names in contract order.
func (c *Contract) Names() []string {
	return append([]string(nil), c.order...)
}

// Methods returns all capabilities in contract order.
func (c *Contract) Methods() []Method {
	out := make([]Method, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.methods[n])
	}
	return out
}

// Lookup returns the capability named name.
func (c *Contract) Lookup(name string) (Method, bool) {
	m, ok := c.methods[name]
	return m, ok
}

// Validate checks that name exists and accepts argc positional
// arguments.
func (c *Contract) Validate(name string, argc int) (Method, error) {
	m, ok := c.methods[name]
	if !ok {
		return Method{}, errors.NewUnknownCapabilityError(name, c.Nearest(name, 3))
	}
	if argc < m.Required() || argc > len(m.Params) {
		return Method{}, errors.NewArityError(name, argc, m.Required(), len(m.Params))
	}
	return m, nil
}

// Nearest returns up to limit capability names similar to name: fuzzy
// matches first, then names sharing a word with it.
func (c *Contract) Nearest(name string, limit int) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range fuzzy.Find(name, c.order) {
		if len(out) == limit {
			return out
		}
		out = append(out, m.Str)
		seen[m.Str] = true
	}

	type scored struct {
		name  string
		score int
	}
	var shared []scored
	for _, n := range c.order {
		if seen[n] {
			continue
		}
		if s := sharedWords(name, n); s > 0 {
			shared = append(shared, scored{n, s})
		}
	}
	sort.SliceStable(shared, func(i, j int) bool { return shared[i].score > shared[j].score })
	for _, s := range shared {
		if len(out) == limit {
			break
		}
		out = append(out, s.name)
	}
	return out
}

func sharedWords(a, b string) int {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(a), isSep) {
		words[w] = true
	}
	n := 0
	for _, w := range strings.FieldsFunc(b, isSep) {
		if words[w] {
			n++
		}
	}
	return n
}

func isSep(r rune) bool {
	return r == '_' || r == ' ' || r == '-' || r == '.'
}
