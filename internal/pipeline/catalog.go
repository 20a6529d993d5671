package pipeline

import (
	"context"
	"sort"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/naming"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// TestEntry is one generated test module and its test functions.
type TestEntry struct {
	LogicalName string   `json:"logical_name" yaml:"logical_name"`
	FilePath    string   `json:"file_path" yaml:"file_path"`
	Persona     string   `json:"persona,omitempty" yaml:"persona,omitempty"`
	Story       string   `json:"story,omitempty" yaml:"story,omitempty"`
	Functions   []string `json:"functions" yaml:"functions"`
}

// StoryCoverage compares the scenarios extracted from a story with the
// test functions generated for it.
type StoryCoverage struct {
	Story     string   `json:"story" yaml:"story"`
	Scenarios int      `json:"scenarios" yaml:"scenarios"`
	Covered   []string `json:"covered,omitempty" yaml:"covered,omitempty"`
	Missing   []string `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Percent returns the covered share of scenarios, 100 for a story
// without scenarios.
func (s StoryCoverage) Percent() float64 {
	if s.Scenarios == 0 {
		return 100
	}
	return 100 * float64(len(s.Covered)) / float64(s.Scenarios)
}

// Tests lists the generated test modules sorted by logical name.
func (c *Coordinator) Tests(ctx context.Context) ([]TestEntry, error) {
	tx, err := c.reg.Begin()
	if err != nil {
		return nil, err
	}
	var out []TestEntry
	for _, t := range tx.Components(registry.KindTest) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		e := TestEntry{
			LogicalName: t.LogicalName,
			FilePath:    t.Identity.FilePath,
			Functions:   t.MethodNames(),
		}
		for _, dep := range t.DependsOn {
			d, ok := tx.Lookup(dep)
			if !ok {
				continue
			}
			switch d.Kind {
			case registry.KindPersona:
				e.Persona = d.LogicalName
			case registry.KindStory:
				e.Story = d.LogicalName
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// Coverage reports, per story, which scenarios have a generated test
// function in a test module built from that story.
func (c *Coordinator) Coverage(ctx context.Context) ([]StoryCoverage, error) {
	tests, err := c.Tests(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := c.reg.Begin()
	if err != nil {
		return nil, err
	}

	functions := make(map[string]map[string]bool)
	for _, t := range tests {
		if t.Story == "" {
			continue
		}
		if functions[t.Story] == nil {
			functions[t.Story] = make(map[string]bool)
		}
		for _, fn := range t.Functions {
			functions[t.Story][fn] = true
		}
	}

	var out []StoryCoverage
	for _, s := range tx.Components(registry.KindStory) {
		rec, ok := tx.Story(s.LogicalName)
		if !ok {
			continue
		}
		sc := StoryCoverage{Story: s.LogicalName, Scenarios: len(rec.Scenarios)}
		have := functions[s.LogicalName]
		for _, scenario := range rec.Scenarios {
			label := scenario.Name
			if naming.Key(label) == "" {
				label = scenario.Action
			}
			if hasFunction(have, naming.Snake("test", label)) {
				sc.Covered = append(sc.Covered, scenario.Name)
			} else {
				sc.Missing = append(sc.Missing, scenario.Name)
			}
		}
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Story < out[j].Story })
	return out, nil
}

// hasFunction matches fn or a numbered variant fn_N that test
// generation uses for repeated scenario names.
func hasFunction(have map[string]bool, fn string) bool {
	if have[fn] {
		return true
	}
	for name := range have {
		rest, ok := strings.CutPrefix(name, fn+"_")
		if ok && rest != "" && strings.Trim(rest, "0123456789") == "" {
			return true
		}
	}
	return false
}
