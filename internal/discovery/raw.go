// Package discovery turns raw element reports, from a discovery
// collaborator, a snapshot or a hand-written file, into normalized
// element descriptors.
package discovery

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RawElement is one element as reported by a discovery collaborator.
// Field names follow the collaborator's report format; every field is
// optional.
type RawElement struct {
	SuggestedName string `yaml:"suggested_name,omitempty" json:"suggested_name,omitempty"`
	Role          string `yaml:"role,omitempty" json:"role,omitempty"`
	ElementType   string `yaml:"element_type,omitempty" json:"element_type,omitempty"`
	Tag           string `yaml:"tag_name,omitempty" json:"tag_name,omitempty"`
	TypeAttr      string `yaml:"type_attr,omitempty" json:"type_attr,omitempty"`
	ID            string `yaml:"id,omitempty" json:"id,omitempty"`
	Class         string `yaml:"class,omitempty" json:"class,omitempty"`
	Name          string `yaml:"name,omitempty" json:"name,omitempty"`
	Text          string `yaml:"text,omitempty" json:"text,omitempty"`
	Placeholder   string `yaml:"placeholder,omitempty" json:"placeholder,omitempty"`
	Href          string `yaml:"href,omitempty" json:"href,omitempty"`
	Strategy      string `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Locator       string `yaml:"locator,omitempty" json:"locator,omitempty"`
	LocatorID     string `yaml:"locator_id,omitempty" json:"locator_id,omitempty"`
	LocatorCSS    string `yaml:"locator_css,omitempty" json:"locator_css,omitempty"`
	LocatorXPath  string `yaml:"locator_xpath,omitempty" json:"locator_xpath,omitempty"`
	Visible       string `yaml:"visible,omitempty" json:"visible,omitempty"`
}

// Hidden reports whether the collaborator marked the element invisible.
func (r RawElement) Hidden() bool {
	switch strings.ToLower(strings.TrimSpace(r.Visible)) {
	case "no", "false", "0", "hidden":
		return true
	}
	return false
}

// Report is a parsed element file: an optional target plus elements.
type Report struct {
	Target   string       `yaml:"target,omitempty" json:"target,omitempty"`
	Elements []RawElement `yaml:"elements" json:"elements"`
}

// ParseReport decodes YAML or JSON in one of three shapes: a bare list
// of elements, a document with an "elements" list, or a map from element
// category ("buttons", "inputs") to lists.
func ParseReport(data []byte) (Report, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Report{}, fmt.Errorf("failed to parse element report: %w", err)
	}
	if len(node.Content) == 0 {
		return Report{}, nil
	}
	root := node.Content[0]

	switch root.Kind {
	case yaml.SequenceNode:
		var elems []RawElement
		if err := root.Decode(&elems); err != nil {
			return Report{}, fmt.Errorf("failed to decode element list: %w", err)
		}
		return Report{Elements: elems}, nil

	case yaml.MappingNode:
		if hasKey(root, "elements") {
			var rep Report
			if err := root.Decode(&rep); err != nil {
				return Report{}, fmt.Errorf("failed to decode element report: %w", err)
			}
			return rep, nil
		}
		var rep Report
		for i := 0; i+1 < len(root.Content); i += 2 {
			category := root.Content[i].Value
			var elems []RawElement
			if err := root.Content[i+1].Decode(&elems); err != nil {
				return Report{}, fmt.Errorf("failed to decode %s elements: %w", category, err)
			}
			for _, e := range elems {
				if e.ElementType == "" {
					e.ElementType = category
				}
				rep.Elements = append(rep.Elements, e)
			}
		}
		return rep, nil

	default:
		return Report{}, fmt.Errorf("element report must be a list or a mapping")
	}
}

func hasKey(m *yaml.Node, key string) bool {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return true
		}
	}
	return false
}
