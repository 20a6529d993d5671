package domain

import (
	"fmt"
	"strings"
)

// Role is the interaction category of a page element.
type Role string

const (
	RoleInput        Role = "input"
	RoleButton       Role = "button"
	RoleLink         Role = "link"
	RoleDropdown     Role = "dropdown"
	RoleUploadTarget Role = "upload-target"
	RoleFrame        Role = "frame"
	RoleGrid         Role = "grid"
)

// Roles lists every role in a stable order.
var Roles = []Role{RoleInput, RoleButton, RoleLink, RoleDropdown, RoleUploadTarget, RoleFrame, RoleGrid}

var roleAliases = map[string]Role{
	"input": RoleInput, "inputs": RoleInput, "textarea": RoleInput, "text": RoleInput,
	"email": RoleInput, "password": RoleInput, "search": RoleInput, "textbox": RoleInput,
	"button": RoleButton, "buttons": RoleButton, "submit": RoleButton,
	"link": RoleLink, "links": RoleLink, "a": RoleLink,
	"dropdown": RoleDropdown, "dropdowns": RoleDropdown, "select": RoleDropdown, "selects": RoleDropdown,
	"upload-target": RoleUploadTarget, "upload": RoleUploadTarget, "file": RoleUploadTarget, "uploads": RoleUploadTarget,
	"frame": RoleFrame, "frames": RoleFrame, "iframe": RoleFrame, "iframes": RoleFrame,
	"grid": RoleGrid, "grids": RoleGrid, "table": RoleGrid, "tables": RoleGrid,
}

// ParseRole accepts a role name or one of the element-type spellings
// found in discovery output ("buttons", "select", "iframe").
func ParseRole(s string) (Role, error) {
	if r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return r, nil
	}
	return "", fmt.Errorf("unsupported element role %q", s)
}

// Strategy is the locator lookup mechanism.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyID    Strategy = "id"
	StrategyName  Strategy = "name"
)

// ParseStrategy parses a strategy name; an empty name is inferred from
// the locator value.
func ParseStrategy(s, value string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return InferStrategy(value), nil
	case "css", "css_selector", "css selector":
		return StrategyCSS, nil
	case "xpath":
		return StrategyXPath, nil
	case "id":
		return StrategyID, nil
	case "name":
		return StrategyName, nil
	default:
		return "", fmt.Errorf("unsupported locator strategy %q", s)
	}
}

// InferStrategy treats values that look like XPath as XPath and
// everything else as CSS.
func InferStrategy(value string) Strategy {
	v := strings.TrimSpace(value)
	if strings.HasPrefix(v, "/") || strings.HasPrefix(v, "(/") || strings.HasPrefix(v, "./") {
		return StrategyXPath
	}
	return StrategyCSS
}

// ElementDescriptor is one interactive element of a page, normalized.
type ElementDescriptor struct {
	Strategy      Strategy `json:"strategy" yaml:"strategy"`
	Value         string   `json:"value" yaml:"value"`
	Role          Role     `json:"role" yaml:"role"`
	SuggestedName string   `json:"suggested_name" yaml:"suggested_name"`
	// DisambiguatedFrom is the name a merge received before suffixing it
	// to avoid a clash.
	DisambiguatedFrom string `json:"disambiguated_from,omitempty" yaml:"disambiguated_from,omitempty"`
}

// Validate checks that every field is populated.
func (d ElementDescriptor) Validate() error {
	if strings.TrimSpace(d.Value) == "" {
		return fmt.Errorf("element %q has an empty locator", d.SuggestedName)
	}
	if strings.TrimSpace(d.SuggestedName) == "" {
		return fmt.Errorf("element with locator %q has no name", d.Value)
	}
	if _, err := ParseRole(string(d.Role)); err != nil {
		return err
	}
	if _, err := ParseStrategy(string(d.Strategy), d.Value); err != nil {
		return err
	}
	return nil
}
