package domain

import (
	"fmt"
	"strings"
	"unicode"
)

// LogicalName is the free-text name a caller uses for a component, such
// as "Login Page" or "Checkout Workflow". It is a value object: the
// registry keys entries by its canonical form.
type LogicalName string

// maxLogicalNameLength is the maximum allowed length for a logical name
const maxLogicalNameLength = 120

// NewLogicalName creates a LogicalName with surrounding whitespace
// trimmed and inner whitespace collapsed.
func NewLogicalName(value string) (LogicalName, error) {
	n := LogicalName(strings.Join(strings.Fields(value), " "))
	if err := n.Validate(); err != nil {
		return "", err
	}
	return n, nil
}

// Validate checks if the logical name is usable
func (n LogicalName) Validate() error {
	s := string(n)

	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("logical name cannot be empty")
	}

	if len(s) > maxLogicalNameLength {
		return fmt.Errorf("logical name %q exceeds maximum length of %d characters", s, maxLogicalNameLength)
	}

	hasWord := false
	for _, r := range s {
		if unicode.IsControl(r) {
			return fmt.Errorf("logical name %q contains control characters", s)
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			hasWord = true
		}
	}
	if !hasWord {
		return fmt.Errorf("logical name %q must contain at least one letter or digit", s)
	}

	return nil
}

// String returns the string representation
func (n LogicalName) String() string {
	return string(n)
}
