// Package tui holds the interactive prompts used by `pomgen init` and
// `pomgen story`. Every prompt has a flag equivalent; prompts only run
// when ShouldPrompt reports a terminal outside CI.
package tui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// Prompt represents a simple interactive prompt configuration
type Prompt struct {
	Message     string
	Default     string
	Placeholder string
	Required    bool
	Validate    func(string) error
}

// PromptForString displays an interactive prompt and returns the user's input
func PromptForString(p Prompt) (string, error) {
	value := p.Default
	input := huh.NewInput().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Value(&value).
		Validate(p.validator())

	if err := huh.NewForm(huh.NewGroup(input)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// PromptForText displays a multi-line editor, used for story text.
func PromptForText(p Prompt) (string, error) {
	value := p.Default
	text := huh.NewText().
		Title(p.Message).
		Placeholder(p.Placeholder).
		Lines(8).
		Value(&value).
		Validate(p.validator())

	if err := huh.NewForm(huh.NewGroup(text)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return value, nil
}

func (p Prompt) validator() func(string) error {
	return func(s string) error {
		if p.Required && strings.TrimSpace(s) == "" {
			return fmt.Errorf("value is required")
		}
		if p.Validate != nil {
			return p.Validate(strings.TrimSpace(s))
		}
		return nil
	}
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue
	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

// PromptForSelect displays a selection prompt with multiple options
func PromptForSelect(message string, options []string, defaultValue string) (string, error) {
	if len(options) == 0 {
		return "", fmt.Errorf("no options provided")
	}
	selected := defaultValue
	selectField := huh.NewSelect[string]().
		Title(message).
		Options(huh.NewOptions(options...)...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(selectField)).Run(); err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return selected, nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

var ciEnvVars = []string{
	"CI",
	"GITHUB_ACTIONS",
	"GITLAB_CI",
	"JENKINS_URL",
	"TRAVIS",
	"CIRCLECI",
	"BUILDKITE",
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	return shouldPrompt(os.Getenv, IsInteractive())
}

func shouldPrompt(getenv func(string) string, interactive bool) bool {
	for _, envVar := range ciEnvVars {
		if getenv(envVar) != "" {
			return false
		}
	}
	return interactive
}
