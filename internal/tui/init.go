package tui

import (
	"fmt"

	"github.com/charmbracelet/huh"

	"github.com/felixgeelhaar/pomgen/internal/config"
)

// RunInitForm asks for the settings `pomgen init` writes, starting from
// cfg, and updates cfg in place.
func RunInitForm(cfg *config.Config) error {
	namespace := cfg.Layout.Namespace
	backend := cfg.Registry.Backend
	level := cfg.Logging.Level

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Python package for generated modules").
				Description("Pages, tasks and roles live under this package").
				Value(&namespace).
				Validate(ValidateNamespace),
			huh.NewSelect[string]().
				Title("Registry backend").
				Options(
					huh.NewOption("JSON file (.pomgen/registry.json)", config.BackendFile),
					huh.NewOption("SQLite (.pomgen/registry.db)", config.BackendSQLite),
					huh.NewOption("In memory (nothing persisted)", config.BackendMemory),
				).
				Value(&backend),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&level),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("init form failed: %w", err)
	}
	return ApplyInitAnswers(cfg, namespace, backend, level)
}

// ApplyInitAnswers validates the answers and stores them in cfg.
func ApplyInitAnswers(cfg *config.Config, namespace, backend, level string) error {
	next := *cfg
	next.Layout.Namespace = namespace
	next.Registry.Backend = backend
	next.Logging.Level = level
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

// ValidateNamespace rejects names that are not importable Python packages.
func ValidateNamespace(s string) error {
	cfg := config.Default()
	cfg.Layout.Namespace = s
	if err := cfg.Layout.Validate(); err != nil {
		return fmt.Errorf("%q is not a valid package name", s)
	}
	return nil
}
