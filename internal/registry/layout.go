package registry

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/naming"
)

var segmentPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Layout maps component kinds to output directories. Directories are
// slash-separated and double as import route prefixes.
type Layout struct {
	Namespace    string `yaml:"namespace" json:"namespace"`
	PagesDir     string `yaml:"pages" json:"pages"`
	WorkflowsDir string `yaml:"workflows" json:"workflows"`
	PersonasDir  string `yaml:"personas" json:"personas"`
	TestsDir     string `yaml:"tests" json:"tests"`
	FeaturesDir  string `yaml:"features" json:"features"`
}

// DefaultLayout is framework/{pages,tasks,roles} plus tests/.
func DefaultLayout() Layout {
	return Layout{
		Namespace:    "framework",
		PagesDir:     "pages",
		WorkflowsDir: "tasks",
		PersonasDir:  "roles",
		TestsDir:     "tests",
		FeaturesDir:  "tests/features",
	}
}

// Validate checks that every directory is usable as an import route.
func (l Layout) Validate() error {
	check := func(field, dir string) error {
		if dir == "" {
			return fmt.Errorf("layout %s must not be empty", field)
		}
		for _, seg := range strings.Split(dir, "/") {
			if !segmentPattern.MatchString(seg) {
				return fmt.Errorf("layout %s %q: segment %q is not a valid module name", field, dir, seg)
			}
		}
		return nil
	}
	for _, f := range []struct{ name, dir string }{
		{"namespace", l.Namespace},
		{"pages", l.PagesDir},
		{"workflows", l.WorkflowsDir},
		{"personas", l.PersonasDir},
		{"tests", l.TestsDir},
		{"features", l.FeaturesDir},
	} {
		if err := check(f.name, f.dir); err != nil {
			return err
		}
	}
	return nil
}

// Dir returns the directory holding components of kind.
func (l Layout) Dir(kind Kind) string {
	switch kind {
	case KindPage:
		return path.Join(l.Namespace, l.PagesDir)
	case KindWorkflow:
		return path.Join(l.Namespace, l.WorkflowsDir)
	case KindPersona:
		return path.Join(l.Namespace, l.PersonasDir)
	case KindTest:
		return l.TestsDir
	default:
		return l.FeaturesDir
	}
}

// Identity places a resolved name in the layout. Test modules carry the
// test_ prefix pytest collects by.
func (l Layout) Identity(kind Kind, id naming.Identity) Identity {
	stem := id.FileStem
	ext := ".py"
	switch kind {
	case KindTest:
		if !strings.HasPrefix(stem, "test_") {
			stem = "test_" + stem
		}
	case KindStory:
		ext = ".feature"
	}
	dir := l.Dir(kind)
	return Identity{
		ClassName:   id.ClassName,
		FileStem:    stem,
		ImportRoute: strings.ReplaceAll(dir, "/", ".") + "." + stem,
		FilePath:    path.Join(dir, stem+ext),
	}
}

// Packages lists the package directories that need an __init__.py.
func (l Layout) Packages() []string {
	seen := make(map[string]bool)
	var out []string
	add := func(dir string) {
		for dir != "." && dir != "" && !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
			dir = path.Dir(dir)
		}
	}
	for _, k := range []Kind{KindPage, KindWorkflow, KindPersona, KindTest} {
		add(l.Dir(k))
	}
	return out
}
