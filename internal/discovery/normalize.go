package discovery

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
)

// maxGeneratedName caps names derived from element text.
const maxGeneratedName = 40

var cssIdent = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// Dropped records an element that did not make it into the result.
type Dropped struct {
	Index  int
	Name   string
	Reason string
}

// Normalize converts raw elements into descriptors in input order.
// Hidden elements, elements with a role the page generator has no
// method for, and elements without any locator are dropped and
// reported. Duplicate names are disambiguated.
func Normalize(raw []RawElement) ([]domain.ElementDescriptor, []Dropped) {
	var (
		out     []domain.ElementDescriptor
		dropped []Dropped
		perRole = make(map[domain.Role]int)
	)

	for i, r := range raw {
		if r.Hidden() {
			dropped = append(dropped, Dropped{Index: i, Name: r.SuggestedName, Reason: "not visible"})
			continue
		}
		role, err := roleOf(r)
		if err != nil {
			dropped = append(dropped, Dropped{Index: i, Name: r.SuggestedName, Reason: err.Error()})
			continue
		}
		strategy, value, err := locatorOf(r)
		if err != nil {
			dropped = append(dropped, Dropped{Index: i, Name: r.SuggestedName, Reason: err.Error()})
			continue
		}

		perRole[role]++
		out = append(out, domain.ElementDescriptor{
			Strategy:      strategy,
			Value:         value,
			Role:          role,
			SuggestedName: nameOf(r, role, perRole[role]),
		})
	}
	return Disambiguate(out), dropped
}

func roleOf(r RawElement) (domain.Role, error) {
	if r.Role != "" {
		return domain.ParseRole(r.Role)
	}
	if r.ElementType != "" {
		return domain.ParseRole(r.ElementType)
	}

	typ := strings.ToLower(r.TypeAttr)
	switch strings.ToLower(r.Tag) {
	case "button":
		return domain.RoleButton, nil
	case "a":
		return domain.RoleLink, nil
	case "select":
		return domain.RoleDropdown, nil
	case "textarea":
		return domain.RoleInput, nil
	case "iframe", "frame":
		return domain.RoleFrame, nil
	case "table":
		return domain.RoleGrid, nil
	case "input":
		switch typ {
		case "file":
			return domain.RoleUploadTarget, nil
		case "button", "submit", "reset", "image":
			return domain.RoleButton, nil
		case "checkbox", "radio", "hidden", "range", "color":
			return "", fmt.Errorf("unsupported input type %q", typ)
		default:
			return domain.RoleInput, nil
		}
	case "":
		return "", fmt.Errorf("element has no role, type or tag")
	default:
		return "", fmt.Errorf("unsupported tag %q", r.Tag)
	}
}

func locatorOf(r RawElement) (domain.Strategy, string, error) {
	if v := strings.TrimSpace(r.Locator); v != "" {
		s, err := domain.ParseStrategy(r.Strategy, v)
		return s, v, err
	}
	for _, v := range []string{r.LocatorID, r.LocatorCSS} {
		if v = strings.TrimSpace(v); v != "" {
			return domain.StrategyCSS, v, nil
		}
	}
	if v := strings.TrimSpace(r.LocatorXPath); v != "" {
		return domain.StrategyXPath, v, nil
	}
	return deriveLocator(r)
}

// deriveLocator builds a locator from attributes, preferring id, then
// name, class, type and finally text.
func deriveLocator(r RawElement) (domain.Strategy, string, error) {
	tag := strings.ToLower(strings.TrimSpace(r.Tag))
	if tag == "" {
		tag = "*"
	}
	if id := strings.TrimSpace(r.ID); id != "" {
		if cssIdent.MatchString(id) {
			return domain.StrategyCSS, "#" + id, nil
		}
		return domain.StrategyCSS, fmt.Sprintf("%s[id=%s]", tag, cssQuote(id)), nil
	}
	if name := strings.TrimSpace(r.Name); name != "" {
		return domain.StrategyCSS, fmt.Sprintf("%s[name=%s]", tag, cssQuote(name)), nil
	}
	if fields := strings.Fields(r.Class); len(fields) > 0 && cssIdent.MatchString(fields[0]) && tag != "*" {
		return domain.StrategyCSS, tag + "." + fields[0], nil
	}
	if typ := strings.TrimSpace(r.TypeAttr); typ != "" && tag != "*" {
		return domain.StrategyCSS, fmt.Sprintf("%s[type=%s]", tag, cssQuote(typ)), nil
	}
	if text := strings.TrimSpace(r.Text); text != "" {
		return domain.StrategyXPath, fmt.Sprintf("//%s[contains(text(), %s)]", tag, xpathQuote(truncate(text, 20))), nil
	}
	if tag != "*" {
		return domain.StrategyCSS, tag, nil
	}
	return "", "", fmt.Errorf("element has no locator")
}

func nameOf(r RawElement, role domain.Role, index int) string {
	if n := strings.Join(strings.Fields(r.SuggestedName), " "); n != "" && naming.Key(n) != "" {
		return n
	}
	for _, src := range []string{r.ID, r.Name, r.Text, r.Placeholder} {
		if n := strings.Join(strings.Fields(src), " "); n != "" && naming.Key(n) != "" {
			return truncate(n, maxGeneratedName)
		}
	}
	return fmt.Sprintf("%s %d", strings.ReplaceAll(string(role), "-", " "), index)
}

// Disambiguate suffixes repeated names with " 2", " 3" and so on, in
// input order, so that every descriptor yields distinct identifiers.
func Disambiguate(in []domain.ElementDescriptor) []domain.ElementDescriptor {
	taken := make(map[string]bool, len(in))
	out := make([]domain.ElementDescriptor, len(in))
	for i, d := range in {
		d.SuggestedName = uniqueName(d.SuggestedName, taken)
		taken[naming.Key(d.SuggestedName)] = true
		out[i] = d
	}
	return out
}

func uniqueName(name string, taken map[string]bool) string {
	if !taken[naming.Key(name)] {
		return name
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s %d", name, n)
		if !taken[naming.Key(candidate)] {
			return candidate
		}
	}
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:max]))
}

func cssQuote(s string) string {
	return "'" + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), "'", `\'`) + "'"
}

// xpathQuote quotes s for XPath 1.0, which has no escape sequences.
func xpathQuote(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

// Import normalizes raw and fails with NoElementsFound when nothing
// usable remains.
func Import(target string, raw []RawElement) ([]domain.ElementDescriptor, []Dropped, error) {
	descs, dropped := Normalize(raw)
	if len(descs) == 0 {
		err := errors.NewNoElementsFoundError(target)
		if len(dropped) > 0 {
			err.WithSuggestion(fmt.Sprintf("%d elements were dropped, first because: %s", len(dropped), dropped[0].Reason))
		}
		return nil, dropped, err
	}
	return descs, dropped, nil
}
