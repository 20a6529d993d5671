// Package story extracts ordered scenarios from free-text user stories.
//
// Two forms are understood. Gherkin-style steps (Given, When, Then, with
// And or But continuing the previous step) grouped under optional
// "Scenario:" headers, and the single-sentence narrative
// "As a <persona>, I want to <action> [so that <outcome>]". Steps take
// precedence; the narrative is used only when no step-based scenario is
// actionable.
package story

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
)

// Story is the structured form of a user story.
type Story struct {
	Title   string
	Persona string

	// Narrative is the "As a ..." text, when the story has one.
	Narrative string
	Criteria  []string
	Scenarios []domain.Scenario
}

type field int

const (
	none field = iota
	given
	when
	then
)

var (
	scenarioHeader = regexp.MustCompile(`(?i)^(?:#+\s*)?scenario(?:\s+outline)?\s*(?::\s*(.*))?$`)
	stepLine       = regexp.MustCompile(`(?i)^(given|when|then|and|but)\b\s*:?\s*(.*)$`)
	titleLine      = regexp.MustCompile(`(?i)^(?:#+\s*)?(?:feature|story|title|user story)\s*:\s*(.+)$`)
	narrativeRe    = regexp.MustCompile(`(?i)^as an?\s+(.+?),?\s+i\s+(?:want|would like|need)\s+(?:to\s+)?(.+?)(?:,?\s+so\s+that\s+(.+?))?[.!]?$`)
	narrativeStart = regexp.MustCompile(`(?i)^as an?\s`)
	criteriaHeader = regexp.MustCompile(`(?i)^(?:#+\s*)?acceptance criteria\s*:?$`)
)

type draft struct {
	name   string
	fields [4]string
}

func (d *draft) scenario() domain.Scenario {
	return domain.Scenario{
		Name:            d.name,
		Precondition:    d.fields[given],
		Action:          d.fields[when],
		ExpectedOutcome: d.fields[then],
	}
}

// Parse extracts a story. It fails with EmptyStory when no scenario
// with both an action and an expected outcome can be found. name is the
// story's logical name, used in errors.
func Parse(name, text string) (Story, error) {
	var (
		st        Story
		drafts    []*draft
		cur       *draft
		last      field
		narrative []string
		inCrit    bool
	)

	start := func(name string) {
		cur = &draft{name: name}
		drafts = append(drafts, cur)
		last = none
	}

	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if m := titleLine.FindStringSubmatch(line); m != nil && st.Title == "" {
			st.Title = strings.TrimSpace(m[1])
			continue
		}

		if m := scenarioHeader.FindStringSubmatch(line); m != nil {
			start(strings.TrimSpace(m[1]))
			inCrit = false
			continue
		}

		m := stepLine.FindStringSubmatch(line)
		if m == nil {
			switch {
			case criteriaHeader.MatchString(line):
				inCrit = true
			case inCrit && isBullet(line):
				st.Criteria = append(st.Criteria, strings.TrimSpace(strings.TrimLeft(line, "-*•")))
			case cur == nil:
				if st.Title == "" {
					st.Title = strings.TrimSpace(strings.TrimLeft(line, "# "))
				}
				narrative = append(narrative, line)
			}
			continue
		}
		inCrit = false

		body := strings.TrimSpace(m[2])
		if body == "" {
			continue
		}
		kw := strings.ToLower(m[1])
		var f field
		switch kw {
		case "given":
			f = given
		case "when":
			f = when
		case "then":
			f = then
		default:
			if cur == nil || last == none {
				continue
			}
			cur.fields[last] += " and " + body
			continue
		}

		// A bare Given or When opens an implicit scenario, as does a
		// step that goes back to an earlier phase of a finished one.
		if cur == nil || (f < last && !cur.isEmpty()) {
			start("")
		}
		if cur.fields[f] != "" {
			cur.fields[f] += " and " + body
		} else {
			cur.fields[f] = body
		}
		last = f
	}

	for i, line := range narrative {
		if narrativeStart.MatchString(line) {
			st.Narrative = strings.Join(narrative[i:], " ")
			break
		}
	}
	if m := narrativeRe.FindStringSubmatch(st.Narrative); m != nil {
		st.Persona = strings.TrimSpace(m[1])
	}

	for _, d := range drafts {
		sc := d.scenario()
		if sc.Validate() != nil {
			continue
		}
		st.Scenarios = append(st.Scenarios, sc)
	}

	if len(st.Scenarios) == 0 {
		if sc, ok := fromNarrative(st.Narrative); ok {
			st.Scenarios = append(st.Scenarios, sc)
		}
	}
	if len(st.Scenarios) == 0 {
		return Story{}, errors.NewEmptyStoryError(name)
	}

	st.Scenarios = nameScenarios(st.Scenarios)
	if st.Title == "" {
		st.Title = name
	}
	return st, nil
}

func (d *draft) isEmpty() bool {
	return d.fields[given] == "" && d.fields[when] == "" && d.fields[then] == ""
}

// fromNarrative builds a scenario from the "As a ... I want ..."
// sentence. Without a "so that" clause the outcome is that the action
// succeeds.
func fromNarrative(text string) (domain.Scenario, bool) {
	m := narrativeRe.FindStringSubmatch(text)
	if m == nil {
		return domain.Scenario{}, false
	}
	action := strings.TrimSpace(m[2])
	if naming.Key(action) == "" {
		return domain.Scenario{}, false
	}
	outcome := strings.TrimSpace(m[3])
	if outcome == "" {
		outcome = action + " succeeds"
	}
	return domain.Scenario{Action: action, ExpectedOutcome: outcome}, true
}

// nameScenarios fills missing names from the action and makes names
// distinct by their identifier key, suffixing " 2", " 3" in order.
func nameScenarios(in []domain.Scenario) []domain.Scenario {
	taken := make(map[string]bool, len(in))
	out := make([]domain.Scenario, len(in))
	for i, sc := range in {
		name := strings.Join(strings.Fields(sc.Name), " ")
		if naming.Key(name) == "" {
			name = sc.Action
		}
		base := name
		for n := 2; taken[naming.Key(name)]; n++ {
			name = fmt.Sprintf("%s %d", base, n)
		}
		taken[naming.Key(name)] = true
		sc.Name = name
		out[i] = sc
	}
	return out
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•")
}
