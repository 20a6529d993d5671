package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

// The view types share their underlying type with the pipeline results
// so JSON and YAML output is unchanged; only text output differs.

type responseView pipeline.Response

func (v responseView) RenderText(w io.Writer, s ux.Styles) error {
	mark, verb := s.Success.Render("✓"), "wrote"
	if !v.Written {
		mark, verb = s.Muted.Render("="), "unchanged"
	}
	fmt.Fprintf(w, "%s %s %s %s %s\n", mark, s.Key.Render(v.Stage), s.Title.Render(v.Entry.LogicalName), s.Muted.Render(verb), v.Path)
	if v.Entry.ClassName != "" {
		fmt.Fprintf(w, "  %s\n", s.KeyValue("class", v.Entry.ClassName, 9))
	}
	if len(v.Entry.Methods) > 0 {
		fmt.Fprintf(w, "  %s\n", s.KeyValue("methods", strings.Join(v.Entry.Methods, ", "), 9))
	}
	fmt.Fprintf(w, "  %s\n", s.KeyValue("registry", fmt.Sprintf("v%d", v.RegistryVersion), 9))
	for _, n := range v.Notes {
		fmt.Fprintf(w, "  %s\n", s.Muted.Render(n))
	}
	return nil
}

type previewView pipeline.Preview

func (v previewView) RenderText(w io.Writer, s ux.Styles) error {
	if v.Diff.Empty() {
		fmt.Fprintf(w, "%s %s %s %s %s\n", s.Muted.Render("="), s.Key.Render(v.Stage), s.Title.Render(v.Entry.LogicalName), s.Muted.Render("up to date"), v.Path)
		return nil
	}
	verb := "would change"
	if v.Diff.Created {
		verb = "would create"
	}
	fmt.Fprintf(w, "%s %s %s %s %s %s\n", s.Warning.Render("~"), s.Key.Render(v.Stage), s.Title.Render(v.Entry.LogicalName), s.Muted.Render(verb), v.Path, s.Muted.Render("("+v.Diff.Stat()+")"))
	for _, line := range strings.SplitAfter(v.Diff.Unified, "\n") {
		switch {
		case line == "":
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			fmt.Fprint(w, s.Title.Render(strings.TrimSuffix(line, "\n"))+"\n")
		case strings.HasPrefix(line, "@@"):
			fmt.Fprint(w, s.Key.Render(strings.TrimSuffix(line, "\n"))+"\n")
		case strings.HasPrefix(line, "+"):
			fmt.Fprint(w, s.Success.Render(strings.TrimSuffix(line, "\n"))+"\n")
		case strings.HasPrefix(line, "-"):
			fmt.Fprint(w, s.Failure.Render(strings.TrimSuffix(line, "\n"))+"\n")
		default:
			fmt.Fprint(w, line)
		}
	}
	return nil
}

type runView []pipeline.Response

func (v runView) RenderText(w io.Writer, s ux.Styles) error {
	for _, r := range v {
		if err := responseView(r).RenderText(w, s); err != nil {
			return err
		}
	}
	return nil
}

type statusView pipeline.StatusReport

func (v statusView) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintln(w, s.Title.Render("Pipeline status"))
	fmt.Fprintln(w, s.KeyValue("state", v.State.String(), 10))
	fmt.Fprintln(w, s.KeyValue("registry", fmt.Sprintf("v%d %s", v.Version, shortDigest(v.Digest)), 10))
	fmt.Fprintln(w)

	for _, c := range v.Components {
		state := "-"
		style := s.Muted
		switch c.State {
		case artifact.StateCurrent:
			state, style = "current", s.Success
		case artifact.StateDrifted:
			state, style = "drifted", s.Warning
		case artifact.StateMissing:
			state, style = "missing", s.Failure
		}
		fmt.Fprintf(w, "  %-8s %-9s %-28s %s\n", c.Kind, style.Render(fmt.Sprintf("%-9s", state)), c.LogicalName, s.Muted.Render(c.Artifact))
	}
	if len(v.Components) > 0 {
		fmt.Fprintln(w)
	}

	if v.Drifted+v.Missing > 0 {
		fmt.Fprintln(w, s.Warning.Render(fmt.Sprintf("%d drifted, %d missing; rerun the owning stage to regenerate", v.Drifted, v.Missing)))
	}
	if pending := pipeline.StatusReport(v).Pending(); len(pending) > 0 {
		names := make([]string, len(pending))
		for i, k := range pending {
			names[i] = string(k)
		}
		fmt.Fprintln(w, s.KeyValue("pending", strings.Join(names, ", "), 10))
	}
	fmt.Fprintln(w, s.Muted.Render(ux.SuggestNextSteps(v.State)))
	return nil
}

// registryView is `pomgen registry show`.
type registryView struct {
	Version    uint64             `json:"version" yaml:"version"`
	Digest     string             `json:"digest" yaml:"digest"`
	Components []pipeline.Summary `json:"components" yaml:"components"`
}

func (v registryView) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintf(w, "%s v%d %s\n", s.Title.Render("Registry"), v.Version, s.Muted.Render(shortDigest(v.Digest)))
	for _, c := range v.Components {
		fmt.Fprintf(w, "  %-8s %-28s %-24s %s\n", c.Kind, c.LogicalName, c.ClassName, s.Muted.Render(c.FilePath))
	}
	return nil
}

type componentView registry.Component

func (v componentView) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintln(w, s.Title.Render(v.LogicalName))
	for _, kv := range [][2]string{
		{"kind", string(v.Kind)},
		{"class", v.Identity.ClassName},
		{"import", v.Identity.ImportRoute},
		{"file", v.Identity.FilePath},
		{"revision", fmt.Sprint(v.Revision)},
	} {
		fmt.Fprintln(w, s.KeyValue(kv[0], kv[1], 10))
	}
	if len(v.DependsOn) > 0 {
		fmt.Fprintln(w, s.KeyValue("depends", strings.Join(v.DependsOn, ", "), 10))
	}
	if v.Artifact != nil {
		fmt.Fprintln(w, s.KeyValue("digest", shortDigest(v.Artifact.Digest), 10))
	}
	names := make([]string, 0, len(v.Methods))
	for n := range v.Methods {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) > 0 {
		fmt.Fprintln(w, s.Key.Render("methods:"))
	}
	for _, n := range names {
		sig := v.Methods[n]
		line := fmt.Sprintf("  %s(%s)", n, strings.Join(sig.Params, ", "))
		if sig.Returns != "" {
			line += " -> " + sig.Returns
		}
		fmt.Fprintln(w, s.Value.Render(line))
	}
	return nil
}

type capabilitiesView struct {
	Version string              `json:"version" yaml:"version"`
	Module  string              `json:"module" yaml:"module"`
	Class   string              `json:"class" yaml:"class"`
	Methods []capability.Method `json:"methods" yaml:"methods"`
}

func newCapabilitiesView(c *capability.Contract) capabilitiesView {
	return capabilitiesView{Version: c.Version(), Module: c.Module(), Class: c.Class(), Methods: c.Methods()}
}

func (v capabilitiesView) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintf(w, "%s %s (%s.%s)\n", s.Title.Render("Capability contract"), v.Version, v.Module, v.Class)
	var last capability.Category
	for _, m := range v.Methods {
		if m.Category != last {
			fmt.Fprintln(w, s.Key.Render(string(m.Category)+":"))
			last = m.Category
		}
		line := "  " + m.Signature()
		if m.Returns != "" {
			line += " -> " + m.Returns
		}
		if m.Description != "" {
			line += "  " + s.Muted.Render(m.Description)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
