package pysrc

import "strings"

const indentUnit = "    "

type writer struct {
	b     strings.Builder
	depth int
}

func (w *writer) indent() { w.depth++ }
func (w *writer) dedent() { w.depth-- }

func (w *writer) line(s string) {
	w.b.WriteString(strings.Repeat(indentUnit, w.depth))
	w.b.WriteString(s)
	w.b.WriteByte('\n')
}

func (w *writer) blank() { w.b.WriteByte('\n') }

func (w *writer) empty() bool { return w.b.Len() == 0 }

// docstring writes a triple-quoted docstring. Backslashes and quotes
// are escaped so text can never close the literal early.
func (w *writer) docstring(doc string) {
	doc = strings.TrimSpace(doc)
	doc = strings.ReplaceAll(doc, `\`, `\\`)
	doc = strings.ReplaceAll(doc, `"`, `\"`)
	lines := strings.Split(doc, "\n")
	if len(lines) == 1 {
		w.line(`"""` + lines[0] + `"""`)
		return
	}
	w.line(`"""` + lines[0])
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			w.blank()
			continue
		}
		w.line(strings.TrimSpace(l))
	}
	w.line(`"""`)
}

func (w *writer) String() string { return w.b.String() }
