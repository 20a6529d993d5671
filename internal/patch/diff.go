// Package patch renders line diffs between an artifact on disk and the
// content a stage would write in its place.
package patch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 3

// Diff is the change from the current file to the generated one.
type Diff struct {
	Path       string `json:"path" yaml:"path"`
	Created    bool   `json:"created,omitempty" yaml:"created,omitempty"`
	Insertions int    `json:"insertions" yaml:"insertions"`
	Deletions  int    `json:"deletions" yaml:"deletions"`
	Unified    string `json:"unified,omitempty" yaml:"unified,omitempty"`
}

// Empty reports whether the generated content equals the current file.
func (d Diff) Empty() bool { return !d.Created && d.Insertions == 0 && d.Deletions == 0 }

// Stat summarizes the diff as "+I -D".
func (d Diff) Stat() string { return fmt.Sprintf("+%d -%d", d.Insertions, d.Deletions) }

type line struct {
	op   diffmatchpatch.Operation
	text string
}

type hunk struct {
	oldStart, oldCount int
	newStart, newCount int
	lines              []line
}

// Unified diffs oldContent against newContent line by line. A file that
// does not exist yet is passed as created with empty oldContent.
func Unified(path, oldContent, newContent string, created bool) Diff {
	d := Diff{Path: path, Created: created}
	if oldContent == newContent && !created {
		return d
	}
	lines := diffLines(oldContent, newContent)
	for _, l := range lines {
		switch l.op {
		case diffmatchpatch.DiffInsert:
			d.Insertions++
		case diffmatchpatch.DiffDelete:
			d.Deletions++
		}
	}

	var buf strings.Builder
	from := "a/" + path
	if created {
		from = "/dev/null"
	}
	fmt.Fprintf(&buf, "--- %s\n+++ b/%s\n", from, path)
	for _, h := range group(lines) {
		fmt.Fprintf(&buf, "@@ -%s +%s @@\n", span(h.oldStart, h.oldCount), span(h.newStart, h.newCount))
		for _, l := range h.lines {
			switch l.op {
			case diffmatchpatch.DiffInsert:
				buf.WriteByte('+')
			case diffmatchpatch.DiffDelete:
				buf.WriteByte('-')
			default:
				buf.WriteByte(' ')
			}
			buf.WriteString(l.text)
			if !strings.HasSuffix(l.text, "\n") {
				buf.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}
	d.Unified = buf.String()
	return d
}

func diffLines(oldContent, newContent string) []line {
	dmp := diffmatchpatch.New()
	a, b, index := dmp.DiffLinesToChars(oldContent, newContent)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), index)

	var out []line
	for _, d := range diffs {
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text != "" {
				out = append(out, line{op: d.Type, text: text})
			}
		}
	}
	return out
}

// group splits lines into hunks, merging changes whose context overlaps.
func group(lines []line) []hunk {
	oldNo := make([]int, len(lines))
	newNo := make([]int, len(lines))
	o, n := 1, 1
	for i, l := range lines {
		oldNo[i], newNo[i] = o, n
		if l.op != diffmatchpatch.DiffInsert {
			o++
		}
		if l.op != diffmatchpatch.DiffDelete {
			n++
		}
	}

	var out []hunk
	for i := 0; i < len(lines); {
		if lines[i].op == diffmatchpatch.DiffEqual {
			i++
			continue
		}
		start := max(i-contextLines, 0)
		end := i
		for end < len(lines) {
			if lines[end].op != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(lines) && lines[run].op == diffmatchpatch.DiffEqual {
				run++
			}
			if run == len(lines) || run-end > 2*contextLines {
				end = min(end+contextLines, len(lines))
				break
			}
			end = run
		}

		h := hunk{oldStart: oldNo[start], newStart: newNo[start], lines: lines[start:end]}
		for _, l := range h.lines {
			if l.op != diffmatchpatch.DiffInsert {
				h.oldCount++
			}
			if l.op != diffmatchpatch.DiffDelete {
				h.newCount++
			}
		}
		out = append(out, h)
		i = end
	}
	return out
}

func span(start, count int) string {
	if count == 0 {
		start--
	}
	return fmt.Sprintf("%d,%d", start, count)
}
