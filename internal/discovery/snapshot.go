package discovery

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
)

// ParseHTML walks an HTML document and reports its interactive elements
// in document order. Elements hidden by the hidden attribute,
// aria-hidden, type=hidden or an inline display:none are skipped along
// with their descendants.
func ParseHTML(r io.Reader) ([]RawElement, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	var out []RawElement
	walk(doc, &out)
	return out, nil
}

func walk(n *html.Node, out *[]RawElement) {
	if n.Type == html.ElementNode {
		if hiddenNode(n) {
			return
		}
		if e, ok := elementOf(n); ok {
			*out = append(*out, e)
			if n.Data == "select" || n.Data == "table" || n.Data == "iframe" {
				return
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, out)
	}
}

var elementTypes = map[string]string{
	"button": "buttons", "a": "links", "select": "selects", "textarea": "textareas",
	"iframe": "frames", "table": "tables",
}

func elementOf(n *html.Node) (RawElement, bool) {
	tag := n.Data
	typ := strings.ToLower(attr(n, "type"))

	category, ok := elementTypes[tag]
	switch {
	case tag == "a" && attr(n, "href") == "":
		return RawElement{}, false
	case tag == "input":
		switch typ {
		case "button", "submit", "reset", "image":
			category = "buttons"
		case "file":
			category = "uploads"
		case "checkbox", "radio", "range", "color":
			return RawElement{}, false
		default:
			category = "inputs"
		}
	case !ok:
		return RawElement{}, false
	}

	text := collapse(textOf(n))
	if text == "" && tag == "input" {
		text = attr(n, "value")
	}
	if tag == "table" {
		text = collapse(attr(n, "summary"))
		if caption := firstChild(n, "caption"); caption != nil {
			text = collapse(textOf(caption))
		}
	}
	if tag == "select" {
		text = ""
	}
	if label := attr(n, "aria-label"); label != "" {
		text = label
	}

	return RawElement{
		ElementType: category,
		Tag:         tag,
		TypeAttr:    typ,
		ID:          attr(n, "id"),
		Class:       attr(n, "class"),
		Name:        attr(n, "name"),
		Text:        text,
		Placeholder: attr(n, "placeholder"),
		Href:        attr(n, "href"),
	}, true
}

func hiddenNode(n *html.Node) bool {
	for _, a := range n.Attr {
		switch a.Key {
		case "hidden":
			return true
		case "aria-hidden":
			if strings.EqualFold(a.Val, "true") {
				return true
			}
		case "type":
			if n.Data == "input" && strings.EqualFold(a.Val, "hidden") {
				return true
			}
		case "style":
			style := strings.ToLower(strings.ReplaceAll(a.Val, " ", ""))
			if strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden") {
				return true
			}
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func firstChild(n *html.Node, tag string) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.Data == tag {
			return c
		}
	}
	return nil
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var rec func(*html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	rec(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// SnapshotPath resolves a target to a local file: a file:// URL, an
// absolute path, or a path relative to root.
func SnapshotPath(root, target string) (string, error) {
	if strings.HasPrefix(target, "file://") {
		u, err := url.Parse(target)
		if err != nil {
			return "", fmt.Errorf("invalid snapshot URL %q: %w", target, err)
		}
		return u.Path, nil
	}
	if strings.Contains(target, "://") {
		return "", fmt.Errorf("target %q is not a local snapshot; live discovery is not supported", target)
	}
	if filepath.IsAbs(target) {
		return target, nil
	}
	return filepath.Join(root, target), nil
}

// readSnapshot opens and parses a snapshot file.
func readSnapshot(path string) ([]RawElement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseHTML(f)
}
