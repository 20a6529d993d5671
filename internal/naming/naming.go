// Package naming derives class names, file stems and method names from
// free-text logical names. Every function here is total and
// deterministic: the same input always yields the same identifiers.
package naming

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Identity is the pair of identifiers derived from a logical name.
type Identity struct {
	ClassName string
	FileStem  string
}

const (
	defaultClass = "Component"
	defaultStem  = "component"
)

// Python keywords and names a generated module must not shadow.
var reserved = map[string]bool{
	"false": true, "none": true, "true": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
	"match": true, "case": true, "self": true, "web": true, "cls": true,
}

// Tokens splits s into lower-cased words. Runs of letters and digits
// are words; case changes inside a run split it ("LoginPage" gives
// login, page; "HTTPServer" gives http, server); letter/digit
// boundaries split too. Everything else separates.
func Tokens(s string) []string {
	var (
		words []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(s)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if len(cur) > 0 {
			prev := cur[len(cur)-1]
			switch {
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) &&
				i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// Resolve derives the class name and file stem for a logical name.
// Names with no letters or digits map to a fixed default.
func Resolve(logicalName string) Identity {
	words := Tokens(logicalName)
	if len(words) == 0 {
		return Identity{ClassName: defaultClass, FileStem: defaultStem}
	}
	return Identity{
		ClassName: className(words),
		FileStem:  Snake(words...),
	}
}

func className(words []string) string {
	var b strings.Builder
	for _, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(w[size:])
	}
	name := b.String()
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		name = "N" + name
	}
	if reserved[strings.ToLower(name)] {
		name += "Component"
	}
	return name
}

// Snake joins words as a snake_case Python identifier. The result never
// starts with a digit and never collides with a keyword.
func Snake(words ...string) string {
	var parts []string
	for _, w := range words {
		parts = append(parts, Tokens(w)...)
	}
	if len(parts) == 0 {
		return defaultStem
	}
	name := strings.Join(parts, "_")
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		name = "n_" + name
	}
	if reserved[name] {
		name += "_"
	}
	return name
}

// Method builds a method name from a verb and a subject, for example
// Method("click", "Add to Cart") is "click_add_to_cart".
func Method(verb string, subject ...string) string {
	return Snake(append([]string{verb}, subject...)...)
}

// Constant builds an UPPER_SNAKE constant name.
func Constant(words ...string) string {
	var parts []string
	for _, w := range words {
		parts = append(parts, Tokens(w)...)
	}
	if len(parts) == 0 {
		return "ELEMENT"
	}
	name := strings.ToUpper(strings.Join(parts, "_"))
	if r, _ := utf8.DecodeRuneInString(name); unicode.IsDigit(r) {
		name = "N_" + name
	}
	return name
}

// Key is the comparison key for two human names: names with equal keys
// would produce the same identifiers.
func Key(s string) string {
	return strings.Join(Tokens(s), "_")
}

// Overlap counts the distinct words two phrases share, ignoring filler
// words that carry no intent.
func Overlap(a, b string) int {
	left := make(map[string]bool)
	for _, w := range Tokens(a) {
		if !filler[w] {
			left[stem(w)] = true
		}
	}
	n := 0
	seen := make(map[string]bool)
	for _, w := range Tokens(b) {
		w = stem(w)
		if left[w] && !seen[w] {
			n++
			seen[w] = true
		}
	}
	return n
}

var filler = map[string]bool{
	"a": true, "an": true, "the": true, "to": true, "on": true, "in": true,
	"of": true, "and": true, "user": true, "is": true, "for": true, "my": true,
	"with": true, "from": true, "their": true, "be": true, "should": true,
}

// stem folds simple English inflections so "adds" matches "add".
func stem(w string) string {
	switch {
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		return w[:len(w)-3] + "y"
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		return w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		return w[:len(w)-2]
	case len(w) > 4 && (strings.HasSuffix(w, "ches") || strings.HasSuffix(w, "shes") ||
		strings.HasSuffix(w, "sses") || strings.HasSuffix(w, "xes")):
		return w[:len(w)-2]
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		return w[:len(w)-1]
	}
	return w
}
