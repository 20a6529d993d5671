// Package pysrc is a small, closed model of the Python source the stage
// generators emit. Only the constructs below can be expressed: there is
// no way to write a bare "pass", an ellipsis body or arbitrary text, so
// every rendered function does real work.
package pysrc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/capability"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

var keywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true, "class": true,
	"continue": true, "def": true, "del": true, "elif": true, "else": true,
	"except": true, "finally": true, "for": true, "from": true, "global": true,
	"if": true, "import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true, "raise": true,
	"return": true, "try": true, "while": true, "with": true, "yield": true,
}

// ValidIdent reports whether s can be used as a Python identifier.
func ValidIdent(s string) bool {
	return identRe.MatchString(s) && !keywords[s]
}

func checkIdent(what, s string) error {
	if !ValidIdent(s) {
		return fmt.Errorf("invalid %s name %q", what, s)
	}
	return nil
}

// Expr is a Python expression.
type Expr interface {
	writeExpr(b *strings.Builder)
}

type name string

type attr struct {
	x    Expr
	name string
}

type call struct {
	fn   Expr
	args []Expr
}

type str string

type tuple []Expr

type list []Expr

type or struct{ a, b Expr }

type add struct{ a, b Expr }

type index struct{ x, key Expr }

type emptyDict struct{}

type boolean bool

type invoke struct {
	receiver Expr
	inv      capability.Invocation
}

// Name references a variable, parameter or imported symbol.
func Name(s string) Expr { return name(s) }

// Self is the method receiver.
var Self = Name("self")

// Attr is x.name.
func Attr(x Expr, n string) Expr { return attr{x: x, name: n} }

// SelfAttr is self.name.
func SelfAttr(n string) Expr { return attr{x: Self, name: n} }

// Call is fn(args...).
func Call(fn Expr, args ...Expr) Expr { return call{fn: fn, args: args} }

// Str is a string literal.
func Str(s string) Expr { return str(s) }

// Tuple is a parenthesized tuple literal.
func Tuple(items ...Expr) Expr { return tuple(items) }

// List is a list literal.
func List(items ...Expr) Expr { return list(items) }

// Or is "a or b".
func Or(a, b Expr) Expr { return or{a: a, b: b} }

// Add is "a + b".
func Add(a, b Expr) Expr { return add{a: a, b: b} }

// Index is x[key].
func Index(x, key Expr) Expr { return index{x: x, key: key} }

// EmptyDict is {}.
func EmptyDict() Expr { return emptyDict{} }

// Bool is True or False.
func Bool(v bool) Expr { return boolean(v) }

// Capability calls a validated capability on receiver. Only an
// invocation built by capability.Contract.Call is accepted.
func Capability(receiver Expr, inv capability.Invocation) (Expr, error) {
	if !inv.Valid() {
		return nil, fmt.Errorf("capability invocation was not validated against the contract")
	}
	return invoke{receiver: receiver, inv: inv}, nil
}

func (n name) writeExpr(b *strings.Builder) { b.WriteString(string(n)) }

func (a attr) writeExpr(b *strings.Builder) {
	a.x.writeExpr(b)
	b.WriteByte('.')
	b.WriteString(a.name)
}

func (c call) writeExpr(b *strings.Builder) {
	c.fn.writeExpr(b)
	b.WriteByte('(')
	for i, a := range c.args {
		if i > 0 {
			b.WriteString(", ")
		}
		a.writeExpr(b)
	}
	b.WriteByte(')')
}

// Python accepts every escape strconv.Quote produces.
func (s str) writeExpr(b *strings.Builder) { b.WriteString(strconv.Quote(string(s))) }

func (t tuple) writeExpr(b *strings.Builder) {
	b.WriteByte('(')
	for i, x := range t {
		if i > 0 {
			b.WriteString(", ")
		}
		x.writeExpr(b)
	}
	if len(t) == 1 {
		b.WriteByte(',')
	}
	b.WriteByte(')')
}

func (l list) writeExpr(b *strings.Builder) {
	b.WriteByte('[')
	for i, x := range l {
		if i > 0 {
			b.WriteString(", ")
		}
		x.writeExpr(b)
	}
	b.WriteByte(']')
}

func (o or) writeExpr(b *strings.Builder) {
	o.a.writeExpr(b)
	b.WriteString(" or ")
	o.b.writeExpr(b)
}

func (a add) writeExpr(b *strings.Builder) {
	a.a.writeExpr(b)
	b.WriteString(" + ")
	a.b.writeExpr(b)
}

func (i index) writeExpr(b *strings.Builder) {
	i.x.writeExpr(b)
	b.WriteByte('[')
	i.key.writeExpr(b)
	b.WriteByte(']')
}

func (emptyDict) writeExpr(b *strings.Builder) { b.WriteString("{}") }

func (v boolean) writeExpr(b *strings.Builder) {
	if v {
		b.WriteString("True")
	} else {
		b.WriteString("False")
	}
}

func (i invoke) writeExpr(b *strings.Builder) {
	var recv strings.Builder
	i.receiver.writeExpr(&recv)
	b.WriteString(i.inv.Render(recv.String()))
}

// Source renders a single expression.
func Source(e Expr) string {
	var b strings.Builder
	e.writeExpr(&b)
	return b.String()
}
