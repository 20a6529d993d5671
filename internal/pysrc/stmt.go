package pysrc

import (
	"fmt"
	"strings"
)

// Stmt is a Python statement.
type Stmt interface {
	writeStmt(w *writer)
}

type exprStmt struct{ x Expr }

type assign struct {
	target Expr
	value  Expr
}

type ret struct{ x Expr }

type assertStmt struct {
	cond Expr
	msg  string
}

// Do evaluates x for its effect.
func Do(x Expr) Stmt { return exprStmt{x: x} }

// Assign is target = value.
func Assign(target, value Expr) Stmt { return assign{target: target, value: value} }

// Return is return x.
func Return(x Expr) Stmt { return ret{x: x} }

// Assert is assert cond, msg. The message is omitted when empty.
func Assert(cond Expr, msg string) Stmt { return assertStmt{cond: cond, msg: msg} }

func (s exprStmt) writeStmt(w *writer) { w.line(Source(s.x)) }

func (s assign) writeStmt(w *writer) { w.line(Source(s.target) + " = " + Source(s.value)) }

func (s ret) writeStmt(w *writer) { w.line("return " + Source(s.x)) }

func (s assertStmt) writeStmt(w *writer) {
	if s.msg == "" {
		w.line("assert " + Source(s.cond))
		return
	}
	w.line("assert " + Source(s.cond) + ", " + Source(Str(s.msg)))
}

// Param is a function parameter.
type Param struct {
	Name       string
	Annotation string
	Default    Expr
}

func (p Param) source() string {
	s := p.Name
	if p.Annotation != "" {
		s += ": " + p.Annotation
	}
	if p.Default != nil {
		if p.Annotation != "" {
			s += " = " + Source(p.Default)
		} else {
			s += "=" + Source(p.Default)
		}
	}
	return s
}

// Function is a def. Build it with NewFunction.
type Function struct {
	name       string
	params     []Param
	returns    string
	doc        string
	decorators []Expr
	body       []Stmt
}

// NewFunction builds a function. The body must hold at least one
// statement; there is no empty or placeholder function.
func NewFunction(name string, params []Param, body ...Stmt) (*Function, error) {
	if err := checkIdent("function", name); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(params))
	for _, p := range params {
		if err := checkIdent("parameter", p.Name); err != nil {
			return nil, fmt.Errorf("function %s: %w", name, err)
		}
		if seen[p.Name] {
			return nil, fmt.Errorf("function %s: duplicate parameter %q", name, p.Name)
		}
		seen[p.Name] = true
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("function %s has an empty body", name)
	}
	for _, s := range body {
		if s == nil {
			return nil, fmt.Errorf("function %s has a nil statement", name)
		}
	}
	return &Function{
		name:   name,
		params: append([]Param(nil), params...),
		body:   append([]Stmt(nil), body...),
	}, nil
}

// Name returns the function name.
func (f *Function) Name() string { return f.name }

// Params returns the parameter names, without self.
func (f *Function) Params() []string {
	var out []string
	for _, p := range f.params {
		if p.Name != "self" {
			out = append(out, p.Name)
		}
	}
	return out
}

// Returns returns the return annotation.
func (f *Function) Returns() string { return f.returns }

// WithReturns sets the return annotation.
func (f *Function) WithReturns(t string) *Function {
	f.returns = t
	return f
}

// WithDoc sets the docstring.
func (f *Function) WithDoc(doc string) *Function {
	f.doc = doc
	return f
}

// WithDecorator appends a decorator expression.
func (f *Function) WithDecorator(d Expr) *Function {
	f.decorators = append(f.decorators, d)
	return f
}

func (f *Function) write(w *writer) {
	for _, d := range f.decorators {
		w.line("@" + Source(d))
	}
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = p.source()
	}
	head := "def " + f.name + "(" + strings.Join(params, ", ") + ")"
	if f.returns != "" {
		head += " -> " + f.returns
	}
	w.line(head + ":")
	w.indent()
	if f.doc != "" {
		w.docstring(f.doc)
	}
	for _, s := range f.body {
		s.writeStmt(w)
	}
	w.dedent()
}
