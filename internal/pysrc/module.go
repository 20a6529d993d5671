package pysrc

import (
	"fmt"
	"strings"
)

// Import is "from From import Names..." or, with no names, "import From".
type Import struct {
	From  string
	Names []string
}

func (i Import) source() string {
	if len(i.Names) == 0 {
		return "import " + i.From
	}
	return "from " + i.From + " import " + strings.Join(i.Names, ", ")
}

// Class is a class definition.
type Class struct {
	name    string
	doc     string
	bases   []string
	consts  []Stmt
	methods []*Function
}

// NewClass starts a class definition.
func NewClass(name, doc string, bases ...string) (*Class, error) {
	if err := checkIdent("class", name); err != nil {
		return nil, err
	}
	return &Class{name: name, doc: doc, bases: bases}, nil
}

// Name returns the class name.
func (c *Class) Name() string { return c.name }

// Const adds a class attribute.
func (c *Class) Const(n string, value Expr) error {
	if err := checkIdent("attribute", n); err != nil {
		return fmt.Errorf("class %s: %w", c.name, err)
	}
	c.consts = append(c.consts, Assign(Name(n), value))
	return nil
}

// Method adds a method. Method names must be distinct.
func (c *Class) Method(f *Function) error {
	for _, m := range c.methods {
		if m.name == f.name {
			return fmt.Errorf("class %s already defines %s", c.name, f.name)
		}
	}
	c.methods = append(c.methods, f)
	return nil
}

// Methods returns the methods in definition order.
func (c *Class) Methods() []*Function { return append([]*Function(nil), c.methods...) }

func (c *Class) write(w *writer) {
	head := "class " + c.name
	if len(c.bases) > 0 {
		head += "(" + strings.Join(c.bases, ", ") + ")"
	}
	w.line(head + ":")
	w.indent()
	if c.doc != "" {
		w.docstring(c.doc)
	}
	if len(c.consts) > 0 {
		if c.doc != "" {
			w.blank()
		}
		for _, s := range c.consts {
			s.writeStmt(w)
		}
	}
	for i, m := range c.methods {
		if i > 0 || c.doc != "" || len(c.consts) > 0 {
			w.blank()
		}
		m.write(w)
	}
	w.dedent()
}

// Module is one Python source file.
type Module struct {
	doc     string
	local   []string
	imports []Import
	decls   []any
}

// NewModule starts a module. Imports whose top-level package is one of
// local are grouped after the others.
func NewModule(doc string, local ...string) *Module {
	return &Module{doc: doc, local: local}
}

// Import adds "from from import names". Repeated imports of the same
// module are merged.
func (m *Module) Import(from string, names ...string) {
	for i, imp := range m.imports {
		if imp.From == from && (len(imp.Names) == 0) == (len(names) == 0) {
			for _, n := range names {
				if !contains(imp.Names, n) {
					m.imports[i].Names = append(m.imports[i].Names, n)
				}
			}
			return
		}
	}
	m.imports = append(m.imports, Import{From: from, Names: append([]string(nil), names...)})
}

// Imports returns the module's imports in order.
func (m *Module) Imports() []Import {
	out := make([]Import, len(m.imports))
	for i, imp := range m.imports {
		out[i] = Import{From: imp.From, Names: append([]string(nil), imp.Names...)}
	}
	return out
}

// AddClass appends a class.
func (m *Module) AddClass(c *Class) { m.decls = append(m.decls, c) }

// AddFunction appends a module-level function.
func (m *Module) AddFunction(f *Function) { m.decls = append(m.decls, f) }

// Render returns the module source. A class with neither docstring,
// attributes nor methods has no valid body and is rejected.
func (m *Module) Render() (string, error) {
	if len(m.decls) == 0 {
		return "", fmt.Errorf("module has no definitions")
	}
	for _, d := range m.decls {
		if c, ok := d.(*Class); ok && c.doc == "" && len(c.consts) == 0 && len(c.methods) == 0 {
			return "", fmt.Errorf("class %s has an empty body", c.name)
		}
	}

	w := &writer{}
	if m.doc != "" {
		w.docstring(m.doc)
	}

	var ext, loc []Import
	for _, imp := range m.imports {
		root, _, _ := strings.Cut(imp.From, ".")
		if contains(m.local, root) {
			loc = append(loc, imp)
		} else {
			ext = append(ext, imp)
		}
	}
	for _, group := range [][]Import{ext, loc} {
		if len(group) == 0 {
			continue
		}
		if !w.empty() {
			w.blank()
		}
		for _, imp := range group {
			w.line(imp.source())
		}
	}

	for _, d := range m.decls {
		if !w.empty() {
			w.blank()
			w.blank()
		}
		switch d := d.(type) {
		case *Class:
			d.write(w)
		case *Function:
			d.write(w)
		}
	}
	return w.String(), nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
