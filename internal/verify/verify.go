// Package verify parses generated Python with tree-sitter and checks
// that an artifact is syntactically valid, has no placeholder bodies,
// and only references symbols that exist.
package verify

import (
	"context"
	"fmt"
	"sort"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/errors"
)

// Import is one "from Module import Names" statement.
type Import struct {
	Module string
	Names  []string
	Line   int
}

// Call is a method call on a receiver expression, such as
// self.web.click(...).
type Call struct {
	Receiver string
	Method   string
	Line     int
}

// Outline is what the checks read from a parsed module.
type Outline struct {
	Classes   map[string][]string
	Functions []string
	Imports   []Import
	Calls     []Call
}

// Parse parses src and returns its outline. It fails with a
// VerificationFailed error when the source does not parse or a function
// body holds only placeholders (pass, ..., raise NotImplementedError).
func Parse(ctx context.Context, path string, src []byte) (*Outline, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeSyntaxInvalid, fmt.Sprintf("failed to parse %s", path), err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		line := errorLine(root)
		return nil, errors.New(errors.ErrCodeSyntaxInvalid,
			fmt.Sprintf("%s:%d: invalid Python syntax", path, line)).WithNames(path)
	}

	o := &Outline{Classes: make(map[string][]string)}
	if err := o.walk(root, src, path, ""); err != nil {
		return nil, err
	}
	sort.Strings(o.Functions)
	return o, nil
}

func errorLine(n *sitter.Node) int {
	if n.Type() == "ERROR" || n.IsMissing() {
		return int(n.StartPoint().Row) + 1
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.HasError() || c.IsMissing() {
			return errorLine(c)
		}
	}
	return int(n.StartPoint().Row) + 1
}

func (o *Outline) walk(n *sitter.Node, src []byte, path, class string) error {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		switch child.Type() {
		case "import_from_statement":
			o.Imports = append(o.Imports, importOf(child, src))

		case "class_definition":
			name := child.ChildByFieldName("name").Content(src)
			if _, ok := o.Classes[name]; !ok {
				o.Classes[name] = nil
			}
			if body := child.ChildByFieldName("body"); body != nil {
				if err := o.walk(body, src, path, name); err != nil {
					return err
				}
			}

		case "function_definition":
			name := child.ChildByFieldName("name").Content(src)
			if class != "" {
				o.Classes[class] = append(o.Classes[class], name)
			} else {
				o.Functions = append(o.Functions, name)
			}
			body := child.ChildByFieldName("body")
			if body == nil || placeholderOnly(body, src) {
				return errors.New(errors.ErrCodeIncompleteArtifact,
					fmt.Sprintf("%s:%d: %s has no implementation", path, child.StartPoint().Row+1, name)).
					WithNames(name)
			}
			if err := o.walk(body, src, path, ""); err != nil {
				return err
			}

		case "call":
			if c, ok := callOf(child, src); ok {
				o.Calls = append(o.Calls, c)
			}
			if err := o.walk(child, src, path, class); err != nil {
				return err
			}

		default:
			if err := o.walk(child, src, path, class); err != nil {
				return err
			}
		}
	}
	return nil
}

func importOf(n *sitter.Node, src []byte) Import {
	imp := Import{Line: int(n.StartPoint().Row) + 1}
	first := true
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment":
			continue
		case "aliased_import":
			if name := c.ChildByFieldName("name"); name != nil {
				imp.Names = append(imp.Names, name.Content(src))
			}
		case "wildcard_import":
			imp.Names = append(imp.Names, "*")
		default:
			if first {
				imp.Module = c.Content(src)
			} else {
				imp.Names = append(imp.Names, c.Content(src))
			}
		}
		first = false
	}
	return imp
}

func callOf(n *sitter.Node, src []byte) (Call, bool) {
	fn := n.ChildByFieldName("function")
	if fn == nil || fn.Type() != "attribute" {
		return Call{}, false
	}
	obj := fn.ChildByFieldName("object")
	attr := fn.ChildByFieldName("attribute")
	if obj == nil || attr == nil {
		return Call{}, false
	}
	return Call{
		Receiver: obj.Content(src),
		Method:   attr.Content(src),
		Line:     int(n.StartPoint().Row) + 1,
	}, true
}

// placeholderOnly reports whether a block does nothing: every statement
// is a docstring, comment, pass, ellipsis or raise NotImplementedError.
func placeholderOnly(block *sitter.Node, src []byte) bool {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		s := block.NamedChild(i)
		switch s.Type() {
		case "comment", "pass_statement":
			continue
		case "expression_statement":
			if s.NamedChildCount() == 1 {
				switch s.NamedChild(0).Type() {
				case "ellipsis", "string":
					continue
				}
			}
		case "raise_statement":
			if strings.Contains(s.Content(src), "NotImplementedError") {
				continue
			}
		}
		return false
	}
	return true
}

// Symbols maps an import route to the names it provides.
type Symbols map[string][]string

// Options configures reference checking.
type Options struct {
	// Local holds the top-level packages owned by the generated
	// project. Imports from them must resolve through Symbols; other
	// imports are left alone.
	Local []string
	// Symbols lists what each local module exports.
	Symbols Symbols
	// Contract, when set, checks calls made on Receivers.
	Contract  *capability.Contract
	Receivers []string
}

// Check parses src and verifies that every local import resolves to a
// known symbol and every capability call names a contract method.
func Check(ctx context.Context, path string, src []byte, opts Options) (*Outline, error) {
	o, err := Parse(ctx, path, src)
	if err != nil {
		return nil, err
	}

	for _, imp := range o.Imports {
		root, _, _ := strings.Cut(imp.Module, ".")
		if !contains(opts.Local, root) {
			continue
		}
		exported, ok := opts.Symbols[imp.Module]
		if !ok {
			return nil, errors.New(errors.ErrCodeReferenceDangling,
				fmt.Sprintf("%s:%d: module %s is not a generated component", path, imp.Line, imp.Module)).
				WithNames(imp.Module)
		}
		for _, name := range imp.Names {
			if !contains(exported, name) {
				return nil, errors.New(errors.ErrCodeReferenceDangling,
					fmt.Sprintf("%s:%d: %s does not define %s", path, imp.Line, imp.Module, name)).
					WithNames(imp.Module, name)
			}
		}
	}

	if opts.Contract != nil {
		for _, c := range o.Calls {
			if !contains(opts.Receivers, c.Receiver) {
				continue
			}
			if _, ok := opts.Contract.Lookup(c.Method); !ok {
				return nil, errors.NewUnknownCapabilityError(c.Method, opts.Contract.Nearest(c.Method, 3)).
					WithNames(path)
			}
		}
	}
	return o, nil
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}
