package capability

import "strings"

// Arg is one argument expression passed to a capability. Arity is the
// number of positional parameters the expression fills.
type Arg struct {
	expr  string
	arity int
}

// Locator passes a (by, value) tuple attribute such as self.EMAIL,
// unpacked into two parameters.
func Locator(expr string) Arg {
	return Arg{expr: "*" + expr, arity: 2}
}

// Value passes a single expression.
func Value(expr string) Arg {
	return Arg{expr: expr, arity: 1}
}

// Expr returns the argument's source text.
func (a Arg) Expr() string { return a.expr }

// Invocation is a capability call that has been checked against the
// contract. The zero value is not valid; Call is the only constructor,
// so holding an Invocation proves the call exists with a valid arity.
type Invocation struct {
	method Method
	args   []Arg
}

// Call validates a call to name with args and returns the invocation.
func (c *Contract) Call(name string, args ...Arg) (Invocation, error) {
	argc := 0
	for _, a := range args {
		argc += a.arity
	}
	m, err := c.Validate(name, argc)
	if err != nil {
		return Invocation{}, err
	}
	return Invocation{method: m, args: append([]Arg(nil), args...)}, nil
}

// Method returns the capability being invoked.
func (i Invocation) Method() Method { return i.method }

// Valid reports whether the invocation came from Call.
func (i Invocation) Valid() bool { return i.method.Name != "" }

// Returns reports the capability's declared return type, "" for none.
func (i Invocation) Returns() string { return i.method.Returns }

// Render formats the call on receiver, e.g. self.web.click(*self.ADD).
func (i Invocation) Render(receiver string) string {
	parts := make([]string, len(i.args))
	for n, a := range i.args {
		parts[n] = a.expr
	}
	return receiver + "." + i.method.Name + "(" + strings.Join(parts, ", ") + ")"
}
