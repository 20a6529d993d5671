package pysrc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/capability"
)

func TestRenderModule(t *testing.T) {
	contract := capability.MustDefault()

	m := NewModule("Page object for the login page.", "framework")
	m.Import("framework.interfaces.web_interface", "WebInterface")
	m.Import("selenium.webdriver.common.by", "By")

	c, err := NewClass("LoginPage", "Login page.")
	require.NoError(t, err)
	require.NoError(t, c.Const("URL", Str("https://shop.example/login")))
	require.NoError(t, c.Const("SUBMIT", Tuple(Attr(Name("By"), "CSS_SELECTOR"), Str("#submit"))))

	ctor, err := NewFunction("__init__",
		[]Param{{Name: "self"}, {Name: "web", Annotation: "WebInterface"}},
		Assign(SelfAttr("web"), Name("web")))
	require.NoError(t, err)
	require.NoError(t, c.Method(ctor))

	inv, err := contract.Call("click", capability.Locator("self.SUBMIT"))
	require.NoError(t, err)
	click, err := Capability(SelfAttr("web"), inv)
	require.NoError(t, err)
	fn, err := NewFunction("click_submit", []Param{{Name: "self"}}, Do(click), Return(Self))
	require.NoError(t, err)
	require.NoError(t, c.Method(fn.WithDoc("Click the submit button.")))
	m.AddClass(c)

	got, err := m.Render()
	require.NoError(t, err)

	want := `"""Page object for the login page."""

from selenium.webdriver.common.by import By

from framework.interfaces.web_interface import WebInterface


class LoginPage:
    """Login page."""

    URL = "https://shop.example/login"
    SUBMIT = (By.CSS_SELECTOR, "#submit")

    def __init__(self, web: WebInterface):
        self.web = web

    def click_submit(self):
        """Click the submit button."""
        self.web.click(*self.SUBMIT)
        return self
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderFunctionExtras(t *testing.T) {
	m := NewModule("", "framework", "tests")
	m.Import("pytest")
	m.Import("framework.roles.shopper", "Shopper")

	fn, err := NewFunction("test_add_to_cart",
		[]Param{{Name: "web_interface"}, {Name: "config"}, {Name: "user_data", Default: Name("None")}},
		Assign(Name("shopper"), Call(Name("Shopper"), Name("web_interface"), Index(Name("config"), Str("url")))),
		Assign(Name("result"), Call(Attr(Name("shopper"), "add_to_cart"), Str(`say "hi"`))),
		Assign(Name("data"), Or(Name("user_data"), EmptyDict())),
		Assign(Name("url"), Add(Name("base"), Str("/cart"))),
		Assign(Name("rows"), List(Bool(true), Tuple(Str("x")))),
		Assert(Name("result"), "the cart counter increments"),
	)
	require.NoError(t, err)
	fn.WithDecorator(Attr(Attr(Name("pytest"), "mark"), "cart")).WithDoc("Given a\nWhen b\n\nThen c")
	m.AddFunction(fn)

	got, err := m.Render()
	require.NoError(t, err)

	want := `import pytest

from framework.roles.shopper import Shopper


@pytest.mark.cart
def test_add_to_cart(web_interface, config, user_data=None):
    """Given a
    When b

    Then c
    """
    shopper = Shopper(web_interface, config["url"])
    result = shopper.add_to_cart("say \"hi\"")
    data = user_data or {}
    url = base + "/cart"
    rows = [True, ("x",)]
    assert result, "the cart counter increments"
`
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Render() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewFunctionRejects(t *testing.T) {
	tests := []struct {
		name   string
		fn     string
		params []Param
		body   []Stmt
	}{
		{"empty body", "open", []Param{{Name: "self"}}, nil},
		{"keyword name", "class", nil, []Stmt{Return(Self)}},
		{"bad identifier", "click-me", nil, []Stmt{Return(Self)}},
		{"duplicate param", "f", []Param{{Name: "a"}, {Name: "a"}}, []Stmt{Return(Name("a"))}},
		{"nil statement", "f", nil, []Stmt{nil}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFunction(tt.fn, tt.params, tt.body...)
			assert.Error(t, err)
		})
	}
}

func TestCapabilityRequiresValidatedInvocation(t *testing.T) {
	_, err := Capability(SelfAttr("web"), capability.Invocation{})
	assert.Error(t, err)
}

func TestModuleRejectsEmpty(t *testing.T) {
	_, err := NewModule("doc").Render()
	assert.Error(t, err)

	m := NewModule("")
	c, err := NewClass("Empty", "")
	require.NoError(t, err)
	m.AddClass(c)
	_, err = m.Render()
	assert.Error(t, err)
}

func TestClassRejectsDuplicateMethod(t *testing.T) {
	c, err := NewClass("Page", "")
	require.NoError(t, err)
	f, err := NewFunction("open", []Param{{Name: "self"}}, Return(Self))
	require.NoError(t, err)
	require.NoError(t, c.Method(f))
	assert.Error(t, c.Method(f))
}

func TestImportsMerge(t *testing.T) {
	m := NewModule("")
	m.Import("framework.pages.login_page", "LoginPage")
	m.Import("framework.pages.login_page", "LoginPage", "LOGIN_URL")
	m.Import("pytest")
	m.Import("pytest")

	assert.Equal(t, []Import{
		{From: "framework.pages.login_page", Names: []string{"LoginPage", "LOGIN_URL"}},
		{From: "pytest"},
	}, m.Imports())
}

func TestDocstringEscaping(t *testing.T) {
	fn, err := NewFunction("f", nil, Return(Bool(false)))
	require.NoError(t, err)
	fn.WithDoc(`ends with """ and \n`)
	w := &writer{}
	fn.write(w)
	assert.Contains(t, w.String(), `"""ends with \"\"\" and \\n"""`)
}
