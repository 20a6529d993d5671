package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/errors"
)

const pageSource = `"""Login page."""

from selenium.webdriver.common.by import By

from framework.interfaces.web_interface import WebInterface


class LoginPage:
    SUBMIT = (By.CSS_SELECTOR, "#submit")

    def __init__(self, web: WebInterface):
        self.web = web

    def click_submit(self):
        """Click submit."""
        self.web.click(*self.SUBMIT)
        return self


def helper():
    return LoginPage
`

func codeOf(t *testing.T, err error) errors.ErrorCode {
	t.Helper()
	pe, ok := errors.As(err)
	require.True(t, ok, "expected a pipeline error, got %v", err)
	return pe.Code
}

func TestParseOutline(t *testing.T) {
	o, err := Parse(context.Background(), "login_page.py", []byte(pageSource))
	require.NoError(t, err)

	assert.Equal(t, map[string][]string{"LoginPage": {"__init__", "click_submit"}}, o.Classes)
	assert.Equal(t, []string{"helper"}, o.Functions)
	assert.Equal(t, []Import{
		{Module: "selenium.webdriver.common.by", Names: []string{"By"}, Line: 3},
		{Module: "framework.interfaces.web_interface", Names: []string{"WebInterface"}, Line: 5},
	}, o.Imports)
	require.Len(t, o.Calls, 1)
	assert.Equal(t, Call{Receiver: "self.web", Method: "click", Line: 16}, o.Calls[0])
}

func TestParseAliasedImport(t *testing.T) {
	o, err := Parse(context.Background(), "x.py", []byte("from a.b import C as D, E\n"))
	require.NoError(t, err)
	require.Len(t, o.Imports, 1)
	assert.Equal(t, "a.b", o.Imports[0].Module)
	assert.Equal(t, []string{"C", "E"}, o.Imports[0].Names)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		code errors.ErrorCode
	}{
		{"syntax error", "class Broken(:\n    x = 1\n", errors.ErrCodeSyntaxInvalid},
		{"unterminated call", "def f():\n    return g(\n", errors.ErrCodeSyntaxInvalid},
		{"pass body", "def f():\n    pass\n", errors.ErrCodeIncompleteArtifact},
		{"ellipsis body", "class A:\n    def f(self):\n        \"\"\"Doc.\"\"\"\n        ...\n", errors.ErrCodeIncompleteArtifact},
		{"not implemented", "def f():\n    raise NotImplementedError()\n", errors.ErrCodeIncompleteArtifact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(context.Background(), "x.py", []byte(tt.src))
			require.Error(t, err)
			assert.Equal(t, tt.code, codeOf(t, err))
			assert.ErrorIs(t, err, errors.ErrVerification)
		})
	}
}

func TestCheckReferences(t *testing.T) {
	opts := Options{
		Local: []string{"framework"},
		Symbols: Symbols{
			"framework.interfaces.web_interface": {"WebInterface"},
		},
		Contract:  capability.MustDefault(),
		Receivers: []string{"self.web"},
	}

	_, err := Check(context.Background(), "login_page.py", []byte(pageSource), opts)
	require.NoError(t, err)

	src := "from framework.pages.cart_page import CartPage\n\n\ndef f():\n    return CartPage\n"
	_, err = Check(context.Background(), "t.py", []byte(src), opts)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeReferenceDangling, codeOf(t, err))

	opts.Symbols["framework.pages.cart_page"] = []string{"CartPage"}
	_, err = Check(context.Background(), "t.py", []byte(src), opts)
	require.NoError(t, err)

	wrongName := "from framework.pages.cart_page import BasketPage\n\n\ndef f():\n    return BasketPage\n"
	_, err = Check(context.Background(), "t.py", []byte(wrongName), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not define BasketPage")
}

func TestCheckCapabilityCalls(t *testing.T) {
	src := `class P:
    def __init__(self, web):
        self.web = web

    def go(self):
        self.web.clik("id", "x")
        return self
`
	_, err := Check(context.Background(), "p.py", []byte(src), Options{
		Contract:  capability.MustDefault(),
		Receivers: []string{"self.web"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownCapability)
	assert.Contains(t, err.Error(), "click")
}
