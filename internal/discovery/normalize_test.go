package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
)

func TestNormalize(t *testing.T) {
	raw := []RawElement{
		{ElementType: "inputs", Tag: "input", TypeAttr: "email", ID: "email"},
		{ElementType: "buttons", Tag: "button", Text: "Log in", Class: "btn primary"},
		{ElementType: "links", Tag: "a", Text: "Forgot password?", Href: "/reset"},
		{ElementType: "selects", Tag: "select", Name: "country"},
		{ElementType: "checkboxes", Tag: "input", TypeAttr: "checkbox", ID: "remember"},
		{ElementType: "buttons", Tag: "button", ID: "hidden", Visible: "No"},
		{SuggestedName: "Avatar", Role: "upload", Locator: "//input[@type='file']"},
	}

	got, dropped := Normalize(raw)
	require.Len(t, got, 5)
	assert.Equal(t, domain.ElementDescriptor{Strategy: domain.StrategyCSS, Value: "#email", Role: domain.RoleInput, SuggestedName: "email"}, got[0])
	assert.Equal(t, domain.ElementDescriptor{Strategy: domain.StrategyCSS, Value: "button.btn", Role: domain.RoleButton, SuggestedName: "Log in"}, got[1])
	assert.Equal(t, domain.RoleLink, got[2].Role)
	assert.Equal(t, "//a[contains(text(), 'Forgot password?')]", got[2].Value)
	assert.Equal(t, "select[name='country']", got[3].Value)
	assert.Equal(t, domain.StrategyXPath, got[4].Strategy)
	assert.Equal(t, domain.RoleUploadTarget, got[4].Role)

	require.Len(t, dropped, 2)
	assert.Equal(t, 4, dropped[0].Index)
	assert.Equal(t, "not visible", dropped[1].Reason)
}

func TestNormalizePrefersReportedLocators(t *testing.T) {
	got, _ := Normalize([]RawElement{
		{ElementType: "buttons", SuggestedName: "LOGIN_BUTTON", LocatorID: "#login", LocatorCSS: "button.login", LocatorXPath: "//button"},
		{ElementType: "buttons", SuggestedName: "CANCEL", LocatorXPath: "//button[2]"},
	})
	require.Len(t, got, 2)
	assert.Equal(t, "#login", got[0].Value)
	assert.Equal(t, domain.StrategyXPath, got[1].Strategy)
}

func TestNormalizeGeneratesNames(t *testing.T) {
	got, _ := Normalize([]RawElement{
		{Tag: "input", Placeholder: "Search products"},
		{Tag: "button"},
		{Tag: "button"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "Search products", got[0].SuggestedName)
	assert.Equal(t, "button 1", got[1].SuggestedName)
	assert.Equal(t, "button 2", got[2].SuggestedName)
}

func TestDisambiguate(t *testing.T) {
	in := []domain.ElementDescriptor{
		{Role: domain.RoleButton, Value: "#a", SuggestedName: "Add to Cart"},
		{Role: domain.RoleButton, Value: "#b", SuggestedName: "add-to-cart"},
		{Role: domain.RoleLink, Value: "#c", SuggestedName: "Add to Cart"},
		{Role: domain.RoleButton, Value: "#d", SuggestedName: "Add to Cart 2"},
	}
	got := Disambiguate(in)
	names := []string{got[0].SuggestedName, got[1].SuggestedName, got[2].SuggestedName, got[3].SuggestedName}
	assert.Equal(t, []string{"Add to Cart", "add-to-cart 2", "Add to Cart 3", "Add to Cart 2 2"}, names)

	assert.Equal(t, got, Disambiguate(in), "disambiguation is deterministic")
}

func TestImportFailsWhenNothingUsable(t *testing.T) {
	_, _, err := Import("https://shop.example/empty", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNoElementsFound)

	_, dropped, err := Import("page", []RawElement{{Tag: "img"}})
	require.Error(t, err)
	assert.Len(t, dropped, 1)
	assert.Contains(t, err.Error(), "unsupported tag")
}

func TestCSSAndXPathQuoting(t *testing.T) {
	assert.Equal(t, `'it\'s'`, cssQuote("it's"))
	assert.Equal(t, `"it's"`, xpathQuote("it's"))
	assert.Equal(t, `concat('a', "'", 'b"c')`, xpathQuote(`a'b"c`))

	got, _ := Normalize([]RawElement{{Tag: "button", ID: "1st button"}})
	require.Len(t, got, 1)
	assert.Equal(t, "button[id='1st button']", got[0].Value)
}
