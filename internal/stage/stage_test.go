package stage

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/discovery"
	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

func TestShopperAddsProductToCart(t *testing.T) {
	h := newHarness(t)

	h.run(StageStory, func(tx *registry.Tx) (Output, error) {
		return h.gen.Story(tx, "Cart Story", "As a shopper I want to add a product to my cart so that the cart counter increments")
	})
	h.elements("Product Page", "https://shop.example/product/1",
		discovery.RawElement{SuggestedName: "Add to Cart", Role: "button", Locator: "#add-to-cart"})

	page := h.page("Product Page")
	wantPage := `"""Page object for Product Page."""

from selenium.webdriver.common.by import By

from framework.interfaces.web_interface import WebInterface


class ProductPage:
    """Page object for Product Page."""

    URL = "https://shop.example/product/1"
    ADD_TO_CART = (By.CSS_SELECTOR, "#add-to-cart")

    def __init__(self, web: WebInterface, base_url: str = ""):
        self.web = web
        self.base_url = base_url

    def open(self):
        """Navigate to the page."""
        self.web.navigate_to(self.URL)
        return self

    def click_add_to_cart(self):
        """Click the Add to Cart button."""
        self.web.click(*self.ADD_TO_CART)
        return self

    def is_loaded(self) -> bool:
        """Report whether the page is displayed."""
        return self.web.is_element_displayed(*self.ADD_TO_CART)
`
	if diff := cmp.Diff(wantPage, string(page.Artifact.Source())); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}

	workflow := h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Cart", []string{"Product Page"}, []domain.Operation{
			{Name: "addProductToCart", Steps: []string{"Product Page.click_add_to_cart"}},
		})
	})
	wantWorkflow := `"""Workflow Cart over Product Page."""

from framework.interfaces.web_interface import WebInterface
from framework.pages.product_page import ProductPage


class Cart:
    """Workflow Cart over Product Page."""

    def __init__(self, web: WebInterface, base_url: str):
        self.web = web
        self.base_url = base_url
        self.product_page = ProductPage(web, base_url)

    def add_product_to_cart(self) -> bool:
        """Run Product Page.click_add_to_cart."""
        self.product_page.click_add_to_cart()
        return self.product_page.is_loaded()
`
	if diff := cmp.Diff(wantWorkflow, string(workflow.Artifact.Source())); diff != "" {
		t.Errorf("workflow mismatch (-want +got):\n%s", diff)
	}

	persona := h.run(StagePersona, func(tx *registry.Tx) (Output, error) {
		return h.gen.Persona(tx, "Shopper", []string{"Cart"}, nil)
	})
	wantPersona := `"""Persona Shopper acting through Cart."""

from framework.interfaces.web_interface import WebInterface
from framework.tasks.cart import Cart


class Shopper:
    """Persona Shopper acting through Cart."""

    def __init__(self, web: WebInterface, base_url: str, user_data: dict = None):
        self.web = web
        self.base_url = base_url
        self.user_data = user_data or {}
        self.cart = Cart(web, base_url)

    def add_product_to_cart(self) -> bool:
        """Run Cart.add_product_to_cart."""
        return self.cart.add_product_to_cart()
`
	if diff := cmp.Diff(wantPersona, string(persona.Artifact.Source())); diff != "" {
		t.Errorf("persona mismatch (-want +got):\n%s", diff)
	}

	test := h.run(StageTest, func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Cart Tests", TestInput{Story: "Cart Story"})
	})
	src := string(test.Artifact.Source())
	assert.Equal(t, "tests/test_cart_tests.py", test.Artifact.Path())
	assert.Contains(t, src, "from framework.roles.shopper import Shopper\n")
	assert.Contains(t, src, "@pytest.mark.cart_story\ndef test_add_a_product_to_my_cart(web_interface, config):\n")
	assert.Contains(t, src, `    persona = Shopper(web_interface, config["url"])`)
	assert.Contains(t, src, "    result = persona.add_product_to_cart()\n")
	assert.Contains(t, src, `    assert result, "the cart counter increments"`)

	assert.Equal(t, []string{"Cart Story", "Shopper"}, test.Artifact.References())
	assert.Equal(t, []string{"Product Page"}, h.lookup("Cart").DependsOn)
	assert.Equal(t, []string{"Cart"}, h.lookup("Shopper").DependsOn)
	assert.Equal(t, []string{"add_product_to_cart"}, h.lookup("Shopper").MethodNames())
}

func TestLoginPageIdentityIsStable(t *testing.T) {
	h := newHarness(t)

	h.elements("LoginPage", "/login", loginElements[:1]...)
	h.page("LoginPage")
	first := h.lookup("LoginPage")
	assert.Equal(t, registry.Identity{
		ClassName:   "LoginPage",
		FileStem:    "login_page",
		ImportRoute: "framework.pages.login_page",
		FilePath:    "framework/pages/login_page.py",
	}, first.Identity)

	h.elements("LoginPage", "", loginElements[1:]...)
	out := h.page("LoginPage")
	second := h.lookup("LoginPage")

	assert.Equal(t, first.Identity, second.Identity)
	for _, m := range first.MethodNames() {
		assert.True(t, second.HasMethod(m), "method %s kept", m)
	}
	assert.True(t, second.HasMethod("enter_password"))
	assert.True(t, second.HasMethod("click_log_in"))
	assert.Contains(t, string(out.Artifact.Source()), "self.web.navigate_to(self.base_url + self.URL)")

	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "LoginPage", []string{"LoginPage"}, nil)
	})
	assert.ErrorIs(t, err, errors.ErrNamingConflict)
	assert.Equal(t, first.Identity, h.lookup("LoginPage").Identity)
}

func TestPageRequiresElements(t *testing.T) {
	h := newHarness(t)
	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Page(tx, "Checkout Page")
	})
	assert.ErrorIs(t, err, errors.ErrNoElementsFound)
}

func TestPageMethodPerRole(t *testing.T) {
	h := newHarness(t)
	h.elements("Profile Page", "profile.html",
		discovery.RawElement{SuggestedName: "Country", Role: "dropdown", Locator: "select[name='country']"},
		discovery.RawElement{SuggestedName: "Avatar", Role: "upload", Locator: "input[type='file']"},
		discovery.RawElement{SuggestedName: "Help", Role: "frame", Strategy: "id", Locator: "help"},
		discovery.RawElement{SuggestedName: "Orders", Role: "grid", Locator: "//table[@id='orders']"},
		discovery.RawElement{SuggestedName: "Terms", Role: "link", Strategy: "name", Locator: "terms"},
	)
	out := h.page("Profile Page")
	src := string(out.Artifact.Source())

	assert.NotContains(t, src, "URL =", "a snapshot target has no URL")
	assert.NotContains(t, src, "def open(")
	assert.Contains(t, src, "    HELP = (By.ID, \"help\")\n")
	assert.Contains(t, src, "    ORDERS = (By.XPATH, \"//table[@id='orders']\")\n")
	assert.Contains(t, src, "    TERMS = (By.NAME, \"terms\")\n")
	assert.Contains(t, src, "def select_country(self, country):\n")
	assert.Contains(t, src, "self.web.select_option(*self.COUNTRY, country)")
	assert.Contains(t, src, "def upload_avatar(self, avatar_file):\n")
	assert.Contains(t, src, "self.web.upload_file(*self.AVATAR, avatar_file)")
	assert.Contains(t, src, "def switch_to_help(self):\n")
	assert.Contains(t, src, "def get_orders_rows(self) -> list:\n        \"\"\"Return the rows of Orders.\"\"\"\n        return self.web.query_grid_rows(*self.ORDERS)\n")

	c := h.lookup("Profile Page")
	assert.Equal(t, registry.Signature{Params: []string{"avatar_file"}}, c.Methods["upload_avatar"])
	assert.Empty(t, c.Methods["get_orders_rows"].Params)
	assert.Equal(t, "list", c.Methods["get_orders_rows"].Returns)
}

func TestWorkflowDefaultOperation(t *testing.T) {
	h := newHarness(t)
	h.elements("Login Page", "https://shop.example/login", loginElements...)
	h.page("Login Page")

	out := h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Auth", []string{"Login Page"}, nil)
	})
	src := string(out.Artifact.Source())
	assert.Contains(t, src, `    def complete_login_page(self, email, password) -> bool:
        """Run 4 steps from Login Page.open."""
        self.login_page.open()
        self.login_page.enter_email(email)
        self.login_page.enter_password(password)
        self.login_page.click_log_in()
        return self.login_page.is_loaded()
`)

	c := h.lookup("Auth")
	require.Len(t, c.Operations, 1)
	assert.Equal(t, registry.Signature{Params: []string{"email", "password"}, Returns: "bool"}, c.Methods["complete_login_page"])
}

func TestWorkflowMethodsNeverShrink(t *testing.T) {
	h := newHarness(t)
	h.elements("Login Page", "/login", loginElements...)
	h.page("Login Page")

	h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Auth", []string{"Login Page"}, []domain.Operation{
			{Name: "sign in", Steps: []string{"Login Page.enter_email", "Login Page.click_log_in"}},
		})
	})
	out := h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Auth", nil, []domain.Operation{
			{Name: "check", Steps: []string{"Login Page.is_loaded"}},
		})
	})

	assert.Equal(t, []string{"check", "sign_in"}, h.lookup("Auth").MethodNames())
	assert.Contains(t, string(out.Artifact.Source()), "def sign_in(self, email) -> bool:")
	assert.Contains(t, string(out.Artifact.Source()), "def check(self) -> bool:\n        \"\"\"Run Login Page.is_loaded.\"\"\"\n        return self.login_page.is_loaded()\n")
}

func TestWorkflowDependencies(t *testing.T) {
	h := newHarness(t)

	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Checkout", []string{"Cart Page"}, nil)
	})
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency)
	pe, _ := errors.As(err)
	assert.Equal(t, []string{"Cart Page"}, pe.Names)

	h.elements("Cart Page", "/cart", discovery.RawElement{SuggestedName: "Checkout", Role: "button", Locator: "#go"})
	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Checkout", []string{"Cart Page"}, nil)
	})
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency, "elements alone do not make a page object")

	h.page("Cart Page")
	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Checkout", nil, []domain.Operation{
			{Name: "checkout", Steps: []string{"Cart Page.click_pay"}},
		})
	})
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency)
	assert.Contains(t, err.Error(), "Cart Page.click_pay")

	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Checkout", nil, []domain.Operation{{Name: "checkout", Steps: []string{"nodot"}}})
	})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = h.reg.Lookup("Checkout")
	assert.Error(t, err, "failed stages leave no entry behind")
}

func TestPersonaDisambiguatesClashes(t *testing.T) {
	h := newHarness(t)
	h.elements("Login Page", "/login", loginElements...)
	h.page("Login Page")
	h.elements("Sso Page", "/sso", discovery.RawElement{SuggestedName: "Continue", Role: "button", Locator: "#sso"})
	h.page("Sso Page")

	for _, wf := range []struct{ name, step string }{
		{"Password Auth", "Login Page.click_log_in"},
		{"Single Sign On", "Sso Page.click_continue"},
	} {
		h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
			return h.gen.Workflow(tx, wf.name, nil, []domain.Operation{{Name: "sign in", Steps: []string{wf.step}}})
		})
	}

	out := h.run(StagePersona, func(tx *registry.Tx) (Output, error) {
		return h.gen.Persona(tx, "Member", []string{"Password Auth", "Single Sign On"}, nil)
	})
	assert.Equal(t, []string{"sign_in", "sign_in_single_sign_on"}, h.lookup("Member").MethodNames())
	assert.Contains(t, string(out.Artifact.Source()), "return self.single_sign_on.sign_in()")

	again := h.run(StagePersona, func(tx *registry.Tx) (Output, error) {
		return h.gen.Persona(tx, "Member", []string{"Single Sign On", "Password Auth"}, nil)
	})
	assert.Equal(t, out.Artifact.Source(), again.Artifact.Source(), "recorded operations keep their names")
}

func TestPersonaUserDataFallback(t *testing.T) {
	h := newHarness(t)
	h.elements("Login Page", "/login", loginElements...)
	h.page("Login Page")
	h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Auth", []string{"Login Page"}, nil)
	})
	out := h.run(StagePersona, func(tx *registry.Tx) (Output, error) {
		return h.gen.Persona(tx, "Registered User", []string{"Auth"}, nil)
	})
	assert.Contains(t, string(out.Artifact.Source()),
		`return self.auth.complete_login_page(email or self.user_data.get("email"), password or self.user_data.get("password"))`)
	assert.Contains(t, string(out.Artifact.Source()), "def complete_login_page(self, email=None, password=None) -> bool:")
}

func buildShopper(t *testing.T) *harness {
	h := newHarness(t)
	h.elements("Login Page", "/login", loginElements...)
	h.page("Login Page")
	h.elements("Product Page", "/product", discovery.RawElement{SuggestedName: "Add to Cart", Role: "button", Locator: "#add"})
	h.page("Product Page")
	h.run(StageWorkflow, func(tx *registry.Tx) (Output, error) {
		return h.gen.Workflow(tx, "Shop", nil, []domain.Operation{
			{Name: "log in", Steps: []string{"Login Page.enter_email", "Login Page.enter_password", "Login Page.click_log_in"}},
			{Name: "add product to cart", Steps: []string{"Product Page.click_add_to_cart"}},
		})
	})
	h.run(StagePersona, func(tx *registry.Tx) (Output, error) {
		return h.gen.Persona(tx, "Shopper", []string{"Shop"}, nil)
	})
	return h
}

func TestTestCoversEveryScenario(t *testing.T) {
	h := buildShopper(t)
	h.run(StageStory, func(tx *registry.Tx) (Output, error) {
		return h.gen.Story(tx, "Shopping", `Feature: Shopping
As a shopper I want to buy things

Scenario: Log in
  When the shopper logs in
  Then the account page is shown

Scenario: Add to cart
  Given the shopper is logged in
  When the shopper adds a product to the cart
  Then the cart counter increments

Scenario: Add another
  When the shopper adds one more product
  Then the counter shows two`)
	})

	out := h.run(StageTest, func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Shopping Tests", TestInput{Story: "Shopping"})
	})
	src := string(out.Artifact.Source())
	assert.Equal(t, 3, strings.Count(src, "\ndef test_"))
	assert.Contains(t, src, `result = persona.log_in("user@example.com", "Secret123!")`)
	assert.Equal(t, 2, strings.Count(src, "result = persona.add_product_to_cart()"))
	assert.Contains(t, src, "@pytest.mark.shopping\n")
	assert.Contains(t, src, "\"\"\"Given the shopper is logged in\n    When the shopper adds a product to the cart\n    Then the cart counter increments\n    \"\"\"")

	c := h.lookup("Shopping Tests")
	assert.Equal(t, []string{"test_add_another", "test_add_to_cart", "test_log_in"}, c.MethodNames())
	assert.Equal(t, []string{"Shopper", "Shopping"}, c.DependsOn)
}

func TestTestFailures(t *testing.T) {
	h := buildShopper(t)

	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Refunds", TestInput{Persona: "Shopper", Scenarios: []domain.Scenario{
			{Name: "refund", Action: "request a refund", ExpectedOutcome: "money returned"},
		}})
	})
	assert.ErrorIs(t, err, errors.ErrScenarioPersonaMismatch)
	assert.Contains(t, err.Error(), "refund")

	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Admin", TestInput{Persona: "Admin", Scenarios: []domain.Scenario{
			{Name: "x", Action: "log in", ExpectedOutcome: "ok"},
		}})
	})
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency)

	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Orphan", TestInput{Persona: "Shopper", Story: "Missing Story"})
	})
	assert.ErrorIs(t, err, errors.ErrUnresolvedDependency)

	err = h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Nothing", TestInput{Persona: "Shopper"})
	})
	assert.ErrorIs(t, err, errors.ErrEmptyStory)
}

func TestTestPersonaFromStory(t *testing.T) {
	h := buildShopper(t)
	h.run(StageStory, func(tx *registry.Tx) (Output, error) {
		return h.gen.Story(tx, "Login Story", "As a shopper, I want to log in so that my cart is restored")
	})
	out := h.run(StageTest, func(tx *registry.Tx) (Output, error) {
		return h.gen.Test(tx, "Login Tests", TestInput{Story: "Login Story"})
	})
	assert.Contains(t, string(out.Artifact.Source()), "from framework.roles.shopper import Shopper")
	assert.Contains(t, string(out.Artifact.Source()), `assert result, "my cart is restored"`)
}

func TestElementsMergeAndNotes(t *testing.T) {
	h := newHarness(t)
	out := h.elements("Login Page", "/login",
		discovery.RawElement{SuggestedName: "Email", Role: "input", Locator: "#email"},
		discovery.RawElement{SuggestedName: "Remember", Role: "checkbox", Locator: "#remember"},
	)
	assert.Equal(t, ".pomgen/elements/login_page.yaml", out.Artifact.Path())
	assert.Equal(t, []string{"1 added, 0 updated", "dropped Remember: unsupported element role \"checkbox\""}, out.Notes)

	out = h.elements("Login Page", "",
		discovery.RawElement{SuggestedName: "Email", Role: "input", Locator: "input[name='email']"},
	)
	assert.Equal(t, []string{"0 added, 1 updated"}, out.Notes)
	assert.Contains(t, string(out.Artifact.Source()), "target: /login\n")
	assert.Contains(t, string(out.Artifact.Source()), "value: input[name='email']\n")

	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Elements(tx, "Login Page", "", []discovery.RawElement{{Role: "checkbox", Locator: "#x"}})
	})
	assert.ErrorIs(t, err, errors.ErrNoElementsFound)
}

func TestStoryStage(t *testing.T) {
	h := newHarness(t)
	out := h.run(StageStory, func(tx *registry.Tx) (Output, error) {
		return h.gen.Story(tx, "Checkout", "Scenario: Pay\nWhen the shopper pays\nThen a receipt is shown")
	})
	assert.Equal(t, "tests/features/checkout.feature", out.Artifact.Path())
	assert.True(t, strings.HasPrefix(string(out.Artifact.Source()), "@checkout\nFeature: Checkout\n"))
	assert.Equal(t, []string{"pay"}, h.lookup("Checkout").MethodNames())

	err := h.fail(func(tx *registry.Tx) (Output, error) {
		return h.gen.Story(tx, "Notes", "nothing actionable here")
	})
	assert.ErrorIs(t, err, errors.ErrEmptyStory)
}

func TestSampleValue(t *testing.T) {
	tests := map[string]string{
		"email":        "user@example.com",
		"password":     "Secret123!",
		"avatar_file":  "tests/data/sample.txt",
		"quantity":     "1",
		"username":     "Test User",
		"search_terms": "sample search terms",
		"":             "sample",
	}
	for in, want := range tests {
		assert.Equal(t, want, SampleValue(in), "param %q", in)
	}
}
