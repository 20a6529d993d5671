package naming

import (
	"reflect"
	"testing"
)

func TestTokens(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"LoginPage", []string{"login", "page"}},
		{"login page", []string{"login", "page"}},
		{"login-page", []string{"login", "page"}},
		{"HTTPServer", []string{"http", "server"}},
		{"Step2Checkout", []string{"step", "2", "checkout"}},
		{"  Add to Cart!  ", []string{"add", "to", "cart"}},
		{"---", nil},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Tokens(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokens(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		in        string
		wantClass string
		wantStem  string
	}{
		{"LoginPage", "LoginPage", "login_page"},
		{"Login Page", "LoginPage", "login_page"},
		{"login_page", "LoginPage", "login_page"},
		{"Shopping Cart Workflow", "ShoppingCartWorkflow", "shopping_cart_workflow"},
		{"2FA page", "N2FaPage", "n_2_fa_page"},
		{"class", "ClassComponent", "class_"},
		{"None", "NoneComponent", "none_"},
		{"", "Component", "component"},
		{"!!!", "Component", "component"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Resolve(tt.in)
			if got.ClassName != tt.wantClass {
				t.Errorf("Resolve(%q).ClassName = %q, want %q", tt.in, got.ClassName, tt.wantClass)
			}
			if got.FileStem != tt.wantStem {
				t.Errorf("Resolve(%q).FileStem = %q, want %q", tt.in, got.FileStem, tt.wantStem)
			}
		})
	}
}

func TestMethodAndConstant(t *testing.T) {
	if got := Method("click", "Add to Cart"); got != "click_add_to_cart" {
		t.Errorf("Method() = %q", got)
	}
	if got := Method("enter", "E-mail"); got != "enter_e_mail" {
		t.Errorf("Method() = %q", got)
	}
	if got := Constant("Add to Cart"); got != "ADD_TO_CART" {
		t.Errorf("Constant() = %q", got)
	}
	if got := Constant("class"); got != "CLASS" {
		t.Errorf("Constant(class) = %q", got)
	}
	if got := Constant("!!"); got != "ELEMENT" {
		t.Errorf("Constant(!!) = %q", got)
	}
}

func TestKey(t *testing.T) {
	if Key("Add to Cart") != Key("add-to-cart") {
		t.Error("keys should ignore case and separators")
	}
	if Key("Add to Cart") == Key("Add Cart") {
		t.Error("keys should keep every word")
	}
}

func TestOverlap(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"user adds product to cart", "add_product_to_cart", 3},
		{"user logs in with valid credentials", "log_in", 1},
		{"applies a coupon", "add_product_to_cart", 0},
		{"searches for shoes", "search", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a, func(t *testing.T) {
			if got := Overlap(tt.a, tt.b); got != tt.want {
				t.Errorf("Overlap(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}
