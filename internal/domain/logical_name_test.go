package domain

import (
	"strings"
	"testing"
)

func TestNewLogicalName(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    LogicalName
		wantErr bool
	}{
		{name: "simple", value: "LoginPage", want: "LoginPage"},
		{name: "spaces collapsed", value: "  Login   Page ", want: "Login Page"},
		{name: "punctuation allowed", value: "Cart (v2)", want: "Cart (v2)"},
		{name: "empty", value: "", wantErr: true},
		{name: "whitespace only", value: "   ", wantErr: true},
		{name: "no letters or digits", value: "---", wantErr: true},
		{name: "control characters", value: "Login\x00Page", wantErr: true},
		{name: "too long", value: strings.Repeat("a", 121), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewLogicalName(tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewLogicalName(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("NewLogicalName(%q) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestParseStep(t *testing.T) {
	tests := []struct {
		in      string
		want    Step
		wantErr bool
	}{
		{in: "LoginPage.enter_email", want: Step{Page: "LoginPage", Method: "enter_email"}},
		{in: "Checkout v1.2.click_pay", want: Step{Page: "Checkout v1.2", Method: "click_pay"}},
		{in: "no_dot", wantErr: true},
		{in: ".method", wantErr: true},
		{in: "Page.", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseStep(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseStep(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseStep(%q) = %+v, want %+v", tt.in, got, tt.want)
			}
			if !tt.wantErr && got.String() != tt.in {
				t.Errorf("String() = %q, want %q", got.String(), tt.in)
			}
		})
	}
}

func TestScenarioValidate(t *testing.T) {
	ok := Scenario{Name: "add", Action: "user clicks add", ExpectedOutcome: "cart has one item"}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Scenario{Name: "x", ExpectedOutcome: "y"}).Validate(); err == nil {
		t.Error("expected error for missing action")
	}
	if err := (Scenario{Name: "x", Action: "y"}).Validate(); err == nil {
		t.Error("expected error for missing outcome")
	}
}
