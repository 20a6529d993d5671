package exitcode

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

func TestDetermineExitCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error returns success", nil, Success},
		{"empty story", errors.NewEmptyStoryError("checkout"), InputRejected},
		{"no elements", errors.NewNoElementsFoundError("/login"), InputRejected},
		{"persona mismatch", errors.NewScenarioPersonaMismatchError("refund", "Shopper"), InputRejected},
		{"naming conflict", errors.NewNamingConflictError("LoginPage", "kind"), ConflictError},
		{"wrapped stale registry", fmt.Errorf("step 2: %w", errors.NewStaleRegistryError("moved")), ConflictError},
		{"unresolved", errors.NewUnresolvedDependencyError("Checkout", "Cart Page"), DependencyError},
		{"verification", errors.New(errors.ErrCodeSyntaxInvalid, "bad indent"), VerificationFailed},
		{"invalid request", errors.NewInvalidRequestError("missing stage"), UsageError},
		{"config", errors.New(errors.ErrCodeConfigInvalid, "backend"), ConfigError},
		{"io", errors.NewFileNotFoundError("/tmp/x"), GeneralError},
		{"drift", fmt.Errorf("2 components: %w", ErrDrift), DriftDetected},
		{"cancelled", fmt.Errorf("run: %w", context.Canceled), Interrupted},
		{"cobra flag error", stderrors.New("unknown flag: --frmat"), UsageError},
		{"cobra args error", stderrors.New("accepts 1 arg(s), received 0"), UsageError},
		{"plain error", stderrors.New("boom"), GeneralError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetermineExitCode(tt.err); got != tt.expected {
				t.Errorf("DetermineExitCode() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestEveryKindHasACode(t *testing.T) {
	kinds := []errors.Kind{
		errors.KindEmptyStory, errors.KindNoElementsFound, errors.KindUnknownCapability,
		errors.KindNamingConflict, errors.KindStaleRegistryState, errors.KindUnresolvedDependency,
		errors.KindScenarioPersonaMismatch, errors.KindInvalidInput, errors.KindVerification,
		errors.KindConfig, errors.KindIO,
	}
	for _, k := range kinds {
		if _, ok := codeByKind[k]; !ok {
			t.Errorf("kind %s has no exit code", k)
		}
	}
}

func TestGetExitCodeDescription(t *testing.T) {
	for _, code := range []int{Success, GeneralError, UsageError, InputRejected, DriftDetected, ConflictError, DependencyError, VerificationFailed, ConfigError, Interrupted} {
		if GetExitCodeDescription(code) == "Unknown error" {
			t.Errorf("code %d has no description", code)
		}
	}
	if GetExitCodeDescription(99) != "Unknown error" {
		t.Error("unmapped codes should be unknown")
	}
}
