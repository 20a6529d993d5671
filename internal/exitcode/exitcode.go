// Package exitcode maps pipeline failures to process exit codes.
package exitcode

import (
	"context"
	stderrors "errors"
	"os"
	"strings"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError covers I/O and anything unclassified
	GeneralError = 1

	// UsageError indicates invalid command usage or an invalid request
	UsageError = 2

	// InputRejected means the story, elements or scenario could not
	// produce a component
	InputRejected = 3

	// DriftDetected means generated files differ from the registry
	DriftDetected = 4

	// ConflictError covers naming conflicts and stale registry state
	ConflictError = 5

	// DependencyError means a referenced component or stage is missing
	DependencyError = 6

	// VerificationFailed means generated source failed verification
	VerificationFailed = 7

	// ConfigError indicates an unusable configuration or capability contract
	ConfigError = 8

	// Interrupted is returned when the context was cancelled (128+SIGINT)
	Interrupted = 130
)

// ErrDrift is returned by commands that detect drift without failing.
var ErrDrift = stderrors.New("drift detected")

var codeByKind = map[errors.Kind]int{
	errors.KindInvalidInput:            UsageError,
	errors.KindEmptyStory:              InputRejected,
	errors.KindNoElementsFound:         InputRejected,
	errors.KindUnknownCapability:       InputRejected,
	errors.KindScenarioPersonaMismatch: InputRejected,
	errors.KindNamingConflict:          ConflictError,
	errors.KindStaleRegistryState:      ConflictError,
	errors.KindUnresolvedDependency:    DependencyError,
	errors.KindVerification:            VerificationFailed,
	errors.KindConfig:                  ConfigError,
	errors.KindIO:                      GeneralError,
}

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode returns the exit code for err.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}
	if stderrors.Is(err, context.Canceled) {
		return Interrupted
	}
	if stderrors.Is(err, ErrDrift) {
		return DriftDetected
	}
	if _, ok := errors.As(err); ok {
		return codeByKind[errors.KindFrom(err)]
	}

	// cobra reports flag and argument problems as plain errors
	errMsg := strings.ToLower(err.Error())
	for _, marker := range []string{"unknown flag", "invalid argument", "unknown command", "required flag", "accepts ", "requires at least"} {
		if strings.Contains(errMsg, marker) {
			return UsageError
		}
	}
	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags, arguments or request)"
	case InputRejected:
		return "Input rejected"
	case DriftDetected:
		return "Generated files drifted from the registry"
	case ConflictError:
		return "Registry conflict"
	case DependencyError:
		return "Unresolved dependency"
	case VerificationFailed:
		return "Generated source failed verification"
	case ConfigError:
		return "Configuration error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
