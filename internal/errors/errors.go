package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Kind classifies a failure independently of the code that raised it.
// Callers switch on Kind; codes are for humans and docs.
type Kind string

// Failure kinds surfaced by the pipeline.
const (
	KindEmptyStory              Kind = "EmptyStory"
	KindNoElementsFound         Kind = "NoElementsFound"
	KindUnknownCapability       Kind = "UnknownCapability"
	KindNamingConflict          Kind = "NamingConflict"
	KindStaleRegistryState      Kind = "StaleRegistryState"
	KindUnresolvedDependency    Kind = "UnresolvedDependency"
	KindScenarioPersonaMismatch Kind = "ScenarioPersonaMismatch"
	KindInvalidInput            Kind = "InvalidInput"
	KindVerification            Kind = "VerificationFailed"
	KindConfig                  Kind = "Config"
	KindIO                      Kind = "IO"
)

// Error categories
const (
	// Story errors (STORY-001 to STORY-099)
	ErrCodeStoryEmpty   ErrorCode = "STORY-001"
	ErrCodeStoryInvalid ErrorCode = "STORY-002"

	// Element errors (ELEM-001 to ELEM-099)
	ErrCodeElementsNotFound   ErrorCode = "ELEM-001"
	ErrCodeElementInvalid     ErrorCode = "ELEM-002"
	ErrCodeDiscoveryFailed    ErrorCode = "ELEM-003"
	ErrCodeSnapshotUnreadable ErrorCode = "ELEM-004"

	// Capability errors (CAP-001 to CAP-099)
	ErrCodeCapabilityUnknown  ErrorCode = "CAP-001"
	ErrCodeCapabilityArity    ErrorCode = "CAP-002"
	ErrCodeCapabilityContract ErrorCode = "CAP-003"

	// Registry errors (REG-001 to REG-099)
	ErrCodeNamingConflict    ErrorCode = "REG-001"
	ErrCodeRegistryStale     ErrorCode = "REG-002"
	ErrCodeRegistryCorrupt   ErrorCode = "REG-003"
	ErrCodeComponentNotFound ErrorCode = "REG-004"

	// Dependency errors (DEP-001 to DEP-099)
	ErrCodeDependencyUnresolved ErrorCode = "DEP-001"
	ErrCodeStageOutOfOrder      ErrorCode = "DEP-002"

	// Test generation errors (TEST-001 to TEST-099)
	ErrCodeScenarioPersonaMismatch ErrorCode = "TEST-001"

	// Request errors (REQ-001 to REQ-099)
	ErrCodeRequestInvalid ErrorCode = "REQ-001"

	// Verification errors (VERIFY-001 to VERIFY-099)
	ErrCodeSyntaxInvalid      ErrorCode = "VERIFY-001"
	ErrCodeReferenceDangling  ErrorCode = "VERIFY-002"
	ErrCodeIncompleteArtifact ErrorCode = "VERIFY-003"

	// Config errors (CFG-001 to CFG-099)
	ErrCodeConfigInvalid  ErrorCode = "CFG-001"
	ErrCodeConfigNotFound ErrorCode = "CFG-002"

	// File I/O errors (IO-001 to IO-099)
	ErrCodeFileNotFound    ErrorCode = "IO-001"
	ErrCodeFileReadFailed  ErrorCode = "IO-002"
	ErrCodeFileWriteFailed ErrorCode = "IO-003"
	ErrCodeDirectoryFailed ErrorCode = "IO-004"
	ErrCodeFileUnmarshal   ErrorCode = "IO-005"
	ErrCodeFileMarshal     ErrorCode = "IO-006"
)

var kindByCode = map[ErrorCode]Kind{
	ErrCodeStoryEmpty:              KindEmptyStory,
	ErrCodeStoryInvalid:            KindInvalidInput,
	ErrCodeElementsNotFound:        KindNoElementsFound,
	ErrCodeElementInvalid:          KindInvalidInput,
	ErrCodeDiscoveryFailed:         KindIO,
	ErrCodeSnapshotUnreadable:      KindIO,
	ErrCodeCapabilityUnknown:       KindUnknownCapability,
	ErrCodeCapabilityArity:         KindUnknownCapability,
	ErrCodeCapabilityContract:      KindConfig,
	ErrCodeNamingConflict:          KindNamingConflict,
	ErrCodeRegistryStale:           KindStaleRegistryState,
	ErrCodeRegistryCorrupt:         KindIO,
	ErrCodeComponentNotFound:       KindUnresolvedDependency,
	ErrCodeDependencyUnresolved:    KindUnresolvedDependency,
	ErrCodeStageOutOfOrder:         KindUnresolvedDependency,
	ErrCodeScenarioPersonaMismatch: KindScenarioPersonaMismatch,
	ErrCodeRequestInvalid:          KindInvalidInput,
	ErrCodeSyntaxInvalid:           KindVerification,
	ErrCodeReferenceDangling:       KindVerification,
	ErrCodeIncompleteArtifact:      KindVerification,
	ErrCodeConfigInvalid:           KindConfig,
	ErrCodeConfigNotFound:          KindConfig,
	ErrCodeFileNotFound:            KindIO,
	ErrCodeFileReadFailed:          KindIO,
	ErrCodeFileWriteFailed:         KindIO,
	ErrCodeDirectoryFailed:         KindIO,
	ErrCodeFileUnmarshal:           KindIO,
	ErrCodeFileMarshal:             KindIO,
}

// KindOf returns the kind a code belongs to.
func KindOf(code ErrorCode) Kind {
	if k, ok := kindByCode[code]; ok {
		return k
	}
	return KindIO
}

// PipelineError represents an enhanced error with code, kind, the names
// involved, and recovery suggestions
type PipelineError struct {
	Code        ErrorCode
	Kind        Kind
	Message     string
	Names       []string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is reports kind equality so that errors.Is(err, ErrStaleRegistryState)
// matches any stale-registry failure regardless of its code.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code == ""
}

// Retryable reports whether the caller may retry after re-reading state.
func (e *PipelineError) Retryable() bool {
	return e.Kind == KindStaleRegistryState
}

// Sentinels for errors.Is.
var (
	ErrEmptyStory              = &PipelineError{Kind: KindEmptyStory}
	ErrNoElementsFound         = &PipelineError{Kind: KindNoElementsFound}
	ErrUnknownCapability       = &PipelineError{Kind: KindUnknownCapability}
	ErrNamingConflict          = &PipelineError{Kind: KindNamingConflict}
	ErrStaleRegistryState      = &PipelineError{Kind: KindStaleRegistryState}
	ErrUnresolvedDependency    = &PipelineError{Kind: KindUnresolvedDependency}
	ErrScenarioPersonaMismatch = &PipelineError{Kind: KindScenarioPersonaMismatch}
	ErrInvalidInput            = &PipelineError{Kind: KindInvalidInput}
	ErrVerification            = &PipelineError{Kind: KindVerification}
)

// New creates a new PipelineError
func New(code ErrorCode, message string) *PipelineError {
	return &PipelineError{
		Code:    code,
		Kind:    KindOf(code),
		Message: message,
	}
}

// Wrap creates a new PipelineError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:    code,
		Kind:    KindOf(code),
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *PipelineError) WithSuggestion(suggestion string) *PipelineError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *PipelineError) WithSuggestions(suggestions ...string) *PipelineError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithNames records the logical names or identifiers involved.
func (e *PipelineError) WithNames(names ...string) *PipelineError {
	e.Names = append(e.Names, names...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *PipelineError) WithDocs(url string) *PipelineError {
	e.DocsURL = url
	return e
}

// Common error constructors for frequently used errors

// NewEmptyStoryError creates an error for stories without a usable scenario
func NewEmptyStoryError(name string) *PipelineError {
	return New(ErrCodeStoryEmpty, fmt.Sprintf("story %q contains no actionable scenario", name)).
		WithNames(name).
		WithSuggestion("Add at least one 'When ...' step followed by a 'Then ...' outcome").
		WithSuggestion("Or phrase the story as 'As a <role>, I want to <action> so that <outcome>'").
		WithDocs("https://github.com/felixgeelhaar/pomgen#writing-stories")
}

// NewNoElementsFoundError creates an error for a target without interactive elements
func NewNoElementsFoundError(target string) *PipelineError {
	return New(ErrCodeElementsNotFound, fmt.Sprintf("no interactive elements found for %s", target)).
		WithNames(target).
		WithSuggestion("Check that the snapshot or element list describes visible controls").
		WithSuggestion("Run 'pomgen elements <page> --from <file>' with a non-empty list")
}

// NewUnknownCapabilityError creates an error for a capability the contract lacks
func NewUnknownCapabilityError(name string, nearest []string) *PipelineError {
	err := New(ErrCodeCapabilityUnknown, fmt.Sprintf("unknown capability: %s", name)).
		WithNames(append([]string{name}, nearest...)...)
	if len(nearest) > 0 {
		err.WithSuggestion(fmt.Sprintf("Did you mean: %s", strings.Join(nearest, ", ")))
	}
	return err.WithSuggestion("Run 'pomgen capabilities' to list the contract")
}

// NewArityError creates an error for a capability call with the wrong number of arguments
func NewArityError(name string, got, min, max int) *PipelineError {
	return New(ErrCodeCapabilityArity,
		fmt.Sprintf("capability %s takes %d to %d arguments, got %d", name, min, max, got)).
		WithNames(name)
}

// NewNamingConflictError creates an error for a logical name held by an incompatible entry
func NewNamingConflictError(name, detail string) *PipelineError {
	return New(ErrCodeNamingConflict, fmt.Sprintf("naming conflict for %q: %s", name, detail)).
		WithNames(name).
		WithSuggestion("Choose a different logical name").
		WithSuggestion("Inspect the existing entry with 'pomgen registry lookup <name>'")
}

// NewStaleRegistryError creates an error for a lost compare-and-swap
func NewStaleRegistryError(detail string, names ...string) *PipelineError {
	return New(ErrCodeRegistryStale, fmt.Sprintf("registry state is stale: %s", detail)).
		WithNames(names...).
		WithSuggestion("Re-read the registry and retry the invocation")
}

// NewUnresolvedDependencyError creates an error for a reference without a registry entry
func NewUnresolvedDependencyError(from string, missing ...string) *PipelineError {
	return New(ErrCodeDependencyUnresolved,
		fmt.Sprintf("%s references unresolved components: %s", from, strings.Join(missing, ", "))).
		WithNames(missing...).
		WithSuggestion("Generate the upstream components first ('pomgen status' shows what exists)")
}

// NewScenarioPersonaMismatchError creates an error for a scenario no persona method covers
func NewScenarioPersonaMismatchError(scenario, persona string) *PipelineError {
	return New(ErrCodeScenarioPersonaMismatch,
		fmt.Sprintf("no operation of persona %s covers scenario %q", persona, scenario)).
		WithNames(scenario, persona).
		WithSuggestion("Add a workflow operation whose name matches the scenario action").
		WithSuggestion("Or pass an explicit --operation mapping for the scenario")
}

// NewInvalidRequestError creates an error for a malformed invocation
func NewInvalidRequestError(detail string) *PipelineError {
	return New(ErrCodeRequestInvalid, fmt.Sprintf("invalid request: %s", detail))
}

// NewFileNotFoundError creates a file not found error
func NewFileNotFoundError(path string) *PipelineError {
	return New(ErrCodeFileNotFound, fmt.Sprintf("file not found: %s", path)).
		WithSuggestion("Check if the file path is correct").
		WithSuggestion("Verify the file exists and you have read permissions")
}

// NewFileUnmarshalError creates an unmarshal error
func NewFileUnmarshalError(path string, format string, cause error) *PipelineError {
	return Wrap(ErrCodeFileUnmarshal, fmt.Sprintf("failed to parse %s file: %s", format, path), cause).
		WithSuggestion("Check the file syntax and format").
		WithSuggestion(fmt.Sprintf("Ensure the file is valid %s", format))
}

// As extracts the first PipelineError in err's chain.
func As(err error) (*PipelineError, bool) {
	var pe *PipelineError
	if stderrors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// KindFrom returns the kind of err, or KindIO for errors raised outside
// the pipeline.
func KindFrom(err error) Kind {
	if pe, ok := As(err); ok {
		return pe.Kind
	}
	return KindIO
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// Retryable reports whether err is a failure worth retrying unchanged.
func Retryable(err error) bool {
	pe, ok := As(err)
	return ok && pe.Retryable()
}
