package registry

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/felixgeelhaar/pomgen/internal/domain"
)

// Kind is the layer a component belongs to.
type Kind string

const (
	KindStory    Kind = "story"
	KindPage     Kind = "page"
	KindWorkflow Kind = "workflow"
	KindPersona  Kind = "persona"
	KindTest     Kind = "test"
)

// Kinds lists every kind in pipeline order.
var Kinds = []Kind{KindStory, KindPage, KindWorkflow, KindPersona, KindTest}

// ParseKind parses a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown component kind %q", s)
}

// leaf kinds are never referenced by another component, so their method
// sets may shrink when regenerated.
func (k Kind) leaf() bool {
	return k == KindTest || k == KindStory
}

// Identity is the set of identifiers derived once for a component.
type Identity struct {
	ClassName   string `json:"class_name"`
	FileStem    string `json:"file_stem"`
	ImportRoute string `json:"import_route"`
	FilePath    string `json:"file_path"`
}

// Signature is the parameter shape of a generated method.
type Signature struct {
	Params  []string `json:"params"`
	Returns string   `json:"returns,omitempty"`
}

// Equal reports whether two signatures have the same shape.
func (s Signature) Equal(o Signature) bool {
	return s.Returns == o.Returns && slices.Equal(s.Params, o.Params)
}

// ArtifactRecord points at the file generated for a component.
type ArtifactRecord struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
}

// Component is one registry entry.
type Component struct {
	LogicalName string               `json:"logical_name"`
	Kind        Kind                 `json:"kind"`
	Identity    Identity             `json:"identity"`
	Methods     map[string]Signature `json:"methods,omitempty"`
	DependsOn   []string             `json:"depends_on,omitempty"`
	Operations  []domain.Operation   `json:"operations,omitempty"`
	Artifact    *ArtifactRecord      `json:"artifact,omitempty"`
	Revision    uint64               `json:"revision"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Generated reports whether the component's artifact has been written.
func (c Component) Generated() bool {
	return c.Artifact != nil && c.Artifact.Path != ""
}

// MethodNames returns the component's method names sorted.
func (c Component) MethodNames() []string {
	names := make([]string, 0, len(c.Methods))
	for n := range c.Methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// HasMethod reports whether the component exposes method name.
func (c Component) HasMethod(name string) bool {
	_, ok := c.Methods[name]
	return ok
}

// Operation returns the recorded operation named name.
func (c Component) Operation(name string) (domain.Operation, bool) {
	for _, op := range c.Operations {
		if op.Name == name {
			return op, true
		}
	}
	return domain.Operation{}, false
}
