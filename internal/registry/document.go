package registry

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/pomgen/internal/domain"
)

// SchemaVersion identifies the persisted document format.
const SchemaVersion = "pomgen.registry/v1"

// maxHistory bounds the audit log kept in the document.
const maxHistory = 200

// StoryRecord holds the scenarios extracted from one story.
type StoryRecord struct {
	Title     string            `json:"title"`
	Persona   string            `json:"persona,omitempty"`
	Scenarios []domain.Scenario `json:"scenarios"`
}

// ElementSet holds the merged descriptors imported for one page.
type ElementSet struct {
	Target      string                     `json:"target,omitempty"`
	Path        string                     `json:"path,omitempty"`
	Descriptors []domain.ElementDescriptor `json:"descriptors"`
}

// HistoryEntry records one committed invocation.
type HistoryEntry struct {
	ID      string    `json:"id"`
	Stage   string    `json:"stage"`
	Names   []string  `json:"names"`
	Version uint64    `json:"version"`
	At      time.Time `json:"at"`
}

// Document is the full persisted registry state.
type Document struct {
	Schema     string                 `json:"schema"`
	Version    uint64                 `json:"version"`
	Components map[string]*Component  `json:"components"`
	Stories    map[string]StoryRecord `json:"stories,omitempty"`
	Elements   map[string]ElementSet  `json:"elements,omitempty"`
	History    []HistoryEntry         `json:"history,omitempty"`
}

// NewDocument returns an empty document at version 0.
func NewDocument() *Document {
	return &Document{
		Schema:     SchemaVersion,
		Components: make(map[string]*Component),
		Stories:    make(map[string]StoryRecord),
		Elements:   make(map[string]ElementSet),
	}
}

// DecodeDocument parses persisted bytes.
func DecodeDocument(data []byte) (*Document, error) {
	doc := NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("failed to decode registry: %w", err)
	}
	if doc.Schema != SchemaVersion {
		return nil, fmt.Errorf("unsupported registry schema %q (want %q)", doc.Schema, SchemaVersion)
	}
	doc.ensureMaps()
	return doc, nil
}

// Encode serializes the document with sorted keys and indentation.
func (d *Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

func (d *Document) ensureMaps() {
	if d.Components == nil {
		d.Components = make(map[string]*Component)
	}
	if d.Stories == nil {
		d.Stories = make(map[string]StoryRecord)
	}
	if d.Elements == nil {
		d.Elements = make(map[string]ElementSet)
	}
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	data, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("registry: document is not serializable: %v", err))
	}
	out := NewDocument()
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("registry: document does not round-trip: %v", err))
	}
	out.ensureMaps()
	return out
}

// content is the canonical encoding of everything except bookkeeping
// (version and history), used to detect no-op mutations.
func (d *Document) content() []byte {
	data, err := json.Marshal(struct {
		Components map[string]*Component  `json:"components"`
		Stories    map[string]StoryRecord `json:"stories"`
		Elements   map[string]ElementSet  `json:"elements"`
	}{d.Components, d.Stories, d.Elements})
	if err != nil {
		panic(fmt.Sprintf("registry: document is not serializable: %v", err))
	}
	return data
}

// Digest is the blake3 hash of the canonical document.
func (d *Document) Digest() string {
	data, err := json.Marshal(d)
	if err != nil {
		panic(fmt.Sprintf("registry: document is not serializable: %v", err))
	}
	return HashBytes(data)
}

func (d *Document) appendHistory(e HistoryEntry) {
	d.History = append(d.History, e)
	if over := len(d.History) - maxHistory; over > 0 {
		d.History = append([]HistoryEntry(nil), d.History[over:]...)
	}
}

// HashBytes returns the blake3 hex digest of data. Artifact records use
// it so that drift checks compare like with like.
func HashBytes(data []byte) string {
	hasher := blake3.New()
	hasher.Write(data)
	return fmt.Sprintf("%x", hasher.Sum(nil))
}
