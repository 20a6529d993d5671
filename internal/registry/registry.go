// Package registry is the single source of truth for generated
// components: their derived identities, method signatures and
// dependencies. Every mutation is an optimistic transaction committed
// with compare-and-swap against the persisted version.
package registry

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pomgen/internal/domain"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/naming"
)

// Token identifies one persisted registry version.
type Token struct {
	Version uint64 `json:"version"`
	Digest  string `json:"digest"`
}

// Registry wraps a Store with identity derivation and transactions.
type Registry struct {
	store  Store
	layout Layout
	now    func() time.Time
	newID  func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides the generator for history entry IDs.
func WithIDGenerator(f func() string) Option {
	return func(r *Registry) { r.newID = f }
}

// New creates a Registry over store.
func New(store Store, layout Layout, opts ...Option) *Registry {
	r := &Registry{
		store:  store,
		layout: layout,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Layout returns the layout identities are placed in.
func (r *Registry) Layout() Layout { return r.layout }

// Close closes the underlying store.
func (r *Registry) Close() error { return r.store.Close() }

// Token returns the current version token.
func (r *Registry) Token() (Token, error) {
	doc, err := r.store.Load()
	if err != nil {
		return Token{}, err
	}
	return Token{Version: doc.Version, Digest: doc.Digest()}, nil
}

// Document returns a copy of the current persisted document.
func (r *Registry) Document() (*Document, error) {
	return r.store.Load()
}

// Lookup returns the entry for name.
func (r *Registry) Lookup(name string) (Component, error) {
	tx, err := r.Begin()
	if err != nil {
		return Component{}, err
	}
	c, ok := tx.Lookup(name)
	if !ok {
		return Component{}, errors.New(errors.ErrCodeComponentNotFound,
			fmt.Sprintf("no registry entry for %q", name)).WithNames(name)
	}
	return c, nil
}

// Components returns every entry, optionally filtered by kind, sorted
// by logical name.
func (r *Registry) Components(kinds ...Kind) ([]Component, error) {
	tx, err := r.Begin()
	if err != nil {
		return nil, err
	}
	return tx.Components(kinds...), nil
}

// MutateOption configures a single-operation mutation.
type MutateOption func(*mutateOptions)

type mutateOptions struct {
	expected *Token
	stage    string
}

// WithExpected guards the mutation with a previously read token: it
// fails with StaleRegistryState if any entry it touches was modified
// after that token's version.
func WithExpected(t Token) MutateOption {
	return func(o *mutateOptions) { o.expected = &t }
}

// WithStage labels the history entry of the mutation.
func WithStage(stage string) MutateOption {
	return func(o *mutateOptions) { o.stage = stage }
}

// Update runs fn in a fresh transaction and commits it.
func (r *Registry) Update(fn func(tx *Tx) error, opts ...MutateOption) (Token, error) {
	o := mutateOptions{stage: "registry"}
	for _, opt := range opts {
		opt(&o)
	}

	tx, err := r.Begin()
	if err != nil {
		return Token{}, err
	}
	if err := fn(tx); err != nil {
		return Token{}, err
	}
	if o.expected != nil {
		if err := tx.checkNotModifiedSince(o.expected.Version); err != nil {
			return Token{}, err
		}
	}
	tok, _, err := tx.Commit(o.stage, "")
	return tok, err
}

// Resolve returns the entry for name, creating it with freshly derived
// identifiers when absent. It fails with NamingConflict if name is
// registered under another kind.
func (r *Registry) Resolve(name string, kind Kind, opts ...MutateOption) (Component, error) {
	var out Component
	_, err := r.Update(func(tx *Tx) error {
		c, err := tx.Resolve(name, kind)
		out = c
		return err
	}, opts...)
	if err != nil {
		return Component{}, err
	}
	return r.Lookup(out.LogicalName)
}

// RecordMethods merges methods into the entry for name.
func (r *Registry) RecordMethods(name string, methods map[string]Signature, opts ...MutateOption) (Component, error) {
	_, err := r.Update(func(tx *Tx) error {
		return tx.RecordMethods(name, methods)
	}, opts...)
	if err != nil {
		return Component{}, err
	}
	return r.Lookup(name)
}

// Begin starts a transaction over the current persisted state.
func (r *Registry) Begin() (*Tx, error) {
	doc, err := r.store.Load()
	if err != nil {
		return nil, err
	}
	return &Tx{
		reg:      r,
		base:     doc.Version,
		digest:   doc.Digest(),
		original: doc.content(),
		doc:      doc,
		before:   make(map[string]*Component),
	}, nil
}

// Tx is an in-memory working copy of the registry. Nothing is persisted
// until Commit; a discarded Tx leaves no trace.
type Tx struct {
	reg      *Registry
	base     uint64
	digest   string
	original []byte
	doc      *Document
	before   map[string]*Component
	done     bool
}

// Token returns the token the transaction was started from.
func (tx *Tx) Token() Token {
	return Token{Version: tx.base, Digest: tx.digest}
}

// Layout returns the registry layout.
func (tx *Tx) Layout() Layout { return tx.reg.layout }

func canonical(name string) (string, error) {
	n, err := domain.NewLogicalName(name)
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRequestInvalid, "invalid logical name", err).WithNames(name)
	}
	return n.String(), nil
}

// Lookup returns a copy of the entry for name.
func (tx *Tx) Lookup(name string) (Component, bool) {
	key, err := canonical(name)
	if err != nil {
		return Component{}, false
	}
	c, ok := tx.doc.Components[key]
	if !ok {
		return Component{}, false
	}
	return copyComponent(c), true
}

// Components returns copies of the entries of the given kinds (all
// kinds when none are given), sorted by logical name.
func (tx *Tx) Components(kinds ...Kind) []Component {
	want := make(map[Kind]bool)
	for _, k := range kinds {
		want[k] = true
	}
	var out []Component
	for _, c := range tx.doc.Components {
		if len(want) == 0 || want[c.Kind] {
			out = append(out, copyComponent(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LogicalName < out[j].LogicalName })
	return out
}

func (tx *Tx) touch(key string) *Component {
	if _, seen := tx.before[key]; !seen {
		if c, ok := tx.doc.Components[key]; ok {
			prev := copyComponent(c)
			tx.before[key] = &prev
		} else {
			tx.before[key] = nil
		}
	}
	return tx.doc.Components[key]
}

// Resolve returns the entry for name, creating it when absent. The
// naming resolver runs only on creation; existing identities are never
// re-derived.
func (tx *Tx) Resolve(name string, kind Kind) (Component, error) {
	key, err := canonical(name)
	if err != nil {
		return Component{}, err
	}
	if c, ok := tx.doc.Components[key]; ok {
		if c.Kind != kind {
			return Component{}, errors.NewNamingConflictError(key,
				fmt.Sprintf("already registered as a %s, cannot register as a %s", c.Kind, kind))
		}
		return copyComponent(c), nil
	}

	id := tx.reg.layout.Identity(kind, naming.Resolve(key))
	for _, other := range tx.doc.Components {
		if other.Identity.FilePath == id.FilePath || other.Identity.ImportRoute == id.ImportRoute {
			return Component{}, errors.NewNamingConflictError(key,
				fmt.Sprintf("derives %s, which %q already uses", id.FilePath, other.LogicalName)).
				WithNames(other.LogicalName)
		}
	}

	tx.touch(key)
	c := &Component{
		LogicalName: key,
		Kind:        kind,
		Identity:    id,
		Methods:     make(map[string]Signature),
	}
	tx.doc.Components[key] = c
	return copyComponent(c), nil
}

func (tx *Tx) mustExist(name string) (string, *Component, error) {
	key, err := canonical(name)
	if err != nil {
		return "", nil, err
	}
	c := tx.touch(key)
	if c == nil {
		return "", nil, errors.New(errors.ErrCodeComponentNotFound,
			fmt.Sprintf("no registry entry for %q", key)).WithNames(key)
	}
	return key, c, nil
}

// RecordMethods merges methods into the entry. A method already present
// with a different signature is a NamingConflict; methods are never
// removed.
func (tx *Tx) RecordMethods(name string, methods map[string]Signature) error {
	key, c, err := tx.mustExist(name)
	if err != nil {
		return err
	}
	for _, m := range sortedKeys(methods) {
		sig := methods[m]
		if prev, ok := c.Methods[m]; ok && !prev.Equal(sig) {
			return errors.NewNamingConflictError(key,
				fmt.Sprintf("method %s changes signature from (%v) to (%v)", m, prev.Params, sig.Params)).
				WithNames(m)
		}
	}
	if c.Methods == nil {
		c.Methods = make(map[string]Signature)
	}
	for m, sig := range methods {
		c.Methods[m] = cloneSignature(sig)
	}
	return nil
}

// ReplaceMethods sets the method set of a story or test entry. Those
// kinds have no dependents, so their methods may shrink.
func (tx *Tx) ReplaceMethods(name string, methods map[string]Signature) error {
	key, c, err := tx.mustExist(name)
	if err != nil {
		return err
	}
	if !c.Kind.leaf() {
		return errors.NewNamingConflictError(key, fmt.Sprintf("methods of a %s can only grow", c.Kind))
	}
	c.Methods = make(map[string]Signature, len(methods))
	for m, sig := range methods {
		c.Methods[m] = cloneSignature(sig)
	}
	return nil
}

// AddDependencies records upstream logical names. Each must exist.
func (tx *Tx) AddDependencies(name string, deps ...string) error {
	_, c, err := tx.mustExist(name)
	if err != nil {
		return err
	}
	set := make(map[string]bool)
	for _, d := range c.DependsOn {
		set[d] = true
	}
	var missing []string
	for _, d := range deps {
		key, err := canonical(d)
		if err != nil {
			return err
		}
		if _, ok := tx.doc.Components[key]; !ok {
			missing = append(missing, key)
			continue
		}
		set[key] = true
	}
	if len(missing) > 0 {
		return errors.NewUnresolvedDependencyError(c.LogicalName, missing...)
	}
	c.DependsOn = sortedKeys(set)
	return nil
}

// SetOperations stores the operation definitions of a workflow or
// persona entry.
func (tx *Tx) SetOperations(name string, ops []domain.Operation) error {
	_, c, err := tx.mustExist(name)
	if err != nil {
		return err
	}
	c.Operations = make([]domain.Operation, len(ops))
	for i, op := range ops {
		c.Operations[i] = domain.Operation{Name: op.Name, Steps: append([]string(nil), op.Steps...)}
	}
	return nil
}

// SetArtifact records where the entry's artifact was written.
func (tx *Tx) SetArtifact(name string, rec ArtifactRecord) error {
	_, c, err := tx.mustExist(name)
	if err != nil {
		return err
	}
	c.Artifact = &rec
	return nil
}

// Story returns the stored story record for name.
func (tx *Tx) Story(name string) (StoryRecord, bool) {
	key, err := canonical(name)
	if err != nil {
		return StoryRecord{}, false
	}
	s, ok := tx.doc.Stories[key]
	return s, ok
}

// PutStory stores the scenarios of a story.
func (tx *Tx) PutStory(name string, rec StoryRecord) error {
	key, err := canonical(name)
	if err != nil {
		return err
	}
	tx.touch(key)
	tx.doc.Stories[key] = rec
	return nil
}

// Elements returns the stored element set for a page.
func (tx *Tx) Elements(name string) (ElementSet, bool) {
	key, err := canonical(name)
	if err != nil {
		return ElementSet{}, false
	}
	s, ok := tx.doc.Elements[key]
	return s, ok
}

// PutElements stores the element set of a page. The page entry counts
// as touched for Guard.
func (tx *Tx) PutElements(name string, set ElementSet) error {
	key, err := canonical(name)
	if err != nil {
		return err
	}
	tx.touch(key)
	tx.doc.Elements[key] = set
	return nil
}

// Changed reports whether the working copy differs from what was read.
func (tx *Tx) Changed() bool {
	return !bytes.Equal(tx.doc.content(), tx.original)
}

func (tx *Tx) checkNotModifiedSince(version uint64) error {
	for key, prev := range tx.before {
		if prev != nil && prev.Revision > version {
			return errors.NewStaleRegistryError(
				fmt.Sprintf("%q was modified at version %d after version %d was read", key, prev.Revision, version), key)
		}
	}
	return nil
}

// Guard fails with StaleRegistryState if an entry the transaction has
// touched so far was modified after t was read. Call it after the
// mutations and before Commit.
func (tx *Tx) Guard(t Token) error {
	return tx.checkNotModifiedSince(t.Version)
}

// Commit persists the working copy as version base+1. A transaction
// that changed nothing is a no-op: no version bump, no write, and the
// returned bool is false. Losing the compare-and-swap fails with
// StaleRegistryState.
func (tx *Tx) Commit(stage, invocationID string) (Token, bool, error) {
	if tx.done {
		return Token{}, false, fmt.Errorf("registry transaction already committed")
	}
	tx.done = true

	if !tx.Changed() {
		return tx.Token(), false, nil
	}

	version := tx.base + 1
	now := tx.reg.now()
	var names []string
	for _, key := range sortedKeys(tx.before) {
		c, ok := tx.doc.Components[key]
		if !ok {
			continue
		}
		if prev := tx.before[key]; prev != nil && componentEqual(*prev, *c) {
			continue
		}
		c.Revision = version
		c.UpdatedAt = now
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		names = append(names, key)
	}

	if invocationID == "" {
		invocationID = tx.reg.newID()
	}
	tx.doc.Version = version
	tx.doc.appendHistory(HistoryEntry{
		ID:      invocationID,
		Stage:   stage,
		Names:   names,
		Version: version,
		At:      now,
	})

	if err := tx.reg.store.CompareAndSwap(tx.base, tx.doc); err != nil {
		switch {
		case stderrors.Is(err, ErrVersionMismatch):
			return Token{}, false, errors.NewStaleRegistryError(
				fmt.Sprintf("version %d was superseded by a concurrent writer", tx.base), names...)
		case stderrors.Is(err, ErrLocked):
			return Token{}, false, errors.NewStaleRegistryError("another writer holds the registry lock", names...)
		default:
			return Token{}, false, err
		}
	}
	return Token{Version: version, Digest: tx.doc.Digest()}, true, nil
}

func componentEqual(a, b Component) bool {
	a.Revision, b.Revision = 0, 0
	a.CreatedAt, b.CreatedAt = time.Time{}, time.Time{}
	a.UpdatedAt, b.UpdatedAt = time.Time{}, time.Time{}
	ad, _ := json.Marshal(a)
	bd, _ := json.Marshal(b)
	return bytes.Equal(ad, bd)
}

func copyComponent(c *Component) Component {
	out := *c
	out.Methods = make(map[string]Signature, len(c.Methods))
	for k, v := range c.Methods {
		out.Methods[k] = cloneSignature(v)
	}
	out.DependsOn = append([]string(nil), c.DependsOn...)
	if c.Operations != nil {
		out.Operations = make([]domain.Operation, len(c.Operations))
		for i, op := range c.Operations {
			out.Operations[i] = domain.Operation{Name: op.Name, Steps: append([]string(nil), op.Steps...)}
		}
	}
	if c.Artifact != nil {
		rec := *c.Artifact
		out.Artifact = &rec
	}
	return out
}

// cloneSignature always yields a non-nil Params so that a signature
// encodes the same before and after a round trip through the store.
func cloneSignature(s Signature) Signature {
	params := make([]string, len(s.Params))
	copy(params, s.Params)
	return Signature{Params: params, Returns: s.Returns}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
