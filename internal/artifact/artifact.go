// Package artifact holds generated source files and writes them to the
// project tree in two phases: Stage puts the bytes next to their
// destination, Commit renames them into place.
package artifact

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
)

// Artifact is one complete generated file. Build it with New.
type Artifact struct {
	path   string
	source []byte
	refs   []string
}

// New returns an artifact for a slash-separated path relative to the
// project root. Empty sources and paths escaping the root are rejected.
// refs names the logical components the source refers to.
func New(p string, source []byte, refs ...string) (Artifact, error) {
	clean := path.Clean(strings.ReplaceAll(p, `\`, "/"))
	if p == "" || clean == "." || path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
		return Artifact{}, fmt.Errorf("artifact path %q must be relative to the project root", p)
	}
	if len(bytes.TrimSpace(source)) == 0 {
		return Artifact{}, fmt.Errorf("artifact %s has no content", clean)
	}
	return Artifact{
		path:   clean,
		source: append([]byte(nil), source...),
		refs:   append([]string(nil), refs...),
	}, nil
}

// Path returns the project-relative path.
func (a Artifact) Path() string { return a.path }

// Source returns the file content.
func (a Artifact) Source() []byte { return append([]byte(nil), a.source...) }

// References returns the logical names the artifact depends on.
func (a Artifact) References() []string { return append([]string(nil), a.refs...) }

// Digest returns the hex blake3 hash of the content.
func (a Artifact) Digest() string { return Digest(a.source) }

// Digest hashes file content the same way Artifact.Digest does.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// State describes an artifact on disk relative to its recorded digest.
type State string

const (
	StateMissing State = "missing"
	StateCurrent State = "current"
	StateDrifted State = "drifted"
)

// Writer writes artifacts under a project root.
type Writer struct {
	root string
}

// NewWriter returns a writer rooted at root.
func NewWriter(root string) *Writer {
	return &Writer{root: root}
}

// Root returns the project root.
func (w *Writer) Root() string { return w.root }

// Abs returns the file-system path of a project-relative path.
func (w *Writer) Abs(p string) string {
	return filepath.Join(w.root, filepath.FromSlash(p))
}

// Pending is a staged write. Exactly one of Commit or Discard should be
// called.
type Pending struct {
	target    string
	temp      string
	unchanged bool
	done      bool
}

// Stage writes a's content to a temporary file beside its destination.
// When the destination already holds identical bytes nothing is
// written and the pending write is a no-op.
func (w *Writer) Stage(a Artifact) (*Pending, error) {
	target := w.Abs(a.path)
	if current, err := os.ReadFile(target); err == nil && bytes.Equal(current, a.source) {
		return &Pending{target: target, unchanged: true}, nil
	}
	temp, err := fsutil.StageFile(target, a.source, fsutil.FilePerm)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to stage %s", a.path), err)
	}
	return &Pending{target: target, temp: temp}, nil
}

// Unchanged reports whether the destination already held the content.
func (p *Pending) Unchanged() bool { return p.unchanged }

// Target returns the destination path.
func (p *Pending) Target() string { return p.target }

// Commit moves the staged file into place.
func (p *Pending) Commit() error {
	if p.done {
		return nil
	}
	p.done = true
	if p.unchanged {
		return nil
	}
	if err := os.Rename(p.temp, p.target); err != nil {
		os.Remove(p.temp)
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", p.target), err)
	}
	return nil
}

// Discard removes the staged file, leaving the destination untouched.
func (p *Pending) Discard() error {
	if p.done {
		return nil
	}
	p.done = true
	if p.unchanged {
		return nil
	}
	if err := os.Remove(p.temp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove staged file %s: %w", p.temp, err)
	}
	return nil
}

// Read returns the current content of the file at p. A missing file
// reports exists false and no error.
func (w *Writer) Read(p string) (data []byte, exists bool, err error) {
	data, err = os.ReadFile(w.Abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", p), err)
	}
	return data, true, nil
}

// Check compares the file at p with the digest recorded when it was
// generated.
func (w *Writer) Check(p, digest string) (State, error) {
	data, err := os.ReadFile(w.Abs(p))
	if err != nil {
		if os.IsNotExist(err) {
			return StateMissing, nil
		}
		return "", errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read %s", p), err)
	}
	if Digest(data) != digest {
		return StateDrifted, nil
	}
	return StateCurrent, nil
}

// EnsurePackages creates an empty __init__.py in every directory that
// lacks one, so generated modules are importable.
func (w *Writer) EnsurePackages(dirs []string) error {
	for _, d := range dirs {
		p := filepath.Join(w.Abs(d), "__init__.py")
		if _, err := os.Stat(p); err == nil {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), fsutil.DirPerm); err != nil {
			return errors.Wrap(errors.ErrCodeDirectoryFailed, fmt.Sprintf("failed to create %s", d), err)
		}
		if err := os.WriteFile(p, nil, fsutil.FilePerm); err != nil {
			return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to create %s", p), err)
		}
	}
	return nil
}
