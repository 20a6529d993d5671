package discovery

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/pomgen/internal/errors"
)

// Collaborator reports the elements of a target page.
type Collaborator interface {
	Discover(ctx context.Context, target string) ([]RawElement, error)
}

// CollaboratorFunc adapts a function to Collaborator.
type CollaboratorFunc func(ctx context.Context, target string) ([]RawElement, error)

// Discover implements Collaborator.
func (f CollaboratorFunc) Discover(ctx context.Context, target string) ([]RawElement, error) {
	return f(ctx, target)
}

// SnapshotCollaborator discovers elements from saved HTML pages, or
// from element report files (.yaml, .yml, .json) written by an external
// browser-driven collaborator.
type SnapshotCollaborator struct {
	Root string
}

// Discover implements Collaborator.
func (s SnapshotCollaborator) Discover(ctx context.Context, target string) ([]RawElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := SnapshotPath(s.Root, target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDiscoveryFailed, "cannot discover elements", err).
			WithNames(target).
			WithSuggestion("Save the page as HTML and pass its path, or pass an element report with --from")
	}

	var elems []RawElement
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		data, rerr := os.ReadFile(path)
		if rerr != nil {
			err = rerr
			break
		}
		rep, perr := ParseReport(data)
		if perr != nil {
			return nil, errors.Wrap(errors.ErrCodeElementInvalid, fmt.Sprintf("invalid element report %s", path), perr)
		}
		elems = rep.Elements
	default:
		elems, err = readSnapshot(path)
	}
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFoundError(path)
		}
		return nil, errors.Wrap(errors.ErrCodeSnapshotUnreadable, fmt.Sprintf("failed to read snapshot %s", path), err)
	}
	return elems, nil
}

// DiscoverAll runs c against every target with at most limit
// discoveries in flight. The first failure cancels the rest.
func DiscoverAll(ctx context.Context, c Collaborator, targets []string, limit int) (map[string][]RawElement, error) {
	results := make([][]RawElement, len(targets))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, target := range targets {
		g.Go(func() error {
			elems, err := c.Discover(ctx, target)
			if err != nil {
				return err
			}
			results[i] = elems
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string][]RawElement, len(targets))
	for i, target := range targets {
		out[target] = results[i]
	}
	return out, nil
}
