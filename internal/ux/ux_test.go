package ux

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
)

func TestEnhanceErrorAddsKindHint(t *testing.T) {
	err := fmt.Errorf("step 1: %w", errors.New(errors.ErrCodeStageOutOfOrder, "stage persona requires WorkflowsResolved"))
	got := EnhanceError(err)
	pe, ok := errors.As(got)
	require.True(t, ok)
	assert.Equal(t, []string{"Generate the missing components first; 'pomgen status' shows what is pending"}, pe.Suggestions)
	assert.Contains(t, got.Error(), "step 1:")
}

func TestEnhanceErrorKeepsOwnSuggestions(t *testing.T) {
	err := errors.NewUnknownCapabilityError("clik", []string{"click"})
	before := len(err.Suggestions)
	EnhanceError(err)
	assert.Len(t, err.Suggestions, before)

	plain := stderrors.New("boom")
	assert.Same(t, plain, EnhanceError(plain))
	assert.NoError(t, EnhanceError(nil))
}

func TestFormatError(t *testing.T) {
	err := FormatError(errors.New(errors.ErrCodeConfigInvalid, "unknown backend"), "config")
	assert.Contains(t, err.Error(), "config: ")
	assert.Contains(t, err.Error(), "run 'pomgen init'")
	assert.Nil(t, FormatError(nil, "x"))
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, stderrors.New("first\nsecond"), NewStyles(true))
	assert.Equal(t, "Error: first\nsecond\n", buf.String())
}

func TestPathDefaults(t *testing.T) {
	root := t.TempDir()
	pd := NewPathDefaults(root)
	assert.Equal(t, filepath.Join(root, ".pomgen", "config.yaml"), pd.ConfigFile())
	assert.Equal(t, filepath.Join(root, ".pomgen", "plan.yaml"), pd.PlanFile())
	assert.False(t, pd.Initialized())
	assert.ErrorContains(t, pd.ValidateSetup(), "pomgen init")

	require.NoError(t, EnsureDir(root, ".pomgen/elements"))
	require.NoError(t, os.WriteFile(pd.ConfigFile(), []byte("{}\n"), 0o644))
	assert.True(t, pd.Initialized())
	assert.NoError(t, pd.ValidateSetup())
	assert.DirExists(t, filepath.Join(root, ".pomgen", "elements"))
}

func TestDiscoverRoot(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".pomgen"), 0o750))
	nested := filepath.Join(root, "tests", "features")
	require.NoError(t, os.MkdirAll(nested, 0o750))

	got, err := DiscoverRoot(nested)
	require.NoError(t, err)
	assert.Equal(t, root, got)

	repo := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(repo, ".git"), 0o750))
	sub := filepath.Join(repo, "pkg")
	require.NoError(t, os.MkdirAll(sub, 0o750))
	got, err = DiscoverRoot(sub)
	require.NoError(t, err)
	assert.Equal(t, sub, got, "falls back to start when no .pomgen exists")
}

func TestSuggestNextSteps(t *testing.T) {
	assert.Contains(t, SuggestNextSteps(pipeline.Uninitiated), "pomgen page")
	assert.Contains(t, SuggestNextSteps(pipeline.PagesResolved), "pomgen workflow")
	assert.Contains(t, SuggestNextSteps(pipeline.WorkflowsResolved), "pomgen persona")
	assert.Contains(t, SuggestNextSteps(pipeline.PersonasResolved), "pomgen test")
	assert.Contains(t, SuggestNextSteps(pipeline.TestsGenerated), "drift")
}
