package health

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

type stubChecker struct {
	name   string
	result *Result
	delay  time.Duration
}

func (s *stubChecker) Name() string { return s.name }

func (s *stubChecker) Check(ctx context.Context) *Result {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.result
}

type brokenStore struct{}

func (brokenStore) Load() (*registry.Document, error) { return nil, stderrors.New("disk gone") }
func (brokenStore) CompareAndSwap(uint64, *registry.Document) error {
	return stderrors.New("disk gone")
}
func (brokenStore) Close() error { return nil }

func TestResultBuilders(t *testing.T) {
	r := Degraded("slow").WithDetail("ms", 120).WithLatency(time.Second)
	assert.Equal(t, StatusDegraded, r.Status)
	assert.Equal(t, "slow", r.Message)
	assert.Equal(t, 120, r.Details["ms"])
	assert.Equal(t, time.Second, r.Latency)
	assert.Equal(t, "unhealthy", Unhealthy("x").Status.String())
}

func TestManagerCheck(t *testing.T) {
	m := NewManager().WithTimeout(50 * time.Millisecond)
	m.AddChecker(&stubChecker{name: "a", result: Healthy("ok")})
	m.AddChecker(&stubChecker{name: "b", result: Degraded("meh")})
	m.AddChecker(&stubChecker{name: "slow", result: Healthy("late"), delay: time.Second})
	m.AddChecker(&stubChecker{name: "nil"})

	assert.Equal(t, []string{"a", "b", "slow", "nil"}, m.CheckNames())

	results := m.Check(context.Background())
	require.Len(t, results, 4)
	assert.Equal(t, StatusHealthy, results["a"].Status)
	assert.Equal(t, StatusDegraded, results["b"].Status)
	assert.Equal(t, StatusUnhealthy, results["slow"].Status)
	assert.Equal(t, "check timed out", results["slow"].Message)
	assert.Equal(t, StatusUnhealthy, results["nil"].Status)
}

func TestOverallStatus(t *testing.T) {
	m := NewManager()
	assert.Equal(t, StatusHealthy, m.OverallStatus(nil))
	assert.Equal(t, StatusDegraded, m.OverallStatus(map[string]*Result{"a": Healthy(""), "b": Degraded("")}))
	assert.Equal(t, StatusUnhealthy, m.OverallStatus(map[string]*Result{"a": Degraded(""), "b": Unhealthy("")}))
}

func TestProbes(t *testing.T) {
	pm := NewProbeManager("1.2.3")
	pm.AddChecker(&stubChecker{name: "dep", result: Healthy("ok")})
	ctx := context.Background()

	assert.Equal(t, StatusUnhealthy, pm.CheckStartup(ctx).Status)
	pm.MarkInitialized()
	assert.Equal(t, StatusHealthy, pm.CheckStartup(ctx).Status)

	ready := pm.CheckReadiness(ctx)
	assert.Equal(t, StatusHealthy, ready.Status)
	assert.Equal(t, "1.2.3", ready.Version)
	assert.Contains(t, ready.Checks, "dep")

	assert.Equal(t, StatusHealthy, pm.CheckLiveness(ctx).Status)
	pm.MarkShutdown()
	assert.Equal(t, StatusDegraded, pm.CheckLiveness(ctx).Status, "still alive while draining")
	assert.Equal(t, StatusUnhealthy, pm.CheckReadiness(ctx).Status)
	assert.Empty(t, pm.CheckReadiness(ctx).Checks)
}

func TestRegistryChecker(t *testing.T) {
	reg := registry.New(registry.NewMemoryStore(), registry.DefaultLayout())
	_, err := reg.Resolve("LoginPage", registry.KindPage)
	require.NoError(t, err)

	r := NewRegistryChecker(reg).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Equal(t, uint64(1), r.Details["version"])

	broken := registry.New(brokenStore{}, registry.DefaultLayout())
	r = NewRegistryChecker(broken).Check(context.Background())
	assert.Equal(t, StatusUnhealthy, r.Status)
	assert.Contains(t, r.Details["error"], "disk gone")
}

func TestContractChecker(t *testing.T) {
	r := NewContractChecker(capability.MustDefault()).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)
	assert.Positive(t, r.Details["capabilities"])

	assert.Equal(t, StatusUnhealthy, NewContractChecker(nil).Check(context.Background()).Status)
}

func TestWorkspaceChecker(t *testing.T) {
	root := t.TempDir()
	r := NewWorkspaceChecker(root).Check(context.Background())
	assert.Equal(t, StatusHealthy, r.Status)

	entries, err := os.ReadDir(filepath.Join(root, ".pomgen"))
	require.NoError(t, err)
	assert.Empty(t, entries, "the probe file is removed")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, StatusUnhealthy, NewWorkspaceChecker(root).Check(ctx).Status)
}
