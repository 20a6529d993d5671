package health

import (
	"context"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
	"github.com/felixgeelhaar/pomgen/internal/registry"
)

// RegistryChecker loads the registry document.
type RegistryChecker struct {
	reg *registry.Registry
}

// NewRegistryChecker checks reg.
func NewRegistryChecker(reg *registry.Registry) *RegistryChecker {
	return &RegistryChecker{reg: reg}
}

func (c *RegistryChecker) Name() string { return "registry" }

func (c *RegistryChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("registry check cancelled").WithDetail("error", err.Error())
	}
	tok, err := c.reg.Token()
	if err != nil {
		return Unhealthy("registry cannot be read").WithDetail("error", err.Error())
	}
	return Healthy("registry readable").
		WithDetail("version", tok.Version).
		WithDetail("digest", tok.Digest)
}

// ContractChecker reports the loaded capability contract. An empty
// contract leaves the page stage with nothing to call.
type ContractChecker struct {
	contract *capability.Contract
}

// NewContractChecker checks contract.
func NewContractChecker(contract *capability.Contract) *ContractChecker {
	return &ContractChecker{contract: contract}
}

func (c *ContractChecker) Name() string { return "capabilities" }

func (c *ContractChecker) Check(ctx context.Context) *Result {
	if c.contract == nil {
		return Unhealthy("no capability contract loaded")
	}
	n := len(c.contract.Names())
	if n == 0 {
		return Degraded("capability contract is empty").WithDetail("version", c.contract.Version())
	}
	return Healthy("capability contract loaded").
		WithDetail("version", c.contract.Version()).
		WithDetail("capabilities", n)
}

// WorkspaceChecker verifies that artifacts can be staged under root.
type WorkspaceChecker struct {
	root string
}

// NewWorkspaceChecker checks root.
func NewWorkspaceChecker(root string) *WorkspaceChecker {
	return &WorkspaceChecker{root: root}
}

func (c *WorkspaceChecker) Name() string { return "workspace" }

func (c *WorkspaceChecker) Check(ctx context.Context) *Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("workspace check cancelled").WithDetail("error", err.Error())
	}
	f, err := fsutil.CreateSibling(filepath.Join(c.root, ".pomgen", "health"))
	if err != nil {
		return Unhealthy("workspace is not writable").
			WithDetail("root", c.root).
			WithDetail("error", err.Error())
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return Healthy("workspace writable").WithDetail("root", c.root)
}

var (
	_ Checker = (*RegistryChecker)(nil)
	_ Checker = (*ContractChecker)(nil)
	_ Checker = (*WorkspaceChecker)(nil)
)
