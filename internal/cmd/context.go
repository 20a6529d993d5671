package cmd

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/artifact"
	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/config"
	"github.com/felixgeelhaar/pomgen/internal/log"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/stage"
	"github.com/felixgeelhaar/pomgen/internal/telemetry"
	"github.com/felixgeelhaar/pomgen/internal/ux"
	"github.com/felixgeelhaar/pomgen/internal/version"
)

// CommandContext holds the persistent flags of one execution.
type CommandContext struct {
	Root       string
	ConfigPath string
	Format     string
	NoColor    bool
	LogLevel   string
	Quiet      bool

	Out io.Writer
	Err io.Writer
}

// NewCommandContext extracts command context from cobra.Command flags.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	flags := cmd.Flags()
	root, err := flags.GetString("root")
	if err != nil {
		return nil, err
	}
	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return nil, err
	}
	noColor, err := flags.GetBool("no-color")
	if err != nil {
		return nil, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return nil, err
	}
	quiet, err := flags.GetBool("quiet")
	if err != nil {
		return nil, err
	}

	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if root, err = ux.DiscoverRoot(cwd); err != nil {
			return nil, err
		}
	} else if root, err = filepath.Abs(root); err != nil {
		return nil, err
	}
	if configPath == "" {
		configPath = config.Path(root)
	}
	if os.Getenv("NO_COLOR") != "" {
		noColor = true
	}

	return &CommandContext{
		Root:       root,
		ConfigPath: configPath,
		Format:     format,
		NoColor:    noColor,
		LogLevel:   logLevel,
		Quiet:      quiet,
		Out:        cmd.OutOrStdout(),
		Err:        cmd.ErrOrStderr(),
	}, nil
}

// LoadConfig reads the config file and applies environment and flag
// overrides.
func (c *CommandContext) LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)
	if c.LogLevel != "" {
		cfg.Logging.Level = c.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Print writes data in the selected format unless --quiet is set.
func (c *CommandContext) Print(data any) error {
	if c.Quiet {
		return nil
	}
	f, err := ux.NewFormatter(c.Format, &ux.FormatterOptions{Writer: c.Out, NoColor: c.NoColor})
	if err != nil {
		return err
	}
	return f.Format(data)
}

// Workspace is everything a stage command needs.
type Workspace struct {
	Config      *config.Config
	Contract    *capability.Contract
	Registry    *registry.Registry
	Coordinator *pipeline.Coordinator
	Logger      *log.Logger
	Telemetry   *telemetry.Provider
}

// Close flushes telemetry and releases the registry store.
func (w *Workspace) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return stderrors.Join(w.Telemetry.Shutdown(ctx), w.Registry.Close())
}

// OpenWorkspace loads the configuration and wires the registry, the
// generators and the coordinator.
func (c *CommandContext) OpenWorkspace() (*Workspace, error) {
	cfg, err := c.LoadConfig()
	if err != nil {
		return nil, err
	}

	ver := version.GetInfo().Short()
	lc := cfg.LogConfig()
	lc.Output = c.Err
	lc.ServiceVersion = ver
	logger := log.New(lc)
	log.SetDefault(logger)

	contract, err := c.loadContract(cfg)
	if err != nil {
		return nil, err
	}
	tel, err := telemetry.New(context.Background(), cfg.TelemetryConfig(ver))
	if err != nil {
		return nil, err
	}
	store, err := cfg.OpenStore(c.Root)
	if err != nil {
		_ = tel.Shutdown(context.Background())
		return nil, err
	}
	reg := registry.New(store, cfg.Layout)
	coord := pipeline.New(reg, stage.New(contract), artifact.NewWriter(c.Root),
		pipeline.WithLogger(logger),
		pipeline.WithTelemetry(tel),
	)
	return &Workspace{
		Config:      cfg,
		Contract:    contract,
		Registry:    reg,
		Coordinator: coord,
		Logger:      logger,
		Telemetry:   tel,
	}, nil
}

func (c *CommandContext) loadContract(cfg *config.Config) (*capability.Contract, error) {
	if cfg.Capabilities == "" {
		return capability.Default()
	}
	p := cfg.Capabilities
	if !filepath.IsAbs(p) {
		p = filepath.Join(c.Root, p)
	}
	return capability.LoadFile(p)
}
