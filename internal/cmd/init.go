package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/config"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/stage"
	"github.com/felixgeelhaar/pomgen/internal/tui"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

type initResult struct {
	Root     string `json:"root" yaml:"root"`
	Config   string `json:"config" yaml:"config"`
	Registry string `json:"registry" yaml:"registry"`

	cfg *config.Config
}

func (r initResult) RenderText(w io.Writer, s ux.Styles) error {
	fmt.Fprintf(w, "%s Initialized pomgen in %s\n", s.Success.Render("✓"), r.Root)
	fmt.Fprintln(w, s.KeyValue("config", r.Config, 10))
	fmt.Fprintln(w, s.KeyValue("registry", r.Registry, 10))
	fmt.Fprintln(w, s.KeyValue("namespace", r.cfg.Layout.Namespace, 10))
	fmt.Fprintln(w)
	fmt.Fprintln(w, s.Muted.Render("Next: pomgen story NAME --file story.txt"))
	return nil
}

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up pomgen in the current project",
		Long: `Create .pomgen/config.yaml and the .pomgen/elements directory.

In an interactive terminal init asks for the Python namespace, the
registry backend and the log level; pass --yes to accept the defaults
and any flags given.`,
		Example: `  pomgen init
  pomgen init --yes --namespace shop_tests --backend sqlite`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			force, _ := cmd.Flags().GetBool("force")
			yes, _ := cmd.Flags().GetBool("yes")
			namespace, _ := cmd.Flags().GetString("namespace")
			backend, _ := cmd.Flags().GetString("backend")

			// With nothing to discover, Root is the working directory.
			paths := ux.NewPathDefaults(cc.Root)
			if paths.Initialized() && !force {
				return errors.New(errors.ErrCodeConfigInvalid,
					fmt.Sprintf("%s already exists", cc.ConfigPath)).
					WithSuggestion("Pass --force to overwrite it")
			}

			cfg := config.Default()
			if namespace != "" {
				cfg.Layout.Namespace = namespace
			}
			if backend != "" {
				cfg.Registry.Backend = backend
			}
			if cc.LogLevel != "" {
				cfg.Logging.Level = cc.LogLevel
			}
			if !yes && tui.ShouldPrompt() {
				if err := tui.RunInitForm(cfg); err != nil {
					return err
				}
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := ux.EnsureDir(cc.Root, stage.ElementsDir); err != nil {
				return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create .pomgen", err)
			}
			if err := cfg.Save(cc.ConfigPath); err != nil {
				return err
			}
			return cc.Print(initResult{
				Root:     cc.Root,
				Config:   cc.ConfigPath,
				Registry: cfg.RegistryPath(cc.Root),
				cfg:      cfg,
			})
		},
	}
	cmd.Flags().String("namespace", "", "Python package for generated modules")
	cmd.Flags().String("backend", "", "registry backend: file, sqlite or memory")
	cmd.Flags().BoolP("yes", "y", false, "accept defaults without prompting")
	cmd.Flags().Bool("force", false, "overwrite an existing config")
	return cmd
}
