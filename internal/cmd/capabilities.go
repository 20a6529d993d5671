package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/capability"
	"github.com/felixgeelhaar/pomgen/internal/config"
	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

func newCapabilitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "capabilities",
		Aliases: []string{"caps"},
		Short:   "List the web interface capabilities generated code may call",
		Long: `List the capability contract: the only operations generated page objects
may invoke on the web interface, with their parameters and return kinds.

The built-in contract is used unless the config names an override file.
'pomgen capabilities export' writes the built-in contract to
.pomgen/capabilities.yaml and points the config at it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			contract, err := cc.loadContract(cfg)
			if err != nil {
				return err
			}
			return cc.Print(newCapabilitiesView(contract))
		},
	}
	cmd.AddCommand(newCapabilitiesExportCmd())
	return cmd
}

func newCapabilitiesExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the built-in contract as a project override",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			cfg, err := cc.LoadConfig()
			if err != nil {
				return err
			}
			path := ux.NewPathDefaults(cc.Root).CapabilitiesFile()
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return errors.New(errors.ErrCodeCapabilityContract, fmt.Sprintf("%s already exists", path)).
					WithSuggestion("Pass --force to overwrite it")
			}

			if err := os.MkdirAll(filepath.Dir(path), fsutil.DirPerm); err != nil {
				return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create .pomgen", err)
			}
			if err := fsutil.WriteFileAtomic(path, capability.DefaultYAML(), fsutil.FilePerm); err != nil {
				return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write %s", path), err)
			}
			cfg.Capabilities = filepath.Join(config.Dir, filepath.Base(path))
			if err := cfg.Save(cc.ConfigPath); err != nil {
				return err
			}
			if !cc.Quiet {
				fmt.Fprintf(cc.Out, "Wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().Bool("force", false, "overwrite an existing override")
	return cmd
}
