package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/pipeline"
	"github.com/felixgeelhaar/pomgen/internal/registry"
	"github.com/felixgeelhaar/pomgen/internal/ux"
)

type historyView []registry.HistoryEntry

func (v historyView) RenderText(w io.Writer, s ux.Styles) error {
	for _, e := range v {
		fmt.Fprintf(w, "%s %-9s %s %s\n",
			s.Key.Render(fmt.Sprintf("v%-4d", e.Version)),
			e.Stage,
			s.Muted.Render(e.At.Format("2006-01-02 15:04:05")),
			strings.Join(e.Names, ", "))
	}
	return nil
}

func newRegistryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the component registry",
	}
	cmd.AddCommand(newRegistryShowCmd(), newRegistryLookupCmd(), newRegistryHistoryCmd())
	return cmd
}

func newRegistryShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "List registered components",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			kinds, err := parseKinds(cmd)
			if err != nil {
				return err
			}
			tok, err := ws.Registry.Token()
			if err != nil {
				return err
			}
			comps, err := ws.Registry.Components(kinds...)
			if err != nil {
				return err
			}
			view := registryView{Version: tok.Version, Digest: tok.Digest, Components: make([]pipeline.Summary, 0, len(comps))}
			for _, c := range comps {
				view.Components = append(view.Components, pipeline.Summarize(c))
			}
			return cc.Print(view)
		},
	}
	cmd.Flags().StringSlice("kind", nil, "only list these kinds (story, page, workflow, persona, test)")
	return cmd
}

func parseKinds(cmd *cobra.Command) ([]registry.Kind, error) {
	names, _ := cmd.Flags().GetStringSlice("kind")
	kinds := make([]registry.Kind, 0, len(names))
	for _, n := range names {
		k, err := registry.ParseKind(n)
		if err != nil {
			return nil, errors.NewInvalidRequestError(err.Error())
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

func newRegistryLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup NAME",
		Short: "Show one component with its identity and methods",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			c, err := ws.Registry.Lookup(args[0])
			if err != nil {
				return err
			}
			return cc.Print(componentView(c))
		},
	}
}

func newRegistryHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show the committed invocations, newest last",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			ws, err := cc.OpenWorkspace()
			if err != nil {
				return err
			}
			defer ws.Close()

			doc, err := ws.Registry.Document()
			if err != nil {
				return err
			}
			hist := doc.History
			if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && len(hist) > limit {
				hist = hist[len(hist)-limit:]
			}
			return cc.Print(historyView(hist))
		},
	}
	cmd.Flags().Int("limit", 20, "show at most this many entries, 0 for all")
	return cmd
}
