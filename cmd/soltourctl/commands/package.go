package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/alex-user-go/soltour/internal/handoff"
	"github.com/alex-user-go/soltour/internal/selection"
	"github.com/alex-user-go/soltour/internal/snapshot"
	"github.com/alex-user-go/soltour/internal/view"
)

// normalize <snapshot>: print the canonical package.
func normalizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "normalize <snapshot|->",
		Short: "Print the canonical package of a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			pkg, err := snapshot.Normalize(raw)
			if err != nil {
				return err
			}
			return printJSON(cmd, pkg)
		},
	}
}

// view <snapshot>: print the details page view model.
func viewCmd() *cobra.Command {
	var decimals int
	cmd := &cobra.Command{
		Use:   "view <snapshot|->",
		Short: "Print the details page view of a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := readSnapshot(cmd, args[0])
			if err != nil {
				return err
			}
			pkg, err := snapshot.Normalize(raw)
			if err != nil {
				return err
			}
			return printJSON(cmd, view.NewBuilder(decimals).Build(pkg))
		},
	}
	cmd.Flags().IntVar(&decimals, "decimals", 0, "price decimals")
	return cmd
}

// merge <context> <snapshot>: print the context with the snapshot merged in.
func mergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <context> <snapshot>",
		Short: "Merge a confirmed snapshot into a selection context",
		Long: "Merge a confirmed snapshot into a selection context the way a handoff does. " +
			"A missing context file starts from an empty context.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := readState(cmd, args[0])
			if err != nil {
				return err
			}
			raw, err := readSnapshot(cmd, args[1])
			if err != nil {
				return err
			}
			if !raw.Renderable() {
				return snapshot.ErrNotRenderable
			}
			return printJSON(cmd, selection.Merge(base, selection.FromSnapshot(raw)))
		},
	}
}

// reconstruct <context> <budget>: print the snapshot rebuilt from a context.
func reconstructCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconstruct <context> <budget>",
		Short: "Rebuild a package snapshot from a selection context",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := readState(cmd, args[0])
			if err != nil {
				return err
			}
			raw, ok := state.Reconstruct(args[1])
			if !ok {
				return fmt.Errorf("budget %q is not in the selection context", args[1])
			}
			return printJSON(cmd, raw)
		},
	}
}

// redirect <budget>: print the quote page address.
func redirectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redirect <budget>",
		Short: "Print the quote page address for a budget id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), handoff.RedirectURL(args[0]))
			return err
		},
	}
}
