package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/alex-user-go/soltour/internal/selection"
	"github.com/alex-user-go/soltour/internal/snapshot"
)

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "soltourctl",
		Short:        "Inspect Soltour package snapshots and selection contexts",
		SilenceUsage: true,
	}

	root.PersistentFlags().Bool("compact", false, "print JSON on a single line")

	root.AddCommand(normalizeCmd(), viewCmd(), mergeCmd(), reconstructCmd(), redirectCmd())
	return root
}

// readFile reads path, or stdin when path is "-".
func readFile(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(path)
}

func readSnapshot(cmd *cobra.Command, path string) (*snapshot.Raw, error) {
	data, err := readFile(cmd, path)
	if err != nil {
		return nil, err
	}
	var raw snapshot.Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", path, err)
	}
	return &raw, nil
}

// readState loads a selection context. A missing file yields an empty context.
func readState(cmd *cobra.Command, path string) (selection.State, error) {
	data, err := readFile(cmd, path)
	if errors.Is(err, fs.ErrNotExist) {
		return selection.New(), nil
	}
	if err != nil {
		return selection.State{}, err
	}
	state := selection.New()
	if err := json.Unmarshal(data, &state); err != nil {
		return selection.State{}, fmt.Errorf("parse selection context %s: %w", path, err)
	}
	return state, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	if compact, _ := cmd.Flags().GetBool("compact"); !compact {
		enc.SetIndent("", "  ")
	}
	return enc.Encode(v)
}
