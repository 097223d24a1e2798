package client

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rzbill/feedgen/internal/checkpoint"
	cfgpkg "github.com/rzbill/feedgen/internal/config"
	pebblestore "github.com/rzbill/feedgen/internal/storage/pebble"
	"github.com/spf13/cobra"
)

// NewCheckpointCommand inspects or rewrites the stream checkpoint. It opens
// the data directory directly, so the server must be stopped.
func NewCheckpointCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or rewrite the stream checkpoint (server must be stopped)",
	}
	cmd.PersistentFlags().String("data-dir", "", "Data directory (default: FEEDGEN_DATA_DIR or the OS data directory)")

	get := &cobra.Command{
		Use:   "get",
		Short: "Print the committed sequence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCheckpoint(cmd, func(cp *checkpoint.Store) error {
				seq, ok, err := cp.Sequence()
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "none")
					return nil
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), seq)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set SEQ",
		Short: "Overwrite the committed sequence; the next start resumes after it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seq, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid sequence %q", args[0])
			}
			return withCheckpoint(cmd, func(cp *checkpoint.Store) error {
				if err := cp.Reset(context.Background(), seq); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "checkpoint set to %d\n", seq)
				return nil
			})
		},
	}
	cmd.AddCommand(get, set)
	return cmd
}

func dataDirFlag(cmd *cobra.Command) string {
	if dir, _ := cmd.Flags().GetString("data-dir"); dir != "" {
		return dir
	}
	cfg := cfgpkg.Default()
	cfgpkg.FromEnv(&cfg)
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	return cfgpkg.DefaultDataDir()
}

func withCheckpoint(cmd *cobra.Command, fn func(*checkpoint.Store) error) error {
	db, err := pebblestore.Open(pebblestore.Options{
		DataDir: cfgpkg.CheckpointDir(dataDirFlag(cmd)),
		Fsync:   pebblestore.FsyncModeAlways,
	})
	if err != nil {
		return fmt.Errorf("open checkpoint (is the server running?): %w", err)
	}
	defer func() { _ = db.Close() }()
	return fn(checkpoint.New(db))
}
