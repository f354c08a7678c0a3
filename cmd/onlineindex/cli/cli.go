// Package cli implements the "onlineindex" command tree for driving an
// online index build against a bbolt-backed store from the shell.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"onlineindex/internal/kv"
	"onlineindex/internal/logging"
	"onlineindex/internal/onlineindex"
	"onlineindex/internal/recordstore"
)

// NewRootCommand returns the "onlineindex" command with all subcommands
// wired in.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "onlineindex",
		Short: "Build secondary indexes over a KV store incrementally",
		Long:  "Drive an OnlineIndexer-style incremental build over a bbolt-backed record store, or inspect its Built-Range Set progress.",
	}

	cmd.PersistentFlags().String("db", "onlineindex.db", "path to the bbolt database file")
	cmd.PersistentFlags().String("index", "default", "index name")
	cmd.PersistentFlags().Bool("debug", false, "enable debug-level logging for the onlineindex component")

	cmd.AddCommand(
		newBuildCmd(),
		newRebuildCmd(),
		newStatusCmd(),
	)

	return cmd
}

func newBuildCmd() *cobra.Command {
	var limit int
	var recordsPerSecond int
	var markReadable bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Incrementally build the index, resuming from its Built-Range Set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			index, _ := cmd.Flags().GetString("index")
			mgr := recordstore.NewManager(index, subspaceFor(index), store)

			cfg := onlineindex.DefaultBuilderConfig()
			if cmd.Flags().Changed("limit") {
				cfg.Limit = limit
			}
			if cmd.Flags().Changed("rate") {
				cfg.RecordsPerSecond = recordsPerSecond
			}

			logger := newLogger(cmd)
			counters := &onlineindex.Counters{}

			b, err := onlineindex.NewBuilder(store, mgr.Factory(), index, subspaceFor(index), cfg, counters, logger)
			if err != nil {
				return fmt.Errorf("construct builder: %w", err)
			}

			if err := b.BuildIndex(cmd.Context(), markReadable); err != nil {
				return fmt.Errorf("build index %q: %w", index, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d indexed=%d\n", counters.Scanned(), counters.Indexed())
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "initial rows-per-chunk limit (default: builder default)")
	cmd.Flags().IntVar(&recordsPerSecond, "rate", 0, "records-per-second cap (default: builder default; 0 = unlimited)")
	cmd.Flags().BoolVar(&markReadable, "mark-readable", false, "transition the index to READABLE on completion")
	return cmd
}

func newRebuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild the index from scratch in a single transaction",
		Long:  "Clears the index and its Built-Range Set and repopulates both in one transaction. Only suitable for stores small enough to fit a single transaction's limits.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			index, _ := cmd.Flags().GetString("index")
			mgr := recordstore.NewManager(index, subspaceFor(index), store)

			logger := newLogger(cmd)
			b, err := onlineindex.NewBuilder(store, mgr.Factory(), index, subspaceFor(index), onlineindex.DefaultBuilderConfig(), onlineindex.NopMetrics{}, logger)
			if err != nil {
				return fmt.Errorf("construct builder: %w", err)
			}

			if err := b.Rebuild(cmd.Context()); err != nil {
				return fmt.Errorf("rebuild index %q: %w", index, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "index %q rebuilt\n", index)
			return nil
		},
	}
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report how many ranges of the index are still missing from its Built-Range Set",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer closeStore()

			index, _ := cmd.Flags().GetString("index")
			rs := onlineindex.NewRangeSet(subspaceFor(index))

			gaps := 0
			err = store.View(cmd.Context(), func(tx *kv.Tx) error {
				seq, err := rs.Missing(tx, onlineindex.NegInf(), onlineindex.PosInf())
				if err != nil {
					return err
				}
				for range seq {
					gaps++
				}
				return nil
			})
			if err != nil {
				return fmt.Errorf("query status for %q: %w", index, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "index=%s missing_ranges=%d\n", index, gaps)
			return nil
		},
	}
	return cmd
}

// newLogger builds the base logger for a run: a text handler wrapped in
// a ComponentFilterHandler so the "onlineindex" component's verbosity can
// be raised independently of anything else sharing the process, via
// --debug. The wrapped handler is left at LevelDebug so the filter, not
// the handler, decides what gets through.
func newLogger(cmd *cobra.Command) *slog.Logger {
	base := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
	filter := logging.NewComponentFilterHandler(base, slog.LevelInfo)
	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		filter.SetLevel("onlineindex", slog.LevelDebug)
	}
	return logging.Default(slog.New(filter))
}

func openStore(cmd *cobra.Command) (*kv.Store, func(), error) {
	path, _ := cmd.Flags().GetString("db")
	store, err := kv.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	return store, func() { _ = store.Close() }, nil
}

func subspaceFor(index string) []byte {
	return []byte("brs/" + index)
}
