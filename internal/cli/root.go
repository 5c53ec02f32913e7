// Package cli implements the packstore command line tool.
package cli

import (
	"fmt"
	"os"

	"github.com/packstore/packstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	Version = "0.3.0"
)

// NewRootCmd builds the command tree. Every command opens the store, runs and
// closes it again.
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:   "packstore",
		Short: "compressed key-value store",
		Long: fmt.Sprintf(`packstore (v%s)

A transactional key-value store for structured values. Keys and values are
given as JSON, stored as MessagePack and compressed on disk.`, Version),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return initConfig(v, cmd)
		},
	}
	setupStoreFlags(rootCmd)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version number of packstore",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "packstore v%s\n", Version)
		},
	}

	rootCmd.AddCommand(versionCmd)
	for _, c := range storeCommands(v) {
		rootCmd.AddCommand(c)
	}
	return rootCmd
}

// withStore wraps fn into a cobra RunE that opens the configured store for the
// duration of the command.
func withStore(v *viper.Viper, fn func(cmd *cobra.Command, args []string, db *packstore.DB) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		log, err := newLogger(cmd.ErrOrStderr(), v.GetString("log-level"), v.GetString("log-format"))
		if err != nil {
			return err
		}

		opts, err := storeOptions(v, log)
		if err != nil {
			return err
		}

		db, err := packstore.Open(v.GetString("path"), opts...)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := db.Close(); err == nil {
				err = cerr
			}
		}()

		return fn(cmd, args, db)
	}
}

// withWriteStore is withStore for commands that modify the store. Their
// writes are flushed before the store is closed.
func withWriteStore(v *viper.Viper, fn func(cmd *cobra.Command, args []string, db *packstore.DB) error) func(*cobra.Command, []string) error {
	return withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
		if err := fn(cmd, args, db); err != nil {
			return err
		}
		return db.Flush()
	})
}

// Execute runs the command tree with the process arguments.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
