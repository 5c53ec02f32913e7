package cli

import (
	"fmt"

	"github.com/packstore/packstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func storeCommands(v *viper.Viper) []*cobra.Command {
	getCmd := &cobra.Command{
		Use:   "get [key]",
		Short: "Reads the value for a key, an empty list if it is not set",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			value, err := db.Get(parseArg(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), value)
			return nil
		}),
	}

	setCmd := &cobra.Command{
		Use:   "set [key] [value]",
		Short: "Sets the value for a key",
		Args:  cobra.ExactArgs(2),
		RunE: withWriteStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			return db.Set(parseArg(args[0]), parseArg(args[1]))
		}),
	}

	delCmd := &cobra.Command{
		Use:   "del [key]",
		Short: "Deletes a key value pair",
		Args:  cobra.ExactArgs(1),
		RunE: withWriteStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			return db.Delete(parseArg(args[0]))
		}),
	}

	hasCmd := &cobra.Command{
		Use:   "has [key]",
		Short: "Checks if a key exists",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			found, err := db.Contains(parseArg(args[0]))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), found)
			return nil
		}),
	}

	lenCmd := &cobra.Command{
		Use:   "len",
		Short: "Prints the number of stored keys",
		Args:  cobra.NoArgs,
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			n, err := db.Len()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}

	keysCmd := &cobra.Command{
		Use:   "keys",
		Short: "Lists the stored keys in storage order",
		Args:  cobra.NoArgs,
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			it, err := db.Keys()
			if err != nil {
				return err
			}
			defer it.Close()

			for it.Next() {
				fmt.Fprintln(cmd.OutOrStdout(), it.Key())
			}
			return it.Err()
		}),
	}

	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Lists the stored key value pairs in storage order",
		Args:  cobra.NoArgs,
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			it, err := db.Items()
			if err != nil {
				return err
			}
			defer it.Close()

			for it.Next() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", it.Key(), it.Value())
			}
			return it.Err()
		}),
	}

	appendCmd := &cobra.Command{
		Use:   "append [key] [value] [key value]...",
		Short: "Appends values to the lists stored under keys, atomically",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return fmt.Errorf("expected key value pairs, got %d arguments", len(args))
			}
			return nil
		},
		RunE: withWriteStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			var keys, values []string
			for i := 0; i < len(args); i += 2 {
				keys = append(keys, args[i])
				values = append(values, args[i+1])
			}
			return db.SetMulti(parseArgs(keys), parseArgs(values))
		}),
	}

	mgetCmd := &cobra.Command{
		Use:   "mget [key]...",
		Short: "Reads the values of several keys from one snapshot",
		Args:  cobra.MinimumNArgs(1),
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			it, err := db.GetMulti(parseArgs(args))
			if err != nil {
				return err
			}
			defer it.Close()

			for it.Next() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", it.Key(), it.Value())
			}
			return it.Err()
		}),
	}

	flushCmd := &cobra.Command{
		Use:   "flush",
		Short: "Forces committed writes to disk",
		Args:  cobra.NoArgs,
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			return db.Flush()
		}),
	}

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Prints store statistics",
		Args:  cobra.NoArgs,
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			stats, err := db.Stats()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "path=%s\n", stats.Path)
			fmt.Fprintf(out, "engine=%s\n", stats.Engine)
			fmt.Fprintf(out, "compression=%s\n", stats.Compression)
			fmt.Fprintf(out, "entries=%d\n", stats.Entries)
			fmt.Fprintf(out, "size=%d\n", stats.Size)
			fmt.Fprintf(out, "max_size=%d\n", stats.MaxSize)

			if withMetrics, _ := cmd.Flags().GetBool("metrics"); withMetrics {
				db.WritePrometheus(out)
			}
			return nil
		}),
	}
	statsCmd.Flags().Bool("metrics", false, WrapString("Also print the metrics of this run in Prometheus text format"))

	exportCmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Exports all key value pairs to a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			return db.ExportJSON(args[0])
		}),
	}

	importCmd := &cobra.Command{
		Use:   "import [file]",
		Short: "Imports key value pairs from a JSON file written by export",
		Args:  cobra.ExactArgs(1),
		RunE: withWriteStore(v, func(cmd *cobra.Command, args []string, db *packstore.DB) error {
			return db.ImportJSON(args[0])
		}),
	}

	return []*cobra.Command{
		getCmd, setCmd, delCmd, hasCmd, lenCmd, keysCmd, itemsCmd,
		appendCmd, mgetCmd, flushCmd, statsCmd, exportCmd, importCmd,
	}
}
