package cli

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/packstore/packstore"
	"github.com/packstore/packstore/codec"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// setupStoreFlags adds the flags that configure the opened store
func setupStoreFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()

	flags.String("config", "", WrapString("Configuration file (yaml, toml or json) read before the environment"))
	flags.String("path", "packstore-db", WrapString("Directory of the store"))
	flags.String("engine", "bolt", WrapString("Storage engine (bolt, badger, leveldb, pebble)"))
	flags.String("compression", "zstd", WrapString("Value compression (zstd, lz4, snappy, none). Must match the one the store was written with"))
	flags.String("key-encoding", "msgpack", WrapString("Key encoding (msgpack, ordered). Must match the one the store was written with"))
	flags.Int64("max-size", packstore.DefaultMaxSize, WrapString("Upper bound of the store size in bytes"))
	flags.Bool("readonly", false, WrapString("Open the store read-only"))
	flags.Bool("sync", false, WrapString("Sync every commit to disk"))
	flags.Duration("lock-timeout", 0, WrapString("How long to wait for the store file lock, 0 waits forever"))
	flags.String("log-level", "warn", WrapString("Log level (trace, debug, info, warn, error)"))
	flags.String("log-format", "console", WrapString("Log format (console, json)"))
}

// initConfig loads env files and binds the flags of cmd to v. Flags take
// precedence over PACKSTORE_* environment variables, which take precedence over
// the configuration file.
func initConfig(v *viper.Viper, cmd *cobra.Command) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	v.SetEnvPrefix("packstore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", file, err)
		}
	}
	return nil
}

// storeOptions translates the configuration in v into store options
func storeOptions(v *viper.Viper, log zerolog.Logger) ([]packstore.Option, error) {
	engine, err := packstore.ParseEngine(v.GetString("engine"))
	if err != nil {
		return nil, err
	}
	compression, err := codec.ParseCompression(v.GetString("compression"))
	if err != nil {
		return nil, err
	}
	keyEncoding, err := codec.ParseKeyEncoding(v.GetString("key-encoding"))
	if err != nil {
		return nil, err
	}

	return []packstore.Option{
		packstore.WithEngine(engine),
		packstore.WithCompression(compression),
		packstore.WithKeyEncoding(keyEncoding),
		packstore.WithMaxSize(v.GetInt64("max-size")),
		packstore.WithReadOnly(v.GetBool("readonly")),
		packstore.WithSync(v.GetBool("sync")),
		packstore.WithLockTimeout(v.GetDuration("lock-timeout")),
		packstore.WithLogger(log),
	}, nil
}

// parseArg reads a command line argument as JSON. Arguments that are not valid
// JSON are taken as plain strings, so that `get user` works like `get '"user"'`.
func parseArg(arg string) codec.Value {
	v, err := packstore.ParseJSON([]byte(arg))
	if err != nil {
		return codec.String(arg)
	}
	return v
}

func parseArgs(args []string) []interface{} {
	values := make([]interface{}, len(args))
	for i, arg := range args {
		values[i] = parseArg(arg)
	}
	return values
}
