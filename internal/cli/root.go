// Package cli provides the linsql operator command line.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/dialect"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

type rootOptions struct {
	configFile string
	dialect    string
	verbose    bool
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "linsql",
		Short: "linsql - typed SQL compilation and execution",
		Long: `linsql compiles typed query trees to MariaDB, PostgreSQL and H2 SQL
and executes them over a bounded connection pool.

These commands check connectivity and show how statements render per dialect.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "config file (YAML)")
	pf.StringVar(&opts.dialect, "dialect", "", "SQL dialect (mariadb|postgres|h2)")
	pf.String("url", "", "database URL or DSN")
	pf.Int("pool-size", 0, "maximum active connections")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	_ = rootCmd.RegisterFlagCompletionFunc("dialect", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, 3)
		for _, d := range dialect.All() {
			names = append(names, d.Name())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newPingCommand(opts))
	rootCmd.AddCommand(newTypesCommand(opts))
	rootCmd.AddCommand(newRenderCommand(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig layers the config file, LINSQL_* variables and flags.
func (o *rootOptions) loadConfig(cmd *cobra.Command) (*connector.Config, error) {
	return connector.Load(o.configFile, cmd.Root().PersistentFlags())
}

// dialects returns the selected dialect, or all of them when none is set.
func (o *rootOptions) dialects() ([]dialect.Dialect, error) {
	if o.dialect == "" {
		return dialect.All(), nil
	}
	d, err := dialect.ByName(o.dialect)
	if err != nil {
		return nil, err
	}
	return []dialect.Dialect{d}, nil
}
