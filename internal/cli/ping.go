package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/connector"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

func newPingCommand(opts *rootOptions) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "ping",
		Short: "Check that the database accepts connections",
		Long: `Load the configuration, acquire one pooled connection, run SELECT 1
and print the pool statistics.`,
		Example: `  linsql ping --dialect postgres --url postgres://app@localhost/app
  LINSQL_URL=root:pw@tcp(localhost:3306)/app linsql ping --dialect mariadb`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			mgr, err := connector.Open(ctx, *cfg, connector.WithLogger(opts.logger(cmd.ErrOrStderr())))
			if err != nil {
				return fmt.Errorf("connect: %w", err)
			}
			defer mgr.Close(context.Background())

			elapsed, err := ping(ctx, mgr)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stats := mgr.Stats()
			_, _ = fmt.Fprintf(out, "OK %s in %s\n", mgr.Dialect().Name(), elapsed.Round(time.Microsecond))
			_, _ = fmt.Fprintf(out, "pool: size=%d active=%d open=%d idle=%d acquired=%d retries=%d\n",
				stats.PoolSize, stats.Active, stats.Open, stats.Idle, stats.Acquired, stats.Retries)
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "overall deadline")
	return cmd
}

// ping runs SELECT 1 on a pooled connection and returns the round trip.
func ping(ctx context.Context, mgr *connector.Manager) (time.Duration, error) {
	stmt, err := visitor.Compile(ast.NewBuilder(ast.MustCatalog()).Select(ast.Lit(1)), mgr.Dialect())
	if err != nil {
		return 0, err
	}

	start := time.Now()
	err = mgr.WithConnection(ctx, func(h *connector.Handle) error {
		rows, err := h.Query(ctx, stmt)
		if err != nil {
			return err
		}
		defer rows.Close()
		if !rows.Next() {
			if err := rows.Err(); err != nil {
				return err
			}
			return fmt.Errorf("SELECT 1 returned no rows")
		}
		return rows.Err()
	})
	return time.Since(start), err
}
