package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/linsql/ast"
	"github.com/Konsultn-Engineering/linsql/visitor"
)

var sampleCatalog = ast.MustCatalog(
	ast.TableMeta{Name: "users", Columns: []ast.ColumnMeta{
		{Name: "id", Type: ast.TypeInt, PrimaryKey: true},
		{Name: "name", Type: ast.TypeString},
		{Name: "email", Type: ast.TypeString, Nullable: true},
	}},
)

// sampleQuery is a filtered, paginated read, which is where the dialects
// differ most.
func sampleQuery(limit, offset int) ast.Node {
	return ast.NewBuilder(sampleCatalog).
		Select("id", "name").
		From("users").
		Where(ast.And(
			ast.Like("name", ast.NamedParam("pattern", ast.TypeString)),
			ast.IsNotNull("email"),
		)).
		OrderBy("id", ast.Asc).
		Limit(limit).
		Offset(offset)
}

func newRenderCommand(opts *rootOptions) *cobra.Command {
	var limit, offset int
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the sample paginated query for each dialect",
		Long: `Compile a sample filtered and paginated SELECT over a users table and
print the SQL text and parameter slots produced for each dialect.`,
		Example: `  linsql render
  linsql render --dialect h2 --limit 5 --offset 10`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialects, err := opts.dialects()
			if err != nil {
				return err
			}
			node := sampleQuery(limit, offset)

			out := cmd.OutOrStdout()
			for _, d := range dialects {
				stmt, err := visitor.Compile(node, d)
				if err != nil {
					return fmt.Errorf("%s: %w", d.Name(), err)
				}
				_, _ = fmt.Fprintf(out, "-- %s\n%s\n", d.Name(), stmt.SQL())
				if opts.verbose {
					renderSlots(cmd, stmt)
				}
				_, _ = fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "page size")
	cmd.Flags().IntVar(&offset, "offset", 20, "rows to skip")
	return cmd
}

func renderSlots(cmd *cobra.Command, stmt *visitor.CompiledStatement) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.Style().Format.Header = text.FormatDefault
	t.AppendHeader(table.Row{"#", "Name", "Type", "Bound"})
	for i, s := range stmt.Params() {
		t.AppendRow(table.Row{i + 1, s.Name, s.Type.String(), s.Bound})
	}
	t.Render()
}
