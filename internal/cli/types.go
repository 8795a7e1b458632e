package cli

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/Konsultn-Engineering/linsql/ast"
)

func newTypesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "Show the native column type of each semantic type",
		Long: `Print the table of semantic types and the native column type each
dialect declares for it. Types a dialect cannot store show as "-".`,
		Example: `  linsql types
  linsql types --dialect h2`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialects, err := opts.dialects()
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.Style().Format.Header = text.FormatDefault

			header := table.Row{"Type"}
			for _, d := range dialects {
				header = append(header, d.Name())
			}
			t.AppendHeader(header)

			for _, st := range ast.SemanticTypes {
				row := table.Row{st.String()}
				for _, d := range dialects {
					native, err := d.MapType(st)
					if err != nil {
						native = "-"
					}
					row = append(row, native)
				}
				t.AppendRow(row)
			}
			t.Render()
			return nil
		},
	}
}
