package cmd

import (
	"fmt"
	"io"
	"strings"

	"db-upsert/internal/schema"

	"github.com/spf13/cobra"
)

var (
	describeExtended bool
	describeReload   bool
)

var describeCmd = &cobra.Command{
	Use:   "describe TABLE",
	Short: "Print the catalog definition the engine uses for a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		level := schema.Basic
		if describeExtended {
			level = schema.Extended
		}
		def, err := Engine.Describe(cmd.Context(), args[0], level, describeReload)
		if err != nil {
			return err
		}
		printDefinition(cmd.OutOrStdout(), def)
		return nil
	},
}

func init() {
	RootCmd.AddCommand(describeCmd)

	describeCmd.Flags().BoolVar(&describeExtended, "extended", false, "Include foreign keys and inbound references")
	describeCmd.Flags().BoolVar(&describeReload, "reload", false, "Bypass the schema cache")
}

func printDefinition(w io.Writer, def *schema.TableDefinition) {
	fmt.Fprintf(w, "📋 %s (%s)\n", def.Name.FullName(), def.DetailLevel)
	for _, c := range def.Columns {
		var flags []string
		if c.IsIdentity {
			flags = append(flags, "IDENTITY")
		}
		if !c.IsNullable {
			flags = append(flags, "NOT NULL")
		}
		fmt.Fprintf(w, "  [%02d] %-24s %-18s %s\n", c.Ordinal, c.Name, c.SQLType(), strings.Join(flags, " "))
	}
	if def.PrimaryKey != nil {
		fmt.Fprintf(w, "  PK  %s (%s)\n", def.PrimaryKey.Name, strings.Join(def.PrimaryKey.Columns, ", "))
	}
	for _, k := range def.UniqueKeys {
		fmt.Fprintf(w, "  UQ  %s (%s)\n", k.Name, strings.Join(k.Columns, ", "))
	}
	for _, fk := range def.ForeignKeys {
		fmt.Fprintf(w, "  FK  %s (%s) -> %s.%s (%s)\n", fk.Name, strings.Join(fk.Columns, ", "),
			fk.ReferencedSchema, fk.ReferencedTable, strings.Join(fk.ReferencedColumns, ", "))
	}
	for _, fk := range def.ReferencedBy {
		fmt.Fprintf(w, "  REF %s.%s (%s) via %s\n", fk.Schema, fk.Table, strings.Join(fk.Columns, ", "), fk.Name)
	}
}
