package cmd

import (
	"context"
	"fmt"
	"strings"

	"db-upsert/internal/dialect"
	"db-upsert/internal/schema"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cleanTables []string

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete all rows of the given tables, children first",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := cleanTables
		if len(names) == 0 {
			names = viper.GetStringSlice("settings.tables")
		}
		if len(names) == 0 {
			return errors.New("no tables to clean (use --tables or settings.tables)")
		}

		ctx := cmd.Context()
		var defs []*schema.TableDefinition
		for _, n := range names {
			def, err := Engine.Describe(ctx, n, schema.Extended, true)
			if err != nil {
				return err
			}
			defs = append(defs, def)
		}
		return cleanDatabase(ctx, schema.SortByDependency(defs), Engine.Dialect())
	},
}

func init() {
	RootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringSliceVarP(&cleanTables, "tables", "t", []string{}, "Tables to clean (comma-separated)")
}

// cleanDatabase deletes tables in reverse dependency order in one transaction and
// reseeds identities on SQL Server.
func cleanDatabase(ctx context.Context, defs []*schema.TableDefinition, d dialect.Dialect) error {
	tx, err := DB.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin cleaning transaction")
	}
	defer func() {
		if tx != nil {
			tx.Rollback()
		}
	}()

	_, isMSSQL := d.(*dialect.MSSQLDialect)
	total := len(defs)
	for i := total - 1; i >= 0; i-- {
		def := defs[i]
		quoted := dialect.QuoteQualified(d, def.Name.Schema, def.Name.Table)

		res, err := tx.ExecContext(ctx, "DELETE FROM "+quoted)
		if err != nil {
			return errors.Wrapf(err, "failed to clean %s", def.Name.FullName())
		}
		deleted, _ := res.RowsAffected()

		if isMSSQL && def.Identity != nil {
			literal := strings.ReplaceAll(quoted, "'", "''")
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("DBCC CHECKIDENT ('%s', RESEED, 0)", literal)); err != nil {
				Log.Warn("failed to reseed identity", "table", def.Name.FullName(), "error", err)
			}
		}
		Log.Info("table cleaned", "table", def.Name.FullName(), "rows", deleted, "step", fmt.Sprintf("%d/%d", total-i, total))
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit cleaning transaction")
	}
	tx = nil

	fmt.Println("🧹 Database Cleaned Successfully!")
	return nil
}
