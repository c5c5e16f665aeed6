package cmd

import (
	"context"
	"fmt"
	"time"

	"db-upsert/internal/engine"
	"db-upsert/internal/errs"
	"db-upsert/internal/retry"
	"db-upsert/internal/schema"
	"db-upsert/internal/seed"

	"github.com/gosuri/uiprogress"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	fillTable   string
	fillCount   int
	fillBatch   int
	fillCreate  bool
	fillRetries int
	fillSeed    int64
	fillNoTouch bool
)

type passReport struct {
	name     string
	batches  int
	inserted int
	updated  int
	elapsed  time.Duration
}

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Upsert generated key/value records, then upsert them again as updates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		table := viper.GetString("settings.table")
		count := viper.GetInt("settings.default_count")
		batchSize := viper.GetInt("settings.batch_size")
		if batchSize <= 0 {
			return errors.Errorf("batch size must be positive, got %d", batchSize)
		}

		if fillCreate {
			name, err := schema.ParseTableName(table, Engine.Dialect().DefaultSchema())
			if err != nil {
				return err
			}
			if _, err := DB.ExecContext(ctx, seed.CreateTableSQL(Engine.Dialect(), name)); err != nil {
				return errors.Wrapf(err, "failed to create %s", name)
			}
			Log.Info("table ready", "table", name.FullName())
		}

		def, err := Engine.Describe(ctx, table, schema.Basic, fillCreate)
		if err != nil {
			return err
		}
		if capped, ok := seed.MaxRows(def, count); !ok {
			fmt.Printf("[LIMIT] Table %s: IDENTITY column %s (%s) limits max rows to %d\n",
				def.Name.FullName(), def.Identity.Name, def.Identity.DataType, capped)
			count = capped
		}

		gen := seed.NewGenerator(fillSeed, time.Now().Format("060102150405"))
		gen.SizeFor(def)
		items := gen.Items(count)

		fmt.Printf("🦅 Upserting %d records into %s (batch %d)\n", count, def.Name.FullName(), batchSize)
		reports := []passReport{}

		report, err := runPass(ctx, "insert", table, items, batchSize)
		if err != nil {
			return err
		}
		reports = append(reports, report)

		if !fillNoTouch {
			gen.Touch(items)
			report, err = runPass(ctx, "update", table, items, batchSize)
			if err != nil {
				return err
			}
			reports = append(reports, report)
		}

		fmt.Println("\n📊 Summary Report:")
		for i, r := range reports {
			fmt.Printf("[%02d/%02d] %-8s : %d inserted, %d updated in %d batches (%s)\n",
				i+1, len(reports), r.name, r.inserted, r.updated, r.batches, r.elapsed.Round(time.Millisecond))
		}
		fmt.Println("--------------------------------------------------")
		if count > 0 {
			fmt.Printf("Identity range: %d .. %d\n", items[0].ID, items[len(items)-1].ID)
		}
		return nil
	},
}

func runPass(ctx context.Context, name, table string, items []seed.Item, batchSize int) (passReport, error) {
	r := passReport{name: name}
	if len(items) == 0 {
		return r, nil
	}
	start := time.Now()

	progress := uiprogress.New()
	progress.Start()
	bar := progress.AddBar(len(items)).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		return fmt.Sprintf("%-8s", name)
	})
	defer progress.Stop()

	for lo := 0; lo < len(items); lo += batchSize {
		hi := min(lo+batchSize, len(items))
		res, err := upsertBatch(ctx, table, items[lo:hi])
		if err != nil {
			return r, errors.WithMessagef(err, "%s pass failed at records %d..%d", name, lo+1, hi)
		}
		r.batches++
		r.inserted += res.Inserted
		r.updated += res.Updated
		bar.Set(hi)
	}
	r.elapsed = time.Since(start)
	return r, nil
}

// upsertBatch runs one batch in its own transaction. A failed attempt rolls back and the
// whole batch is retried with a fresh table definition.
func upsertBatch(ctx context.Context, table string, batch []seed.Item) (*engine.Result, error) {
	return retry.RunWithBackoff(ctx, fillRetries, func(ctx context.Context, attempt int) (*engine.Result, error) {
		tx, err := DB.BeginTx(ctx, nil)
		if err != nil {
			return nil, errs.Connection(err, "failed to begin transaction")
		}
		opts := []engine.Option{engine.WithTable(table)}
		if attempt > 0 {
			Log.Warn("retrying batch", "table", table, "attempt", attempt, "records", len(batch))
			opts = append(opts, engine.WithForceReload())
		}

		_, res, err := engine.UpsertWithResult(ctx, Engine, tx, batch, opts...)
		if err != nil {
			tx.Rollback()
			return nil, err
		}
		if err := tx.Commit(); err != nil {
			return nil, errs.Operation(err, "failed to commit batch")
		}
		return res, nil
	}, nil, 200*time.Millisecond)
}

func init() {
	RootCmd.AddCommand(fillCmd)

	fillCmd.Flags().StringVarP(&fillTable, "table", "t", "dbo.Items", "Target table")
	fillCmd.Flags().IntVar(&fillCount, "count", 1000, "Number of records to generate (overrides config)")
	fillCmd.Flags().IntVar(&fillBatch, "batch", 500, "Records per upsert call")
	fillCmd.Flags().BoolVar(&fillCreate, "create", false, "Create the sample table when it is missing")
	fillCmd.Flags().IntVar(&fillRetries, "retries", 2, "Retries per batch")
	fillCmd.Flags().Int64Var(&fillSeed, "seed", 0, "Faker seed (0 = random)")
	fillCmd.Flags().BoolVar(&fillNoTouch, "no-update", false, "Skip the second, update-only pass")

	viper.BindPFlag("settings.table", fillCmd.Flags().Lookup("table"))
	viper.BindPFlag("settings.default_count", fillCmd.Flags().Lookup("count"))
	viper.BindPFlag("settings.batch_size", fillCmd.Flags().Lookup("batch"))
}
