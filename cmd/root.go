package cmd

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"db-upsert/internal/config"
	"db-upsert/internal/conn"
	"db-upsert/internal/dialect"
	"db-upsert/internal/engine"
	"db-upsert/internal/logger"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	dsn        string
	driverFlag string
	cfgFile    string

	DB         *sql.DB
	DriverName string
	Engine     *engine.Engine
	Log        *slog.Logger

	logCloser io.Closer
)

var RootCmd = &cobra.Command{
	Use:   "db-upsert",
	Short: "Bulk upsert records into SQL Server tables",
	Long: `
  ____  ____    _   _ ____  ____  _____ ____ _____
 |  _ \| __ )  | | | |  _ \/ ___|| ____|  _ \_   _|
 | | | |  _ \  | | | | |_) \___ \|  _| | |_) || |
 | |_| | |_) | | |_| |  __/ ___) | |___|  _ < | |
 |____/|____/   \___/|_|   |____/|_____|_| \_\|_|

DB UPSERT - staging + MERGE bulk upserts with identity write-back
`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var logOpts logger.Options
		if err := viper.UnmarshalKey("log", &logOpts); err != nil {
			return errors.Wrap(err, "failed to parse log config")
		}
		l, closer, err := logger.New(&logOpts)
		if err != nil {
			return err
		}
		Log, logCloser = l, closer
		slog.SetDefault(l)

		opts := config.Builtin()
		if err := viper.UnmarshalKey("settings", &opts); err != nil {
			return errors.Wrap(err, "failed to parse settings")
		}
		if err := config.SetDefaults(opts); err != nil {
			return err
		}

		dbc, err := resolveDBConfig()
		if err != nil {
			return err
		}
		DriverName = dbc.Driver

		DB, err = sql.Open(dbc.Driver, dbc.DSN)
		if err != nil {
			return errors.Wrap(err, "failed to open db")
		}
		if err := DB.PingContext(cmd.Context()); err != nil {
			return errors.Wrap(err, "failed to connect to db")
		}

		d, err := dialect.GetDialect(dbc.Driver)
		if err != nil {
			return err
		}
		provider := conn.NewDBProvider(DB, conn.Identify(dbc.Driver, dbc.DSN))
		Engine = engine.New(provider, d, engine.Deps{Logger: Log})
		Log.Info("connected", "database", dbc.Name, "driver", dbc.Driver, "dialect", d.Name())
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if DB != nil {
			DB.Close()
		}
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// resolveDBConfig prefers the active entry of the databases list and falls back to
// the --dsn/--driver flags.
func resolveDBConfig() (*DBConfig, error) {
	if active, err := GetActiveDBConfig(); err == nil {
		return active, nil
	} else if viper.GetString("database.dsn") == "" {
		return nil, err
	}

	c := &DBConfig{
		Name:   "cli",
		Driver: viper.GetString("database.driver"),
		DSN:    viper.GetString("database.dsn"),
		Active: true,
	}
	if c.Driver == "" {
		c.Driver = detectDriver(c.DSN)
	}
	return c, nil
}

func detectDriver(dsn string) string {
	switch {
	case strings.HasPrefix(dsn, "sqlserver://") || strings.Contains(strings.ToLower(dsn), "server="):
		return "sqlserver"
	case strings.HasPrefix(dsn, "oracle://"):
		return "oracle"
	case strings.Contains(dsn, "postgres") || strings.Contains(dsn, "sslmode"):
		return "postgres"
	default:
		return "mysql"
	}
}

func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./db-upsert.yaml)")
	RootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Database Source Name (DSN)")
	RootCmd.PersistentFlags().StringVar(&driverFlag, "driver", "", "database/sql driver name (sqlserver, postgres, mysql, oracle)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	viper.BindPFlag("database.dsn", RootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("database.driver", RootCmd.PersistentFlags().Lookup("driver"))
	viper.BindPFlag("log.level", RootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// executable directory first, then the working directory
		if ex, err := os.Executable(); err == nil {
			viper.AddConfigPath(filepath.Dir(ex))
		}
		viper.AddConfigPath(".")

		viper.SetConfigName("db-upsert")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DB_UPSERT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
