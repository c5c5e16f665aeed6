package cmd

import (
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Active bool   `mapstructure:"active"`
}

// GetActiveDBConfig returns the single entry of the databases list marked active.
func GetActiveDBConfig() (*DBConfig, error) {
	var configs []DBConfig
	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, errors.Wrap(err, "failed to parse databases config")
	}
	return activeConfig(configs)
}

func activeConfig(configs []DBConfig) (*DBConfig, error) {
	var active *DBConfig
	count := 0
	for i := range configs {
		if configs[i].Active {
			active = &configs[i]
			count++
		}
	}

	if count == 0 {
		return nil, errors.New("no active database found in config (set active: true)")
	}
	if count > 1 {
		return nil, errors.New("multiple active databases found (only one can be active)")
	}
	if active.Driver == "" || active.DSN == "" {
		return nil, errors.Errorf("database %q needs both driver and dsn", active.Name)
	}
	return active, nil
}
