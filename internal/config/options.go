package config

import (
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

// Detail levels for schema loading.
const (
	DetailBasic    = "basic"
	DetailExtended = "extended"
)

// ErrDefaultsAlreadySet is returned when SetDefaults is called more than once.
var ErrDefaultsAlreadySet = errors.New("config: defaults already set")

// Options tunes a single upsert call. Zero values are not meaningful on their own;
// start from Defaults() and override.
type Options struct {
	// Per-batch bulk-load timeout. 0 disables the timeout.
	BatchTimeout time.Duration `mapstructure:"batch_timeout" validate:"gte=0"`

	// Sort the merge source by the synthetic row number.
	RowNumberOrdering bool `mapstructure:"row_number_ordering"`

	// Schema used when a table name carries none.
	DefaultSchema string `mapstructure:"default_schema" validate:"required"`

	// Catalog detail level loaded for the target table.
	DetailLevel string `mapstructure:"detail_level" validate:"oneof=basic extended"`

	// Bulk copy hints.
	BulkRowsPerBatch int  `mapstructure:"bulk_rows_per_batch" validate:"gte=0"`
	Tablock          bool `mapstructure:"tablock"`
}

var validate = validator.New()

// Validate checks the option values.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return errors.Wrap(err, "invalid options")
	}
	return nil
}

// Builtin returns the library defaults.
func Builtin() Options {
	return Options{
		BatchTimeout:      30 * time.Second,
		RowNumberOrdering: true,
		DefaultSchema:     "dbo",
		DetailLevel:       DetailBasic,
	}
}

var (
	mu       sync.RWMutex
	defaults = Builtin()
	locked   bool
)

// SetDefaults installs process-wide defaults. It may be called once, normally at
// process start; later calls fail with ErrDefaultsAlreadySet.
func SetDefaults(o Options) error {
	if err := o.Validate(); err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	if locked {
		return ErrDefaultsAlreadySet
	}
	defaults = o
	locked = true
	return nil
}

// Defaults returns a copy of the effective process-wide defaults.
func Defaults() Options {
	mu.RLock()
	defer mu.RUnlock()
	return defaults
}
