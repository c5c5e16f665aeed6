// Package errs holds the error taxonomy shared by the upsert engine.
//
// Every error returned by the engine can be classified with errors.Is against one
// of the three kinds below. Configuration errors are raised before any database
// round trip and are never worth retrying.
package errs

import (
	"github.com/pkg/errors"
)

// Error kinds.
var (
	ErrConfiguration      = errors.New("configuration error")
	ErrDatabaseConnection = errors.New("database connection error")
	ErrDatabaseOperation  = errors.New("database operation error")
)

// Configuration errors.
var (
	ErrInvalidTableName        = errors.WithMessage(ErrConfiguration, "invalid table name")
	ErrTableNotFound           = errors.WithMessage(ErrConfiguration, "table not found")
	ErrUnknownColumn           = errors.WithMessage(ErrConfiguration, "unknown column")
	ErrAmbiguousMatchQualifier = errors.WithMessage(ErrConfiguration, "ambiguous match qualifier")
	ErrUnmappedIdentity        = errors.WithMessage(ErrConfiguration, "unmapped identity property")
	ErrUnsupportedDialect      = errors.WithMessage(ErrConfiguration, "unsupported dialect")
	ErrInvalidEntity           = errors.WithMessage(ErrConfiguration, "invalid entity")
)

// ErrNonUniqueMatch is reported when one source row matched several target rows
// and the match qualifier does not tolerate it.
var ErrNonUniqueMatch = errors.WithMessage(ErrDatabaseOperation, "non-unique match")

// ErrIdentityWriteBack is reported when a merged identity cannot be stored on its
// record, for example because the value overflows the field.
var ErrIdentityWriteBack = errors.WithMessage(ErrDatabaseOperation, "identity write-back")

// Error binds an error kind to the underlying cause so both are visible to errors.Is.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return e.Kind.Error() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Connection wraps err as a database connection error.
func Connection(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrDatabaseConnection, Err: errors.WithMessage(err, msg)}
}

// Operation wraps err as a database operation error.
func Operation(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: ErrDatabaseOperation, Err: errors.WithMessage(err, msg)}
}

// Configf returns kind annotated with a formatted message. kind should be one of the
// configuration sentinels above.
func Configf(kind error, format string, args ...any) error {
	return errors.WithMessagef(kind, format, args...)
}

// IsConfiguration reports whether err was raised before touching the database.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
