// Package conn defines how the engine reaches the database. The engine never opens,
// commits or rolls back transactions itself; providers only hand out something to
// run statements on, plus a stable identity used to partition the schema cache.
package conn

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Querier is the statement surface shared by *sql.DB, *sql.Conn and *sql.Tx.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Connection is a Querier bound to a connection identity.
type Connection interface {
	Querier
	UniqueIdentifier() string
	Close() error
}

// Provider hands out connections.
type Provider interface {
	NewConnection(ctx context.Context) (Connection, error)
	UniqueIdentifier() string
}

// Identify derives a connection identity from a DSN without exposing it.
func Identify(driver, dsn string) string {
	sum := sha256.Sum256([]byte(driver + "|" + dsn))
	return driver + ":" + hex.EncodeToString(sum[:8])
}

// DBProvider opens dedicated connections from a pool.
type DBProvider struct {
	db *sql.DB
	id string
}

func NewDBProvider(db *sql.DB, id string) *DBProvider {
	return &DBProvider{db: db, id: id}
}

func (p *DBProvider) UniqueIdentifier() string { return p.id }

// DB exposes the pool so callers can begin their own transactions.
func (p *DBProvider) DB() *sql.DB { return p.db }

func (p *DBProvider) NewConnection(ctx context.Context) (Connection, error) {
	c, err := p.db.Conn(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open connection")
	}
	return &dbConn{Conn: c, id: p.id}, nil
}

type dbConn struct {
	*sql.Conn
	id string
}

func (c *dbConn) UniqueIdentifier() string { return c.id }

// TxProvider proxies an already-open transaction. Connections it returns share the
// transaction and closing them is a no-op; the owner commits or rolls back.
type TxProvider struct {
	tx *sql.Tx
	id string
}

func NewTxProvider(tx *sql.Tx, id string) *TxProvider {
	return &TxProvider{tx: tx, id: id}
}

func (p *TxProvider) UniqueIdentifier() string { return p.id }

func (p *TxProvider) NewConnection(ctx context.Context) (Connection, error) {
	if p.tx == nil {
		return nil, errors.New("no transaction to proxy")
	}
	return &txConn{Tx: p.tx, id: p.id}, nil
}

type txConn struct {
	*sql.Tx
	id string
}

func (c *txConn) UniqueIdentifier() string { return c.id }
func (c *txConn) Close() error             { return nil }
