// Package store persists canonical providers and cached geocode lookups.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// Match is a stored provider found by identity key.
type Match struct {
	ID         int64
	RecordHash string
}

// Store defines the persistence interface for the provider ETL.
type Store interface {
	// Begin opens a write transaction. The ETL holds one per source layout.
	Begin(ctx context.Context) (Tx, error)

	// Get returns the provider with the given id, or nil if absent.
	Get(ctx context.Context, id int64) (*model.Provider, error)

	// CountBySource returns stored row counts keyed by source_file.
	CountBySource(ctx context.Context) (map[string]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Tx is a write transaction. Geocode cache entries written through it
// become durable with the providers of the same layout.
type Tx interface {
	// FindByIdentity returns the lowest-id provider whose address1, city
	// and state equal key's. Keys with a null component never match.
	FindByIdentity(ctx context.Context, key model.IdentityKey) (*Match, error)

	// Insert stores p as a new row and returns its id. Every column is
	// written, null fields as explicit NULLs.
	Insert(ctx context.Context, p *model.Provider) (int64, error)

	// Update overwrites every column of row id with p's values.
	Update(ctx context.Context, id int64, p *model.Provider) error

	geocode.Cache

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Open connects to the store named by driver ("sqlite" or "postgres").
// poolCfg tunes the Postgres pool and may be nil.
func Open(ctx context.Context, driver, dsn string, poolCfg *PoolConfig) (Store, error) {
	switch driver {
	case "", "sqlite":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn, poolCfg)
	default:
		return nil, eris.Errorf("store: unknown driver %q", driver)
	}
}
