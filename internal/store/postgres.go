package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/childcare-etl/internal/db"
	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters. Zero values
// keep the defaults.
type PoolConfig struct {
	MaxConns int32
	MinConns int32
}

// applyPoolConfig sets pool limits on cfg. Unset values default to 4 max
// and 1 min connections.
func applyPoolConfig(cfg *pgxpool.Config, poolCfg *PoolConfig) {
	cfg.MaxConns = 4
	cfg.MinConns = 1
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			cfg.MaxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			cfg.MinConns = poolCfg.MinConns
		}
	}
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	applyPoolConfig(pgxCfg, poolCfg)

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS child_care_providers (
	id                          BIGSERIAL PRIMARY KEY,
	accepts_financial_aid       BOOLEAN NOT NULL DEFAULT false,
	ages_served                 TEXT,
	capacity                    BIGINT,
	certificate_expiration_date DATE,
	city                        TEXT,
	address1                    TEXT,
	address2                    TEXT,
	company                     TEXT,
	phone                       TEXT,
	phone2                      TEXT,
	county                      TEXT,
	curriculum_type             TEXT,
	email                       TEXT,
	language                    TEXT,
	license_status              TEXT,
	license_issued              DATE,
	license_number              TEXT,
	license_renewed             DATE,
	license_type                TEXT,
	contact_name                TEXT,
	max_age                     BIGINT,
	min_age                     BIGINT,
	operator                    TEXT,
	schedule                    TEXT,
	state                       TEXT,
	title                       TEXT,
	website_address             TEXT,
	zip                         TEXT,
	facility_type               TEXT,
	source_file                 TEXT NOT NULL,
	etl_timestamp               TIMESTAMPTZ NOT NULL,
	record_hash                 TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_providers_identity ON child_care_providers(address1, city, state);
CREATE INDEX IF NOT EXISTS idx_providers_source_file ON child_care_providers(source_file);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	region       TEXT NOT NULL DEFAULT '',
	locality     TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	cached_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: begin")
	}
	return &postgresTx{tx: tx}, nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (*model.Provider, error) {
	var p model.Provider
	err := s.pool.QueryRow(ctx, selectByIDSQL(dollar), id).Scan(p.ScanDest()...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get provider %d", id)
	}
	return &p, nil
}

func (s *PostgresStore) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, countBySourceSQL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by source")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan count")
		}
		counts[source] = int(n)
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count rows")
}

type postgresTx struct {
	tx pgx.Tx
}

func (t *postgresTx) FindByIdentity(ctx context.Context, key model.IdentityKey) (*Match, error) {
	if !key.Complete() {
		return nil, nil
	}
	var m Match
	err := t.tx.QueryRow(ctx, findByIdentitySQL(dollar), identityArgs(key)...).Scan(&m.ID, &m.RecordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: find provider %s", key)
	}
	return &m, nil
}

func (t *postgresTx) Insert(ctx context.Context, p *model.Provider) (int64, error) {
	var id int64
	if err := t.tx.QueryRow(ctx, insertSQL(dollar)+" RETURNING id", p.Values()...).Scan(&id); err != nil {
		return 0, eris.Wrap(err, "postgres: insert provider")
	}
	return id, nil
}

func (t *postgresTx) Update(ctx context.Context, id int64, p *model.Provider) error {
	args := append(p.Values(), id)
	tag, err := t.tx.Exec(ctx, updateSQL(dollar), args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: update provider %d", id)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("provider not found: %d", id)
	}
	return nil
}

// inSavepoint runs fn in a nested transaction. A failed statement aborts
// only the savepoint, so the layout transaction stays usable.
func (t *postgresTx) inSavepoint(ctx context.Context, fn func(pgx.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: savepoint")
	}
	if err := fn(sp); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return eris.Wrap(rbErr, "postgres: rollback to savepoint")
		}
		return err
	}
	return eris.Wrap(sp.Commit(ctx), "postgres: release savepoint")
}

func (t *postgresTx) GetLocation(ctx context.Context, key string) (*geocode.Location, error) {
	var found *geocode.Location
	err := t.inSavepoint(ctx, func(sp pgx.Tx) error {
		var loc geocode.Location
		err := sp.QueryRow(ctx,
			`SELECT region, locality, postal_code FROM geocode_cache WHERE address_hash = $1`, key,
		).Scan(&loc.Region, &loc.Locality, &loc.PostalCode)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return eris.Wrap(err, "postgres: get geocode cache")
		}
		found = &loc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (t *postgresTx) PutLocation(ctx context.Context, key string, loc geocode.Location) error {
	return t.inSavepoint(ctx, func(sp pgx.Tx) error {
		_, err := sp.Exec(ctx,
			`INSERT INTO geocode_cache (address_hash, region, locality, postal_code, cached_at) VALUES ($1, $2, $3, $4, now())
			ON CONFLICT (address_hash) DO UPDATE SET region = EXCLUDED.region, locality = EXCLUDED.locality,
				postal_code = EXCLUDED.postal_code, cached_at = now()`,
			key, loc.Region, loc.Locality, loc.PostalCode,
		)
		return eris.Wrap(err, "postgres: put geocode cache")
	})
}

func (t *postgresTx) Commit(ctx context.Context) error {
	return eris.Wrap(t.tx.Commit(ctx), "postgres: commit")
}

// Rollback is a no-op after Commit.
func (t *postgresTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if errors.Is(err, pgx.ErrTxClosed) {
		return nil
	}
	return eris.Wrap(err, "postgres: rollback")
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*postgresTx)(nil)
)
