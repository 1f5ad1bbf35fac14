package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/childcare-etl/internal/model"
	"github.com/sells-group/childcare-etl/pkg/geocode"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS child_care_providers (
	id                          INTEGER PRIMARY KEY AUTOINCREMENT,
	accepts_financial_aid       BOOLEAN NOT NULL DEFAULT 0,
	ages_served                 TEXT,
	capacity                    INTEGER,
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
	license_number              INTEGER,
	license_renewed             DATE,
	license_type                TEXT,
	contact_name                TEXT,
	max_age                     INTEGER,
	min_age                     INTEGER,
	operator                    TEXT,
	schedule                    TEXT,
	state                       TEXT,
	title                       TEXT,
	website_address             TEXT,
	zip                         TEXT,
	facility_type               TEXT,
	source_file                 TEXT NOT NULL,
	etl_timestamp               DATETIME NOT NULL,
	record_hash                 TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_providers_identity ON child_care_providers(address1, city, state);
CREATE INDEX IF NOT EXISTS idx_providers_source_file ON child_care_providers(source_file);

CREATE TABLE IF NOT EXISTS geocode_cache (
	address_hash TEXT PRIMARY KEY,
	region       TEXT NOT NULL DEFAULT '',
	locality     TEXT NOT NULL DEFAULT '',
	postal_code  TEXT NOT NULL DEFAULT '',
	cached_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin")
	}
	return &sqliteTx{tx: tx}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*model.Provider, error) {
	var p model.Provider
	err := s.db.QueryRowContext(ctx, selectByIDSQL(questionMark), id).Scan(p.ScanDest()...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get provider %d", id)
	}
	return &p, nil
}

func (s *SQLiteStore) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, countBySourceSQL)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by source")
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan count")
		}
		counts[source] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count rows")
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) FindByIdentity(ctx context.Context, key model.IdentityKey) (*Match, error) {
	if !key.Complete() {
		return nil, nil
	}
	var m Match
	err := t.tx.QueryRowContext(ctx, findByIdentitySQL(questionMark), identityArgs(key)...).Scan(&m.ID, &m.RecordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find provider %s", key)
	}
	return &m, nil
}

func (t *sqliteTx) Insert(ctx context.Context, p *model.Provider) (int64, error) {
	res, err := t.tx.ExecContext(ctx, insertSQL(questionMark), p.Values()...)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert provider")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return id, nil
}

func (t *sqliteTx) Update(ctx context.Context, id int64, p *model.Provider) error {
	args := append(p.Values(), id)
	res, err := t.tx.ExecContext(ctx, updateSQL(questionMark), args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update provider %d", id)
	}
	return checkRowsAffected(res, id)
}

func (t *sqliteTx) GetLocation(ctx context.Context, key string) (*geocode.Location, error) {
	var loc geocode.Location
	err := t.tx.QueryRowContext(ctx,
		`SELECT region, locality, postal_code FROM geocode_cache WHERE address_hash = ?`, key,
	).Scan(&loc.Region, &loc.Locality, &loc.PostalCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get geocode cache")
	}
	return &loc, nil
}

func (t *sqliteTx) PutLocation(ctx context.Context, key string, loc geocode.Location) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO geocode_cache (address_hash, region, locality, postal_code, cached_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(address_hash) DO UPDATE SET region = excluded.region, locality = excluded.locality,
			postal_code = excluded.postal_code, cached_at = excluded.cached_at`,
		key, loc.Region, loc.Locality, loc.PostalCode, time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: put geocode cache")
}

func (t *sqliteTx) Commit(context.Context) error {
	return eris.Wrap(t.tx.Commit(), "sqlite: commit")
}

// Rollback is a no-op after Commit.
func (t *sqliteTx) Rollback(context.Context) error {
	err := t.tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return eris.Wrap(err, "sqlite: rollback")
}

func checkRowsAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("provider not found: %d", id)
	}
	return nil
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = (*sqliteTx)(nil)
)
