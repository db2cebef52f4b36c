package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Postgres implements Store backed by a PostgreSQL database.
type Postgres struct {
	db *sql.DB
}

var _ Store = (*Postgres)(nil)

// NewPostgres opens the database, configures the connection pool, and
// applies pending migrations.
func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Postgres{db: db}, nil
}

// NewPostgresWithDB wraps an existing connection without running
// migrations. Intended for tests.
func NewPostgresWithDB(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func runMigrations(db *sql.DB) error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}
	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration db driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (p *Postgres) Close() error {
	return p.db.Close()
}

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func (p *Postgres) RegisterParset(ctx context.Context, fileName, submitter string) (int64, error) {
	var id int64
	err := p.db.QueryRowContext(ctx,
		`INSERT INTO parsets (file_name, submitter) VALUES ($1, $2) RETURNING id`,
		fileName, submitter,
	).Scan(&id)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case pqUniqueViolation:
				return 0, fmt.Errorf("%s: %w", fileName, ErrDuplicateEntry)
			case pqForeignKeyViolation:
				return 0, fmt.Errorf("%s: %w", submitter, ErrUnknownSubmitter)
			}
		}
		return 0, fmt.Errorf("insert parset: %w", err)
	}
	return id, nil
}

func (p *Postgres) AddEntity(ctx context.Context, parsetID int64, kind string, idx int, fields map[string]string) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode %s fields: %w", kind, err)
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO parset_entities (parset_id, kind, idx, fields) VALUES ($1, $2, $3, $4)`,
		parsetID, kind, idx, payload,
	)
	if err != nil {
		return fmt.Errorf("insert %s entity: %w", kind, err)
	}
	return nil
}
