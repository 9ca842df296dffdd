// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/migrations"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/categories"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/documents"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/events"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/facts"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/sources"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repositories bound to
// either the pool or a transaction.
type PostgresRepositoryManager struct{}

func (m *PostgresRepositoryManager) Users(db dbx.DBTX) users.Repository {
	return users.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Events(db dbx.DBTX) events.Repository {
	return events.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Facts(db dbx.DBTX) facts.Repository {
	return facts.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Categories(db dbx.DBTX) categories.Repository {
	return categories.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sources(db dbx.DBTX) sources.Repository {
	return sources.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Documents(db dbx.DBTX) documents.Repository {
	return documents.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Sessions(db dbx.DBTX) sessions.Repository {
	return sessions.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Subscriptions(db dbx.DBTX) subscriptions.Repository {
	return subscriptions.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded schema migrations.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

func NewPostgresRepositoryManager() *PostgresRepositoryManager {
	return &PostgresRepositoryManager{}
}
