package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/howyoubeen/internal/dbx"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/categories"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/documents"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/events"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/facts"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/sources"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/subscriptions"
	"github.com/dmitrijs2005/howyoubeen/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Events(db dbx.DBTX) events.Repository
	Facts(db dbx.DBTX) facts.Repository
	Categories(db dbx.DBTX) categories.Repository
	Sources(db dbx.DBTX) sources.Repository
	Documents(db dbx.DBTX) documents.Repository
	Sessions(db dbx.DBTX) sessions.Repository
	Subscriptions(db dbx.DBTX) subscriptions.Repository
}
