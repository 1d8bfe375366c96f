package repomanager

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/dmitrijs2005/memberkeeper/internal/server/repositories/users"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db *sqlx.DB) users.Repository
}
