package tide

import (
	"github.com/denismitr/tide/internal/database"
	"github.com/denismitr/tide/migration"
)

var (
	ErrLocked            = database.ErrLocked
	ErrMissingDown       = database.ErrMissingDown
	ErrUnknownConnection = database.ErrUnknownConnection
	ErrInvalidTableName  = database.ErrInvalidTableName
	ErrDuplicateName     = migration.ErrDuplicateName
	ErrInvalidMigration  = migration.ErrInvalidMigration
)

type (
	ExecutionError   = database.ExecutionError
	BookkeepingError = database.BookkeepingError
)
