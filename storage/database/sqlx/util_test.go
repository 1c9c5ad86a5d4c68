package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/trezcool/gradebook/core"
)

// fakeExecutor satisfies core.DBExecutor without being a sqlx executor.
type fakeExecutor struct{}

var _ core.DBExecutor = fakeExecutor{}

func (fakeExecutor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, sql.ErrConnDone
}

func (fakeExecutor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, sql.ErrConnDone
}

func (fakeExecutor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
