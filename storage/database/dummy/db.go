package dummydb

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
)

var errNoSQL = errors.New("dummydb: SQL is not supported")

type (
	// DB is an in-memory store for tests.
	DB struct {
		student *studentTable

		// FailWith, when set, is returned by every repository call.
		FailWith error
	}

	studentTable struct {
		sync.RWMutex
		pkCount int
		table   map[string]*studentRecord // {roll_number: record}
	}

	studentRecord struct {
		std    student.Student
		graded map[string]time.Time // {subject: last change}
	}

	// tx keeps undo steps, replayed in reverse on Rollback.
	tx struct {
		db       *DB
		undo     []func()
		finished bool
	}
)

var _ core.DBTransactor = (*tx)(nil)

func Open() (*DB, error) {
	db := &DB{
		student: &studentTable{table: make(map[string]*studentRecord)},
	}
	return db, nil
}

func (t *tx) Commit() error {
	if t.finished {
		return sql.ErrTxDone
	}
	t.finished = true
	t.undo = nil
	return nil
}

func (t *tx) Rollback() error {
	if t.finished {
		return sql.ErrTxDone
	}
	t.finished = true

	t.db.student.Lock()
	defer t.db.student.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	return nil
}

func (t *tx) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errNoSQL
}

func (t *tx) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errNoSQL
}

func (t *tx) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}
