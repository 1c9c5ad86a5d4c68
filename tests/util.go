package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/core/student"
	"github.com/trezcool/gradebook/storage/database"
)

// NewConfig returns a test configuration backed by a SQLite file in a temp dir.
func NewConfig(t *testing.T) *core.Config {
	return &core.Config{
		TestMode: true,
		Env:      "TEST",
		Build:    "test",
		Server: core.ServerConfig{
			BodyLimit:      "1M",
			DisableReqLogs: true,
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSQLite,
			Path:   filepath.Join(t.TempDir(), "students.db"),
		},
	}
}

// PrepareDB creates and migrates a fresh database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := NewConfig(t)

	db, err := database.Setup(context.Background(), conf)
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// ResetDB deletes all rows.
func ResetDB(t *testing.T, db *sqlx.DB) {
	t.Helper()
	for _, table := range []string{"grades", "students"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

// CreateStudent stores a student with `grades` ({subject: grade}) straight through `repo`.
func CreateStudent(t *testing.T, repo student.Repository, name, rollNumber string, grades map[string]float64) student.Student {
	t.Helper()
	ctx := context.Background()

	std, err := repo.CreateStudent(ctx, student.New(name, rollNumber))
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	for subject, g := range grades {
		if _, err = repo.UpsertGrade(ctx, std.RollNumber, subject, g); err != nil {
			t.Fatalf("CreateStudent() failed: %v", err)
		}
	}
	if std, err = repo.GetStudent(ctx, std.RollNumber); err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return std
}

// NopLogger discards every entry.
type NopLogger struct{}

var _ core.Logger = NopLogger{}

func (NopLogger) Debug(string, ...interface{}) {}
func (NopLogger) Info(string, ...interface{})  {}
func (NopLogger) Warn(string, ...interface{})  {}
func (NopLogger) Error(string, ...interface{}) {}
func (NopLogger) Fatal(string, ...interface{}) {}
