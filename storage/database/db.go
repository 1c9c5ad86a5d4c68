package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	_ "modernc.org/sqlite"

	"github.com/trezcool/gradebook/core"
	"github.com/trezcool/gradebook/fs"
)

// supported engines
const (
	EngineSQLite   = "sqlite"
	EnginePostgres = "postgres"
)

var (
	ErrUnknownEngine = errors.New("unknown database engine")

	gooseDialects = map[string]string{
		EngineSQLite:   "sqlite3",
		EnginePostgres: "postgres",
	}
)

// sqliteDSN enables WAL, waits on locks instead of failing and enforces foreign keys.
func sqliteDSN(path string) string {
	q := make(url.Values)
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	return "file:" + path + "?" + q.Encode()
}

func postgresDSN(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   EnginePostgres,
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// Open opens the configured database. It does not create nor migrate it.
func Open(conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EngineSQLite:
		db, err := sqlx.Open(EngineSQLite, sqliteDSN(conf.Database.Path))
		if err != nil {
			return nil, errors.Wrap(err, "opening sqlite database")
		}
		// a single writer; the pragmas above apply per connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(time.Hour)
		return db, nil
	case EnginePostgres:
		db, err := sqlx.Open(EnginePostgres, postgresDSN(conf.Database.Name, false, conf))
		if err != nil {
			return nil, errors.Wrap(err, "opening postgres database")
		}
		return db, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEngine, "%q", conf.Database.Engine)
	}
}

// Ping waits for the database to be ready. Waits 100ms longer between each attempt.
func Ping(ctx context.Context, db *sqlx.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		if err = db.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "DB ping cancelled")
		case <-time.After(time.Duration(attempts) * 100 * time.Millisecond):
		}
	}
	return errors.Wrap(err, "DB ping timeout")
}

func createPostgresDB(conf *core.Config) error {
	// connect as admin
	db, err := sqlx.Open(EnginePostgres, postgresDSN("postgres", true, conf))
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = Ping(context.Background(), db, 30); err != nil {
		return errors.Wrap(err, "pinging database")
	}

	// check if DB exists
	var exists bool
	if err = db.Get(&exists, "SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname = $1)", conf.Database.Name); err != nil {
		return errors.Wrap(err, "checking DB")
	}

	// create DB if not exist
	if !exists {
		if _, err = db.Exec(fmt.Sprintf("CREATE DATABASE %q", conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the configured database when missing.
// For SQLite that only means creating the parent directory of the database file.
func CreateIfNotExist(conf *core.Config) error {
	switch conf.Database.Engine {
	case EngineSQLite:
		if err := os.MkdirAll(filepath.Dir(conf.Database.Path), 0o700); err != nil {
			return errors.Wrap(err, "creating database directory")
		}
		return nil
	case EnginePostgres:
		return createPostgresDB(conf)
	default:
		return errors.Wrapf(ErrUnknownEngine, "%q", conf.Database.Engine)
	}
}

// MigrationsDir returns the embedded migrations directory of `engine`.
func MigrationsDir(engine string) string {
	return path.Join("migrations", engine)
}

// SetDialect points goose at the SQL dialect of `engine`.
func SetDialect(engine string) error {
	dialect, ok := gooseDialects[engine]
	if !ok {
		return errors.Wrapf(ErrUnknownEngine, "%q", engine)
	}
	return errors.Wrap(goose.SetDialect(dialect), "setting goose dialect")
}

// Migrate applies all pending migrations.
func Migrate(db *sqlx.DB, engine string) error {
	if err := SetDialect(engine); err != nil {
		return err
	}
	if err := goose.RunFS("up", db.DB, appfs.FS, MigrationsDir(engine)); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// Setup creates, opens, pings and migrates the configured database.
func Setup(ctx context.Context, conf *core.Config) (*sqlx.DB, error) {
	if err := CreateIfNotExist(conf); err != nil {
		return nil, err
	}

	db, err := Open(conf)
	if err != nil {
		return nil, err
	}
	if err = Ping(ctx, db, 30); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err = Migrate(db, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
