// Package gormrepo implements the repository interfaces on top of gorm.
//
// Two dialects are supported:
//   - postgres: the production store. Each service owns a schema in a shared
//     database; the schema is created on startup and carried into every
//     table name through the naming strategy ("blog_schema.posts").
//   - sqlite: the pure-Go modernc.org/sqlite driver, used for local runs and
//     tests. SQLite has no schemas, so tables are created unprefixed.
//
// DB is the explicitly constructed data-access handle. It is opened once at
// startup, shared by every request through the *gorm.DB connection pool, and
// closed once at shutdown.
package gormrepo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/schema"

	// Registers the "sqlite" database/sql driver. The gorm sqlite dialector
	// is pointed at it through Config.DriverName, so the cgo "sqlite3"
	// driver it links is never opened.
	_ "modernc.org/sqlite"
)

// sqliteDriverName is the database/sql name modernc.org/sqlite registers.
const sqliteDriverName = "sqlite"

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

var schemaNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures Open.
type Options struct {
	Dialect  string // "postgres" or "sqlite"
	DSN      string // connection URL or SQLite file/":memory:"
	Schema   string // postgres schema owned by this service; ignored by sqlite
	MaxConns int
}

// DB wraps a gorm connection pool.
type DB struct {
	gorm    *gorm.DB
	dialect string
	schema  string
}

// Open connects, verifies the connection with a ping and, for postgres,
// creates the service schema if it does not exist yet.
func Open(ctx context.Context, opts Options) (*DB, error) {
	schemaName := strings.TrimSpace(opts.Schema)
	if opts.Dialect == DialectSQLite {
		schemaName = ""
	}
	if schemaName != "" && !schemaNamePattern.MatchString(schemaName) {
		return nil, fmt.Errorf("gormrepo: invalid schema name %q", schemaName)
	}

	var dialector gorm.Dialector
	switch opts.Dialect {
	case DialectPostgres:
		dialector = postgres.Open(opts.DSN)
	case DialectSQLite:
		dialector = sqlite.New(sqlite.Config{DriverName: sqliteDriverName, DSN: opts.DSN})
	default:
		return nil, fmt.Errorf("gormrepo: unsupported dialect %q", opts.Dialect)
	}

	naming := schema.NamingStrategy{}
	if schemaName != "" {
		naming.TablePrefix = schemaName + "."
	}

	g, err := gorm.Open(dialector, &gorm.Config{
		NamingStrategy: naming,
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("gormrepo: opening %s database: %w", opts.Dialect, err)
	}

	sqlDB, err := g.DB()
	if err != nil {
		return nil, fmt.Errorf("gormrepo: getting sql.DB: %w", err)
	}
	switch {
	case opts.Dialect == DialectSQLite && isMemoryDSN(opts.DSN):
		// Every new connection to ":memory:" is a fresh, empty database.
		sqlDB.SetMaxOpenConns(1)
	case opts.MaxConns > 0:
		sqlDB.SetMaxOpenConns(opts.MaxConns)
		sqlDB.SetMaxIdleConns(max(opts.MaxConns/2, 1))
	}
	sqlDB.SetConnMaxIdleTime(15 * time.Minute)
	sqlDB.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("gormrepo: pinging database: %w", err)
	}

	db := &DB{gorm: g, dialect: opts.Dialect, schema: schemaName}

	if schemaName != "" {
		if err := g.WithContext(ctx).Exec(`CREATE SCHEMA IF NOT EXISTS "` + schemaName + `"`).Error; err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("gormrepo: creating schema %s: %w", schemaName, err)
		}
	}

	return db, nil
}

// AutoMigrate creates the tables for the given models if they are absent.
// Existing tables are left alone apart from missing columns and indexes.
func (db *DB) AutoMigrate(ctx context.Context, models ...any) error {
	if err := db.gorm.WithContext(ctx).AutoMigrate(models...); err != nil {
		return fmt.Errorf("gormrepo: creating tables: %w", err)
	}
	return nil
}

// Ping reports whether the database is reachable.
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (db *DB) Close() error {
	sqlDB, err := db.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Dialect returns the dialect the handle was opened with.
func (db *DB) Dialect() string { return db.dialect }

// Schema returns the schema tables live in, or "" when unprefixed.
func (db *DB) Schema() string { return db.schema }

// Users returns the user store backed by this handle.
func (db *DB) Users() *UserDB { return &UserDB{db: db.gorm} }

// Posts returns the post store backed by this handle.
func (db *DB) Posts() *PostDB { return &PostDB{db: db.gorm} }

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// isUniqueViolation recognises duplicate-key errors. Postgres errors are
// translated by gorm; the modernc SQLite driver's are matched by message.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
