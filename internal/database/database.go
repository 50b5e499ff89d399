package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/killallgit/trackreview-api/internal/logging"
	"github.com/killallgit/trackreview-api/internal/models"
)

type DB struct {
	*gorm.DB
	logger *slog.Logger
}

// Models lists every persisted model, in migration order.
func Models() []any {
	return []any{
		&models.Video{},
		&models.Rendition{},
		&models.Detection{},
		&models.Job{},
	}
}

// Initialize opens the sqlite database at dbPath. An empty path or ":memory:"
// gives a private in-memory database limited to one connection so every
// query sees the same data.
func Initialize(dbPath string, verbose bool, log *slog.Logger) (*DB, error) {
	log = logging.WithComponent(log, "database")
	memory := dbPath == "" || dbPath == ":memory:"

	dsn, err := dataSource(dbPath, memory)
	if err != nil {
		return nil, err
	}

	level := gormlogger.Warn
	if verbose {
		level = gormlogger.Info
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.NewSlogLogger(log, gormlogger.Config{
			SlowThreshold:             500 * time.Millisecond,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB: %w", err)
	}
	if memory {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetConnMaxLifetime(0)
	} else {
		sqlDB.SetMaxIdleConns(4)
		sqlDB.SetMaxOpenConns(16)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return &DB{DB: db, logger: log}, nil
}

// dataSource builds the sqlite DSN, creating the parent directory of a file
// database. A path that already carries query parameters is used as is.
func dataSource(dbPath string, memory bool) (string, error) {
	if memory {
		return ":memory:", nil
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating database directory: %w", err)
		}
	}
	if strings.Contains(dbPath, "?") {
		return dbPath, nil
	}
	// Workers and request handlers write concurrently.
	return dbPath + "?_busy_timeout=5000&_journal_mode=WAL&_foreign_keys=on", nil
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck pings the database with a one second budget.
func (db *DB) HealthCheck() error {
	if db == nil || db.DB == nil {
		return errors.New("database not initialized")
	}
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

// Migrate brings the schema up to date for every model in Models. Columns
// and indexes are only ever added.
func (db *DB) Migrate() error {
	all := Models()
	if err := db.DB.AutoMigrate(all...); err != nil {
		return fmt.Errorf("migrating schema: %w", err)
	}
	db.logger.Info("schema migrated", "models", len(all))
	return nil
}

// TableStatus reports whether a model's table exists.
type TableStatus struct {
	Table   string
	Applied bool
}

// Tables reports the migration state of every model, in migration order.
func (db *DB) Tables() ([]TableStatus, error) {
	statuses := make([]TableStatus, 0, len(Models()))
	for _, m := range Models() {
		stmt := &gorm.Statement{DB: db.DB}
		if err := stmt.Parse(m); err != nil {
			return nil, fmt.Errorf("parsing model: %w", err)
		}
		statuses = append(statuses, TableStatus{
			Table:   stmt.Schema.Table,
			Applied: db.Migrator().HasTable(stmt.Schema.Table),
		})
	}
	return statuses, nil
}

// Pending reports the tables that Migrate would create.
func (db *DB) Pending() ([]string, error) {
	statuses, err := db.Tables()
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, s := range statuses {
		if !s.Applied {
			missing = append(missing, s.Table)
		}
	}
	return missing, nil
}

// OpenInMemory returns a migrated in-memory database. Tests across the
// module use it in place of a file database.
func OpenInMemory() (*DB, error) {
	db, err := Initialize(":memory:", false, nil)
	if err != nil {
		return nil, err
	}
	db.DB.Logger = gormlogger.Discard
	if err := db.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
