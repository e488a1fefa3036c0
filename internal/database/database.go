package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thereayou/loci-chat/internal/config"
	"github.com/thereayou/loci-chat/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// Open connects to the configured driver and migrates the schema.
func Open(cfg *config.Config) (*Database, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		dialector = sqlite.Open(sqliteDSN(cfg.SQLitePath))
	default:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is not set")
		}
		dialector = postgres.Open(cfg.DatabaseURL)
	}

	level := gormlogger.Warn
	if cfg.LogLevel == "debug" {
		level = gormlogger.Info
	}
	return open(dialector, cfg.DBDriver == "sqlite", level)
}

// OpenSQLite opens an sqlite database from a raw DSN.
func OpenSQLite(dsn string) (*Database, error) {
	return open(sqlite.Open(dsn), true, gormlogger.Silent)
}

func open(dialector gorm.Dialector, singleWriter bool, level gormlogger.LogLevel) (*Database, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(level),
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, err
	}

	if singleWriter {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY between our own transactions.
		sqlDB.SetMaxOpenConns(1)
	}

	d := NewDatabase(db)
	if err := d.Migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL"
}

func (d *Database) Migrate() error {
	return d.db.AutoMigrate(
		&models.User{},
		&models.UserBlock{},
		&models.Room{},
		&models.RoomMember{},
		&models.Message{},
		&models.Reaction{},
		&models.Notification{},
	)
}

// Ping checks the connection, used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return classify(sqlDB.PingContext(ctx))
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
