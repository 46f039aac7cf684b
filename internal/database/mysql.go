package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"realty-feed-sync/internal/config"
	"realty-feed-sync/internal/models"
)

// GormDB is the listing repository
type GormDB struct {
	db     *gorm.DB
	driver string
}

// Open connects to the database selected by cfg.Type
func Open(cfg config.DatabaseConfig) (*GormDB, error) {
	switch cfg.Type {
	case "", "mysql":
		m := cfg.MySQL
		return NewGormDB(m.Host, fmt.Sprint(m.Port), m.User, m.Password, m.Database, cfg.LogSQL)
	case "postgres":
		p := cfg.Postgres
		return NewPostgresGormDB(p.Host, fmt.Sprint(p.Port), p.User, p.Password, p.Database, p.SSLMode, cfg.LogSQL)
	}
	return nil, fmt.Errorf("unsupported database type %q", cfg.Type)
}

// NewGormDB opens a MySQL connection
func NewGormDB(host, port, user, password, dbname string, logSQL bool) (*GormDB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbname)

	db, err := gorm.Open(mysql.Open(dsn), gormConfig(logSQL))
	if err != nil {
		return nil, err
	}

	// Test connection
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, err
	}

	return &GormDB{db: db, driver: "mysql"}, nil
}

func gormConfig(logSQL bool) *gorm.Config {
	level := logger.Warn
	if logSQL {
		level = logger.Info
	}
	return &gorm.Config{
		Logger: logger.Default.LogMode(level),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}
}

// NewGormDBFromDB creates a GormDB wrapper from an existing gorm.DB instance
func NewGormDBFromDB(db *gorm.DB) *GormDB {
	return &GormDB{db: db, driver: db.Dialector.Name()}
}

// DB returns the underlying gorm.DB instance
func (gdb *GormDB) DB() *gorm.DB {
	return gdb.db
}

// SQLX wraps the connection pool for hand-written queries
func (gdb *GormDB) SQLX() (*sqlx.DB, error) {
	sqlDB, err := gdb.sqlDB()
	if err != nil {
		return nil, err
	}
	return sqlx.NewDb(sqlDB, gdb.driver), nil
}

func (gdb *GormDB) sqlDB() (*sql.DB, error) {
	return gdb.db.DB()
}

func (gdb *GormDB) Close() error {
	sqlDB, err := gdb.sqlDB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InitSchema creates tables using GORM AutoMigrate
func (gdb *GormDB) InitSchema() error {
	// AutoMigrate will create tables if they don't exist
	return gdb.db.AutoMigrate(
		&models.Listing{},
		&models.ListingMedia{},
		&models.Term{},
		&models.ListingTerm{},
		&models.ListingView{},
		&models.Option{},
		&models.SyncRun{},
		&models.DeleteLog{},
	)
}
