package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgresGormDB opens a PostgreSQL pool through lib/pq and hands it to gorm
func NewPostgresGormDB(host, port, user, password, dbname, sslmode string, logSQL bool) (*GormDB, error) {
	if sslmode == "" {
		sslmode = "disable"
	}
	connStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, err
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: conn}), gormConfig(logSQL))
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &GormDB{db: db, driver: "postgres"}, nil
}
