// Package brand provides GORM-based storage for the brand profile data that
// coaching insights are routed into.
package brand

import (
	"database/sql"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store wraps the GORM connection for the insight destination tables.
type Store struct {
	DB *gorm.DB
}

// NewStore wraps an existing SQLite connection with GORM and runs the brand
// migrations. Sharing the connection keeps the session store and the brand
// stores in one database file.
func NewStore(sqlDB *sql.DB) (*Store, error) {
	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger:      logger.Default.LogMode(logger.Silent),
		PrepareStmt: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run brand migrations: %w", err)
	}

	return &Store{DB: db}, nil
}
