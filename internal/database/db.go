package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const purchasesDDL = `CREATE TABLE IF NOT EXISTS purchases (
	payment_id   VARCHAR(64)  NOT NULL PRIMARY KEY,
	protocol     VARCHAR(64)  NOT NULL,
	cpf          CHAR(11)     NOT NULL,
	quantity     INT UNSIGNED NOT NULL,
	amount_cents BIGINT       NOT NULL,
	status       VARCHAR(20)  NOT NULL,
	last_error   VARCHAR(512) NULL,
	created_at   DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at   DATETIME     NOT NULL DEFAULT CURRENT_TIMESTAMP,
	INDEX idx_purchases_status (status, created_at),
	INDEX idx_purchases_protocol (protocol)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// Migrate creates the tables the checkout needs.  It is safe to run on
// every start.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, purchasesDDL); err != nil {
		return fmt.Errorf("migrate purchases: %w", err)
	}
	return nil
}
