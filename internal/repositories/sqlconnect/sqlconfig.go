package sqlconnect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"chainvault/pkg/utils"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Connect opens the database for driver ("mysql", "sqlite" or "postgres"),
// pings it and applies the schema.
func Connect(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}

	utils.Logger.WithField("driver", driver).Info("Connecting to database...")

	db, err := sql.Open(dialect.DriverName, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("failed to open DB connection: %w", err)
	}

	if dialect.Name == "sqlite" {
		// sqlite serializes writers; one connection avoids SQLITE_BUSY and keeps
		// in-memory databases on a single handle.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err = db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("failed to ping DB: %w", err)
	}

	if err := Migrate(ctx, db, dialect); err != nil {
		db.Close()
		return nil, Dialect{}, err
	}

	utils.Logger.WithField("driver", driver).Info("✅ Connected to database")
	return db, dialect, nil
}

// OpenMemory opens a private in-memory sqlite database with the schema applied.
func OpenMemory(ctx context.Context, name string) (*sql.DB, Dialect, error) {
	name = strings.NewReplacer("/", "_", " ", "_").Replace(name)
	return Connect(ctx, "sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
}
