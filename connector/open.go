package connector

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// openDB builds the *sql.DB for cfg. Postgres goes through pgx unless
// driver "postgres" (lib/pq) is asked for; MariaDB goes through
// go-sql-driver/mysql; any other driver must be registered by the caller.
func openDB(cfg *Config) (*sql.DB, error) {
	driverName := strings.ToLower(strings.TrimSpace(cfg.Driver))
	dialectName := strings.ToLower(strings.TrimSpace(cfg.Dialect))

	switch {
	case driverName == "postgres" || driverName == "pq":
		dsn, err := withURLCredentials(cfg.URL, cfg.Credentials)
		if err != nil {
			return nil, err
		}
		conn, err := pq.NewConnector(dsn)
		if err != nil {
			return nil, fmt.Errorf("lib/pq connector: %w", err)
		}
		return sql.OpenDB(conn), nil

	case driverName == "pgx" || (driverName == "" && isPostgres(dialectName)):
		pc, err := pgx.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse postgres url: %w", err)
		}
		if cfg.Credentials.Username != "" {
			pc.User = cfg.Credentials.Username
		}
		if cfg.Credentials.Password != "" {
			pc.Password = cfg.Credentials.Password
		}
		return stdlib.OpenDB(*pc), nil

	case driverName == "mysql" || (driverName == "" && isMariaDB(dialectName)):
		mc, err := mysql.ParseDSN(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse mariadb dsn: %w", err)
		}
		if cfg.Credentials.Username != "" {
			mc.User = cfg.Credentials.Username
		}
		if cfg.Credentials.Password != "" {
			mc.Passwd = cfg.Credentials.Password
		}
		mc.ParseTime = true
		conn, err := mysql.NewConnector(mc)
		if err != nil {
			return nil, fmt.Errorf("mariadb connector: %w", err)
		}
		return sql.OpenDB(conn), nil

	case driverName == "":
		return nil, fmt.Errorf("dialect %s has no built-in driver; set driver", cfg.Dialect)
	}

	db, err := sql.Open(cfg.Driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Driver, err)
	}
	return db, nil
}

func isPostgres(name string) bool {
	return name == "postgres" || name == "postgresql" || name == "pgx"
}

func isMariaDB(name string) bool {
	return name == "mariadb" || name == "mysql"
}

// configurePool keeps database/sql's physical pool within the handle bound.
func configurePool(db *sql.DB, cfg *Config) {
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	if cfg.MaxLifetimeMs > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.MaxLifetimeMs) * time.Millisecond)
	}
	if cfg.MaxIdleTimeMs > 0 {
		db.SetConnMaxIdleTime(time.Duration(cfg.MaxIdleTimeMs) * time.Millisecond)
	}
}
