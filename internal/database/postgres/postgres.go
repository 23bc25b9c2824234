package postgres

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"storage-service/internal/config"
	"storage-service/internal/database/schema"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var DBStatus bool

func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBname)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	err = defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		_, err = defaultDB.Exec(createQuery)
		if err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		log.Printf("Database '%s' created successfully", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}

	// the schema is idempotent, a fresh database gets it immediately
	if !exists {
		ExecuteSchema(db)
	}

	DBStatus = true
	return db, nil
}

// ExecuteSchema runs the embedded schema statement by statement. A failing
// statement is logged and skipped so a partially migrated database can still
// be brought up to date.
func ExecuteSchema(db *sqlx.DB) int {
	successCount := 0
	for i, statement := range schema.Statements() {
		if _, err := db.Exec(statement); err != nil {
			log.Printf("Warning: Failed to execute statement %d: %v", i+1, err)
			log.Printf("Statement: %s", statement[:min(100, len(statement))])
			continue
		}
		successCount++
	}

	log.Printf("Schema execution completed. Successfully executed %d statements", successCount)
	return successCount
}

func RetryConnectOnFailed(waitAmount time.Duration, db **sqlx.DB, cfg config.PostgresConfig) {
	for {
		if *db != nil {
			err := (*db).Ping()
			if err == nil {
				log.Printf("database connection is healthy, no retry needed")
				return
			}
			log.Printf("failed to ping target database: %s, retry db connection", err)
		} else {
			log.Printf("database connection is nil, attempting to reconnect...")
		}

		newDB, err := ConnectAndCreateDB(cfg)
		if err == nil {
			*db = newDB
			log.Printf("database retry connection successfully")
			return
		}
		log.Printf("failed to retry connect database: %s, next retry in %v", err, waitAmount)
		time.Sleep(waitAmount)
	}
}
