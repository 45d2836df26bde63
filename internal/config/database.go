package config

import (
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // PostgreSQL driver
	log "github.com/sirupsen/logrus"
)

// SetupDatabase initializes the database connection
func SetupDatabase(cfg *Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	// Create tables if they don't exist
	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return db, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sqlx.DB) error {
	// Create users table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(36) PRIMARY KEY,
			github_id VARCHAR(64) UNIQUE NOT NULL,
			username VARCHAR(255) UNIQUE NOT NULL,
			email VARCHAR(255) UNIQUE NOT NULL,
			avatar TEXT NOT NULL DEFAULT '',
			college VARCHAR(255) NOT NULL,
			karma_points INTEGER NOT NULL DEFAULT 0,
			github_profile TEXT NOT NULL DEFAULT '',
			bio VARCHAR(500) NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create requests table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS requests (
			id VARCHAR(36) PRIMARY KEY,
			requester_id VARCHAR(36) NOT NULL REFERENCES users(id),
			helper_id VARCHAR(36) REFERENCES users(id),
			type VARCHAR(32) NOT NULL,
			title VARCHAR(200) NOT NULL,
			description VARCHAR(2000) NOT NULL,
			repo_url TEXT NOT NULL DEFAULT '',
			tags TEXT[] NOT NULL DEFAULT '{}',
			status VARCHAR(16) NOT NULL DEFAULT 'open',
			help_credits INTEGER NOT NULL CHECK (help_credits BETWEEN 1 AND 10),
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			completed_at TIMESTAMP
		)
	`)
	if err != nil {
		return err
	}

	// Create activities table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS activities (
			id VARCHAR(36) PRIMARY KEY,
			user_id VARCHAR(36) NOT NULL REFERENCES users(id),
			type VARCHAR(32) NOT NULL,
			description VARCHAR(500) NOT NULL,
			related_request_id VARCHAR(36),
			points_earned INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create indexes for better query performance
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_users_college ON users(college)",
		"CREATE INDEX IF NOT EXISTS idx_users_college_karma ON users(college, karma_points DESC)",
		"CREATE INDEX IF NOT EXISTS idx_requests_status_created ON requests(status, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_requests_requester ON requests(requester_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_requests_helper ON requests(helper_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_activities_user_created ON activities(user_id, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at DESC)",
	}

	for _, idx := range indexes {
		_, err = db.Exec(idx)
		if err != nil {
			log.Warnf("Failed to create index: %v", err)
			// Don't return error here, indexes are not critical
		}
	}

	return nil
}
