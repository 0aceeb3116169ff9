package storage

import (
	"database/sql"
	"time"

	"remotebuild/internal/logger"
	"remotebuild/internal/storage/models"

	_ "github.com/mattn/go-sqlite3"
)

var db *sql.DB

// Init initializes the SQLite database
func Init(dbPath string) error {
	var err error

	db, err = sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=ON")
	if err != nil {
		return err
	}

	// SQLite doesn't support multiple writers, but we can optimize for
	// concurrent reads
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err = db.Ping(); err != nil {
		return err
	}

	if err = createTables(); err != nil {
		return err
	}

	logger.Info("Database initialized successfully")
	return nil
}

// createTables creates the necessary database tables
func createTables() error {
	_, err := db.Exec(`
	CREATE TABLE IF NOT EXISTS build_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		job_name TEXT NOT NULL,
		params TEXT,
		queue_number INTEGER,
		build_url TEXT,
		state TEXT NOT NULL,
		result TEXT,
		error TEXT
	)
	`)

	return err
}

// InsertBuildRecord inserts a new build record
func InsertBuildRecord(record models.BuildRecord) error {
	timestampStr := record.Timestamp.Format("2006-01-02 15:04:05.000000")
	_, err := db.Exec(
		`INSERT INTO build_records (timestamp, job_name, params, queue_number, build_url, state, result, error) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		timestampStr,
		record.JobName,
		record.Params,
		record.QueueNumber,
		record.BuildURL,
		record.State,
		record.Result,
		record.Error,
	)

	if err != nil {
		logger.Error("Failed to insert build record", "error", err)
		return err
	}

	return nil
}

// GetBuildRecords retrieves build records with pagination, newest first
func GetBuildRecords(limit, offset int) ([]models.BuildRecord, error) {
	rows, err := db.Query(
		`SELECT id, timestamp, job_name, params, queue_number, build_url, state, result, error FROM build_records ORDER BY id DESC LIMIT ? OFFSET ?`,
		limit,
		offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []models.BuildRecord
	for rows.Next() {
		var record models.BuildRecord
		var timestampStr string

		if err := rows.Scan(
			&record.ID,
			&timestampStr,
			&record.JobName,
			&record.Params,
			&record.QueueNumber,
			&record.BuildURL,
			&record.State,
			&record.Result,
			&record.Error,
		); err != nil {
			return nil, err
		}

		// Try multiple timestamp formats for compatibility
		var timestamp time.Time
		timestamp, err = time.Parse("2006-01-02 15:04:05.000000", timestampStr)
		if err != nil {
			timestamp, err = time.Parse("2006-01-02 15:04:05", timestampStr)
			if err != nil {
				timestamp = time.Now()
			}
		}
		record.Timestamp = timestamp

		records = append(records, record)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

// Ping verifies the database connection
func Ping() error {
	if db == nil {
		return sql.ErrConnDone
	}
	return db.Ping()
}

// Close closes the database connection
func Close() error {
	if db != nil {
		return db.Close()
	}
	return nil
}
