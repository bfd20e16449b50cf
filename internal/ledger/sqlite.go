package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"

	"reservio/internal/models"
)

// SQLiteLedger persists confirmed bookings in a local SQLite file.
type SQLiteLedger struct {
	db     *sql.DB
	logger *zerolog.Logger
}

// NewSQLiteLedger opens (and if needed bootstraps) the bookings database.
func NewSQLiteLedger(path string, logger *zerolog.Logger) (*SQLiteLedger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode and a busy timeout so concurrent confirms don't trip over
	// sqlite's writer lock.
	dsn := path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	l := &SQLiteLedger{db: db, logger: logger}
	if err := l.createTables(); err != nil {
		return nil, fmt.Errorf("create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("booking ledger initialized")
	return l, nil
}

func (l *SQLiteLedger) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id TEXT PRIMARY KEY,
			client_id TEXT NOT NULL,
			client_name TEXT NOT NULL,
			client_phone TEXT,
			professional_id TEXT NOT NULL,
			service_id TEXT NOT NULL,
			resource_ids TEXT,
			start_time DATETIME NOT NULL,
			end_time DATETIME NOT NULL,
			comment TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_window ON bookings(start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_professional ON bookings(professional_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_client ON bookings(client_id)`,
	}
	for _, q := range queries {
		if _, err := l.db.Exec(q); err != nil {
			return err
		}
	}
	return nil
}

// Persist inserts the booking and returns its generated id.
func (l *SQLiteLedger) Persist(ctx context.Context, rec models.BookingRecord) (string, error) {
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	_, err := l.db.ExecContext(ctx,
		`INSERT INTO bookings
			(id, client_id, client_name, client_phone, professional_id, service_id, resource_ids, start_time, end_time, comment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, rec.ClientID, rec.ClientName, rec.ClientPhone, rec.ProfessionalID, rec.ServiceID,
		strings.Join(rec.ResourceIDs, ","), rec.Start.UTC(), rec.End.UTC(), rec.Comment, time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert booking: %w", err)
	}

	l.logger.Info().
		Str("booking_id", id).
		Str("client_id", rec.ClientID).
		Str("professional_id", rec.ProfessionalID).
		Time("start", rec.Start).
		Msg("booking persisted")
	return id, nil
}

// ListBetween returns bookings whose window overlaps [from, to).
func (l *SQLiteLedger) ListBetween(ctx context.Context, from, to time.Time) ([]models.BookingRecord, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, client_id, client_name, client_phone, professional_id, service_id, resource_ids, start_time, end_time, comment, created_at
		 FROM bookings
		 WHERE start_time < ? AND end_time > ?
		 ORDER BY start_time`,
		to.UTC(), from.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.BookingRecord
	for rows.Next() {
		var rec models.BookingRecord
		var resources string
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.ClientName, &rec.ClientPhone,
			&rec.ProfessionalID, &rec.ServiceID, &resources,
			&rec.Start, &rec.End, &rec.Comment, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		if resources != "" {
			rec.ResourceIDs = strings.Split(resources, ",")
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (l *SQLiteLedger) Close() error {
	return l.db.Close()
}

// PingContext reports database health for readiness probes.
func (l *SQLiteLedger) PingContext(ctx context.Context) error {
	return l.db.PingContext(ctx)
}
