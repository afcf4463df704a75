package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mattn/go-sqlite3"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
	q  querier
	tx *sql.Tx // set on stores handed out by InTx
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
//
// Transactions are opened with BEGIN IMMEDIATE so that two writers running
// InTx never both read the same snapshot before one of them writes.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", withDefaultParams(dataSourceName))
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db, q: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	slog.Debug("database connection established and schema initialized", "dsn", dataSourceName)
	return s, nil
}

func withDefaultParams(dsn string) string {
	params := []string{"_txlock=immediate", "_foreign_keys=on", "_busy_timeout=5000"}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	var missing []string
	for _, p := range params {
		key := p[:strings.Index(p, "=")+1]
		if !strings.Contains(dsn, key) {
			missing = append(missing, p)
		}
	}
	if len(missing) == 0 {
		return dsn
	}
	return dsn + sep + strings.Join(missing, "&")
}

// initSchema creates the database tables if they don't already exist and adds new columns if necessary.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS ikimina_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		contribution_amount TEXT NOT NULL,
		contribution_frequency TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		status TEXT NOT NULL,
		created_by TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS profiles (
		user_id TEXT PRIMARY KEY,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS user_roles (
		user_id TEXT NOT NULL,
		role TEXT NOT NULL,
		PRIMARY KEY (user_id, role)
	);
	CREATE TABLE IF NOT EXISTS group_members (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		is_admin INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		joined_at DATETIME NOT NULL,
		FOREIGN KEY(group_id) REFERENCES ikimina_groups(id)
	);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_group_members_one_active
		ON group_members(user_id, group_id) WHERE status = 'active';
	CREATE TABLE IF NOT EXISTS contributions (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		member_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		due_date DATETIME NOT NULL,
		paid_date DATETIME,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(group_id) REFERENCES ikimina_groups(id),
		FOREIGN KEY(member_id) REFERENCES group_members(id)
	);
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		group_id TEXT NOT NULL,
		borrower_id TEXT NOT NULL,
		principal_amount TEXT NOT NULL,
		interest_rate TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		start_date DATETIME NOT NULL,
		due_date DATETIME NOT NULL,
		total_payable TEXT NOT NULL,
		profit TEXT NOT NULL,
		status TEXT NOT NULL,
		approved_by TEXT,
		approved_at DATETIME,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		FOREIGN KEY(group_id) REFERENCES ikimina_groups(id),
		FOREIGN KEY(borrower_id) REFERENCES group_members(id)
	);
	CREATE TABLE IF NOT EXISTS repayments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		amount TEXT NOT NULL,
		payment_date DATETIME NOT NULL,
		notes TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE TABLE IF NOT EXISTS announcements (
		id TEXT PRIMARY KEY,
		group_id TEXT,
		author_id TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(group_id) REFERENCES ikimina_groups(id)
	);
	CREATE TABLE IF NOT EXISTS announcement_comments (
		id TEXT PRIMARY KEY,
		announcement_id TEXT NOT NULL,
		author_id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		FOREIGN KEY(announcement_id) REFERENCES announcements(id)
	);
	CREATE INDEX IF NOT EXISTS idx_contributions_group ON contributions(group_id);
	CREATE INDEX IF NOT EXISTS idx_loans_group ON loans(group_id);
	CREATE INDEX IF NOT EXISTS idx_repayments_loan ON repayments(loan_id);
	`
	_, err := s.db.Exec(schema)
	if err != nil {
		return err
	}

	// Columns added after the first schema; older database files pick them up here.
	columns := []struct{ table, def string }{
		{"ikimina_groups", "description TEXT NOT NULL DEFAULT ''"},
		{"ikimina_groups", "updated_at DATETIME"},
		{"group_members", "updated_at DATETIME"},
	}

	for _, col := range columns {
		_, err = s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", col.table, col.def))
		if err != nil && !isDuplicateColumnError(err) {
			return fmt.Errorf("failed to add column %s.%s: %w", col.table, col.def, err)
		}
	}

	return nil
}

// isDuplicateColumnError checks if the error indicates a duplicate column.
func isDuplicateColumnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate column name")
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// InTx runs fn inside a single database transaction. Nested calls reuse the
// outer transaction.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(Storage) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&SQLiteStore{db: s.db, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// expectOne turns a zero-row update or delete into ErrNotFound.
func expectOne(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return nil
}

// Close closes the database connection. Stores bound to a transaction do not
// own the connection and closing them is a no-op.
func (s *SQLiteStore) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}
