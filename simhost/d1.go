package simhost

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/edgebind/worker"

	// Pure-Go SQLite driver for database/sql.
	_ "github.com/glebarez/sqlite"
)

// sqliteD1 backs a relational database binding with an isolated SQLite
// database. Each binding gets its own file, completely separate from any
// other binding's data.
type sqliteD1 struct {
	db         *sql.DB
	databaseID string
}

// validateDatabaseID constrains IDs to a filename-safe alphabet, since the
// ID becomes part of an on-disk path.
func validateDatabaseID(id string) error {
	if id == "" || len(id) > 128 {
		return fmt.Errorf("database ID must be 1-128 characters, got %d", len(id))
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("database ID %q must not contain %q", id, "..")
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '-', r == '_', r == '.':
		default:
			return fmt.Errorf("database ID %q contains disallowed character %q", id, r)
		}
	}
	return nil
}

// openD1 opens (or creates) the isolated SQLite database for databaseID at
// {dataDir}/d1/{databaseID}.sqlite3.
func openD1(dataDir, databaseID string) (*sqliteD1, error) {
	if err := validateDatabaseID(databaseID); err != nil {
		return nil, err
	}
	d1Dir := filepath.Join(dataDir, "d1")
	if err := os.MkdirAll(d1Dir, 0755); err != nil {
		return nil, fmt.Errorf("creating D1 directory: %w", err)
	}
	db, err := sql.Open("sqlite", filepath.Join(d1Dir, databaseID+".sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("opening D1 database %q: %w", databaseID, err)
	}
	// WAL mode for better concurrent access.
	_, _ = db.Exec("PRAGMA journal_mode=WAL")
	return &sqliteD1{db: db, databaseID: databaseID}, nil
}

// openD1Memory opens an in-memory database, used by tests and ephemeral
// hosts.
func openD1Memory(databaseID string) (*sqliteD1, error) {
	if err := validateDatabaseID(databaseID); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory D1 database: %w", err)
	}
	// The in-memory database vanishes when its only connection closes.
	db.SetMaxOpenConns(1)
	return &sqliteD1{db: db, databaseID: databaseID}, nil
}

func (d *sqliteD1) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// guardSQL blocks statements that could escape the binding's sandbox:
// ATTACH/DETACH reach other database files, and most PRAGMAs mutate
// connection or file state. Safe introspection PRAGMAs stay allowed.
func guardSQL(upperSQL string) error {
	for _, blocked := range []string{"ATTACH", "DETACH"} {
		if strings.HasPrefix(upperSQL, blocked) {
			return fmt.Errorf("D1: %s statements are not allowed", blocked)
		}
	}
	if strings.HasPrefix(upperSQL, "PRAGMA") {
		allowed := []string{"PRAGMA TABLE_INFO", "PRAGMA TABLE_LIST", "PRAGMA INDEX_LIST",
			"PRAGMA INDEX_INFO", "PRAGMA FOREIGN_KEY_LIST", "PRAGMA JOURNAL_MODE"}
		for _, a := range allowed {
			if strings.HasPrefix(upperSQL, a) {
				return nil
			}
		}
		return fmt.Errorf("D1: this PRAGMA is not allowed")
	}
	return nil
}

func (d *sqliteD1) Query(sqlStr string, args []any) (*worker.D1Result, error) {
	start := time.Now()
	upperSQL := strings.TrimSpace(strings.ToUpper(sqlStr))
	if err := guardSQL(upperSQL); err != nil {
		return nil, err
	}

	isQuery := strings.HasPrefix(upperSQL, "SELECT") ||
		strings.HasPrefix(upperSQL, "PRAGMA") ||
		strings.HasPrefix(upperSQL, "WITH")

	if isQuery {
		rows, err := d.db.Query(sqlStr, args...)
		if err != nil {
			return nil, fmt.Errorf("D1: query error: %w", err)
		}
		defer func() { _ = rows.Close() }()

		columns, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("D1: columns error: %w", err)
		}

		var out []worker.D1Row
		for rows.Next() {
			values := make([]any, len(columns))
			ptrs := make([]any, len(columns))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, fmt.Errorf("D1: scan error: %w", err)
			}
			row := make(worker.D1Row, len(columns))
			for i, col := range columns {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
				} else {
					row[col] = values[i]
				}
			}
			out = append(out, row)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("D1: rows iteration error: %w", err)
		}
		return &worker.D1Result{
			Rows:    out,
			Columns: columns,
			Meta: worker.D1Meta{
				Duration: time.Since(start),
				RowsRead: int64(len(out)),
			},
		}, nil
	}

	// Non-query (INSERT, UPDATE, DELETE, CREATE, DROP, ...).
	result, err := d.db.Exec(sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("D1: exec error: %w", err)
	}
	changes, _ := result.RowsAffected()
	lastID, _ := result.LastInsertId()
	return &worker.D1Result{
		Meta: worker.D1Meta{
			Duration:    time.Since(start),
			RowsWritten: changes,
			ChangedRows: changes,
			LastRowID:   lastID,
		},
	}, nil
}

// Exec runs semicolon-separated statements in order, returning the last
// statement's result.
func (d *sqliteD1) Exec(sqlStr string) (*worker.D1Result, error) {
	var last *worker.D1Result
	for _, stmt := range strings.Split(sqlStr, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		res, err := d.Query(stmt, nil)
		if err != nil {
			return nil, err
		}
		last = res
	}
	if last == nil {
		last = &worker.D1Result{}
	}
	return last, nil
}
