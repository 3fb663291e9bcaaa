package simhost

import (
	"strings"
	"testing"
)

func TestValidateDatabaseID(t *testing.T) {
	valid := []string{"prod", "tenant-42", "a_b.c"}
	for _, id := range valid {
		if err := validateDatabaseID(id); err != nil {
			t.Errorf("validateDatabaseID(%q) = %v", id, err)
		}
	}

	invalid := []string{
		"",
		strings.Repeat("x", 129),
		"../escape",
		"a..b",
		"a/b",
		`a\b`,
		"nul\x00byte",
		"has space",
		"semi;colon",
	}
	for _, id := range invalid {
		if err := validateDatabaseID(id); err == nil {
			t.Errorf("validateDatabaseID(%q) accepted", id)
		}
	}
}

func TestSqliteD1Sandbox(t *testing.T) {
	d, err := openD1Memory("sandbox")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = d.Close() }()

	blocked := []string{
		"ATTACH DATABASE '/etc/passwd' AS pwn",
		"DETACH DATABASE pwn",
		"PRAGMA journal_mode=DELETE",
		"PRAGMA writable_schema=ON",
	}
	for _, stmt := range blocked {
		if _, err := d.Query(stmt, nil); err == nil {
			t.Errorf("%q accepted", stmt)
		}
	}

	// Introspection PRAGMAs stay allowed.
	if _, err := d.Query("PRAGMA table_list", nil); err != nil {
		t.Errorf("PRAGMA table_list blocked: %v", err)
	}
}

func TestSqliteD1QueryAndExec(t *testing.T) {
	d, err := openD1Memory("qtest")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = d.Close() }()

	if _, err := d.Exec(`
		CREATE TABLE notes (id INTEGER PRIMARY KEY, text TEXT);
		INSERT INTO notes (text) VALUES ('first');
		INSERT INTO notes (text) VALUES ('second');
	`); err != nil {
		t.Fatalf("Exec: %v", err)
	}

	res, err := d.Query("SELECT id, text FROM notes ORDER BY id", nil)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(res.Rows) != 2 || res.Meta.RowsRead != 2 {
		t.Fatalf("result = %+v", res)
	}
	if res.Rows[0]["text"] != "first" || res.Rows[1]["text"] != "second" {
		t.Fatalf("rows = %v", res.Rows)
	}
	if len(res.Columns) != 2 || res.Columns[0] != "id" {
		t.Fatalf("columns = %v", res.Columns)
	}

	write, err := d.Query("UPDATE notes SET text = ? WHERE id = ?", []any{"updated", int64(1)})
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if write.Meta.ChangedRows != 1 {
		t.Fatalf("write meta = %+v", write.Meta)
	}
}

func TestSqliteD1BindingsIsolated(t *testing.T) {
	a, err := openD1Memory("iso-a")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()
	b, err := openD1Memory("iso-b")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = b.Close() }()

	if _, err := a.Exec("CREATE TABLE only_in_a (x)"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.Query("SELECT * FROM only_in_a", nil); err == nil {
		t.Fatal("table leaked across bindings")
	}
}
