package batch

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/janitor/pkg/cleanup"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// openTestDB creates a messages table with n rows one minute apart.
func openTestDB(t *testing.T, n int) *sql.DB {
	t.Helper()

	db, err := Open(OpenConfig{Dialect: DialectSQLite, DSN: filepath.Join(t.TempDir(), "app.db")})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE messages (id INTEGER PRIMARY KEY, created_at INTEGER NOT NULL, body TEXT)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := db.Exec(`INSERT INTO messages (id, created_at, body) VALUES (?, ?, ?)`,
			i+1, base.Add(time.Duration(i)*time.Minute).Unix(), "hi"); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	return db
}

func newTestDeleter(t *testing.T, db *sql.DB) *Deleter {
	t.Helper()
	d, err := NewDeleter(db, DialectSQLite, Target{
		Table: "messages", TimestampColumn: "created_at", IDColumn: "id", TimeFormat: TimeUnix,
	})
	if err != nil {
		t.Fatalf("NewDeleter() failed: %v", err)
	}
	return d
}

func countRows(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&n); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	return n
}

func TestDeleter_Delete(t *testing.T) {
	db := openTestDB(t, 55)
	d := newTestDeleter(t, db)
	ctx := context.Background()

	var got []int
	for i := 0; i < 5; i++ {
		n, err := d.Delete(ctx, 20, nil)
		if err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		got = append(got, n)
		if n < 20 {
			break
		}
	}

	want := []int{20, 20, 15}
	if len(got) != len(want) {
		t.Fatalf("Expected batches %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("batch %d: expected %d, got %d", i, want[i], got[i])
		}
	}
	if remaining := countRows(t, db); remaining != 0 {
		t.Errorf("Expected empty table, %d rows remain", remaining)
	}
}

func TestDeleter_OldestFirst(t *testing.T) {
	db := openTestDB(t, 10)
	d := newTestDeleter(t, db)

	if _, err := d.Delete(context.Background(), 3, nil); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	var minID int
	if err := db.QueryRow(`SELECT MIN(id) FROM messages`).Scan(&minID); err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if minID != 4 {
		t.Errorf("Expected the 3 oldest rows deleted, oldest remaining id = %d", minID)
	}
}

func TestDeleter_TiesOrderedByID(t *testing.T) {
	db := openTestDB(t, 0)
	for _, id := range []int{5, 3, 9, 1} {
		if _, err := db.Exec(`INSERT INTO messages (id, created_at) VALUES (?, ?)`, id, base.Unix()); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}
	d := newTestDeleter(t, db)

	if _, err := d.Delete(context.Background(), 2, nil); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	rows, err := db.Query(`SELECT id FROM messages ORDER BY id`)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	defer rows.Close()
	var left []int
	for rows.Next() {
		var id int
		rows.Scan(&id)
		left = append(left, id)
	}
	if len(left) != 2 || left[0] != 5 || left[1] != 9 {
		t.Errorf("Expected ids [5 9] to remain, got %v", left)
	}
}

func TestDeleter_CutoffRespect(t *testing.T) {
	db := openTestDB(t, 30)
	d := newTestDeleter(t, db)
	ctx := context.Background()

	// Rows 0..9 are strictly older; row 10 sits exactly on the cutoff.
	cutoff := base.Add(10 * time.Minute)
	for i := 0; i < 10; i++ {
		if _, err := d.Delete(ctx, 4, &cutoff); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	}

	if remaining := countRows(t, db); remaining != 20 {
		t.Errorf("Expected 20 rows at or after cutoff to remain, got %d", remaining)
	}
	var oldest int64
	db.QueryRow(`SELECT MIN(created_at) FROM messages`).Scan(&oldest)
	if oldest != cutoff.Unix() {
		t.Errorf("Expected oldest remaining timestamp %d, got %d", cutoff.Unix(), oldest)
	}
}

func TestDeleter_Estimate(t *testing.T) {
	db := openTestDB(t, 25)
	d := newTestDeleter(t, db)
	ctx := context.Background()

	n, err := d.Estimate(ctx, nil)
	if err != nil {
		t.Fatalf("Estimate() failed: %v", err)
	}
	if n != 25 {
		t.Errorf("Expected estimate 25, got %d", n)
	}

	cutoff := base.Add(5 * time.Minute)
	if n, _ := d.Estimate(ctx, &cutoff); n != 5 {
		t.Errorf("Expected estimate 5 under cutoff, got %d", n)
	}

	d.EstimateCap = 10
	if n, _ := d.Estimate(ctx, nil); n != 10 {
		t.Errorf("Expected estimate capped at 10, got %d", n)
	}
}

func TestDeleter_TimeFormats(t *testing.T) {
	cutoff := time.Date(2025, 6, 1, 8, 30, 0, 0, time.FixedZone("X", 3600))
	tests := []struct {
		format TimeFormat
		want   any
	}{
		{TimeUnix, cutoff.Unix()},
		{TimeUnixMilli, cutoff.UnixMilli()},
		{TimeText, "2025-06-01 07:30:00"},
	}
	for _, tt := range tests {
		got := Target{TimeFormat: tt.format}.bindTime(cutoff)
		if got != tt.want {
			t.Errorf("bindTime(%s) = %v, want %v", tt.format, got, tt.want)
		}
	}
	got, ok := (Target{}).bindTime(cutoff).(time.Time)
	if !ok || !got.Equal(cutoff) || got.Location() != time.UTC {
		t.Errorf("native bindTime should bind the cutoff in UTC, got %v", got)
	}
}

func TestDeleter_NativeCutoffWithOffset(t *testing.T) {
	db, err := Open(OpenConfig{Dialect: DialectSQLite, DSN: filepath.Join(t.TempDir(), "app.db")})
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE visits (id INTEGER PRIMARY KEY, visited_at TIMESTAMP NOT NULL)`); err != nil {
		t.Fatalf("create table failed: %v", err)
	}
	stamps := []time.Time{
		time.Date(2024, 12, 31, 18, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 20, 0, 0, 0, time.UTC),
		time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC),
	}
	for i, ts := range stamps {
		if _, err := db.Exec(`INSERT INTO visits (id, visited_at) VALUES (?, ?)`, i+1, ts); err != nil {
			t.Fatalf("insert failed: %v", err)
		}
	}

	d, err := NewDeleter(db, DialectSQLite, Target{Table: "visits", TimestampColumn: "visited_at", IDColumn: "id"})
	if err != nil {
		t.Fatalf("NewDeleter() failed: %v", err)
	}

	// 2024-12-31T19:00:00Z expressed at +05:00.
	cutoff := time.Date(2025, 1, 1, 0, 0, 0, 0, time.FixedZone("UTC+5", 5*3600))
	n, err := d.Delete(context.Background(), 10, &cutoff)
	if err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("Expected 1 row older than cutoff deleted, got %d", n)
	}

	var remaining []int
	rows, err := db.Query(`SELECT id FROM visits ORDER BY id`)
	if err != nil {
		t.Fatalf("select failed: %v", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		remaining = append(remaining, id)
	}
	if len(remaining) != 2 || remaining[0] != 2 || remaining[1] != 3 {
		t.Errorf("Expected rows [2 3] to remain, got %v", remaining)
	}
}

func TestNewDeleter_Validation(t *testing.T) {
	db := openTestDB(t, 0)
	tests := []struct {
		name    string
		dialect Dialect
		target  Target
	}{
		{"injection in table", DialectSQLite, Target{Table: "messages; DROP TABLE x", TimestampColumn: "created_at", IDColumn: "id"}},
		{"empty column", DialectSQLite, Target{Table: "messages", TimestampColumn: "", IDColumn: "id"}},
		{"leading digit", DialectSQLite, Target{Table: "1messages", TimestampColumn: "created_at", IDColumn: "id"}},
		{"bad format", DialectSQLite, Target{Table: "messages", TimestampColumn: "created_at", IDColumn: "id", TimeFormat: "epoch"}},
		{"bad dialect", "mysql", Target{Table: "messages", TimestampColumn: "created_at", IDColumn: "id"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewDeleter(db, tt.dialect, tt.target)
			var ve *cleanup.ValidationError
			if !errors.As(err, &ve) {
				t.Errorf("Expected ValidationError, got %v", err)
			}
		})
	}
}

func TestDeleter_SelectFailureIsTransient(t *testing.T) {
	db := openTestDB(t, 0)
	d, err := NewDeleter(db, DialectSQLite, Target{Table: "missing_table", TimestampColumn: "ts", IDColumn: "id"})
	if err != nil {
		t.Fatalf("NewDeleter() failed: %v", err)
	}

	_, err = d.Delete(context.Background(), 10, nil)
	var te *cleanup.TransientStorageError
	if !errors.As(err, &te) {
		t.Fatalf("Expected TransientStorageError, got %v", err)
	}
	if te.Op != "select" {
		t.Errorf("Expected op select, got %s", te.Op)
	}
}

func TestPostgresPlaceholders(t *testing.T) {
	db := openTestDB(t, 0)
	d, err := NewDeleter(db, DialectPostgres, Target{Table: "messages", TimestampColumn: "created_at", IDColumn: "id"})
	if err != nil {
		t.Fatalf("NewDeleter() failed: %v", err)
	}
	want := `SELECT "id" FROM "messages" WHERE "created_at" < $1 ORDER BY "created_at" ASC, "id" ASC LIMIT $2`
	if d.selectAfter != want {
		t.Errorf("selectAfter = %q, want %q", d.selectAfter, want)
	}
}

func TestParseExplain(t *testing.T) {
	raw := []byte(`[{"Plan": {"Node Type": "Seq Scan", "Relation Name": "messages", "Plan Rows": 4213, "Plan Width": 4}}]`)
	n, err := parseExplain(raw)
	if err != nil {
		t.Fatalf("parseExplain() failed: %v", err)
	}
	if n != 4213 {
		t.Errorf("Expected 4213, got %d", n)
	}

	if _, err := parseExplain([]byte(`[]`)); err == nil {
		t.Error("Expected error for empty plan")
	}
	if _, err := parseExplain([]byte(`nope`)); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
