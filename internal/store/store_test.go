package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

// openBackends returns one freshly opened mirror per backend.
func openBackends(t *testing.T, opts ...Option) map[string]Mirror {
	t.Helper()

	sq, err := Open(":memory:", opts...)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	bo, err := OpenBolt(filepath.Join(t.TempDir(), "mirror.bolt"), opts...)
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	t.Cleanup(func() { bo.Close() })

	return map[string]Mirror{BackendSQLite: sq, BackendBolt: bo}
}

func TestOpenCreatesSchema(t *testing.T) {
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	for _, table := range []string{"posts", "mirror_meta", "goose_db_version"} {
		var name string
		err := st.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not created: %v", table, err)
		}
	}
}

func TestSchemaHasNoFavoriteColumn(t *testing.T) {
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer st.Close()

	rows, err := st.db.Query("PRAGMA table_info(posts)")
	if err != nil {
		t.Fatalf("table_info failed: %v", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name       string
			typ        string
			notnull    int
			dflt       any
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notnull, &dflt, &primaryKey); err != nil {
			t.Fatalf("scan failed: %v", err)
		}
		cols = append(cols, name)
	}

	if len(cols) != 3 || cols[0] != "id" || cols[1] != "title" || cols[2] != "body" {
		t.Errorf("expected columns [id title body], got %v", cols)
	}
}

func TestReplaceAllThenReadAllSortedByID(t *testing.T) {
	for name, m := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			posts := []Post{
				{ID: 3, Title: "three", Body: "c"},
				{ID: 1, Title: "one", Body: "a", Favorite: true},
				{ID: 2, Title: "two", Body: "b"},
			}
			if err := m.ReplaceAll(posts); err != nil {
				t.Fatalf("ReplaceAll failed: %v", err)
			}

			got, err := m.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != 3 {
				t.Fatalf("expected 3 rows, got %d", len(got))
			}
			for i, want := range []int64{1, 2, 3} {
				if got[i].ID != want {
					t.Errorf("row %d: expected id %d, got %d", i, want, got[i].ID)
				}
				if got[i].Favorite {
					t.Errorf("row %d: favorite must not survive the mirror", i)
				}
			}
			if got[0].Title != "one" || got[0].Body != "a" {
				t.Errorf("unexpected row 0: %+v", got[0])
			}
		})
	}
}

func TestReplaceAllDropsPreviousRows(t *testing.T) {
	for name, m := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := m.ReplaceAll([]Post{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}); err != nil {
				t.Fatalf("first ReplaceAll failed: %v", err)
			}
			if err := m.ReplaceAll([]Post{{ID: 5, Title: "e"}}); err != nil {
				t.Fatalf("second ReplaceAll failed: %v", err)
			}

			got, err := m.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != 1 || got[0].ID != 5 {
				t.Errorf("expected only row 5, got %+v", got)
			}
		})
	}
}

func TestReplaceAllEmptyClears(t *testing.T) {
	for name, m := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			if err := m.ReplaceAll([]Post{{ID: 1, Title: "a"}}); err != nil {
				t.Fatalf("ReplaceAll failed: %v", err)
			}
			if err := m.ReplaceAll(nil); err != nil {
				t.Fatalf("ReplaceAll(nil) failed: %v", err)
			}

			got, err := m.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty mirror, got %d rows", len(got))
			}
		})
	}
}

func TestReplaceAllDuplicateIDsKeepsLast(t *testing.T) {
	for name, m := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			err := m.ReplaceAll([]Post{{ID: 7, Title: "first"}, {ID: 7, Title: "second"}})
			if err != nil {
				t.Fatalf("ReplaceAll failed: %v", err)
			}

			got, err := m.ReadAll()
			if err != nil {
				t.Fatalf("ReadAll failed: %v", err)
			}
			if len(got) != 1 || got[0].Title != "second" {
				t.Errorf("expected single row titled 'second', got %+v", got)
			}
		})
	}
}

func TestLastReplaced(t *testing.T) {
	stamp := time.Date(2024, 5, 2, 10, 30, 0, 0, time.UTC)
	for name, m := range openBackends(t, WithClock(func() time.Time { return stamp })) {
		t.Run(name, func(t *testing.T) {
			before, err := m.LastReplaced()
			if err != nil {
				t.Fatalf("LastReplaced failed: %v", err)
			}
			if !before.IsZero() {
				t.Errorf("expected zero time before first replace, got %v", before)
			}

			if err := m.ReplaceAll([]Post{{ID: 1}}); err != nil {
				t.Fatalf("ReplaceAll failed: %v", err)
			}

			after, err := m.LastReplaced()
			if err != nil {
				t.Fatalf("LastReplaced failed: %v", err)
			}
			if !after.Equal(stamp) {
				t.Errorf("expected %v, got %v", stamp, after)
			}
		})
	}
}

func TestBoltNegativeIDOrdering(t *testing.T) {
	bo, err := OpenBolt(filepath.Join(t.TempDir(), "mirror.bolt"))
	if err != nil {
		t.Fatalf("OpenBolt failed: %v", err)
	}
	defer bo.Close()

	if err := bo.ReplaceAll([]Post{{ID: 10}, {ID: -3}, {ID: 0}}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	got, err := bo.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 3 || got[0].ID != -3 || got[1].ID != 0 || got[2].ID != 10 {
		t.Errorf("expected ids [-3 0 10], got %+v", got)
	}
}

func TestPersistenceErrorAfterClose(t *testing.T) {
	st, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	st.Close()

	if err := st.ReplaceAll([]Post{{ID: 1}}); !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence from ReplaceAll, got %v", err)
	}
	if _, err := st.ReadAll(); !errors.Is(err, ErrPersistence) {
		t.Errorf("expected ErrPersistence from ReadAll, got %v", err)
	}
}

func TestOpenMirror(t *testing.T) {
	dir := t.TempDir()

	m, err := OpenMirror(BackendBolt, filepath.Join(dir, "m.bolt"))
	if err != nil {
		t.Fatalf("OpenMirror(bolt) failed: %v", err)
	}
	if _, ok := m.(*Bolt); !ok {
		t.Errorf("expected *Bolt, got %T", m)
	}
	m.Close()

	m, err = OpenMirror("", filepath.Join(dir, "m.db"))
	if err != nil {
		t.Fatalf("OpenMirror(default) failed: %v", err)
	}
	if _, ok := m.(*SQLite); !ok {
		t.Errorf("expected *SQLite, got %T", m)
	}
	m.Close()

	if _, err := OpenMirror("redis", filepath.Join(dir, "x")); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.db")

	st, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := st.ReplaceAll([]Post{{ID: 1, Title: "kept"}}); err != nil {
		t.Fatalf("ReplaceAll failed: %v", err)
	}
	st.Close()

	st, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer st.Close()

	got, err := st.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(got) != 1 || got[0].Title != "kept" {
		t.Errorf("expected row to survive reopen, got %+v", got)
	}
}
