package store

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheus3301/phonecontact/internal/bus"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	return testDBWithBus(t, nil)
}

func testDBWithBus(t *testing.T, b *bus.Bus) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(path, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func row(id, first, last string) ContactRow {
	return ContactRow{ID: id, FirstName: first, LastName: last, PhoneNumber: "1234567890"}
}

func TestMigrateIdempotent(t *testing.T) {
	db := testDB(t)

	// testDB already ran Migrate, so this run must be a no-op.
	result, err := db.Migrate()
	if err != nil {
		t.Fatal(err)
	}
	if result.Changed {
		t.Error("second Migrate() should report Changed=false")
	}
	if result.Version != 1 {
		t.Errorf("version = %d, want 1", result.Version)
	}
}

func TestResetRecreatesSchema(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertOrReplaceContact(row("c1", "Ada", "Lovelace")); err != nil {
		t.Fatal(err)
	}
	if _, err := db.InsertSearch("ada", 1000, 10); err != nil {
		t.Fatal(err)
	}

	result, err := db.Reset()
	if err != nil {
		t.Fatal(err)
	}
	if result.Version != 1 || result.Dirty {
		t.Errorf("after reset: version=%d dirty=%v, want 1 clean", result.Version, result.Dirty)
	}

	n, err := db.ContactCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("contact count after reset = %d, want 0", n)
	}
	searches, err := db.ListRecentSearches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(searches) != 0 {
		t.Errorf("got %d searches after reset, want 0", len(searches))
	}

	// Schema is usable again.
	if _, err := db.InsertOrReplaceContact(row("c2", "Bob", "Ada")); err != nil {
		t.Fatal(err)
	}
}

func TestListContactsOrdering(t *testing.T) {
	db := testDB(t)

	inserts := []ContactRow{
		row("1", "Carl", "Sagan"),
		row("2", "Ada", "Lovelace"),
		row("3", "Bob", "Marley"),
		row("4", "Ada", "Byron"),
		row("5", "ada", "Amber"),
	}
	for _, r := range inserts {
		if _, err := db.InsertOrReplaceContact(r); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := db.ListContacts()
	if err != nil {
		t.Fatal(err)
	}

	// Binary collation puts upper case before lower case.
	want := []string{"4", "2", "3", "1", "5"}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, id := range want {
		if rows[i].ID != id {
			t.Errorf("rows[%d].ID = %q, want %q (%s %s)", i, rows[i].ID, id, rows[i].FirstName, rows[i].LastName)
		}
	}
}

func TestInsertOrReplaceOverwrites(t *testing.T) {
	db := testDB(t)

	r := row("c1", "Ada", "Lovelace")
	r.ProfileImageURL = sql.NullString{String: "http://img/1.jpg", Valid: true}
	r.CreatedAt = sql.NullString{String: "1700000000000", Valid: true}
	id, err := db.InsertOrReplaceContact(r)
	if err != nil {
		t.Fatal(err)
	}
	if id != "c1" {
		t.Errorf("id = %q, want c1", id)
	}

	r.FirstName = "Augusta"
	r.ProfileImageURL = sql.NullString{}
	if _, err := db.InsertOrReplaceContact(r); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetContact("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil {
		t.Fatal("expected contact c1")
	}
	if got.FirstName != "Augusta" {
		t.Errorf("first name = %q, want Augusta", got.FirstName)
	}
	if got.ProfileImageURL.Valid {
		t.Errorf("profile image url = %q, want NULL", got.ProfileImageURL.String)
	}
	if got.CreatedAt.String != "1700000000000" {
		t.Errorf("created_at = %q, want 1700000000000", got.CreatedAt.String)
	}
}

func TestDeviceFlagNeverCleared(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertOrReplaceContact(row("c1", "Ada", "Lovelace")); err != nil {
		t.Fatal(err)
	}
	if n, err := db.MarkInDeviceContacts("c1"); err != nil || n != 1 {
		t.Fatalf("MarkInDeviceContacts = %d, %v", n, err)
	}

	// Remote records never carry the flag.
	if err := db.BulkUpsertContacts([]ContactRow{row("c1", "Ada", "King")}); err != nil {
		t.Fatal(err)
	}
	if _, err := db.UpdateContact(row("c1", "Ada", "Byron")); err != nil {
		t.Fatal(err)
	}

	got, err := db.GetContact("c1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.IsInDeviceContacts {
		t.Error("device flag was cleared")
	}
	if got.LastName != "Byron" {
		t.Errorf("last name = %q, want Byron", got.LastName)
	}
}

func TestGetContactMissing(t *testing.T) {
	db := testDB(t)

	c, err := db.GetContact("missing")
	if err != nil {
		t.Fatal(err)
	}
	if c != nil {
		t.Errorf("expected nil for missing contact, got %+v", c)
	}
}

func TestUpdateContact(t *testing.T) {
	db := testDB(t)

	n, err := db.UpdateContact(row("missing", "Ada", "Lovelace"))
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("update of missing id affected %d rows, want 0", n)
	}

	r := row("c1", "Ada", "Lovelace")
	r.CreatedAt = sql.NullString{String: "100", Valid: true}
	if _, err := db.InsertOrReplaceContact(r); err != nil {
		t.Fatal(err)
	}

	upd := row("c1", "Ada", "Byron")
	upd.PhoneNumber = "+5585999999999"
	n, err = db.UpdateContact(upd)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("affected = %d, want 1", n)
	}

	got, err := db.GetContact("c1")
	if err != nil {
		t.Fatal(err)
	}
	if got.LastName != "Byron" || got.PhoneNumber != "+5585999999999" {
		t.Errorf("got %+v", got)
	}
	if got.CreatedAt.String != "100" {
		t.Errorf("created_at = %q, update must not change it", got.CreatedAt.String)
	}
}

func TestDeleteContactIdempotent(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertOrReplaceContact(row("c1", "Ada", "Lovelace")); err != nil {
		t.Fatal(err)
	}

	n, err := db.DeleteContact("c1")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("first delete affected %d, want 1", n)
	}

	n, err = db.DeleteContact("c1")
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if n != 0 {
		t.Errorf("second delete affected %d, want 0", n)
	}

	if c, _ := db.GetContact("c1"); c != nil {
		t.Error("contact still present after delete")
	}
}

func TestSearchContacts(t *testing.T) {
	db := testDB(t)

	for _, r := range []ContactRow{
		row("1", "Ada", "Lovelace"),
		row("2", "Bob", "Ada"),
		row("3", "Carl", "Sagan"),
		row("4", "100%", "Real"),
		row("5", "Élodie", "Ørsted"),
	} {
		if _, err := db.InsertOrReplaceContact(r); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"ada", []string{"1", "2"}},
		{"ADA", []string{"1", "2"}},
		{"a l", []string{"1"}},
		{"bob ada", []string{"2"}},
		{"zz", nil},
		{"%", []string{"4"}},
		{"_", nil},
		{"élodie", []string{"5"}},
		{"ÉLODIE", []string{"5"}},
		{"ørsted", []string{"5"}},
		{"ÉLODIE ØR", []string{"5"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rows, err := db.SearchContacts(tt.query)
			if err != nil {
				t.Fatal(err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("got %d rows, want %d", len(rows), len(tt.want))
			}
			for i, id := range tt.want {
				if rows[i].ID != id {
					t.Errorf("rows[%d].ID = %q, want %q", i, rows[i].ID, id)
				}
			}
		})
	}
}

func TestBulkUpsertContacts(t *testing.T) {
	db := testDB(t)

	if _, err := db.InsertOrReplaceContact(row("local", "Zed", "Local")); err != nil {
		t.Fatal(err)
	}

	var rows []ContactRow
	for i := range 5 {
		rows = append(rows, row(fmt.Sprintf("srv-%d", i), "Name", fmt.Sprintf("N%d", i)))
	}
	if err := db.BulkUpsertContacts(rows); err != nil {
		t.Fatal(err)
	}
	// Re-applying the same batch must not duplicate.
	if err := db.BulkUpsertContacts(rows); err != nil {
		t.Fatal(err)
	}

	n, err := db.ContactCount()
	if err != nil {
		t.Fatal(err)
	}
	if n != 6 {
		t.Errorf("count = %d, want 6", n)
	}
}

func TestSearchHistoryDedupAndOrder(t *testing.T) {
	db := testDB(t)

	for i, q := range []string{"abc", "xyz", "ABC"} {
		if _, err := db.InsertSearch(q, int64(1000+i), 10); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.ListRecentSearches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].SearchQuery != "ABC" || entries[1].SearchQuery != "xyz" {
		t.Errorf("order = [%q %q], want [ABC xyz]", entries[0].SearchQuery, entries[1].SearchQuery)
	}
}

func TestSearchHistoryDedupNonASCII(t *testing.T) {
	db := testDB(t)

	for i, q := range []string{"Élan", "Ørsted", "élan"} {
		if _, err := db.InsertSearch(q, int64(1000+i), 10); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.ListRecentSearches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2: %+v", len(entries), entries)
	}
	if entries[0].SearchQuery != "élan" || entries[1].SearchQuery != "Ørsted" {
		t.Errorf("order = [%q %q], want [élan Ørsted]", entries[0].SearchQuery, entries[1].SearchQuery)
	}

	n, err := db.RemoveSearch("ØRSTED")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}
}

func TestSearchHistorySameTimestampOrder(t *testing.T) {
	db := testDB(t)

	for _, q := range []string{"abc", "xyz", "abc"} {
		if _, err := db.InsertSearch(q, 5000, 10); err != nil {
			t.Fatal(err)
		}
	}
	entries, err := db.ListRecentSearches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].SearchQuery != "abc" {
		t.Errorf("entries = %+v, want abc first of 2", entries)
	}
}

func TestSearchHistoryPrune(t *testing.T) {
	db := testDB(t)

	for i := range 15 {
		if _, err := db.InsertSearch(fmt.Sprintf("q%02d", i), int64(i), 10); err != nil {
			t.Fatal(err)
		}
	}

	entries, err := db.ListRecentSearches(100)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 10 {
		t.Fatalf("got %d entries, want 10", len(entries))
	}
	if entries[0].SearchQuery != "q14" || entries[9].SearchQuery != "q05" {
		t.Errorf("kept range = %q..%q, want q14..q05", entries[0].SearchQuery, entries[9].SearchQuery)
	}

	top, err := db.ListRecentSearches(5)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 5 {
		t.Errorf("got %d suggestions, want 5", len(top))
	}
}

func TestRemoveAndClearSearchHistory(t *testing.T) {
	db := testDB(t)

	for i, q := range []string{"ada", "bob", "carl"} {
		if _, err := db.InsertSearch(q, int64(i), 10); err != nil {
			t.Fatal(err)
		}
	}

	n, err := db.RemoveSearch("BOB")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("removed %d, want 1", n)
	}

	if err := db.ClearSearchHistory(); err != nil {
		t.Fatal(err)
	}
	entries, err := db.ListRecentSearches(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries after clear, want 0", len(entries))
	}
}

func TestSyncState(t *testing.T) {
	db := testDB(t)

	v, err := db.SyncState("last_full_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("unset value = %q, want empty", v)
	}

	if err := db.SetSyncState("last_full_sync_at", "1"); err != nil {
		t.Fatal(err)
	}
	if err := db.SetSyncState("last_full_sync_at", "2"); err != nil {
		t.Fatal(err)
	}
	v, err = db.SyncState("last_full_sync_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2" {
		t.Errorf("value = %q, want 2", v)
	}
}

func TestWritesPublishEvents(t *testing.T) {
	b := bus.New()
	db := testDBWithBus(t, b)

	contacts, unsubContacts := b.Subscribe(bus.KindContactsChanged, 10)
	defer unsubContacts()
	history, unsubHistory := b.Subscribe(bus.KindSearchHistoryChanged, 10)
	defer unsubHistory()

	if _, err := db.InsertOrReplaceContact(row("c1", "Ada", "Lovelace")); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-contacts:
		change, ok := evt.Payload.(Change)
		if !ok || change.Op != "upsert" || len(change.IDs) != 1 || change.IDs[0] != "c1" {
			t.Errorf("payload = %#v", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for contacts event")
	}

	// A no-op update must stay silent.
	if _, err := db.UpdateContact(row("missing", "A", "B")); err != nil {
		t.Fatal(err)
	}
	select {
	case evt := <-contacts:
		t.Errorf("unexpected event for no-op update: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := db.InsertSearch("ada", 1, 10); err != nil {
		t.Fatal(err)
	}
	select {
	case <-history:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for search history event")
	}
}
