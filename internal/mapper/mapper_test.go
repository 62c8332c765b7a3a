package mapper

import (
	"database/sql"
	"testing"
	"time"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/remote"
	"github.com/matheus3301/phonecontact/internal/store"
)

func fixedIDs(t *testing.T, ids ...string) {
	t.Helper()
	orig := NewID
	i := 0
	NewID = func() string {
		id := ids[i]
		i++
		return id
	}
	t.Cleanup(func() { NewID = orig })
}

func TestRowContactCopiesEveryField(t *testing.T) {
	r := store.ContactRow{
		ID:                 "c1",
		FirstName:          "Ada",
		LastName:           "Lovelace",
		PhoneNumber:        "+5585999999999",
		ProfileImageURL:    sql.NullString{String: "http://img/1.jpg", Valid: true},
		IsInDeviceContacts: true,
		CreatedAt:          sql.NullString{String: "1700000000000", Valid: true},
	}
	c := RowToContact(r)
	want := domain.Contact{
		ID:                 "c1",
		FirstName:          "Ada",
		LastName:           "Lovelace",
		PhoneNumber:        "+5585999999999",
		ProfileImageURL:    "http://img/1.jpg",
		IsInDeviceContacts: true,
		CreatedAt:          "1700000000000",
	}
	if c != want {
		t.Errorf("RowToContact = %+v, want %+v", c, want)
	}
	if back := ContactToRow(c); back != r {
		t.Errorf("ContactToRow = %+v, want %+v", back, r)
	}
}

func TestContactToRowAssignsID(t *testing.T) {
	fixedIDs(t, "generated")

	r := ContactToRow(domain.Contact{FirstName: "Ada"})
	if r.ID != "generated" {
		t.Errorf("id = %q, want generated", r.ID)
	}
	if r.ProfileImageURL.Valid || r.CreatedAt.Valid {
		t.Errorf("empty optionals should be NULL: %+v", r)
	}

	// Existing ids are never replaced.
	if r := ContactToRow(domain.Contact{ID: "keep"}); r.ID != "keep" {
		t.Errorf("id = %q, want keep", r.ID)
	}
}

func TestDTOToContact(t *testing.T) {
	fixedIDs(t, "generated")

	c := DTOToContact(remote.ContactDTO{FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "1234567890"})
	if c.ID != "generated" {
		t.Errorf("id = %q, want generated", c.ID)
	}
	if c.IsInDeviceContacts {
		t.Error("device flag must default to false")
	}

	c = DTOToContact(remote.ContactDTO{
		ID:              remote.Ptr("srv-1"),
		FirstName:       "Bob",
		ProfileImageURL: remote.Ptr("http://img"),
		CreatedAt:       remote.Ptr("1"),
	})
	if c.ID != "srv-1" || c.ProfileImageURL != "http://img" || c.CreatedAt != "1" {
		t.Errorf("got %+v", c)
	}
}

func TestContactToDTOOmitsEmptyOptionals(t *testing.T) {
	d := ContactToDTO(domain.Contact{ID: "c1", FirstName: "Ada", IsInDeviceContacts: true})
	if remote.Deref(d.ID) != "c1" {
		t.Errorf("id = %v", d.ID)
	}
	if d.ProfileImageURL != nil || d.CreatedAt != nil {
		t.Errorf("optionals should be nil: %+v", d)
	}

	if d := ContactToDTO(domain.Contact{}); d.ID != nil {
		t.Errorf("empty id should be omitted, got %q", *d.ID)
	}
}

func TestListVariantsPreserveOrder(t *testing.T) {
	fixedIDs(t, "g1", "g2")

	dtos := []remote.ContactDTO{
		{ID: remote.Ptr("z"), FirstName: "Zed"},
		{FirstName: "Ann"},
		{ID: remote.Ptr("m"), FirstName: "Mo"},
		{FirstName: "Bea"},
	}
	contacts := DTOsToContacts(dtos)
	wantIDs := []string{"z", "g1", "m", "g2"}
	for i, id := range wantIDs {
		if contacts[i].ID != id {
			t.Errorf("contacts[%d].ID = %q, want %q", i, contacts[i].ID, id)
		}
	}

	rows := ContactsToRows(contacts)
	back := RowsToContacts(rows)
	for i := range contacts {
		if back[i] != contacts[i] {
			t.Errorf("element %d changed: %+v -> %+v", i, contacts[i], back[i])
		}
	}

	if got := RowsToContacts(nil); len(got) != 0 {
		t.Errorf("nil input gave %d contacts", len(got))
	}
}

func TestRowToSearchEntry(t *testing.T) {
	e := RowToSearchEntry(store.SearchHistoryRow{ID: 3, SearchQuery: "ada", SearchedAt: 1700000000123})
	if e.ID != 3 || e.SearchQuery != "ada" {
		t.Errorf("got %+v", e)
	}
	if !e.SearchedAt.Equal(time.UnixMilli(1700000000123)) {
		t.Errorf("searched at = %v", e.SearchedAt)
	}
}
