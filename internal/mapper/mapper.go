// Package mapper converts contacts between their stored, wire and domain
// representations. Every function is pure apart from identifier generation.
package mapper

import (
	"database/sql"
	"time"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/remote"
	"github.com/matheus3301/phonecontact/internal/store"
)

// NewID generates identifiers for records that lack one.
var NewID = domain.NewID

// RowToContact copies a stored row into a domain contact.
func RowToContact(r store.ContactRow) domain.Contact {
	return domain.Contact{
		ID:                 r.ID,
		FirstName:          r.FirstName,
		LastName:           r.LastName,
		PhoneNumber:        r.PhoneNumber,
		ProfileImageURL:    r.ProfileImageURL.String,
		IsInDeviceContacts: r.IsInDeviceContacts,
		CreatedAt:          r.CreatedAt.String,
	}
}

// ContactToRow copies a domain contact into a row, assigning a new id when
// the contact has none.
func ContactToRow(c domain.Contact) store.ContactRow {
	id := c.ID
	if id == "" {
		id = NewID()
	}
	return store.ContactRow{
		ID:                 id,
		FirstName:          c.FirstName,
		LastName:           c.LastName,
		PhoneNumber:        c.PhoneNumber,
		ProfileImageURL:    nullString(c.ProfileImageURL),
		IsInDeviceContacts: c.IsInDeviceContacts,
		CreatedAt:          nullString(c.CreatedAt),
	}
}

// DTOToContact copies a wire contact into a domain contact, assigning a new
// id when the DTO has none. The device flag is local-only and starts false.
func DTOToContact(d remote.ContactDTO) domain.Contact {
	id := remote.Deref(d.ID)
	if id == "" {
		id = NewID()
	}
	return domain.Contact{
		ID:              id,
		FirstName:       d.FirstName,
		LastName:        d.LastName,
		PhoneNumber:     d.PhoneNumber,
		ProfileImageURL: remote.Deref(d.ProfileImageURL),
		CreatedAt:       remote.Deref(d.CreatedAt),
	}
}

// ContactToDTO copies a domain contact into its wire form. Empty optional
// fields are omitted.
func ContactToDTO(c domain.Contact) remote.ContactDTO {
	return remote.ContactDTO{
		ID:              remote.Ptr(c.ID),
		FirstName:       c.FirstName,
		LastName:        c.LastName,
		PhoneNumber:     c.PhoneNumber,
		ProfileImageURL: remote.Ptr(c.ProfileImageURL),
		CreatedAt:       remote.Ptr(c.CreatedAt),
	}
}

// RowsToContacts maps rows element-wise, preserving order.
func RowsToContacts(rows []store.ContactRow) []domain.Contact {
	out := make([]domain.Contact, len(rows))
	for i, r := range rows {
		out[i] = RowToContact(r)
	}
	return out
}

// ContactsToRows maps contacts element-wise, preserving order.
func ContactsToRows(contacts []domain.Contact) []store.ContactRow {
	out := make([]store.ContactRow, len(contacts))
	for i, c := range contacts {
		out[i] = ContactToRow(c)
	}
	return out
}

// DTOsToContacts maps wire contacts element-wise, preserving order.
func DTOsToContacts(dtos []remote.ContactDTO) []domain.Contact {
	out := make([]domain.Contact, len(dtos))
	for i, d := range dtos {
		out[i] = DTOToContact(d)
	}
	return out
}

// RowToSearchEntry copies a stored search history row into a domain entry.
func RowToSearchEntry(r store.SearchHistoryRow) domain.SearchHistoryEntry {
	return domain.SearchHistoryEntry{
		ID:          r.ID,
		SearchQuery: r.SearchQuery,
		SearchedAt:  time.UnixMilli(r.SearchedAt),
	}
}

// RowsToSearchEntries maps search history rows element-wise, preserving order.
func RowsToSearchEntries(rows []store.SearchHistoryRow) []domain.SearchHistoryEntry {
	out := make([]domain.SearchHistoryEntry, len(rows))
	for i, r := range rows {
		out[i] = RowToSearchEntry(r)
	}
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
