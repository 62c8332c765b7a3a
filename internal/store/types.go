package store

import "database/sql"

// ContactRow is a row of the contacts table.
type ContactRow struct {
	ID                 string
	FirstName          string
	LastName           string
	PhoneNumber        string
	ProfileImageURL    sql.NullString
	IsInDeviceContacts bool
	CreatedAt          sql.NullString
}

// SearchHistoryRow is a row of the search_history table.
type SearchHistoryRow struct {
	ID          int64
	SearchQuery string
	SearchedAt  int64 // unix millis
}
