package store

import (
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/domain"
)

var contactColumns = []string{
	"id", "first_name", "last_name", "phone_number",
	"profile_image_url", "is_in_device_contacts", "created_at",
}

// Names compare with SQLite's default BINARY collation; id breaks ties so the
// order is total.
var contactOrder = []string{"first_name ASC", "last_name ASC", "id ASC"}

// The device flag only ever moves from false to true.
const upsertContactSuffix = `ON CONFLICT(id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	phone_number = excluded.phone_number,
	profile_image_url = excluded.profile_image_url,
	is_in_device_contacts = MAX(contacts.is_in_device_contacts, excluded.is_in_device_contacts),
	created_at = excluded.created_at,
	updated_at = excluded.updated_at`

func upsertContact(r ContactRow, now int64) sq.InsertBuilder {
	return sq.Insert("contacts").
		Columns(append(contactColumns, "updated_at")...).
		Values(r.ID, r.FirstName, r.LastName, r.PhoneNumber,
			r.ProfileImageURL, r.IsInDeviceContacts, r.CreatedAt, now).
		Suffix(upsertContactSuffix)
}

// ListContacts returns every cached contact ordered by first then last name.
func (db *DB) ListContacts() ([]ContactRow, error) {
	return db.selectContacts(sq.Select(contactColumns...).
		From("contacts").
		OrderBy(contactOrder...))
}

// SearchContacts returns contacts whose first name, last name or
// "first last" contains query, ignoring case. Same order as ListContacts.
func (db *DB) SearchContacts(query string) ([]ContactRow, error) {
	// Either name alone is a substring of "first last", so one test covers
	// all three.
	return db.selectContacts(sq.Select(contactColumns...).
		From("contacts").
		Where(sq.Expr(`instr(fold(first_name || ' ' || last_name), ?) > 0`, domain.FoldCase(query))).
		OrderBy(contactOrder...))
}

// GetContact returns a contact by id, or nil if none exists.
func (db *DB) GetContact(id string) (*ContactRow, error) {
	query, args, err := sq.Select(contactColumns...).
		From("contacts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var r ContactRow
	err = db.QueryRow(query, args...).Scan(
		&r.ID, &r.FirstName, &r.LastName, &r.PhoneNumber,
		&r.ProfileImageURL, &r.IsInDeviceContacts, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// InsertOrReplaceContact upserts a contact keyed by id and returns the id.
// An existing row is overwritten except for the device flag, which is never
// cleared.
func (db *DB) InsertOrReplaceContact(r ContactRow) (string, error) {
	query, args, err := upsertContact(r, time.Now().UnixMilli()).ToSql()
	if err != nil {
		return "", err
	}
	if _, err := db.Exec(query, args...); err != nil {
		return "", fmt.Errorf("upsert contact %q: %w", r.ID, err)
	}
	db.changed(bus.KindContactsChanged, "upsert", r.ID)
	return r.ID, nil
}

// BulkUpsertContacts upserts multiple contacts in a single transaction.
func (db *DB) BulkUpsertContacts(rows []ContactRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		query, args, err := upsertContact(r, now).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(query, args...); err != nil {
			return fmt.Errorf("upsert contact %q: %w", r.ID, err)
		}
		ids = append(ids, r.ID)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	db.changed(bus.KindContactsChanged, "bulk_upsert", ids...)
	return nil
}

// UpdateContact overwrites the row with r's id and reports how many rows
// matched (0 or 1). created_at is left untouched and the device flag is
// never cleared.
func (db *DB) UpdateContact(r ContactRow) (int64, error) {
	query, args, err := sq.Update("contacts").
		Set("first_name", r.FirstName).
		Set("last_name", r.LastName).
		Set("phone_number", r.PhoneNumber).
		Set("profile_image_url", r.ProfileImageURL).
		Set("is_in_device_contacts", sq.Expr("MAX(is_in_device_contacts, ?)", r.IsInDeviceContacts)).
		Set("updated_at", time.Now().UnixMilli()).
		Where(sq.Eq{"id": r.ID}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return db.execContacts("update", r.ID, query, args)
}

// DeleteContact removes a contact and reports how many rows matched.
func (db *DB) DeleteContact(id string) (int64, error) {
	query, args, err := sq.Delete("contacts").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return 0, err
	}
	return db.execContacts("delete", id, query, args)
}

// MarkInDeviceContacts sets the device flag on a contact.
func (db *DB) MarkInDeviceContacts(id string) (int64, error) {
	query, args, err := sq.Update("contacts").
		Set("is_in_device_contacts", true).
		Set("updated_at", time.Now().UnixMilli()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return 0, err
	}
	return db.execContacts("mark_in_device", id, query, args)
}

// ContactCount returns the number of cached contacts.
func (db *DB) ContactCount() (int, error) {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM contacts`).Scan(&n)
	return n, err
}

func (db *DB) execContacts(op, id, query string, args []any) (int64, error) {
	res, err := db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s contact %q: %w", op, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.changed(bus.KindContactsChanged, op, id)
	}
	return n, nil
}

func (db *DB) selectContacts(b sq.SelectBuilder) ([]ContactRow, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ContactRow
	for rows.Next() {
		var r ContactRow
		if err := rows.Scan(
			&r.ID, &r.FirstName, &r.LastName, &r.PhoneNumber,
			&r.ProfileImageURL, &r.IsInDeviceContacts, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
