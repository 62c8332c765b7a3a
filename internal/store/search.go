package store

import (
	"fmt"

	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/domain"
)

// ListRecentSearches returns up to limit search history entries, most recent
// first.
func (db *DB) ListRecentSearches(limit int) ([]SearchHistoryRow, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := db.Query(`
		SELECT id, search_query, searched_at
		FROM search_history
		ORDER BY searched_at DESC, id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []SearchHistoryRow
	for rows.Next() {
		var r SearchHistoryRow
		if err := rows.Scan(&r.ID, &r.SearchQuery, &r.SearchedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertSearch records a search and returns the new entry's id. Any earlier
// entry with the same query (ignoring case) is removed first, and entries
// beyond the keep most recent are pruned.
func (db *DB) InsertSearch(query string, searchedAt int64, keep int) (int64, error) {
	key := domain.FoldCase(query)

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM search_history WHERE query_key = ?`, key); err != nil {
		return 0, fmt.Errorf("remove duplicate search: %w", err)
	}

	res, err := tx.Exec(`INSERT INTO search_history (search_query, query_key, searched_at) VALUES (?, ?, ?)`, query, key, searchedAt)
	if err != nil {
		return 0, fmt.Errorf("insert search: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if keep > 0 {
		if _, err := tx.Exec(`
			DELETE FROM search_history
			WHERE id NOT IN (
				SELECT id FROM search_history
				ORDER BY searched_at DESC, id DESC
				LIMIT ?
			)`, keep); err != nil {
			return 0, fmt.Errorf("prune search history: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	db.changed(bus.KindSearchHistoryChanged, "insert")
	return id, nil
}

// RemoveSearch deletes the entry matching query, ignoring case.
func (db *DB) RemoveSearch(query string) (int64, error) {
	res, err := db.Exec(`DELETE FROM search_history WHERE query_key = ?`, domain.FoldCase(query))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		db.changed(bus.KindSearchHistoryChanged, "remove")
	}
	return n, nil
}

// ClearSearchHistory deletes every search history entry.
func (db *DB) ClearSearchHistory() error {
	if _, err := db.Exec(`DELETE FROM search_history`); err != nil {
		return err
	}
	db.changed(bus.KindSearchHistoryChanged, "clear")
	return nil
}
