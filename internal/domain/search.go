package domain

import "time"

const (
	// MaxSearchHistory is how many search history entries are retained.
	MaxSearchHistory = 10
	// MaxSearchSuggestions is how many entries are surfaced as suggestions.
	MaxSearchSuggestions = 5
	// MinSearchQueryLength is the shortest trimmed query that gets recorded.
	MinSearchQueryLength = 2
)

// SearchHistoryEntry is a committed search.
type SearchHistoryEntry struct {
	ID          int64
	SearchQuery string
	SearchedAt  time.Time
}
