package bus

import "time"

// Event kinds published by the contact layer. Subscribers filter by prefix,
// e.g. "store." receives every table change.
const (
	KindContactsChanged      = "store.contacts"
	KindSearchHistoryChanged = "store.search_history"

	KindRemoteSucceeded = "remote.succeeded"
	KindRemoteFailed    = "remote.failed"

	KindSyncStarted   = "sync.started"
	KindSyncCompleted = "sync.completed"
	KindSyncFailed    = "sync.failed"

	KindStatusChanged = "status.changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// NewEvent returns an event of the given kind stamped with the current time.
func NewEvent(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
