// Package sync coordinates the local contact store with the remote API.
//
// Reads are always served from the store. Create and update go to the remote
// first and fall back to a local-only write when the remote fails; delete is
// always applied locally; full sync and image upload surface remote failures.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/live"
	"github.com/matheus3301/phonecontact/internal/mapper"
	"github.com/matheus3301/phonecontact/internal/remote"
	"github.com/matheus3301/phonecontact/internal/store"
	"go.uber.org/zap"
)

// Remote is the subset of the API client the repository depends on.
type Remote interface {
	CreateContact(ctx context.Context, dto remote.ContactDTO) (remote.ContactDTO, error)
	GetContact(ctx context.Context, id string) (remote.ContactDTO, error)
	UpdateContact(ctx context.Context, id string, dto remote.ContactDTO) (remote.ContactDTO, error)
	DeleteContact(ctx context.Context, id string) error
	ListContacts(ctx context.Context) ([]remote.ContactDTO, error)
	UploadImage(ctx context.Context, data []byte, filename string) (string, error)
}

// RemoteOutcome is the payload of remote.* events.
type RemoteOutcome struct {
	Op        string
	ContactID string
	Err       error
}

// SyncOutcome is the payload of sync.* events.
type SyncOutcome struct {
	Count int
	Err   error
}

// UpdateResult reports the outcome of Update.
type UpdateResult struct {
	Contact  domain.Contact
	Affected int64
	Remote   bool // the remote accepted the change
}

// DeleteResult reports the outcome of Delete.
type DeleteResult struct {
	Affected int64
	Remote   bool
}

// Repository is a stateless coordinator over the store and the remote API.
type Repository struct {
	db         *store.DB
	remote     Remote
	bus        *bus.Bus
	reconciler *Reconciler
	logger     *zap.Logger
	now        func() time.Time
}

// NewRepository creates a repository. Remote outcomes and sync progress are
// published on b.
func NewRepository(db *store.DB, r Remote, b *bus.Bus, logger *zap.Logger) *Repository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{
		db:         db,
		remote:     r,
		bus:        b,
		reconciler: NewReconciler(db, logger),
		logger:     logger,
		now:        time.Now,
	}
}

// ListContacts returns every local contact ordered by name.
func (r *Repository) ListContacts() ([]domain.Contact, error) {
	rows, err := r.db.ListContacts()
	if err != nil {
		return nil, r.localErr("list contacts", err)
	}
	return mapper.RowsToContacts(rows), nil
}

// WatchContacts streams the full contact list now and after every change.
func (r *Repository) WatchContacts(ctx context.Context) <-chan live.Snapshot[domain.Contact] {
	return live.Watch(ctx, r.db.Bus(), bus.KindContactsChanged, r.ListContacts)
}

// SearchContacts returns local contacts whose name contains query.
func (r *Repository) SearchContacts(query string) ([]domain.Contact, error) {
	rows, err := r.db.SearchContacts(query)
	if err != nil {
		return nil, r.localErr("search contacts", err)
	}
	return mapper.RowsToContacts(rows), nil
}

// WatchSearch streams search results for query now and after every change.
func (r *Repository) WatchSearch(ctx context.Context, query string) <-chan live.Snapshot[domain.Contact] {
	return live.Watch(ctx, r.db.Bus(), bus.KindContactsChanged, func() ([]domain.Contact, error) {
		return r.SearchContacts(query)
	})
}

// GetContact returns a local contact by id, or nil if absent.
func (r *Repository) GetContact(id string) (*domain.Contact, error) {
	row, err := r.db.GetContact(id)
	if err != nil {
		return nil, r.localErr("get contact", err)
	}
	if row == nil {
		return nil, nil
	}
	c := mapper.RowToContact(*row)
	return &c, nil
}

// Create sends c to the remote and stores the server's record. When the
// remote fails, c itself is stored and returned so the contact is available
// offline until a later sync.
func (r *Repository) Create(ctx context.Context, c domain.Contact) (domain.Contact, error) {
	dto, err := r.remote.CreateContact(ctx, mapper.ContactToDTO(c))
	if err != nil {
		r.remoteFailed(remote.OpCreate, c.ID, err)
		return r.insertLocal("insert contact", c)
	}
	r.remoteSucceeded(remote.OpCreate, remote.Deref(dto.ID))

	confirmed := r.confirmed(dto, c)
	return r.insertLocal("insert contact", confirmed)
}

// Update sends c to the remote and applies the server's record to the local
// copy, or c itself when the remote fails. Affected is 0 when no local row
// has c's id.
func (r *Repository) Update(ctx context.Context, c domain.Contact) (UpdateResult, error) {
	target := c
	dto, remoteErr := r.remote.UpdateContact(ctx, c.ID, mapper.ContactToDTO(c))
	if remoteErr != nil {
		r.remoteFailed(remote.OpUpdate, c.ID, remoteErr)
	} else {
		r.remoteSucceeded(remote.OpUpdate, c.ID)
		target = r.confirmed(dto, c)
		// The id is the local key; a server echoing another id must not
		// redirect the update.
		target.ID = c.ID
	}

	n, err := r.db.UpdateContact(mapper.ContactToRow(target))
	if err != nil {
		return UpdateResult{}, r.localErr("update contact", err)
	}
	if n == 0 {
		r.logger.Debug("update matched no local contact", zap.String("contact_id", c.ID))
	}
	return UpdateResult{Contact: target, Affected: n, Remote: remoteErr == nil}, nil
}

// Delete removes the contact from the remote, then from the local store
// whether or not the remote succeeded. Deleting an absent id is not an
// error.
func (r *Repository) Delete(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	if err := r.remote.DeleteContact(ctx, id); err != nil {
		r.remoteFailed(remote.OpDelete, id, err)
	} else {
		r.remoteSucceeded(remote.OpDelete, id)
		res.Remote = true
	}

	existing, err := r.db.GetContact(id)
	if err != nil {
		return res, r.localErr("get contact", err)
	}
	if existing == nil {
		return res, nil
	}
	n, err := r.db.DeleteContact(id)
	if err != nil {
		return res, r.localErr("delete contact", err)
	}
	res.Affected = n
	return res, nil
}

// SyncAll pulls every remote contact and upserts it locally. Local contacts
// missing from the remote list are kept.
func (r *Repository) SyncAll(ctx context.Context) ([]domain.Contact, error) {
	start := r.now()
	r.bus.Publish(bus.NewEvent(bus.KindSyncStarted, nil))

	dtos, err := r.remote.ListContacts(ctx)
	if err != nil {
		r.remoteFailed(remote.OpList, "", err)
		r.bus.Publish(bus.NewEvent(bus.KindSyncFailed, SyncOutcome{Err: err}))
		return nil, err
	}
	r.remoteSucceeded(remote.OpList, "")

	contacts := mapper.DTOsToContacts(dtos)
	if err := r.db.BulkUpsertContacts(mapper.ContactsToRows(contacts)); err != nil {
		err = r.localErr("bulk upsert contacts", err)
		r.bus.Publish(bus.NewEvent(bus.KindSyncFailed, SyncOutcome{Err: err}))
		return nil, err
	}

	if err := r.reconciler.RecordFullSync(r.now(), len(contacts)); err != nil {
		r.logger.Warn("failed to record sync checkpoint", zap.Error(err))
	}
	r.logger.Info("full sync completed",
		zap.Int("count", len(contacts)),
		zap.Duration("elapsed", r.now().Sub(start)),
	)
	r.bus.Publish(bus.NewEvent(bus.KindSyncCompleted, SyncOutcome{Count: len(contacts)}))
	return contacts, nil
}

// Refresh pulls one contact from the remote and upserts it locally, keeping
// the local device flag.
func (r *Repository) Refresh(ctx context.Context, id string) (domain.Contact, error) {
	dto, err := r.remote.GetContact(ctx, id)
	if err != nil {
		r.remoteFailed(remote.OpGet, id, err)
		return domain.Contact{}, err
	}
	r.remoteSucceeded(remote.OpGet, id)

	local := domain.Contact{ID: id}
	if existing, err := r.GetContact(id); err != nil {
		return domain.Contact{}, err
	} else if existing != nil {
		local = *existing
	}
	return r.insertLocal("refresh contact", r.confirmed(dto, local))
}

// UploadImage uploads raw image bytes under a timestamped file name and
// returns the hosted URL. There is no local fallback.
func (r *Repository) UploadImage(ctx context.Context, data []byte) (string, error) {
	filename := fmt.Sprintf("image_%d.jpg", r.now().UnixMilli())
	url, err := r.remote.UploadImage(ctx, data, filename)
	if err != nil {
		r.remoteFailed(remote.OpUpload, "", err)
		return "", err
	}
	r.remoteSucceeded(remote.OpUpload, "")
	return url, nil
}

// MarkInDeviceContacts flags a contact as exported to the device address
// book. The flag is local-only.
func (r *Repository) MarkInDeviceContacts(id string) (int64, error) {
	n, err := r.db.MarkInDeviceContacts(id)
	if err != nil {
		return 0, r.localErr("mark in device contacts", err)
	}
	return n, nil
}

// ContactCount returns the number of local contacts.
func (r *Repository) ContactCount() (int, error) {
	n, err := r.db.ContactCount()
	if err != nil {
		return 0, r.localErr("count contacts", err)
	}
	return n, nil
}

// LastFullSync returns the last successful full sync, or nil.
func (r *Repository) LastFullSync() (*Checkpoint, error) {
	cp, err := r.reconciler.LastFullSync()
	if err != nil {
		return nil, r.localErr("read sync checkpoint", err)
	}
	return cp, nil
}

// RecentSearches returns up to limit search history entries, newest first.
func (r *Repository) RecentSearches(limit int) ([]domain.SearchHistoryEntry, error) {
	rows, err := r.db.ListRecentSearches(limit)
	if err != nil {
		return nil, r.localErr("list recent searches", err)
	}
	return mapper.RowsToSearchEntries(rows), nil
}

// WatchRecentSearches streams the search history now and after every change.
func (r *Repository) WatchRecentSearches(ctx context.Context, limit int) <-chan live.Snapshot[domain.SearchHistoryEntry] {
	return live.Watch(ctx, r.db.Bus(), bus.KindSearchHistoryChanged, func() ([]domain.SearchHistoryEntry, error) {
		return r.RecentSearches(limit)
	})
}

// RecordSearch stores query as the most recent search, keeping at most keep
// entries.
func (r *Repository) RecordSearch(query string, keep int) (domain.SearchHistoryEntry, error) {
	at := r.now()
	id, err := r.db.InsertSearch(query, at.UnixMilli(), keep)
	if err != nil {
		return domain.SearchHistoryEntry{}, r.localErr("insert search", err)
	}
	return domain.SearchHistoryEntry{ID: id, SearchQuery: query, SearchedAt: time.UnixMilli(at.UnixMilli())}, nil
}

// RemoveSearch deletes a search history entry, ignoring case.
func (r *Repository) RemoveSearch(query string) (int64, error) {
	n, err := r.db.RemoveSearch(query)
	if err != nil {
		return 0, r.localErr("remove search", err)
	}
	return n, nil
}

// ClearSearchHistory deletes every search history entry.
func (r *Repository) ClearSearchHistory() error {
	if err := r.db.ClearSearchHistory(); err != nil {
		return r.localErr("clear search history", err)
	}
	return nil
}

// confirmed maps a server record, keeping the local-only flag and any
// creation time the server did not echo.
func (r *Repository) confirmed(dto remote.ContactDTO, local domain.Contact) domain.Contact {
	if remote.Deref(dto.ID) == "" {
		dto.ID = remote.Ptr(local.ID)
	}
	c := mapper.DTOToContact(dto)
	c.IsInDeviceContacts = local.IsInDeviceContacts
	if c.CreatedAt == "" {
		c.CreatedAt = local.CreatedAt
	}
	return c
}

func (r *Repository) insertLocal(op string, c domain.Contact) (domain.Contact, error) {
	row := mapper.ContactToRow(c)
	if _, err := r.db.InsertOrReplaceContact(row); err != nil {
		return domain.Contact{}, r.localErr(op, err)
	}
	return mapper.RowToContact(row), nil
}

func (r *Repository) localErr(op string, err error) error {
	r.logger.Error("local store failure", zap.String("op", op), zap.Error(err))
	return &domain.LocalStoreError{Op: op, Err: err}
}

func (r *Repository) remoteSucceeded(op, id string) {
	r.bus.Publish(bus.NewEvent(bus.KindRemoteSucceeded, RemoteOutcome{Op: op, ContactID: id}))
}

func (r *Repository) remoteFailed(op, id string, err error) {
	switch op {
	case remote.OpCreate, remote.OpUpdate, remote.OpDelete:
		r.logger.Warn("remote failed, applying locally only",
			zap.String("op", op),
			zap.String("contact_id", id),
			zap.Error(err),
		)
	default:
		r.logger.Warn("remote failed",
			zap.String("op", op),
			zap.String("contact_id", id),
			zap.Error(err),
		)
	}
	r.bus.Publish(bus.NewEvent(bus.KindRemoteFailed, RemoteOutcome{Op: op, ContactID: id, Err: err}))
}
