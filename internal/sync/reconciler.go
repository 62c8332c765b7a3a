package sync

import (
	"strconv"
	"time"

	"github.com/matheus3301/phonecontact/internal/store"
	"go.uber.org/zap"
)

const (
	checkpointLastFullSyncAt    = "last_full_sync_at"
	checkpointLastFullSyncCount = "last_full_sync_count"
)

// Checkpoint describes the last successful full sync.
type Checkpoint struct {
	At    time.Time
	Count int
}

// Reconciler manages full sync checkpoints.
type Reconciler struct {
	db     *store.DB
	logger *zap.Logger
}

// NewReconciler creates a new reconciler.
func NewReconciler(db *store.DB, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{db: db, logger: logger}
}

// RecordFullSync stores the time and size of a completed full sync.
func (r *Reconciler) RecordFullSync(at time.Time, count int) error {
	if err := r.db.SetSyncState(checkpointLastFullSyncAt, strconv.FormatInt(at.UnixMilli(), 10)); err != nil {
		return err
	}
	return r.db.SetSyncState(checkpointLastFullSyncCount, strconv.Itoa(count))
}

// LastFullSync returns the last recorded full sync, or nil if none completed.
func (r *Reconciler) LastFullSync() (*Checkpoint, error) {
	at, err := r.db.SyncState(checkpointLastFullSyncAt)
	if err != nil || at == "" {
		return nil, err
	}
	ms, err := strconv.ParseInt(at, 10, 64)
	if err != nil {
		r.logger.Warn("ignoring malformed sync checkpoint", zap.String("value", at), zap.Error(err))
		return nil, nil
	}

	cp := &Checkpoint{At: time.UnixMilli(ms)}
	if count, err := r.db.SyncState(checkpointLastFullSyncCount); err == nil && count != "" {
		cp.Count, _ = strconv.Atoi(count)
	}
	return cp, nil
}
