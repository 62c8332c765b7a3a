package sync

import (
	"context"
	"errors"
	"path/filepath"
	"regexp"
	gosync "sync"
	"testing"
	"time"

	"github.com/matheus3301/phonecontact/internal/bus"
	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/remote"
	"github.com/matheus3301/phonecontact/internal/store"
)

func testDB(t *testing.T, b *bus.Bus) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path, b)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

var errOffline = &remote.OperationError{Op: "test", Message: "offline"}

// stubRemote records calls and answers from canned values.
type stubRemote struct {
	mu    gosync.Mutex
	calls []string

	createID string // id the server assigns on create
	err      error  // returned by every call when set
	list     []remote.ContactDTO
	get      remote.ContactDTO
	url      string
	filename string
}

func (s *stubRemote) called(op string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, op)
	return s.err
}

func (s *stubRemote) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubRemote) CreateContact(_ context.Context, dto remote.ContactDTO) (remote.ContactDTO, error) {
	if err := s.called(remote.OpCreate); err != nil {
		return remote.ContactDTO{}, err
	}
	if s.createID != "" {
		dto.ID = remote.Ptr(s.createID)
	}
	return dto, nil
}

func (s *stubRemote) GetContact(_ context.Context, id string) (remote.ContactDTO, error) {
	if err := s.called(remote.OpGet); err != nil {
		return remote.ContactDTO{}, err
	}
	return s.get, nil
}

func (s *stubRemote) UpdateContact(_ context.Context, id string, dto remote.ContactDTO) (remote.ContactDTO, error) {
	if err := s.called(remote.OpUpdate); err != nil {
		return remote.ContactDTO{}, err
	}
	return dto, nil
}

func (s *stubRemote) DeleteContact(_ context.Context, id string) error {
	return s.called(remote.OpDelete)
}

func (s *stubRemote) ListContacts(_ context.Context) ([]remote.ContactDTO, error) {
	if err := s.called(remote.OpList); err != nil {
		return nil, err
	}
	return s.list, nil
}

func (s *stubRemote) UploadImage(_ context.Context, data []byte, filename string) (string, error) {
	s.mu.Lock()
	s.filename = filename
	s.mu.Unlock()
	if err := s.called(remote.OpUpload); err != nil {
		return "", err
	}
	return s.url, nil
}

func newRepo(t *testing.T, r Remote) (*Repository, *bus.Bus) {
	t.Helper()
	b := bus.New()
	return NewRepository(testDB(t, b), r, b, nil), b
}

func ada() domain.Contact {
	return domain.Contact{ID: "client-1", FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "1234567890", CreatedAt: "1700000000000"}
}

func TestCreateFallsBackToLocal(t *testing.T) {
	repo, _ := newRepo(t, &stubRemote{err: errOffline})

	created, err := repo.Create(context.Background(), ada())
	if err != nil {
		t.Fatalf("Create should succeed offline: %v", err)
	}
	if created.ID != "client-1" {
		t.Errorf("id = %q, want client-1", created.ID)
	}

	got, err := repo.GetContact("client-1")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.FirstName != "Ada" {
		t.Errorf("GetContact = %+v, want stored client record", got)
	}
}

func TestCreateStoresServerRecord(t *testing.T) {
	repo, b := newRepo(t, &stubRemote{createID: "srv-1"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watch := repo.WatchContacts(ctx)
	if s := <-watch; len(s.Items) != 0 {
		t.Fatalf("initial snapshot = %+v, want empty", s.Items)
	}

	events, unsub := b.Subscribe("remote.", 10)
	defer unsub()

	created, err := repo.Create(context.Background(), ada())
	if err != nil {
		t.Fatal(err)
	}
	if created.ID != "srv-1" {
		t.Errorf("id = %q, want srv-1", created.ID)
	}
	if created.CreatedAt != "1700000000000" {
		t.Errorf("createdAt = %q, want client stamp kept", created.CreatedAt)
	}

	all, err := repo.ListContacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != "srv-1" || all[0].FirstName != "Ada" || all[0].LastName != "Lovelace" {
		t.Errorf("store = %+v, want exactly srv-1 Ada Lovelace", all)
	}
	if c, _ := repo.GetContact("client-1"); c != nil {
		t.Error("client-proposed id should not be stored")
	}

	select {
	case s := <-watch:
		if len(s.Items) != 1 || s.Items[0].ID != "srv-1" {
			t.Errorf("watch emission = %+v", s.Items)
		}
	case <-time.After(time.Second):
		t.Fatal("watcher did not see the created contact")
	}

	select {
	case evt := <-events:
		if evt.Kind != bus.KindRemoteSucceeded {
			t.Errorf("event = %q, want %q", evt.Kind, bus.KindRemoteSucceeded)
		}
	case <-time.After(time.Second):
		t.Fatal("no remote outcome event")
	}
}

func TestCreateLocalFailureNotMasked(t *testing.T) {
	b := bus.New()
	db := testDB(t, b)
	repo := NewRepository(db, &stubRemote{err: errOffline}, b, nil)
	_ = db.Close()

	_, err := repo.Create(context.Background(), ada())
	if !domain.IsLocalStoreFailure(err) {
		t.Errorf("err = %v, want local store failure", err)
	}
}

func TestUpdate(t *testing.T) {
	tests := []struct {
		name       string
		remoteErr  error
		wantRemote bool
	}{
		{"remote ok", nil, true},
		{"remote down", errOffline, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubRemote{}
			repo, _ := newRepo(t, stub)
			if _, err := repo.Create(context.Background(), ada()); err != nil {
				t.Fatal(err)
			}
			if _, err := repo.MarkInDeviceContacts("client-1"); err != nil {
				t.Fatal(err)
			}
			stub.err = tt.remoteErr

			c := ada()
			c.LastName = "Byron"
			res, err := repo.Update(context.Background(), c)
			if err != nil {
				t.Fatal(err)
			}
			if res.Affected != 1 || res.Remote != tt.wantRemote {
				t.Errorf("result = %+v", res)
			}

			got, _ := repo.GetContact("client-1")
			if got.LastName != "Byron" {
				t.Errorf("last name = %q, want Byron", got.LastName)
			}
			if !got.IsInDeviceContacts {
				t.Error("update cleared the device flag")
			}
		})
	}
}

func TestUpdateMissingReturnsZero(t *testing.T) {
	repo, _ := newRepo(t, &stubRemote{err: errOffline})

	c := ada()
	c.ID = "nope"
	res, err := repo.Update(context.Background(), c)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Affected != 0 {
		t.Errorf("affected = %d, want 0", res.Affected)
	}
	if c, _ := repo.GetContact("nope"); c != nil {
		t.Error("update must not create a contact")
	}
}

func TestDeleteIdempotent(t *testing.T) {
	for _, remoteErr := range []error{nil, errOffline} {
		stub := &stubRemote{}
		repo, _ := newRepo(t, stub)
		if _, err := repo.Create(context.Background(), ada()); err != nil {
			t.Fatal(err)
		}
		stub.err = remoteErr

		res, err := repo.Delete(context.Background(), "client-1")
		if err != nil {
			t.Fatalf("first delete: %v", err)
		}
		if res.Affected != 1 || res.Remote != (remoteErr == nil) {
			t.Errorf("first delete = %+v", res)
		}
		if c, _ := repo.GetContact("client-1"); c != nil {
			t.Error("contact still present after delete")
		}

		res, err = repo.Delete(context.Background(), "client-1")
		if err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if res.Affected != 0 {
			t.Errorf("second delete affected %d, want 0", res.Affected)
		}
	}
}

func TestSyncAllIsAdditive(t *testing.T) {
	stub := &stubRemote{err: errOffline}
	repo, b := newRepo(t, stub)

	if _, err := repo.Create(context.Background(), ada()); err != nil {
		t.Fatal(err)
	}

	stub.err = nil
	stub.list = []remote.ContactDTO{
		{ID: remote.Ptr("srv-7"), FirstName: "Bob", LastName: "Marley", PhoneNumber: "1234567890"},
	}
	events, unsub := b.Subscribe("sync.", 10)
	defer unsub()

	pulled, err := repo.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(pulled) != 1 {
		t.Errorf("pulled %d, want 1", len(pulled))
	}

	all, err := repo.ListContacts()
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 || all[0].ID != "client-1" || all[1].ID != "srv-7" {
		t.Errorf("store after sync = %+v", all)
	}

	cp, err := repo.LastFullSync()
	if err != nil {
		t.Fatal(err)
	}
	if cp == nil || cp.Count != 1 {
		t.Errorf("checkpoint = %+v, want count 1", cp)
	}

	var kinds []string
	for range 2 {
		select {
		case evt := <-events:
			kinds = append(kinds, evt.Kind)
		case <-time.After(time.Second):
			t.Fatal("missing sync event")
		}
	}
	if kinds[0] != bus.KindSyncStarted || kinds[1] != bus.KindSyncCompleted {
		t.Errorf("events = %v", kinds)
	}
}

func TestSyncAllSurfacesFailure(t *testing.T) {
	repo, _ := newRepo(t, &stubRemote{err: errOffline})

	_, err := repo.SyncAll(context.Background())
	if !errors.Is(err, domain.ErrRemoteOperationFailed) {
		t.Errorf("err = %v, want remote failure", err)
	}
	if cp, _ := repo.LastFullSync(); cp != nil {
		t.Errorf("failed sync recorded checkpoint %+v", cp)
	}
}

func TestRefreshKeepsDeviceFlag(t *testing.T) {
	stub := &stubRemote{}
	repo, _ := newRepo(t, stub)
	if _, err := repo.Create(context.Background(), ada()); err != nil {
		t.Fatal(err)
	}
	if _, err := repo.MarkInDeviceContacts("client-1"); err != nil {
		t.Fatal(err)
	}

	stub.get = remote.ContactDTO{ID: remote.Ptr("client-1"), FirstName: "Augusta", LastName: "King", PhoneNumber: "1234567890"}
	c, err := repo.Refresh(context.Background(), "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if c.FirstName != "Augusta" || !c.IsInDeviceContacts {
		t.Errorf("refreshed = %+v", c)
	}

	stub.err = errOffline
	if _, err := repo.Refresh(context.Background(), "client-1"); err == nil {
		t.Error("refresh should surface remote failure")
	}
}

func TestUploadImage(t *testing.T) {
	stub := &stubRemote{url: "http://cdn/img.jpg"}
	repo, _ := newRepo(t, stub)
	repo.now = func() time.Time { return time.UnixMilli(1700000000123) }

	url, err := repo.UploadImage(context.Background(), []byte("jpeg"))
	if err != nil {
		t.Fatal(err)
	}
	if url != "http://cdn/img.jpg" {
		t.Errorf("url = %q", url)
	}
	if stub.filename != "image_1700000000123.jpg" {
		t.Errorf("filename = %q", stub.filename)
	}
	if ok, _ := regexp.MatchString(`^image_\d+\.jpg$`, stub.filename); !ok {
		t.Errorf("filename %q does not match image_<millis>.jpg", stub.filename)
	}

	stub.err = errOffline
	if _, err := repo.UploadImage(context.Background(), []byte("jpeg")); !errors.Is(err, domain.ErrRemoteOperationFailed) {
		t.Errorf("err = %v, want remote failure", err)
	}
}

func TestReadsNeverCallRemote(t *testing.T) {
	stub := &stubRemote{}
	repo, _ := newRepo(t, stub)

	_, _ = repo.ListContacts()
	_, _ = repo.SearchContacts("ada")
	_, _ = repo.GetContact("x")
	_, _ = repo.RecentSearches(5)

	if calls := stub.Calls(); len(calls) != 0 {
		t.Errorf("reads called remote: %v", calls)
	}
}

func TestSearchAndHistory(t *testing.T) {
	stub := &stubRemote{err: errOffline}
	repo, _ := newRepo(t, stub)

	for _, c := range []domain.Contact{
		{ID: "1", FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "1234567890"},
		{ID: "2", FirstName: "Bob", LastName: "Ada", PhoneNumber: "1234567890"},
		{ID: "3", FirstName: "Carl", LastName: "Sagan", PhoneNumber: "1234567890"},
	} {
		if _, err := repo.Create(context.Background(), c); err != nil {
			t.Fatal(err)
		}
	}

	found, err := repo.SearchContacts("ADA")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 2 {
		t.Errorf("found %d, want 2", len(found))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	history := repo.WatchRecentSearches(ctx, 5)
	<-history

	if _, err := repo.RecordSearch("ada", 10); err != nil {
		t.Fatal(err)
	}
	select {
	case s := <-history:
		if len(s.Items) != 1 || s.Items[0].SearchQuery != "ada" {
			t.Errorf("history = %+v", s.Items)
		}
	case <-time.After(time.Second):
		t.Fatal("history watcher did not update")
	}
}
