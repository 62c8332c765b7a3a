// Package usecase holds the validated entry points the presentation layer
// calls. Input is trimmed and checked here before the repository sees it.
package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/live"
	intsync "github.com/matheus3301/phonecontact/internal/sync"
	"go.uber.org/zap"
)

var errNoAddressBook = errors.New("no address book configured")

// Repository is the synchronizing repository as seen by the use cases.
type Repository interface {
	ListContacts() ([]domain.Contact, error)
	WatchContacts(ctx context.Context) <-chan live.Snapshot[domain.Contact]
	SearchContacts(query string) ([]domain.Contact, error)
	WatchSearch(ctx context.Context, query string) <-chan live.Snapshot[domain.Contact]
	GetContact(id string) (*domain.Contact, error)
	Create(ctx context.Context, c domain.Contact) (domain.Contact, error)
	Update(ctx context.Context, c domain.Contact) (intsync.UpdateResult, error)
	Delete(ctx context.Context, id string) (intsync.DeleteResult, error)
	SyncAll(ctx context.Context) ([]domain.Contact, error)
	Refresh(ctx context.Context, id string) (domain.Contact, error)
	UploadImage(ctx context.Context, data []byte) (string, error)
	MarkInDeviceContacts(id string) (int64, error)
	RecentSearches(limit int) ([]domain.SearchHistoryEntry, error)
	WatchRecentSearches(ctx context.Context, limit int) <-chan live.Snapshot[domain.SearchHistoryEntry]
	RecordSearch(query string, keep int) (domain.SearchHistoryEntry, error)
	RemoveSearch(query string) (int64, error)
	ClearSearchHistory() error
}

// AddressBook writes a contact to the platform's native address book.
type AddressBook interface {
	WriteContact(ctx context.Context, c domain.Contact) error
}

// Options tunes the search history limits.
type Options struct {
	HistoryLimit    int // entries retained
	SuggestionLimit int // entries surfaced as suggestions
}

// Service implements the contact use cases.
type Service struct {
	repo   Repository
	device AddressBook
	logger *zap.Logger
	opts   Options
	now    func() time.Time
	newID  func() string
}

// NewService creates a Service. device may be nil, in which case
// ExportToDevice always fails.
func NewService(repo Repository, device AddressBook, logger *zap.Logger, opts Options) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = domain.MaxSearchHistory
	}
	if opts.SuggestionLimit <= 0 {
		opts.SuggestionLimit = domain.MaxSearchSuggestions
	}
	return &Service{
		repo:   repo,
		device: device,
		logger: logger,
		opts:   opts,
		now:    time.Now,
		newID:  domain.NewID,
	}
}

// CreateInput carries the user-entered fields of a new contact.
type CreateInput struct {
	FirstName       string
	LastName        string
	PhoneNumber     string
	ProfileImageURL string
}

// Create validates the input, assigns an id and creation time, and stores
// the contact. A remote failure still yields a stored contact.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.Contact, error) {
	c := normalize(domain.Contact{
		FirstName:       in.FirstName,
		LastName:        in.LastName,
		PhoneNumber:     in.PhoneNumber,
		ProfileImageURL: in.ProfileImageURL,
	})
	if err := ValidateContact(c); err != nil {
		return domain.Contact{}, err
	}
	c.ID = s.newID()
	c.CreatedAt = strconv.FormatInt(s.now().UnixMilli(), 10)
	return s.repo.Create(ctx, c)
}

// Update validates c and applies it. The id is taken from c as is.
func (s *Service) Update(ctx context.Context, c domain.Contact) (intsync.UpdateResult, error) {
	if strings.TrimSpace(c.ID) == "" {
		return intsync.UpdateResult{}, &domain.ValidationError{Field: "id", Reason: "must not be blank"}
	}
	c = normalize(c)
	if err := ValidateContact(c); err != nil {
		return intsync.UpdateResult{}, err
	}
	return s.repo.Update(ctx, c)
}

// Delete removes a contact. Only local store failures are reported.
func (s *Service) Delete(ctx context.Context, id string) error {
	_, err := s.repo.Delete(ctx, id)
	return err
}

// Contact returns a local contact by id.
func (s *Service) Contact(id string) (domain.Contact, error) {
	c, err := s.repo.GetContact(id)
	if err != nil {
		return domain.Contact{}, err
	}
	if c == nil {
		return domain.Contact{}, domain.ErrNotFound
	}
	return *c, nil
}

// Contacts returns every local contact ordered by name.
func (s *Service) Contacts() ([]domain.Contact, error) {
	return s.repo.ListContacts()
}

// Sections returns every local contact bucketed by grouping letter.
func (s *Service) Sections() ([]domain.Section, error) {
	contacts, err := s.repo.ListContacts()
	if err != nil {
		return nil, err
	}
	return domain.GroupByLetter(contacts), nil
}

// WatchContacts streams the contact list.
func (s *Service) WatchContacts(ctx context.Context) <-chan live.Snapshot[domain.Contact] {
	return s.repo.WatchContacts(ctx)
}

// Search returns contacts matching query. A blank query returns everything.
func (s *Service) Search(query string) ([]domain.Contact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.ListContacts()
	}
	return s.repo.SearchContacts(query)
}

// WatchSearch streams the results of Search.
func (s *Service) WatchSearch(ctx context.Context, query string) <-chan live.Snapshot[domain.Contact] {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.repo.WatchContacts(ctx)
	}
	return s.repo.WatchSearch(ctx, query)
}

// Sync pulls every remote contact into the local store. Failures are
// returned as is.
func (s *Service) Sync(ctx context.Context) ([]domain.Contact, error) {
	return s.repo.SyncAll(ctx)
}

// Refresh pulls one contact from the remote.
func (s *Service) Refresh(ctx context.Context, id string) (domain.Contact, error) {
	if strings.TrimSpace(id) == "" {
		return domain.Contact{}, &domain.ValidationError{Field: "id", Reason: "must not be blank"}
	}
	return s.repo.Refresh(ctx, id)
}

// UploadImage uploads an image and returns its hosted URL.
func (s *Service) UploadImage(ctx context.Context, data []byte) (string, error) {
	switch {
	case len(data) == 0:
		return "", &domain.ValidationError{Field: "image", Reason: "must not be empty"}
	case len(data) > MaxImageBytes:
		return "", &domain.ValidationError{Field: "image", Reason: "must be at most 1 MiB"}
	}
	return s.repo.UploadImage(ctx, data)
}

// SetProfileImage uploads data and points the contact at the new URL.
func (s *Service) SetProfileImage(ctx context.Context, id string, data []byte) (intsync.UpdateResult, error) {
	c, err := s.Contact(id)
	if err != nil {
		return intsync.UpdateResult{}, err
	}
	url, err := s.UploadImage(ctx, data)
	if err != nil {
		return intsync.UpdateResult{}, err
	}
	c.ProfileImageURL = url
	return s.Update(ctx, c)
}

// ExportToDevice writes the contact to the address book and flags it as
// exported.
func (s *Service) ExportToDevice(ctx context.Context, id string) (domain.Contact, error) {
	c, err := s.Contact(id)
	if err != nil {
		return domain.Contact{}, err
	}
	if s.device == nil {
		return domain.Contact{}, errNoAddressBook
	}
	if err := s.device.WriteContact(ctx, c); err != nil {
		return domain.Contact{}, err
	}
	if _, err := s.repo.MarkInDeviceContacts(id); err != nil {
		return domain.Contact{}, err
	}
	c.IsInDeviceContacts = true
	s.logger.Info("contact exported to device", zap.String("contact_id", id))
	return c, nil
}

// RecordSearch commits query to the search history. Queries shorter than
// two characters (runes) after trimming are ignored and reported as not recorded.
func (s *Service) RecordSearch(query string) (bool, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < domain.MinSearchQueryLength {
		return false, nil
	}
	if _, err := s.repo.RecordSearch(query, s.opts.HistoryLimit); err != nil {
		return false, err
	}
	return true, nil
}

// Suggestions returns the most recent searches.
func (s *Service) Suggestions() ([]domain.SearchHistoryEntry, error) {
	return s.repo.RecentSearches(s.opts.SuggestionLimit)
}

// WatchSuggestions streams the most recent searches.
func (s *Service) WatchSuggestions(ctx context.Context) <-chan live.Snapshot[domain.SearchHistoryEntry] {
	return s.repo.WatchRecentSearches(ctx, s.opts.SuggestionLimit)
}

// RemoveSearch deletes one search from the history.
func (s *Service) RemoveSearch(query string) error {
	_, err := s.repo.RemoveSearch(strings.TrimSpace(query))
	return err
}

// ClearSearchHistory deletes the whole search history.
func (s *Service) ClearSearchHistory() error {
	return s.repo.ClearSearchHistory()
}
