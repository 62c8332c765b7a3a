package api

import (
	"context"
	"errors"
	"time"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/status"
	intsync "github.com/matheus3301/phonecontact/internal/sync"
	"github.com/matheus3301/phonecontact/internal/usecase"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ContactService implements ContactServiceServer on top of the use cases.
type ContactService struct {
	sessionName string
	startedAt   time.Time
	contacts    *usecase.Service
	repo        *intsync.Repository
	machine     *status.Machine
	logger      *zap.Logger
}

// NewContactService creates a new contact service.
func NewContactService(sessionName string, contacts *usecase.Service, repo *intsync.Repository, machine *status.Machine, logger *zap.Logger) *ContactService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ContactService{
		sessionName: sessionName,
		startedAt:   time.Now(),
		contacts:    contacts,
		repo:        repo,
		machine:     machine,
		logger:      logger,
	}
}

func (s *ContactService) ListContacts(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	contacts, err := s.contacts.Contacts()
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{"contacts": contactsToValue(contacts)}), nil
}

func (s *ContactService) SearchContacts(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	contacts, err := s.contacts.Search(stringField(req, "query"))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{"contacts": contactsToValue(contacts)}), nil
}

func (s *ContactService) GetContact(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.contacts.Contact(stringField(req, fieldID))
	if err != nil {
		return nil, toStatus(err)
	}
	return contactResponse(c), nil
}

func (s *ContactService) CreateContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.contacts.Create(ctx, usecase.CreateInput{
		FirstName:       stringField(req, fieldFirstName),
		LastName:        stringField(req, fieldLastName),
		PhoneNumber:     stringField(req, fieldPhoneNumber),
		ProfileImageURL: stringField(req, fieldProfileImageURL),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return contactResponse(c), nil
}

func (s *ContactService) UpdateContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	res, err := s.contacts.Update(ctx, contactFromStruct(req.GetFields()["contact"].GetStructValue()))
	if err != nil {
		return nil, toStatus(err)
	}
	return updateResponse(res), nil
}

func (s *ContactService) DeleteContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.contacts.Delete(ctx, stringField(req, fieldID)); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(nil), nil
}

func (s *ContactService) SyncContacts(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	contacts, err := s.contacts.Sync(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{
		"count": structpb.NewNumberValue(float64(len(contacts))),
	}), nil
}

func (s *ContactService) RefreshContact(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.contacts.Refresh(ctx, stringField(req, fieldID))
	if err != nil {
		return nil, toStatus(err)
	}
	return contactResponse(c), nil
}

// UploadImage uploads the base64 "image" payload. When "contactId" is set the
// returned URL also becomes that contact's profile image.
func (s *ContactService) UploadImage(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	data, err := bytesField(req, "image")
	if err != nil {
		return nil, grpcstatus.Errorf(codes.InvalidArgument, "decode image: %v", err)
	}
	if id := stringField(req, "contactId"); id != "" {
		res, err := s.contacts.SetProfileImage(ctx, id, data)
		if err != nil {
			return nil, toStatus(err)
		}
		out := updateResponse(res)
		out.Fields["url"] = structpb.NewStringValue(res.Contact.ProfileImageURL)
		return out, nil
	}
	url, err := s.contacts.UploadImage(ctx, data)
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{"url": structpb.NewStringValue(url)}), nil
}

func (s *ContactService) ExportToDevice(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	c, err := s.contacts.ExportToDevice(ctx, stringField(req, fieldID))
	if err != nil {
		return nil, toStatus(err)
	}
	return contactResponse(c), nil
}

func (s *ContactService) RecordSearch(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	recorded, err := s.contacts.RecordSearch(stringField(req, "query"))
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{"recorded": structpb.NewBoolValue(recorded)}), nil
}

func (s *ContactService) RecentSearches(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries, err := s.contacts.Suggestions()
	if err != nil {
		return nil, toStatus(err)
	}
	return newStruct(map[string]*structpb.Value{"searches": searchesToValue(entries)}), nil
}

func (s *ContactService) RemoveSearch(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if err := s.contacts.RemoveSearch(stringField(req, "query")); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(nil), nil
}

func (s *ContactService) ClearSearchHistory(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	if err := s.contacts.ClearSearchHistory(); err != nil {
		return nil, toStatus(err)
	}
	return newStruct(nil), nil
}

func (s *ContactService) GetStatus(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	snap := s.machine.Snapshot()
	fields := map[string]*structpb.Value{
		"session":   structpb.NewStringValue(s.sessionName),
		"state":     structpb.NewStringValue(string(snap.State)),
		"since":     structpb.NewNumberValue(float64(snap.Since.UnixMilli())),
		"lastError": structpb.NewStringValue(snap.LastError),
		"uptimeMs":  structpb.NewNumberValue(float64(time.Since(s.startedAt).Milliseconds())),
	}

	if s.repo != nil {
		if n, err := s.repo.ContactCount(); err == nil {
			fields["contactCount"] = structpb.NewNumberValue(float64(n))
		}
		if cp, err := s.repo.LastFullSync(); err == nil && cp != nil {
			fields["lastFullSyncAt"] = structpb.NewNumberValue(float64(cp.At.UnixMilli()))
			fields["lastFullSyncCount"] = structpb.NewNumberValue(float64(cp.Count))
		}
	}
	return newStruct(fields), nil
}

// WatchContacts streams the contact list, filtered by the optional "query",
// each time the contacts table changes.
func (s *ContactService) WatchContacts(req *structpb.Struct, stream grpc.ServerStream) error {
	for snap := range s.contacts.WatchSearch(stream.Context(), stringField(req, "query")) {
		if snap.Err != nil {
			return toStatus(snap.Err)
		}
		msg := newStruct(map[string]*structpb.Value{"contacts": contactsToValue(snap.Items)})
		if err := stream.SendMsg(msg); err != nil {
			return err
		}
	}
	return nil
}

func contactResponse(c domain.Contact) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{"contact": structpb.NewStructValue(contactToStruct(c))})
}

func updateResponse(res intsync.UpdateResult) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{
		"contact":  structpb.NewStructValue(contactToStruct(res.Contact)),
		"affected": structpb.NewNumberValue(float64(res.Affected)),
		"remote":   structpb.NewBoolValue(res.Remote),
	})
}

// toStatus maps domain errors onto gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return grpcstatus.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrRemoteOperationFailed):
		return grpcstatus.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	default:
		return grpcstatus.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps a gRPC status back onto the domain error it came from.
// Unavailable is left as is: it also reports an unreachable daemon.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := grpcstatus.FromError(err)
	if !ok {
		return err
	}
	var kind error
	switch st.Code() {
	case codes.InvalidArgument:
		kind = domain.ErrValidation
	case codes.NotFound:
		kind = domain.ErrNotFound
	default:
		return err
	}
	return &RemoteError{Message: st.Message(), kind: kind}
}

// RemoteError is a daemon error decoded on the client side.
type RemoteError struct {
	Message string
	kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.kind }
