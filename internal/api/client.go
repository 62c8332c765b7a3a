package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/matheus3301/phonecontact/internal/usecase"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client wraps the gRPC connection to the daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon's Unix domain socket.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the gRPC connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Status is the daemon status as reported by GetStatus.
type Status struct {
	Session           string
	State             string
	Since             time.Time
	LastError         string
	ContactCount      int
	LastFullSync      *time.Time
	LastFullSyncCount int
	Uptime            time.Duration
}

// UpdateResult mirrors the outcome of an update on the daemon.
type UpdateResult struct {
	Contact  domain.Contact
	Affected int64
	Remote   bool
}

func (c *Client) invoke(ctx context.Context, method string, req *structpb.Struct) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), req, out); err != nil {
		return nil, fromStatus(err)
	}
	return out, nil
}

func (c *Client) contactCall(ctx context.Context, method string, req *structpb.Struct) (domain.Contact, error) {
	out, err := c.invoke(ctx, method, req)
	if err != nil {
		return domain.Contact{}, err
	}
	return contactFromStruct(out.GetFields()["contact"].GetStructValue()), nil
}

func idRequest(id string) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{fieldID: structpb.NewStringValue(id)})
}

func queryRequest(q string) *structpb.Struct {
	return newStruct(map[string]*structpb.Value{"query": structpb.NewStringValue(q)})
}

// ListContacts returns every stored contact in display order.
func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	out, err := c.invoke(ctx, MethodListContacts, newStruct(nil))
	if err != nil {
		return nil, err
	}
	return contactsFromValue(out.GetFields()["contacts"]), nil
}

// SearchContacts returns the contacts whose name contains query.
func (c *Client) SearchContacts(ctx context.Context, query string) ([]domain.Contact, error) {
	out, err := c.invoke(ctx, MethodSearchContacts, queryRequest(query))
	if err != nil {
		return nil, err
	}
	return contactsFromValue(out.GetFields()["contacts"]), nil
}

func (c *Client) GetContact(ctx context.Context, id string) (domain.Contact, error) {
	return c.contactCall(ctx, MethodGetContact, idRequest(id))
}

func (c *Client) CreateContact(ctx context.Context, in usecase.CreateInput) (domain.Contact, error) {
	return c.contactCall(ctx, MethodCreateContact, newStruct(map[string]*structpb.Value{
		fieldFirstName:       structpb.NewStringValue(in.FirstName),
		fieldLastName:        structpb.NewStringValue(in.LastName),
		fieldPhoneNumber:     structpb.NewStringValue(in.PhoneNumber),
		fieldProfileImageURL: structpb.NewStringValue(in.ProfileImageURL),
	}))
}

func (c *Client) UpdateContact(ctx context.Context, contact domain.Contact) (UpdateResult, error) {
	out, err := c.invoke(ctx, MethodUpdateContact, newStruct(map[string]*structpb.Value{
		"contact": structpb.NewStructValue(contactToStruct(contact)),
	}))
	if err != nil {
		return UpdateResult{}, err
	}
	return updateResultFrom(out), nil
}

func (c *Client) DeleteContact(ctx context.Context, id string) error {
	_, err := c.invoke(ctx, MethodDeleteContact, idRequest(id))
	return err
}

// SyncContacts runs a full sync and returns the number of contacts fetched.
func (c *Client) SyncContacts(ctx context.Context) (int, error) {
	out, err := c.invoke(ctx, MethodSyncContacts, newStruct(nil))
	if err != nil {
		return 0, err
	}
	return int(numberField(out, "count")), nil
}

func (c *Client) RefreshContact(ctx context.Context, id string) (domain.Contact, error) {
	return c.contactCall(ctx, MethodRefreshContact, idRequest(id))
}

// UploadImage uploads an image and returns its URL.
func (c *Client) UploadImage(ctx context.Context, data []byte) (string, error) {
	out, err := c.invoke(ctx, MethodUploadImage, newStruct(map[string]*structpb.Value{
		"image": bytesValue(data),
	}))
	if err != nil {
		return "", err
	}
	return stringField(out, "url"), nil
}

// SetProfileImage uploads an image and stores its URL on the contact.
func (c *Client) SetProfileImage(ctx context.Context, id string, data []byte) (UpdateResult, error) {
	out, err := c.invoke(ctx, MethodUploadImage, newStruct(map[string]*structpb.Value{
		"image":     bytesValue(data),
		"contactId": structpb.NewStringValue(id),
	}))
	if err != nil {
		return UpdateResult{}, err
	}
	return updateResultFrom(out), nil
}

func (c *Client) ExportToDevice(ctx context.Context, id string) (domain.Contact, error) {
	return c.contactCall(ctx, MethodExportToDevice, idRequest(id))
}

// RecordSearch stores query in the search history. It reports false when the
// query was too short to be recorded.
func (c *Client) RecordSearch(ctx context.Context, query string) (bool, error) {
	out, err := c.invoke(ctx, MethodRecordSearch, queryRequest(query))
	if err != nil {
		return false, err
	}
	return boolField(out, "recorded"), nil
}

func (c *Client) RecentSearches(ctx context.Context) ([]domain.SearchHistoryEntry, error) {
	out, err := c.invoke(ctx, MethodRecentSearches, newStruct(nil))
	if err != nil {
		return nil, err
	}
	return searchesFromValue(out.GetFields()["searches"]), nil
}

func (c *Client) RemoveSearch(ctx context.Context, query string) error {
	_, err := c.invoke(ctx, MethodRemoveSearch, queryRequest(query))
	return err
}

func (c *Client) ClearSearchHistory(ctx context.Context) error {
	_, err := c.invoke(ctx, MethodClearSearchHistory, newStruct(nil))
	return err
}

func (c *Client) Status(ctx context.Context) (Status, error) {
	out, err := c.invoke(ctx, MethodGetStatus, newStruct(nil))
	if err != nil {
		return Status{}, err
	}
	st := Status{
		Session:           stringField(out, "session"),
		State:             stringField(out, "state"),
		Since:             time.UnixMilli(int64(numberField(out, "since"))),
		LastError:         stringField(out, "lastError"),
		ContactCount:      int(numberField(out, "contactCount")),
		LastFullSyncCount: int(numberField(out, "lastFullSyncCount")),
		Uptime:            time.Duration(numberField(out, "uptimeMs")) * time.Millisecond,
	}
	if _, ok := out.GetFields()["lastFullSyncAt"]; ok {
		at := time.UnixMilli(int64(numberField(out, "lastFullSyncAt")))
		st.LastFullSync = &at
	}
	return st, nil
}

// WatchContacts calls fn with the matching contacts now and after every
// change, until ctx is cancelled or fn returns an error.
func (c *Client) WatchContacts(ctx context.Context, query string, fn func([]domain.Contact) error) error {
	stream, err := c.conn.NewStream(ctx, &ServiceDesc.Streams[0], FullMethod(MethodWatchContacts))
	if err != nil {
		return fromStatus(err)
	}
	if err := stream.SendMsg(queryRequest(query)); err != nil {
		return fromStatus(err)
	}
	if err := stream.CloseSend(); err != nil {
		return fromStatus(err)
	}
	for {
		out := new(structpb.Struct)
		if err := stream.RecvMsg(out); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fromStatus(err)
		}
		if err := fn(contactsFromValue(out.GetFields()["contacts"])); err != nil {
			return err
		}
	}
}

func updateResultFrom(out *structpb.Struct) UpdateResult {
	return UpdateResult{
		Contact:  contactFromStruct(out.GetFields()["contact"].GetStructValue()),
		Affected: int64(numberField(out, "affected")),
		Remote:   boolField(out, "remote"),
	}
}
