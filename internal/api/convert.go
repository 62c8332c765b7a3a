package api

import (
	"encoding/base64"
	"time"

	"github.com/matheus3301/phonecontact/internal/domain"
	"google.golang.org/protobuf/types/known/structpb"
)

// Contact field names on the wire.
const (
	fieldID                 = "id"
	fieldFirstName          = "firstName"
	fieldLastName           = "lastName"
	fieldPhoneNumber        = "phoneNumber"
	fieldProfileImageURL    = "profileImageUrl"
	fieldIsInDeviceContacts = "isInDeviceContacts"
	fieldCreatedAt          = "createdAt"
)

func contactToStruct(c domain.Contact) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		fieldID:                 structpb.NewStringValue(c.ID),
		fieldFirstName:          structpb.NewStringValue(c.FirstName),
		fieldLastName:           structpb.NewStringValue(c.LastName),
		fieldPhoneNumber:        structpb.NewStringValue(c.PhoneNumber),
		fieldProfileImageURL:    structpb.NewStringValue(c.ProfileImageURL),
		fieldIsInDeviceContacts: structpb.NewBoolValue(c.IsInDeviceContacts),
		fieldCreatedAt:          structpb.NewStringValue(c.CreatedAt),
	}}
}

func contactFromStruct(s *structpb.Struct) domain.Contact {
	return domain.Contact{
		ID:                 stringField(s, fieldID),
		FirstName:          stringField(s, fieldFirstName),
		LastName:           stringField(s, fieldLastName),
		PhoneNumber:        stringField(s, fieldPhoneNumber),
		ProfileImageURL:    stringField(s, fieldProfileImageURL),
		IsInDeviceContacts: boolField(s, fieldIsInDeviceContacts),
		CreatedAt:          stringField(s, fieldCreatedAt),
	}
}

func contactsToValue(contacts []domain.Contact) *structpb.Value {
	values := make([]*structpb.Value, 0, len(contacts))
	for _, c := range contacts {
		values = append(values, structpb.NewStructValue(contactToStruct(c)))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func contactsFromValue(v *structpb.Value) []domain.Contact {
	values := v.GetListValue().GetValues()
	contacts := make([]domain.Contact, 0, len(values))
	for _, item := range values {
		contacts = append(contacts, contactFromStruct(item.GetStructValue()))
	}
	return contacts
}

func searchesToValue(entries []domain.SearchHistoryEntry) *structpb.Value {
	values := make([]*structpb.Value, 0, len(entries))
	for _, e := range entries {
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"id":         structpb.NewNumberValue(float64(e.ID)),
			"query":      structpb.NewStringValue(e.SearchQuery),
			"searchedAt": structpb.NewNumberValue(float64(e.SearchedAt.UnixMilli())),
		}}))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values})
}

func searchesFromValue(v *structpb.Value) []domain.SearchHistoryEntry {
	values := v.GetListValue().GetValues()
	entries := make([]domain.SearchHistoryEntry, 0, len(values))
	for _, item := range values {
		s := item.GetStructValue()
		entries = append(entries, domain.SearchHistoryEntry{
			ID:          int64(numberField(s, "id")),
			SearchQuery: stringField(s, "query"),
			SearchedAt:  time.UnixMilli(int64(numberField(s, "searchedAt"))),
		})
	}
	return entries
}

func newStruct(fields map[string]*structpb.Value) *structpb.Struct {
	if fields == nil {
		fields = map[string]*structpb.Value{}
	}
	return &structpb.Struct{Fields: fields}
}

func stringField(s *structpb.Struct, name string) string {
	return s.GetFields()[name].GetStringValue()
}

func boolField(s *structpb.Struct, name string) bool {
	return s.GetFields()[name].GetBoolValue()
}

func numberField(s *structpb.Struct, name string) float64 {
	return s.GetFields()[name].GetNumberValue()
}

func bytesField(s *structpb.Struct, name string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(stringField(s, name))
}

func bytesValue(b []byte) *structpb.Value {
	return structpb.NewStringValue(base64.StdEncoding.EncodeToString(b))
}
