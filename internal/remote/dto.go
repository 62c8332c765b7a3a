package remote

import "encoding/json"

// ContactDTO is the wire representation of a contact. Identifier, image URL
// and creation time are optional on the wire.
type ContactDTO struct {
	ID              *string `json:"id,omitempty"`
	FirstName       string  `json:"firstName"`
	LastName        string  `json:"lastName"`
	PhoneNumber     string  `json:"phoneNumber"`
	ProfileImageURL *string `json:"profileImageUrl,omitempty"`
	CreatedAt       *string `json:"createdAt,omitempty"`
}

// Envelope wraps every response body of the contacts API.
type Envelope struct {
	Success bool            `json:"success"`
	Message *string         `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Status  *int            `json:"status,omitempty"`
}

// HasData reports whether the envelope carries a non-null data field.
func (e *Envelope) HasData() bool {
	return len(e.Data) > 0 && string(e.Data) != "null"
}

// ImageUpload is the data payload of a successful image upload.
type ImageUpload struct {
	ImageURL string `json:"imageUrl"`
}

// Ptr returns a pointer to s, or nil when s is empty.
func Ptr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns *p, or "" when p is nil.
func Deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
