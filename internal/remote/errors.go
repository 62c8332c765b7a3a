package remote

import (
	"fmt"

	"github.com/matheus3301/phonecontact/internal/domain"
)

// Remote operation names, used in errors and log fields.
const (
	OpCreate = "create"
	OpGet    = "get"
	OpUpdate = "update"
	OpDelete = "delete"
	OpList   = "list"
	OpUpload = "upload_image"
)

var defaultMessages = map[string]string{
	OpCreate: "Failed to create contact",
	OpGet:    "Failed to get contact",
	OpUpdate: "Failed to update contact",
	OpDelete: "Failed to delete contact",
	OpList:   "Failed to get contacts",
	OpUpload: "Failed to upload image",
}

// OperationError is returned by every Client method that did not produce a
// usable result: a failure envelope, a missing data field, a transport error
// or a timeout. It matches domain.ErrRemoteOperationFailed with errors.Is.
type OperationError struct {
	Op      string
	Message string // server-supplied, or a fixed default per operation
	Status  int    // HTTP status code, 0 when no response was received
	Err     error  // underlying transport or decoding error, if any
}

func newOperationError(op string, status int, message *string, err error) *OperationError {
	msg := defaultMessages[op]
	if message != nil && *message != "" {
		msg = *message
	}
	return &OperationError{Op: op, Message: msg, Status: status, Err: err}
}

func (e *OperationError) Error() string {
	s := fmt.Sprintf("remote %s: %s", e.Op, e.Message)
	if e.Status != 0 {
		s += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *OperationError) Unwrap() []error {
	if e.Err == nil {
		return []error{domain.ErrRemoteOperationFailed}
	}
	return []error{domain.ErrRemoteOperationFailed, e.Err}
}
