package usecase

import (
	"strings"
	"unicode/utf8"

	"github.com/matheus3301/phonecontact/internal/domain"
)

const (
	// MinNameLength is the shortest accepted first or last name.
	MinNameLength = 2
	// MinPhoneLength is the shortest accepted phone number after normalization.
	MinPhoneLength = 10
	// MaxImageBytes bounds uploaded profile images.
	MaxImageBytes = 1 << 20
)

// NormalizePhone keeps digits and a single leading '+'.
func NormalizePhone(s string) string {
	s = strings.TrimSpace(s)
	var b strings.Builder
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidateContact checks the name and phone fields of an already normalized
// contact.
func ValidateContact(c domain.Contact) error {
	if err := validateName("firstName", c.FirstName); err != nil {
		return err
	}
	if err := validateName("lastName", c.LastName); err != nil {
		return err
	}
	switch {
	case c.PhoneNumber == "":
		return &domain.ValidationError{Field: "phoneNumber", Reason: "must not be blank"}
	case len(c.PhoneNumber) < MinPhoneLength:
		return &domain.ValidationError{Field: "phoneNumber", Reason: "must have at least 10 characters"}
	}
	return nil
}

func validateName(field, v string) error {
	switch {
	case strings.TrimSpace(v) == "":
		return &domain.ValidationError{Field: field, Reason: "must not be blank"}
	case utf8.RuneCountInString(v) < MinNameLength:
		return &domain.ValidationError{Field: field, Reason: "must have at least 2 characters"}
	}
	return nil
}

func normalize(c domain.Contact) domain.Contact {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.PhoneNumber = NormalizePhone(c.PhoneNumber)
	c.ProfileImageURL = strings.TrimSpace(c.ProfileImageURL)
	return c
}
