package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultGroupLetter buckets contacts whose first name is empty.
const DefaultGroupLetter = "#"

// Contact is the in-memory representation used by business logic.
type Contact struct {
	ID                 string
	FirstName          string
	LastName           string
	PhoneNumber        string
	ProfileImageURL    string // empty until an image has been uploaded
	IsInDeviceContacts bool
	CreatedAt          string
}

// FullName returns first and last name joined by a space.
func (c Contact) FullName() string {
	return c.FirstName + " " + c.LastName
}

// Initials returns the uppercased first letters of the first and last name.
func (c Contact) Initials() string {
	return firstUpper(c.FirstName) + firstUpper(c.LastName)
}

// GroupLetter returns the section key used to bucket contacts alphabetically.
func (c Contact) GroupLetter() string {
	if l := firstUpper(c.FirstName); l != "" {
		return l
	}
	return DefaultGroupLetter
}

func firstUpper(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 || r == utf8.RuneError {
		return ""
	}
	return string(unicode.ToUpper(r))
}

// Section is a run of contacts that share a grouping letter.
type Section struct {
	Letter   string
	Contacts []Contact
}

// GroupByLetter buckets contacts into alphabetical sections. Section order
// follows the first appearance of each letter in the input, so a list already
// sorted by first name yields sections in alphabetical order.
func GroupByLetter(contacts []Contact) []Section {
	var sections []Section
	index := make(map[string]int)
	for _, c := range contacts {
		letter := c.GroupLetter()
		i, ok := index[letter]
		if !ok {
			i = len(sections)
			index[letter] = i
			sections = append(sections, Section{Letter: letter})
		}
		sections[i].Contacts = append(sections[i].Contacts, c)
	}
	return sections
}

// FoldCase maps s to the form used for case-insensitive comparison of
// names and search queries. Letter case is folded across Unicode, not only
// ASCII.
func FoldCase(s string) string {
	return strings.ToLower(s)
}
