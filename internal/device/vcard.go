// Package device exports contacts outside the cache: vCard files standing in
// for the platform address book, and QR codes for sharing.
package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/matheus3301/phonecontact/internal/domain"
	"go.uber.org/zap"
)

var vcardEscaper = strings.NewReplacer(`\`, `\\`, `,`, `\,`, `;`, `\;`, "\n", `\n`)

// VCard renders c as a vCard 3.0 card.
func VCard(c domain.Contact) string {
	var b strings.Builder
	b.WriteString("BEGIN:VCARD\r\n")
	b.WriteString("VERSION:3.0\r\n")
	fmt.Fprintf(&b, "N:%s;%s;;;\r\n", vcardEscaper.Replace(c.LastName), vcardEscaper.Replace(c.FirstName))
	fmt.Fprintf(&b, "FN:%s\r\n", vcardEscaper.Replace(strings.TrimSpace(c.FullName())))
	fmt.Fprintf(&b, "TEL;TYPE=CELL:%s\r\n", vcardEscaper.Replace(c.PhoneNumber))
	if c.ProfileImageURL != "" {
		fmt.Fprintf(&b, "PHOTO;VALUE=URI:%s\r\n", c.ProfileImageURL)
	}
	if c.ID != "" {
		fmt.Fprintf(&b, "UID:%s\r\n", vcardEscaper.Replace(c.ID))
	}
	b.WriteString("END:VCARD\r\n")
	return b.String()
}

// VCardDirectory is an address book backed by a directory of .vcf files,
// one per contact.
type VCardDirectory struct {
	dir    string
	logger *zap.Logger
}

// NewVCardDirectory returns an address book that writes into dir.
func NewVCardDirectory(dir string, logger *zap.Logger) *VCardDirectory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VCardDirectory{dir: dir, logger: logger}
}

// Path returns the file a contact is exported to.
func (d *VCardDirectory) Path(id string) string {
	return filepath.Join(d.dir, safeName(id)+".vcf")
}

// WriteContact writes c's card, replacing any earlier export of the same
// contact.
func (d *VCardDirectory) WriteContact(ctx context.Context, c domain.Contact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.ID == "" {
		return fmt.Errorf("export contact: missing id")
	}
	if err := os.MkdirAll(d.dir, 0700); err != nil {
		return fmt.Errorf("create address book dir: %w", err)
	}

	path := d.Path(c.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(VCard(c)), 0600); err != nil {
		return fmt.Errorf("write vcard: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("write vcard: %w", err)
	}
	d.logger.Debug("contact written to address book", zap.String("contact_id", c.ID), zap.String("path", path))
	return nil
}

func safeName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}
