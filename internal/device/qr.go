package device

import (
	"os"

	"github.com/matheus3301/phonecontact/internal/domain"
	"github.com/skip2/go-qrcode"
)

// DefaultQRSize is the side length in pixels of rendered QR codes.
const DefaultQRSize = 256

// QRCode renders c's vCard as a PNG QR code of size×size pixels.
func QRCode(c domain.Contact, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	return qrcode.Encode(VCard(c), qrcode.Medium, size)
}

// WriteQRCode renders c's vCard QR code to a PNG file.
func WriteQRCode(c domain.Contact, size int, path string) error {
	png, err := QRCode(c, size)
	if err != nil {
		return err
	}
	return os.WriteFile(path, png, 0600)
}
