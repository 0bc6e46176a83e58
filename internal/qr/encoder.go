// Package qr encodes permit verification URLs into QR image payloads for the
// certificate renderer.
package qr

import (
	"fmt"
	"net/url"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

// Size is the pixel edge length of generated QR images. The renderer scales
// the image down to its fixed on-page size, so this only bounds quality.
const Size = 256

// Payload carries one encoded QR image.
type Payload struct {
	URL string
	PNG []byte
}

// Encode renders the verification URL into a PNG QR code with medium error
// correction.
func Encode(target string) (Payload, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return Payload{}, fmt.Errorf("qr: empty url")
	}
	parsed, err := url.Parse(target)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return Payload{}, fmt.Errorf("qr: invalid url %q", target)
	}

	png, err := qrcode.Encode(target, qrcode.Medium, Size)
	if err != nil {
		return Payload{}, fmt.Errorf("qr: encode %q: %w", target, err)
	}
	return Payload{URL: target, PNG: png}, nil
}
