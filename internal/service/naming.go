package service

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const stampLayout = "20060102T150405.000Z"

// FileName derives the stored name of a generated artifact:
// PO-<number>-<type>-<UTC timestamp>-<8 hex>.pdf. The random suffix keeps
// concurrent generations for the same order and type from colliding.
func FileName(poNumber, documentType string, at time.Time) string {
	number := normalise(poNumber)
	if len(number) > 3 && strings.EqualFold(number[:3], "PO-") {
		number = number[3:]
	}
	if number == "" {
		number = "unnumbered"
	}
	return fmt.Sprintf("PO-%s-%s-%s-%s.pdf", number, documentType, at.UTC().Format(stampLayout), uniqueSuffix())
}

// StoredName derives the storage name of an uploaded artifact. The display
// name only contributes its extension.
func StoredName(poID int64, documentType, displayName string, at time.Time) string {
	ext := strings.ToLower(filepath.Ext(displayName))
	if ext == "" || ext == "." {
		ext = ".bin"
	}
	return fmt.Sprintf("PO-%d-%s-%s-%s%s", poID, documentType, at.UTC().Format(stampLayout), uniqueSuffix(), ext)
}

// DisplayName reduces a client-supplied file name to a safe base name.
// It returns "" when nothing usable remains.
func DisplayName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, `\`, "/"))
	if base == "." || base == "/" {
		return ""
	}
	return normalise(base)
}

// normalise strips diacritics and replaces anything outside [A-Za-z0-9._-]
// with a single '-'.
func normalise(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range folded {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_'):
			b.WriteRune(r)
			dash = false
		case !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.Trim(b.String(), "-.")
}

func uniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
