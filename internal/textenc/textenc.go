// Package textenc decodes text files whose encoding is signalled by a byte
// order mark and normalizes header names read from tabular input.
//
// Query files and datasets are expected to be UTF-8, but editors on some
// platforms save them as UTF-8 with BOM or as UTF-16. Both are accepted when
// a BOM is present; anything else must be valid UTF-8.
package textenc

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// utf8BOM is stripped from decoded text and from the first header cell.
const utf8BOM = "\uFEFF"

// ErrInvalidUTF8 is returned when input without a BOM is not valid UTF-8.
var ErrInvalidUTF8 = errors.New("textenc: input is not valid UTF-8")

// NewReader wraps r so that a leading BOM selects the decoder (UTF-8,
// UTF-16LE or UTF-16BE) and is removed from the stream. Input without a BOM
// passes through as UTF-8.
func NewReader(r io.Reader) io.Reader {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	return transform.NewReader(r, dec)
}

// DecodeText returns the text of b decoded per its BOM. The result is
// guaranteed to be valid UTF-8.
func DecodeText(b []byte) (string, error) {
	// The UTF-8 decoder substitutes U+FFFD for bad bytes, so validity is
	// checked on the raw input.
	if !hasUTF16BOM(b) && !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), b)
	if err != nil {
		return "", fmt.Errorf("textenc: decode: %w", err)
	}
	return strings.TrimPrefix(string(out), utf8BOM), nil
}

// ReadAll reads r fully and decodes it with DecodeText.
func ReadAll(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return DecodeText(b)
}

// NormalizeHeader trims a header cell, drops a stray BOM and converts it to
// Unicode NFC so that composed and decomposed spellings of the same column
// name compare equal.
func NormalizeHeader(s string) string {
	s = strings.TrimPrefix(s, utf8BOM)
	return norm.NFC.String(strings.TrimSpace(s))
}

// NormalizeHeaders applies NormalizeHeader to every cell in place and
// returns the slice for convenience.
func NormalizeHeaders(headers []string) []string {
	for i, h := range headers {
		headers[i] = NormalizeHeader(h)
	}
	return headers
}

func hasUTF16BOM(b []byte) bool {
	return bytes.HasPrefix(b, []byte{0xFF, 0xFE}) || bytes.HasPrefix(b, []byte{0xFE, 0xFF})
}
