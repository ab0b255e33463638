package parser

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeBytes turns raw file bytes into a valid UTF-8 string. Legacy
// codebases arrive in a mix of encodings, so decoding tries UTF-8 first,
// then Latin-1, then Windows-1252, and finally substitutes the replacement
// character for anything left over. It never fails.
func DecodeBytes(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}

	if decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}

	if decoded, err := charmap.Windows1252.NewDecoder().Bytes(raw); err == nil && utf8.Valid(decoded) {
		return string(decoded)
	}

	return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
}
