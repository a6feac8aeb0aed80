package storage

import "encoding/base64"

// Obscure applies a reversible encoding to a sensitive value before it is
// written. This is not encryption and provides no confidentiality; it only
// keeps tokens from being glanceable in the raw database. Empty input maps
// to empty output.
func Obscure(value string) string {
	if value == "" {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(value))
}

// Reveal reverses Obscure. A value that fails to decode is returned as-is
// so a corrupted entry degrades to its raw form instead of disappearing.
func Reveal(value string) string {
	if value == "" {
		return ""
	}
	decoded, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return value
	}
	return string(decoded)
}
