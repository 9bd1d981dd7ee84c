// Package wire implements the text-safe encoding used for bus payloads and
// result reports.
package wire

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Encode returns the padded standard base64 form of data.
func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// EncodeString is Encode for string input.
func EncodeString(s string) string {
	return Encode([]byte(s))
}

// Decode reverses Encode. Surrounding whitespace is ignored since payloads
// arrive from line-oriented transports.
func Decode(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decoding payload: %w", err)
	}
	return data, nil
}
