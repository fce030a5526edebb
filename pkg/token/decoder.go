// Package token decodes the compact payload tokens embedded in krystal
// URLs: base64url blobs with an optional one-character type prefix, or
// raw JSON objects.
package token

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode/utf8"
)

// MaxDecodedBytes is the hard cap on a token's decoded payload size.
const MaxDecodedBytes = 2 << 20 // 2 MB

// ErrTooLarge is returned when a token's decoded form exceeds MaxDecodedBytes.
var ErrTooLarge = errors.New("token: decoded payload exceeds 2MB cap")

// ErrNotAnObject is returned when a decoded token is valid JSON but not a
// JSON object.
var ErrNotAnObject = errors.New("token: decoded value is not a JSON object")

// knownPrefixes are the recognised single-character token type markers.
var knownPrefixes = map[byte]bool{'c': true, 'j': true, 'p': true, 't': true}

// Decode decodes s into a payload object, per §4.2 of the token grammar:
//
//  1. URL-decode s.
//  2. If it begins with '{' and ends with '}', parse as raw JSON directly.
//  3. Otherwise, if it has a recognised two-character prefix ("c:", "j:",
//     "p:", "t:"), strip it.
//  4. Base64url-decode (padding restored as needed), capped at 2MB decoded.
//  5. UTF-8 decode and JSON-parse; the result must be an object.
func Decode(s string) (map[string]interface{}, error) {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		// Some tokens are already raw and not percent-encoded at all;
		// fall back to the original string rather than failing outright.
		decoded = s
	}

	if strings.HasPrefix(decoded, "{") && strings.HasSuffix(decoded, "}") {
		return parseObject([]byte(decoded))
	}

	body := decoded
	if len(decoded) >= 3 && decoded[1] == ':' {
		if knownPrefixes[lower(decoded[0])] {
			body = decoded[2:]
		}
	}

	raw, err := decodeBase64URL(body)
	if err != nil {
		return nil, fmt.Errorf("token: base64url decode failed: %w", err)
	}
	if len(raw) > MaxDecodedBytes {
		return nil, ErrTooLarge
	}
	if !utf8.Valid(raw) {
		return nil, fmt.Errorf("token: decoded payload is not valid UTF-8")
	}

	return parseObject(raw)
}

func parseObject(raw []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("token: JSON parse failed: %w", err)
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, ErrNotAnObject
	}
	return obj, nil
}

func decodeBase64URL(s string) ([]byte, error) {
	padded := s
	if m := len(padded) % 4; m != 0 {
		padded += strings.Repeat("=", 4-m)
	}
	return base64.URLEncoding.DecodeString(padded)
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
