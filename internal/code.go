package internal

import (
	"crypto/rand"
	"encoding/base64"
	"strings"
)

const codeLength = 6

var codeStripper = strings.NewReplacer("+", "", "/", "", "=", "")

// GenerateCode produces a short URL-safe token from 4 bytes of
// cryptographically strong randomness: base64-encode, strip the
// non-alphanumeric symbols, truncate to 6 characters.
//
// Because stripping happens before truncation, a '+' or '/' in the
// encoding shortens the result below 6 characters. The alphabet is the
// filtered base64 one, not a true base62. Uniqueness is not checked
// here; the store's unique index on short_code is the authority.
func GenerateCode() (string, error) {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return codeFromBytes(buf), nil
}

func codeFromBytes(buf []byte) string {
	code := codeStripper.Replace(base64.StdEncoding.EncodeToString(buf))
	if len(code) > codeLength {
		code = code[:codeLength]
	}
	return code
}
