// Package cursor turns a keyset position into an opaque page token and back.
package cursor

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// ErrInvalid is returned for tokens that were not produced by Encode.
var ErrInvalid = errors.New("cursor: invalid token")

// Position is the last row of a page: its creation time plus a
// tie-break key unique within that time.
type Position struct {
	CreatedAt time.Time `json:"t"`
	Key       string    `json:"k"`
}

// Encode returns the URL-safe token for p.
func Encode(p Position) string {
	raw, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// Decode parses a token. An empty token is the first page and yields nil.
func Decode(token string) (*Position, error) {
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, ErrInvalid
	}

	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalid
	}
	if p.CreatedAt.IsZero() || p.Key == "" {
		return nil, ErrInvalid
	}
	return &p, nil
}
